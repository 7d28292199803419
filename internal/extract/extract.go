// Package extract runs the full extraction pipeline: provider construction,
// the retried extraction call, normalization, and boundary matching.
package extract

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"nugget-extractor/internal/matcher"
	"nugget-extractor/internal/nugget"
	"nugget-extractor/internal/provider"
	"nugget-extractor/internal/retry"
)

// DefaultPrompt asks the model for the canonical nugget shape. Callers can
// override it per request.
const DefaultPrompt = `Identify the most valuable insights ("golden nuggets") in the text above. ` +
	`Respond with JSON only, in the shape {"golden_nuggets": [{"type": "tool|media|explanation|analogy|model", ` +
	`"startContent": "...", "endContent": "...", "synthesis": "..."}]}. ` +
	`startContent and endContent must quote the first and last words of the relevant passage verbatim. ` +
	`Return {"golden_nuggets": []} if nothing qualifies.`

// matchConcurrency bounds the parallel boundary-matching goroutines.
const matchConcurrency = 4

// Request is one extraction call.
type Request struct {
	SourceText        string `json:"source_text" validate:"required"`
	InstructionPrompt string `json:"instruction_prompt"`
}

// LocatedNugget is a canonical nugget plus, when boundary matching
// succeeded, the concrete span in the source text. Match is nil when no
// window cleared the confidence threshold; the nugget is still returned.
type LocatedNugget struct {
	nugget.Nugget
	Match *matcher.Match `json:"match,omitempty"`
}

// Result is the outcome of one extraction run.
type Result struct {
	Provider provider.ID     `json:"provider"`
	Model    string          `json:"model"`
	Attempts int             `json:"attempts"`
	Nuggets  []LocatedNugget `json:"nuggets"`
}

// ClientFactory constructs a provider client for a validated config.
// *provider.Factory satisfies it.
type ClientFactory interface {
	New(cfg provider.Config) (provider.Client, error)
}

// Service wires the pipeline together. Each call owns its own config and
// retry state; two concurrent calls are fully independent.
type Service struct {
	factory  ClientFactory
	executor *retry.Executor
	log      *slog.Logger
}

// NewService builds the pipeline service.
func NewService(log *slog.Logger, factory ClientFactory, executor *retry.Executor) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{factory: factory, executor: executor, log: log}
}

// Extract runs the whole pipeline for one request. Configuration errors
// surface before any network call; transient provider failures are retried
// inside the executor; normalization failures are terminal.
func (s *Service) Extract(ctx context.Context, cfg provider.Config, req Request) (Result, error) {
	if req.InstructionPrompt == "" {
		req.InstructionPrompt = DefaultPrompt
	}

	client, err := s.factory.New(cfg)
	if err != nil {
		return Result{}, err
	}

	raw, attempts, err := retry.Do(ctx, s.executor, func(ctx context.Context) ([]byte, error) {
		return client.Extract(ctx, req.SourceText, req.InstructionPrompt)
	})
	if err != nil {
		return Result{Provider: cfg.ProviderID, Model: cfg.Model, Attempts: attempts}, err
	}

	resp, err := nugget.Normalize(raw, string(cfg.ProviderID))
	if err != nil {
		return Result{Provider: cfg.ProviderID, Model: cfg.Model, Attempts: attempts}, err
	}

	located := s.locateAll(ctx, resp.Nuggets, req.SourceText)
	s.log.Info("extraction complete",
		"provider", cfg.ProviderID, "model", cfg.Model,
		"attempts", attempts, "nuggets", len(located))

	return Result{
		Provider: cfg.ProviderID,
		Model:    cfg.Model,
		Attempts: attempts,
		Nuggets:  located,
	}, nil
}

// ValidateAPIKey constructs the client for cfg and runs its key probe. The
// model field is irrelevant for probing, so a default is filled in when the
// caller left it empty.
func (s *Service) ValidateAPIKey(ctx context.Context, cfg provider.Config) (bool, error) {
	if cfg.Model == "" {
		cfg.Model = provider.DefaultModel(cfg.ProviderID)
	}
	client, err := s.factory.New(cfg)
	if err != nil {
		return false, err
	}
	return client.ValidateAPIKey(ctx, cfg.APIKey)
}

// locateAll matches every nugget's boundaries against the source in
// parallel. Matching failures are normal outcomes, never errors, so the
// group collects no error; order is preserved by indexed writes.
func (s *Service) locateAll(ctx context.Context, nuggets []nugget.Nugget, sourceText string) []LocatedNugget {
	located := make([]LocatedNugget, len(nuggets))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(matchConcurrency)
	for i, n := range nuggets {
		g.Go(func() error {
			located[i] = LocatedNugget{Nugget: n, Match: locateSpan(n, sourceText)}
			return nil
		})
	}
	_ = g.Wait()
	return located
}

// locateSpan combines the start and end fragment matches into one span.
// Returns nil when either boundary is missing or the span is inverted.
func locateSpan(n nugget.Nugget, sourceText string) *matcher.Match {
	start, ok := matcher.Locate(n.StartContent, sourceText, matcher.Options{})
	if !ok {
		return nil
	}
	end, ok := matcher.Locate(n.EndContent, sourceText, matcher.Options{})
	if !ok {
		return nil
	}
	if end.EndOffset < start.StartOffset {
		return nil
	}
	confidence := start.Confidence
	if end.Confidence < confidence {
		confidence = end.Confidence
	}
	return &matcher.Match{
		StartOffset: start.StartOffset,
		EndOffset:   end.EndOffset,
		Confidence:  confidence,
	}
}
