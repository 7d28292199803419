package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"nugget-extractor/internal/app"
	"nugget-extractor/internal/extract"
	"nugget-extractor/internal/httputil"
	"nugget-extractor/internal/llmerr"
	"nugget-extractor/internal/nugget"
	"nugget-extractor/internal/provider"
	"nugget-extractor/internal/queue"
	"nugget-extractor/internal/store"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("extraction worker starting")

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return deps.Queue.Worker(ctx, func(ctx context.Context, job queue.Job) error {
			return handleExtract(ctx, deps, job)
		})
	})

	g.Go(func() error {
		return serveHealth(deps)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("worker stopped", "err", err)
	}
}

// handleExtract runs the pipeline for one queued run. Terminal failures
// mark the run failed and are not returned, so the queue does not requeue
// work that cannot succeed.
func handleExtract(ctx context.Context, deps app.Deps, job queue.Job) error {
	log := deps.Log.With("run_id", job.RunID)

	cfg, err := deps.ResolveProviderConfig(ctx, job.Provider)
	if err != nil {
		return markFailed(ctx, deps, job.RunID, 0, err)
	}

	result, err := deps.Extractor.Extract(ctx, cfg, extract.Request{
		SourceText:        job.SourceText,
		InstructionPrompt: job.InstructionPrompt,
	})
	if err != nil {
		if terminalFailure(err) {
			return markFailed(ctx, deps, job.RunID, result.Attempts, err)
		}
		// Transient even after the executor's own retries; let the
		// queue requeue the job with backoff.
		return err
	}

	if err := deps.Store.CompleteRun(ctx, job.RunID, result.Attempts, toSaved(job.RunID, result.Nuggets)); err != nil {
		return err
	}
	log.Info("run completed", "nuggets", len(result.Nuggets), "attempts", result.Attempts)
	return nil
}

// terminalFailure reports whether retrying the whole task later could help.
// Configuration, normalization, and non-retryable provider errors cannot be
// fixed by requeueing.
func terminalFailure(err error) bool {
	var cfgErr *provider.ConfigurationError
	var normErr *nugget.NormalizationError
	var enhanced *llmerr.Error
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &normErr):
		return true
	case errors.As(err, &enhanced):
		return !enhanced.Kind.Retryable()
	default:
		return false
	}
}

func markFailed(ctx context.Context, deps app.Deps, runID uuid.UUID, attempts int, cause error) error {
	if err := deps.Store.FailRun(ctx, runID, attempts, cause.Error()); err != nil {
		deps.Log.Error("failed to mark run failed", "run_id", runID, "err", err)
		return err
	}
	deps.Log.Warn("run failed", "run_id", runID, "err", cause)
	return nil
}

func toSaved(runID uuid.UUID, located []extract.LocatedNugget) []store.SavedNugget {
	saved := make([]store.SavedNugget, 0, len(located))
	for i, n := range located {
		s := store.SavedNugget{
			RunID:        runID,
			Index:        i,
			Type:         string(n.Type),
			StartContent: n.StartContent,
			EndContent:   n.EndContent,
			Synthesis:    n.Synthesis,
		}
		if n.Match != nil {
			start, end, conf := n.Match.StartOffset, n.Match.EndOffset, n.Match.Confidence
			s.StartOffset = &start
			s.EndOffset = &end
			s.Confidence = &conf
		}
		saved = append(saved, s)
	}
	return saved
}

func serveHealth(deps app.Deps) error {
	return httputil.ServeHealth(deps.Log, fmt.Sprintf(":%d", deps.Config.Port))
}
