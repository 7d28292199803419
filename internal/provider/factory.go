package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"nugget-extractor/internal/settings"
)

// Factory validates a requested configuration and constructs the matching
// client. All validation happens before any network activity.
type Factory struct {
	log      *slog.Logger
	settings settings.Store
}

// NewFactory builds a factory. The settings store may be nil, in which case
// SelectedModel always answers with the hard-coded default.
func NewFactory(log *slog.Logger, st settings.Store) *Factory {
	if log == nil {
		log = slog.Default()
	}
	return &Factory{log: log, settings: st}
}

// New constructs the client for cfg. Each way the configuration can be
// wrong yields a distinct ConfigurationError.
func (f *Factory) New(cfg Config) (Client, error) {
	if cfg.ProviderID == "" {
		return nil, &ConfigurationError{Field: "provider", Reason: "is missing"}
	}
	if !Supported(cfg.ProviderID) {
		return nil, &ConfigurationError{Field: "provider", Reason: "\"" + string(cfg.ProviderID) + "\" is not supported"}
	}
	if cfg.Model == "" {
		return nil, &ConfigurationError{Field: "model", Reason: "is missing"}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Field: "api key", Reason: "is missing"}
	}
	if !f.ValidateModel(cfg.ProviderID, cfg.Model) {
		return nil, &ConfigurationError{Field: "model", Reason: "\"" + cfg.Model + "\" is not valid"}
	}

	f.log.Debug("constructing provider client",
		"provider", cfg.ProviderID, "model", cfg.Model, "api_key", redactKey(cfg.APIKey))

	switch cfg.ProviderID {
	case Gemini:
		return NewGemini(cfg.APIKey, cfg.Model), nil
	case OpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Model), nil
	case OpenRouter:
		return NewOpenRouter(cfg.APIKey, cfg.Model), nil
	default:
		// Unreachable: Supported() has already screened the id.
		return nil, &ConfigurationError{Field: "provider", Reason: "\"" + string(cfg.ProviderID) + "\" is not supported"}
	}
}

// ValidateModel checks a model name against the known list for a provider.
// Unknown names are allowed with a warning, since vendors ship new models
// faster than the list updates; only empty names are rejected.
func (f *Factory) ValidateModel(id ID, model string) bool {
	if model == "" {
		return false
	}
	if !isKnownModel(id, model) {
		f.log.Warn("model not in known list, allowing anyway", "provider", id, "model", model)
	}
	return true
}

// SelectedModel returns the persisted model override for a provider, or the
// hard-coded default when the store has no (or an empty) value.
func (f *Factory) SelectedModel(ctx context.Context, id ID) string {
	fallback := DefaultModel(id)
	if f.settings == nil {
		return fallback
	}
	val, err := f.settings.Get(ctx, settings.ModelKey(string(id)))
	if errors.Is(err, settings.ErrNotFound) {
		return fallback
	}
	if err != nil {
		f.log.Warn("failed to read model override, using default", "provider", id, "err", err)
		return fallback
	}
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
