package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"nugget-extractor/internal/config"
	"nugget-extractor/internal/extract"
	"nugget-extractor/internal/logger"
	"nugget-extractor/internal/provider"
	"nugget-extractor/internal/queue"
	"nugget-extractor/internal/retry"
	"nugget-extractor/internal/settings"
	"nugget-extractor/internal/store"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Store     store.Store
	Queue     queue.Queue
	Settings  settings.Store
	Factory   *provider.Factory
	Extractor *extract.Service
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	settingsStore, err := buildSettings(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize settings store: %w", err)
	}

	factory := provider.NewFactory(log, settingsStore)
	extractor := extract.NewService(log, factory, retry.NewExecutor(log))

	return Deps{
		Config:    cfg,
		Log:       log,
		Store:     st,
		Queue:     q,
		Settings:  settingsStore,
		Factory:   factory,
		Extractor: extractor,
	}, nil
}

// ResolveProviderConfig assembles the per-call provider configuration:
// the requested (or default) provider id, the persisted model override or
// hard-coded default, and the credential from env or the settings store.
func (d Deps) ResolveProviderConfig(ctx context.Context, providerID string) (provider.Config, error) {
	if providerID == "" {
		providerID = d.Config.DefaultProvider
	}
	id := provider.ID(providerID)
	if !provider.Supported(id) {
		return provider.Config{}, &provider.ConfigurationError{Field: "provider", Reason: "\"" + providerID + "\" is not supported"}
	}

	apiKey := d.Config.APIKeyFor(providerID)
	if apiKey == "" && d.Settings != nil {
		stored, err := d.Settings.Get(ctx, settings.APIKeyKey(providerID))
		if err == nil {
			apiKey = stored
		}
	}

	return provider.Config{
		ProviderID: id,
		Model:      d.Factory.SelectedModel(ctx, id),
		APIKey:     apiKey,
	}, nil
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid option: postgres)", cfg.StoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: nats)", cfg.QueueProvider)
	}
}

func buildSettings(cfg config.Config, log *slog.Logger) (settings.Store, error) {
	switch cfg.SettingsProvider {
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when SETTINGS_PROVIDER=redis")
		}
		s, err := settings.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis settings store")
		return s, nil
	case "memory":
		log.Info("using in-memory settings store")
		return settings.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("invalid SETTINGS_PROVIDER: %s (valid options: redis, memory)", cfg.SettingsProvider)
	}
}
