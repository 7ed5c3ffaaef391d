package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/gamelobby/internal/config"
	"github.com/mcoot/gamelobby/internal/dependencies/clock"
	"github.com/mcoot/gamelobby/internal/dependencies/random"
	"github.com/mcoot/gamelobby/internal/events"
	"github.com/mcoot/gamelobby/internal/services/auth"
	"github.com/mcoot/gamelobby/internal/services/lobby"
	"github.com/mcoot/gamelobby/internal/storage"
	"github.com/mcoot/gamelobby/internal/storage/memory"
	pgstorage "github.com/mcoot/gamelobby/internal/storage/postgres"
	redisstorage "github.com/mcoot/gamelobby/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypePostgres = config.StoragePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock     clock.Clock
	Random    random.Random
	Publisher events.Publisher

	// Services
	Registry    *lobby.Registry
	Coordinator *lobby.Coordinator
	AuthService *auth.Service
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service; Secret is required
	AuthConfig auth.Config
	// LobbyConfig controls timeouts, retries and the start gate
	// If zero value, defaults to lobby.DefaultConfig()
	LobbyConfig lobby.Config
	// RegistryConfig controls room code generation
	// If zero value, defaults to lobby.DefaultRegistryConfig()
	RegistryConfig lobby.RegistryConfig
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
	// NATSConfig enables event publishing to NATS (optional)
	NATSConfig *events.NATSConfig
}

// ConfigFrom translates the environment configuration into factory configuration
func ConfigFrom(c *config.Config, logger *slog.Logger) Config {
	authCfg := auth.DefaultConfig()
	authCfg.Secret = c.JWTSecret
	authCfg.TokenTTL = c.TokenTTL

	lobbyCfg := lobby.DefaultConfig()
	lobbyCfg.OperationTimeout = c.OperationTimeout
	lobbyCfg.ReadRetries = c.ReadRetries
	lobbyCfg.RequireAllReady = c.RequireAllReady

	registryCfg := lobby.DefaultRegistryConfig()
	registryCfg.CodeLength = c.RoomCodeLength

	cfg := Config{
		AuthConfig:     authCfg,
		LobbyConfig:    lobbyCfg,
		RegistryConfig: registryCfg,
		Logger:         logger,
		StorageType:    c.StorageType,
	}

	switch c.StorageType {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		cfg.RedisConfig = &redisCfg
	case StorageTypePostgres:
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = c.DatabaseURL
		cfg.PostgresConfig = &pgCfg
	}

	if c.NATSURL != "" {
		cfg.NATSConfig = &events.NATSConfig{URL: c.NATSURL}
	}

	return cfg
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSConfig != nil {
		natsPublisher, err := events.NewNATSPublisher(*cfg.NATSConfig, logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		publisher = natsPublisher
	}

	app, err := newWithDependencies(store, clock.New(), random.New(), publisher, cfg, logger)
	if err != nil {
		_ = publisher.Close()
		_ = store.Close()
		return nil, err
	}

	logger.Info("application wired",
		slog.String("storage", storageTypeOrDefault(cfg.StorageType)),
		slog.Bool("events", cfg.NATSConfig != nil),
	)
	return app, nil
}

func storageTypeOrDefault(storageType string) string {
	if storageType == "" {
		return StorageTypeMemory
	}
	return storageType
}

// newStorage creates storage based on type
func newStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	switch storageTypeOrDefault(cfg.StorageType) {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		return pgstorage.New(ctx, *cfg.PostgresConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'postgres'", cfg.StorageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	publisher events.Publisher,
	cfg Config,
	logger *slog.Logger,
) (*App, error) {
	authService, err := auth.New(store, clk, cfg.AuthConfig, logger)
	if err != nil {
		return nil, err
	}

	registry := lobby.NewRegistry(store, clk, rnd, cfg.RegistryConfig, logger)
	coordinator := lobby.NewCoordinator(store, registry, publisher, clk, logger, cfg.LobbyConfig)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		Publisher:   publisher,
		Registry:    registry,
		Coordinator: coordinator,
		AuthService: authService,
	}, nil
}

// Close releases the publisher and storage connections
func (a *App) Close() error {
	return errors.Join(a.Publisher.Close(), a.Storage.Close())
}
