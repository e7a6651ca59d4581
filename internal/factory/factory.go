package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/bananaclick/internal/api"
	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/dependencies/random"
	"github.com/mcoot/bananaclick/internal/realtime"
	"github.com/mcoot/bananaclick/internal/services/accounts"
	"github.com/mcoot/bananaclick/internal/services/auth"
	"github.com/mcoot/bananaclick/internal/services/ledger"
	"github.com/mcoot/bananaclick/internal/services/presence"
	"github.com/mcoot/bananaclick/internal/services/ranking"
	"github.com/mcoot/bananaclick/internal/services/shop"
	"github.com/mcoot/bananaclick/internal/services/token"
	"github.com/mcoot/bananaclick/internal/storage"
	boltstorage "github.com/mcoot/bananaclick/internal/storage/bolt"
	"github.com/mcoot/bananaclick/internal/storage/memory"
	pgstorage "github.com/mcoot/bananaclick/internal/storage/postgres"
	redisstorage "github.com/mcoot/bananaclick/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeBolt     = "bolt"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Realtime core
	Tokens   *token.Codec
	Presence *presence.Registry
	Ledger   *ledger.Ledger
	Ranking  *ranking.Aggregator
	Realtime *realtime.Controller

	// Services
	AuthService    *auth.Service
	AccountService *accounts.Service
	ShopService    *shop.Service
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// BoltConfig holds the bbolt file settings (required if StorageType is "bolt")
	BoltConfig *boltstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config

	// Zero values fall back to each package's DefaultConfig
	TokenConfig  token.Config
	AuthConfig   auth.Config
	LedgerConfig ledger.Config
	// RealtimeConfig tunes the websocket channel; nil means realtime.DefaultConfig()
	RealtimeConfig *realtime.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	tokenCfg := cfg.TokenConfig
	if tokenCfg.TTL == 0 {
		tokenCfg.TTL = token.DefaultConfig().TTL
	}
	codec, err := token.New(tokenCfg, clk, rnd, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("token signing key: %w", err)
	}

	return newWithDependencies(store, clk, rnd, codec, cfg, logger), nil
}

func newStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeBolt:
		if cfg.BoltConfig == nil {
			return nil, errors.New("BoltConfig required when StorageType is bolt")
		}
		return boltstorage.New(*cfg.BoltConfig)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		return pgstorage.New(*cfg.PostgresConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be one of memory, redis, bolt, postgres", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, codec *token.Codec, cfg Config, logger *slog.Logger) *App {
	registry := presence.NewRegistry(clk)
	scoreLedger := ledger.New(store, clk, cfg.LedgerConfig, logger)
	aggregator := ranking.New(store, registry, clk)

	realtimeCfg := realtime.DefaultConfig()
	if cfg.RealtimeConfig != nil {
		realtimeCfg = *cfg.RealtimeConfig
	}
	controller := realtime.NewController(realtime.Deps{
		Auth:     codec,
		Storage:  store,
		Presence: registry,
		Ledger:   scoreLedger,
		Ranking:  aggregator,
		Clock:    clk,
	}, realtimeCfg, logger)

	authService := auth.New(store, codec, clk, cfg.AuthConfig, logger)
	accountService := accounts.New(store, authService, controller, clk, logger)
	shopService := shop.New(store, controller, clk, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Tokens:         codec,
		Presence:       registry,
		Ledger:         scoreLedger,
		Ranking:        aggregator,
		Realtime:       controller,
		AuthService:    authService,
		AccountService: accountService,
		ShopService:    shopService,
	}
}

// RouterConfig returns the API router configuration for this app
func (a *App) RouterConfig(logger *slog.Logger) api.RouterConfig {
	return api.RouterConfig{
		Logger:         logger,
		AuthService:    a.AuthService,
		AccountService: a.AccountService,
		ShopService:    a.ShopService,
		Ranking:        a.Ranking,
		Realtime:       a.Realtime,
		TopN:           ranking.DefaultTopN,
	}
}

// Bootstrap runs startup tasks that need the store, such as creating the
// configured admin account
func (a *App) Bootstrap(ctx context.Context, admin auth.AdminConfig) error {
	_, err := a.AuthService.EnsureAdmin(ctx, admin)
	return err
}

// Close stops realtime connections and releases the store
func (a *App) Close() error {
	a.Realtime.Shutdown()
	return a.Storage.Close()
}
