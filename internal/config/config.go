// Package config loads server configuration.
//
// Values come from DefaultConfig, then an optional YAML file named by the
// --config flag or BANANACLICK_CONFIG, then environment variable overrides.
// The result is checked by Validate before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/bananaclick/internal/api"
	"github.com/mcoot/bananaclick/internal/factory"
	"github.com/mcoot/bananaclick/internal/realtime"
	"github.com/mcoot/bananaclick/internal/services/auth"
	"github.com/mcoot/bananaclick/internal/services/ledger"
	"github.com/mcoot/bananaclick/internal/services/token"
	boltstorage "github.com/mcoot/bananaclick/internal/storage/bolt"
	pgstorage "github.com/mcoot/bananaclick/internal/storage/postgres"
	redisstorage "github.com/mcoot/bananaclick/internal/storage/redis"
)

// EnvConfigPath names the environment variable holding the config file path
const EnvConfigPath = "BANANACLICK_CONFIG"

// Config is the complete server configuration
type Config struct {
	Server   api.ServerConfig `yaml:"server"`
	Log      LogConfig        `yaml:"log"`
	Storage  StorageConfig    `yaml:"storage"`
	Token    token.Config     `yaml:"token"`
	Auth     auth.Config      `yaml:"auth"`
	Admin    auth.AdminConfig `yaml:"admin"`
	Ledger   ledger.Config    `yaml:"ledger"`
	Realtime realtime.Config  `yaml:"realtime"`
}

// LogConfig controls the process logger
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is json or text
	Format string `yaml:"format"`
}

// StorageConfig selects and configures the account store
type StorageConfig struct {
	Type     string              `yaml:"type"`
	Redis    redisstorage.Config `yaml:"redis"`
	Bolt     boltstorage.Config  `yaml:"bolt"`
	Postgres pgstorage.Config    `yaml:"postgres"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		Server: api.DefaultServerConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Type:     factory.StorageTypeMemory,
			Redis:    redisstorage.DefaultConfig(),
			Bolt:     boltstorage.DefaultConfig(),
			Postgres: pgstorage.DefaultConfig(),
		},
		Token:    token.DefaultConfig(),
		Auth:     auth.DefaultConfig(),
		Ledger:   ledger.DefaultConfig(),
		Realtime: realtime.DefaultConfig(),
	}
}

// Load builds the configuration from path (may be empty) and the process
// environment
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides file values with any set environment variables
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Storage.Redis.URL = v
	}
	if v := getenv("BOLT_PATH"); v != "" {
		c.Storage.Bolt.Path = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v := getenv("TOKEN_SIGNING_KEY"); v != "" {
		c.Token.SigningKey = v
	}
	if v := getenv("TOKEN_KEY_DIR"); v != "" {
		c.Token.KeyDir = v
	}
	if v := getenv("ADMIN_USERNAME"); v != "" {
		c.Admin.Username = v
	}
	if v := getenv("ADMIN_EMAIL"); v != "" {
		c.Admin.Email = v
	}
	if v := getenv("ADMIN_PASSWORD"); v != "" {
		c.Admin.Password = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Realtime.AllowedOrigins = origins
	}
	return nil
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	switch c.Storage.Type {
	case factory.StorageTypeMemory:
	case factory.StorageTypeRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url required when storage type is redis"))
		}
	case factory.StorageTypeBolt:
		if c.Storage.Bolt.Path == "" {
			errs = append(errs, errors.New("storage.bolt.path required when storage type is bolt"))
		}
	case factory.StorageTypePostgres:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn required when storage type is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of memory, redis, bolt, postgres", c.Storage.Type))
	}

	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("token.ttl must be positive"))
	}
	if c.Token.SigningKey != "" {
		if _, err := token.ParseSeed(c.Token.SigningKey); err != nil {
			errs = append(errs, fmt.Errorf("token.signing_key: %w", err))
		}
	}

	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("admin.email and admin.password must be set together"))
	}
	if c.Ledger.MaxDelta <= 0 {
		errs = append(errs, errors.New("ledger.max_delta must be positive"))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Log.Level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger described by Log
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Factory converts the configuration into factory settings
func (c *Config) Factory(logger *slog.Logger) factory.Config {
	fc := factory.Config{
		Logger:       logger,
		StorageType:  c.Storage.Type,
		TokenConfig:  c.Token,
		AuthConfig:   c.Auth,
		LedgerConfig: c.Ledger,
	}
	rt := c.Realtime
	fc.RealtimeConfig = &rt

	switch c.Storage.Type {
	case factory.StorageTypeRedis:
		redisCfg := c.Storage.Redis
		fc.RedisConfig = &redisCfg
	case factory.StorageTypeBolt:
		boltCfg := c.Storage.Bolt
		fc.BoltConfig = &boltCfg
	case factory.StorageTypePostgres:
		pgCfg := c.Storage.Postgres
		fc.PostgresConfig = &pgCfg
	}
	return fc
}
