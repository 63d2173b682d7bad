// Package config loads server settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhisek/stepwise/internal/engagement"
	"github.com/abhisek/stepwise/internal/llm"
	"github.com/abhisek/stepwise/internal/store"
)

// Environment keys.
const (
	EnvDBDriver         = "STEPWISE_DB_DRIVER"
	EnvDB               = "STEPWISE_DB"
	EnvAddr             = "STEPWISE_ADDR"
	EnvRedisAddr        = "STEPWISE_REDIS_ADDR"
	EnvTelegramToken    = "STEPWISE_TELEGRAM_TOKEN"
	EnvDeliveryInterval = "STEPWISE_DELIVERY_INTERVAL"
	EnvSessionIdleTTL   = "STEPWISE_SESSION_IDLE_TTL"
	EnvCheckpointAfter  = "STEPWISE_CHECKPOINT_AFTER"
	EnvLogLevel         = "STEPWISE_LOG_LEVEL"
)

// Config holds every runtime setting.
type Config struct {
	DB store.Config

	Addr             string
	RedisAddr        string // empty disables the leaderboard
	TelegramToken    string // empty delivers summaries to the log
	DeliveryInterval time.Duration
	SessionIdleTTL   time.Duration
	CheckpointAfter  time.Duration
	LogLevel         string

	LLM llm.Config
}

// Default returns the settings used when nothing is configured. The
// database DSN is left empty; Load resolves it.
func Default() Config {
	return Config{
		DB:               store.Config{Driver: store.DriverSQLite},
		Addr:             ":8080",
		DeliveryInterval: 15 * time.Minute,
		SessionIdleTTL:   2 * time.Hour,
		CheckpointAfter:  engagement.SessionIdleTimeout,
		LogLevel:         "info",
		LLM:              llm.DefaultConfig(),
	}
}

// Load reads envFile when it exists, then overlays the process
// environment on the defaults. Variables already set in the environment
// win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := fromLookup(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	if cfg.DB.DSN == "" && cfg.DB.Driver == store.DriverSQLite {
		p, err := store.DefaultDBPath()
		if err != nil {
			return Config{}, fmt.Errorf("resolve database path: %w", err)
		}
		cfg.DB.DSN = p
	}
	return cfg, nil
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: must be positive, got %s", key, v)
		}
		*dst = d
		return nil
	}

	str(EnvDBDriver, &cfg.DB.Driver)
	str(EnvDB, &cfg.DB.DSN)
	str(EnvAddr, &cfg.Addr)
	str(EnvRedisAddr, &cfg.RedisAddr)
	str(EnvTelegramToken, &cfg.TelegramToken)
	str(EnvLogLevel, &cfg.LogLevel)
	if err := errors.Join(
		dur(EnvDeliveryInterval, &cfg.DeliveryInterval),
		dur(EnvSessionIdleTTL, &cfg.SessionIdleTTL),
		dur(EnvCheckpointAfter, &cfg.CheckpointAfter),
	); err != nil {
		return Config{}, err
	}

	switch cfg.DB.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return Config{}, fmt.Errorf("%s: unsupported driver %q", EnvDBDriver, cfg.DB.Driver)
	}
	if cfg.DB.Driver == store.DriverPostgres && cfg.DB.DSN == "" {
		return Config{}, fmt.Errorf("%s is required for the postgres driver", EnvDB)
	}

	cfg.LLM = llm.ConfigFromLookup(lookup)
	if err := cfg.LLM.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
