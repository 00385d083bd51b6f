// Package config holds runtime configuration for the tradestore CLI.
// Values come from flags, TRADESTORE_* environment variables or a plain
// config file, resolved by ff.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/atmx/tradestore/internal/store"
)

// EnvPrefix is the environment variable prefix, e.g. TRADESTORE_DATABASE_URL.
const EnvPrefix = "TRADESTORE"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all runtime configuration.
type Config struct {
	Store       string
	DatabaseURL string
	RedisURL    string
	RedisPrefix string
	LogLevel    string
	Timeout     time.Duration

	// PushgatewayURL, when set, receives the run's metrics before exit.
	PushgatewayURL string
}

// RegisterFlags binds the configuration to fs and returns the target.
func RegisterFlags(fs *flag.FlagSet) *Config {
	c := &Config{}
	fs.StringVar(&c.Store, "store", BackendMemory, "store backend: memory, postgres or redis")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "postgres connection string")
	fs.StringVar(&c.RedisURL, "redis-url", "", "redis connection url")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", store.DefaultRedisPrefix, "key prefix for the redis backend")
	fs.StringVar(&c.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.DurationVar(&c.Timeout, "timeout", 5*time.Second, "timeout for a single store operation")
	fs.StringVar(&c.PushgatewayURL, "pushgateway-url", "", "prometheus pushgateway url (optional)")
	return c
}

// Validate rejects unknown backends, missing connection strings and bad
// log levels.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("missing database url for postgres store"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("missing redis url for redis store"))
		}
		if strings.ContainsAny(c.RedisPrefix, "*?[]\\") {
			errs = append(errs, fmt.Errorf("redis prefix %q must not contain glob characters", c.RedisPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q, must be one of: memory, postgres, redis", c.Store))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.PushgatewayURL != "" {
		if u, err := url.Parse(c.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid pushgateway url %q", c.PushgatewayURL))
		}
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.LogLevel)
}
