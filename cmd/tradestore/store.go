package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/tradestore/internal/config"
	"github.com/atmx/tradestore/internal/store"
)

// openStore connects the configured backend. The returned cleanup releases
// connections and is safe to call when err is nil.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database ping failed: %w", err)
		}
		slog.Debug("connected to PostgreSQL")
		return store.NewPostgresStore(pool), pool.Close, nil

	case config.BackendRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		slog.Debug("connected to Redis", "prefix", cfg.RedisPrefix)
		return store.NewRedisStore(rdb, cfg.RedisPrefix), func() { rdb.Close() }, nil

	default:
		slog.Warn("using in-memory store (data will not persist across runs)")
		return store.NewMemoryStore(), func() {}, nil
	}
}
