// Package bootstrap opens the backends selected by configuration. It is
// shared by every binary so they agree on drivers and defaults.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/card-market/internal/config"
	"github.com/ariefcatur/card-market/internal/memstore"
	"github.com/ariefcatur/card-market/internal/postgres"
	"github.com/ariefcatur/card-market/internal/redisx"
	"github.com/ariefcatur/card-market/internal/sqlite"
	"github.com/ariefcatur/card-market/internal/store"
)

// OpenStore opens and migrates the configured store.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.SQLitePath, err)
		}
		return s, nil
	case config.DriverMemory:
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// OpenRedis returns nil when REDIS_ADDR is empty. An unreachable redis is
// logged and treated as absent; it only backs caches.
func OpenRedis(ctx context.Context, cfg config.Config, log *slog.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb, err := redisx.Open(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, running without cache and dedup", "err", err)
		return nil
	}
	return rdb
}
