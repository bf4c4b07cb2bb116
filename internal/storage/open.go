// Package storage opens the backends selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"pong/internal/config"
	"pong/internal/stats"
	"pong/internal/storage/postgres"
	redisstore "pong/internal/storage/redis"
	"pong/internal/storage/sqlite"
)

// Backends groups the connections shared by a process.
type Backends struct {
	// Stats is nil for the "none" backend.
	Stats stats.Store
	// Redis is set when a component needs it.
	Redis *goredis.Client
}

// Open connects to every backend cfg asks for.
func Open(ctx context.Context, cfg config.Config) (*Backends, error) {
	b := &Backends{}
	if cfg.NeedsRedis() {
		b.Redis = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := b.Redis.Ping(ctx).Err(); err != nil {
			b.Redis.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
	}

	var err error
	switch cfg.StatsBackend {
	case config.BackendSQLite:
		b.Stats, err = openSQLite(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		b.Stats, err = openPostgres(ctx, cfg.PostgresDSN)
	case config.BackendRedis:
		b.Stats = redisstore.NewStatsStore(b.Redis)
	case config.BackendMemory:
		b.Stats = stats.NewMemoryStore()
	case config.BackendNone:
	default:
		err = fmt.Errorf("unknown stats backend %q", cfg.StatsBackend)
	}
	if err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Sessions returns the Redis session store, or nil when Redis sessions are off.
func (b *Backends) Sessions(cfg config.Config) *redisstore.SessionStore {
	if !cfg.RedisSessions || b.Redis == nil {
		return nil
	}
	return redisstore.NewSessionStore(b.Redis)
}

// Close releases every connection.
func (b *Backends) Close() error {
	var errs []error
	if b.Stats != nil {
		errs = append(errs, b.Stats.Close())
	}
	if b.Redis != nil {
		errs = append(errs, b.Redis.Close())
	}
	return errors.Join(errs...)
}

// The helpers keep typed nil pointers out of the stats.Store interface.

func openSQLite(ctx context.Context, path string) (stats.Store, error) {
	s, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (stats.Store, error) {
	s, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}
