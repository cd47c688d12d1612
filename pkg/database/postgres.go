// Package database owns the registry metadata store: the pgx pool, embedded
// schema migrations and the optional Redis client for the shared locator cache.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/retry"
)

const (
	defaultMaxConns        = 10
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
	defaultApplicationName = "ekaya-nlsql"
)

// DB is the registry connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds registry pool settings. Zero values take the package defaults.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ApplicationName string
}

// ConfigFromRegistry derives pool settings from the registry section.
func ConfigFromRegistry(cfg *config.RegistryConfig) *Config {
	return &Config{
		URL:            cfg.URL(),
		MaxConnections: cfg.MaxConnections,
	}
}

func (c *Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pc.MaxConns = orDefault(c.MaxConnections, defaultMaxConns)
	pc.MaxConnLifetime = orDefault(c.MaxConnLifetime, defaultMaxConnLifetime)
	pc.MaxConnIdleTime = orDefault(c.MaxConnIdleTime, defaultMaxConnIdleTime)
	pc.ConnConfig.RuntimeParams["application_name"] = orDefault(c.ApplicationName, defaultApplicationName)
	return pc, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// NewConnection opens the registry pool. The first ping is retried while the
// database is still starting; a pool that never answers is closed.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ping := func() error { return pool.Ping(ctx) }
	if err := retry.DoIfRetryable(ctx, retry.ConnectConfig(), ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}

	return &DB{Pool: pool}, nil
}
