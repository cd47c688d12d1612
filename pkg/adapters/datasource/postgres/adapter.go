package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/logging"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/retry"
)

// Adapter is a relational backend over a pgx connection pool.
type Adapter struct {
	config    *Config
	pool      *pgxpool.Pool
	ownedPool bool
	logger    *zap.Logger
}

// NewAdapter opens a pool and verifies it with a ping. Transient connect
// failures are retried with backoff.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connStr := cfg.URL()
	pool, err := retry.DoWithResultIfRetryable(ctx, retry.ConnectConfig(), func() (*pgxpool.Pool, error) {
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL",
			zap.String("url", logging.SanitizeConnectionString(connStr)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, datasource.WrapConnError("connect to postgres", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema))

	return &Adapter{config: cfg, pool: pool, ownedPool: true, logger: logger}, nil
}

// NewFromPool wraps an existing pool. The caller keeps ownership.
func NewFromPool(pool *pgxpool.Pool, schema string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schema == "" {
		schema = DefaultSchema
	}
	return &Adapter{config: &Config{Schema: schema}, pool: pool, logger: logger}
}

// Type returns "postgres".
func (a *Adapter) Type() string { return "postgres" }

// Kind returns KindRelational.
func (a *Adapter) Kind() datasource.Kind { return datasource.KindRelational }

// QuoteIdentifier quotes an identifier using pgx's sanitizer.
func (a *Adapter) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// qualified returns schema.table, both quoted.
func (a *Adapter) qualified(table string) string {
	return pgx.Identifier{a.config.Schema, table}.Sanitize()
}

// ListTables returns base tables and views in the configured schema.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	rows, err := a.pool.Query(ctx, query, a.config.Schema)
	if err != nil {
		return nil, datasource.WrapConnError("list tables", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tables: %w", err)
	}
	return tables, nil
}

// TableExists reports whether a table or view of exactly this name exists.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`

	var exists bool
	if err := a.pool.QueryRow(ctx, query, a.config.Schema, table).Scan(&exists); err != nil {
		return false, datasource.WrapConnError("check table", err)
	}
	return exists, nil
}

// TableRowCounts reads planner estimates from pg_class. Freshly loaded tables
// that were never analyzed report zero.
func (a *Adapter) TableRowCounts(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT t.table_name, GREATEST(COALESCE(c.reltuples::bigint, 0), 0)
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
		WHERE t.table_type = 'BASE TABLE' AND t.table_schema = $1
		ORDER BY t.table_name`

	rows, err := a.pool.Query(ctx, query, a.config.Schema)
	if err != nil {
		return nil, datasource.WrapConnError("table row counts", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.TableName, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan row count: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate row counts: %w", err)
	}
	return tables, nil
}

// Close releases the pool if this adapter created it.
func (a *Adapter) Close() error {
	if a.ownedPool && a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ensure Adapter implements the backend contracts at compile time.
var (
	_ datasource.Backend    = (*Adapter)(nil)
	_ datasource.RowCounter = (*Adapter)(nil)
)
