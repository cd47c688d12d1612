package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/retry"
)

// Adapter is the warehouse backend over an embedded DuckDB database.
type Adapter struct {
	config *Config
	db     *sql.DB
	ownsDB bool
	logger *zap.Logger
}

// NewAdapter opens the DuckDB database described by cfg. The open is retried
// because another process may briefly hold the file lock.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := retry.DoWithResultIfRetryable(ctx, retry.ConnectConfig(), func() (*sql.DB, error) {
		db, err := sql.Open("duckdb", cfg.DSN())
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return nil, datasource.WrapConnError("open duckdb", err)
	}

	logger.Info("Opened DuckDB warehouse",
		zap.String("path", displayPath(cfg.Path)),
		zap.Bool("read_only", cfg.ReadOnly))

	return &Adapter{config: cfg, db: db, ownsDB: true, logger: logger}, nil
}

// NewFromDB wraps an existing DuckDB handle. The caller keeps ownership.
func NewFromDB(db *sql.DB, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{config: &Config{}, db: db, logger: logger}
}

func displayPath(p string) string {
	if p == "" {
		return ":memory:"
	}
	return p
}

// Type returns "duckdb".
func (a *Adapter) Type() string { return "duckdb" }

// Kind returns KindWarehouse.
func (a *Adapter) Kind() datasource.Kind { return datasource.KindWarehouse }

// DB exposes the underlying handle for loaders and tests.
func (a *Adapter) DB() *sql.DB { return a.db }

// QuoteIdentifier double-quotes an identifier, doubling embedded quotes.
func (a *Adapter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ListTables returns tables and views in the current schema sorted by name.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, datasource.WrapConnError("list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// TableExists reports whether a table or view of exactly this name exists.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	const query = `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = ?`

	var n int64
	if err := a.db.QueryRowContext(ctx, query, table).Scan(&n); err != nil {
		return false, datasource.WrapConnError("check table", err)
	}
	return n > 0, nil
}

// TableRowCounts returns row counts for every base table from duckdb_tables().
func (a *Adapter) TableRowCounts(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT table_name, COALESCE(estimated_size, 0)
		FROM duckdb_tables()
		WHERE schema_name = current_schema() AND NOT internal
		ORDER BY table_name`

	rows, err := a.db.QueryContext(ctx, query)
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

// Close releases the database if this adapter opened it.
func (a *Adapter) Close() error {
	if a.ownsDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ensure Adapter implements the backend contracts at compile time.
var (
	_ datasource.Backend    = (*Adapter)(nil)
	_ datasource.RowCounter = (*Adapter)(nil)
)
