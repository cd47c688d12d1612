package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/logging"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/retry"
)

// Adapter is a relational backend over SQL Server.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool
	logger  *zap.Logger
}

// NewAdapter opens a connection and verifies it with a ping.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connStr := cfg.URL()
	db, err := retry.DoWithResultIfRetryable(ctx, retry.ConnectConfig(), func() (*sql.DB, error) {
		db, err := sql.Open(cfg.DriverName(), connStr)
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
		logger.Error("Failed to connect to SQL Server",
			zap.String("url", logging.SanitizeConnectionString(connStr)),
			zap.String("auth_method", cfg.AuthMethod),
			zap.String("error", logging.SanitizeError(err)))
		return nil, datasource.WrapConnError("connect to sqlserver", err)
	}

	logger.Info("Connected to SQL Server",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("auth_method", cfg.AuthMethod))

	return &Adapter{config: cfg, db: db, ownedDB: true, logger: logger}, nil
}

// NewFromDB wraps an existing handle. The caller keeps ownership.
func NewFromDB(db *sql.DB, schema string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schema == "" {
		schema = DefaultSchema
	}
	return &Adapter{config: &Config{Schema: schema}, db: db, logger: logger}
}

// Type returns "sqlserver".
func (a *Adapter) Type() string { return "sqlserver" }

// Kind returns KindRelational.
func (a *Adapter) Kind() datasource.Kind { return datasource.KindRelational }

// QuoteIdentifier brackets an identifier.
func (a *Adapter) QuoteIdentifier(name string) string {
	return quoteName(name)
}

func (a *Adapter) qualified(table string) string {
	return quoteName(a.config.Schema) + "." + quoteName(table)
}

// ListTables returns tables and views in the configured schema.
func (a *Adapter) ListTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME`

	rows, err := a.db.QueryContext(ctx, query, a.config.Schema)
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

// TableExists reports whether a table or view of this name exists.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	const query = `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`

	var n int64
	if err := a.db.QueryRowContext(ctx, query, a.config.Schema, table).Scan(&n); err != nil {
		return false, datasource.WrapConnError("check table", err)
	}
	return n > 0, nil
}

// TableRowCounts reads row counts from partition metadata without scanning.
func (a *Adapter) TableRowCounts(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SET NOCOUNT ON;
		SELECT t.name, SUM(p.rows)
		FROM sys.tables t
		INNER JOIN sys.partitions p ON t.object_id = p.object_id
		WHERE p.index_id IN (0, 1)
		  AND t.is_ms_shipped = 0
		  AND SCHEMA_NAME(t.schema_id) = @p1
		GROUP BY t.name
		ORDER BY t.name`

	rows, err := a.db.QueryContext(ctx, query, a.config.Schema)
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

// Close releases the connection if this adapter opened it.
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ensure Adapter implements the backend contracts at compile time.
var (
	_ datasource.Backend    = (*Adapter)(nil)
	_ datasource.RowCounter = (*Adapter)(nil)
)
