package datasource

import "context"

// Kind separates the columnar warehouse from secondary relational stores.
type Kind string

const (
	KindWarehouse  Kind = "warehouse"
	KindRelational Kind = "relational"
)

// MaxQueryLimit is the hard cap on rows returned by Execute.
// This protects against unbounded queries that could crash the server.
const MaxQueryLimit = 1000

// EffectiveLimit clamps a requested row limit to (0, MaxQueryLimit].
// limit <= 0 means MaxQueryLimit.
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// RawColumn is a column as reported by the backend catalog, before any
// semantic interpretation.
type RawColumn struct {
	Name            string
	DataType        string
	IsNullable      bool
	OrdinalPosition int
}

// Backend is the narrow read contract every storage engine implements.
// Each implementation owns its connection pool and must be closed when done.
type Backend interface {
	// Type returns the adapter type ("duckdb", "postgres", "sqlserver").
	Type() string

	// Kind returns whether this is the warehouse or a relational store.
	Kind() Kind

	// ListTables returns user tables sorted by name.
	ListTables(ctx context.Context) ([]string, error)

	// TableExists reports whether the table is present in the catalog.
	TableExists(ctx context.Context, table string) (bool, error)

	// Describe returns columns in ordinal order from catalog introspection.
	// A missing table yields apperrors.ErrNotFound.
	Describe(ctx context.Context, table string) ([]RawColumn, error)

	// Count returns the exact row count.
	Count(ctx context.Context, table string) (int64, error)

	// AnalyzeColumnStats gathers non-null and distinct counts per column.
	// Columns that fail are returned with zero stats rather than failing the call.
	AnalyzeColumnStats(ctx context.Context, table string, columns []string) ([]ColumnStats, error)

	// Sample returns up to limit distinct non-null values of a column as text.
	Sample(ctx context.Context, table, column string, limit int) ([]string, error)

	// Execute runs a read-only query bounded by limit (see EffectiveLimit).
	Execute(ctx context.Context, query string, limit int) (*QueryExecutionResult, error)

	// QuoteIdentifier safely quotes a SQL identifier for this dialect.
	QuoteIdentifier(name string) string

	// Close releases the connection pool.
	Close() error
}

// RowCounter is implemented by backends that can report row counts for every
// table in one catalog round trip.
type RowCounter interface {
	TableRowCounts(ctx context.Context) ([]TableMetadata, error)
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "VARCHAR", "DOUBLE", "INT4")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}
