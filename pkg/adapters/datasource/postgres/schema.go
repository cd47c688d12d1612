package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

// Describe returns columns from information_schema in ordinal order.
func (a *Adapter) Describe(ctx context.Context, table string) ([]datasource.RawColumn, error) {
	const query = `
		SELECT column_name, data_type, is_nullable = 'YES', ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := a.pool.Query(ctx, query, a.config.Schema, table)
	if err != nil {
		return nil, datasource.WrapConnError("describe "+table, err)
	}
	defer rows.Close()

	var columns []datasource.RawColumn
	for rows.Next() {
		var c datasource.RawColumn
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	if len(columns) == 0 {
		return nil, datasource.TableNotFound(table)
	}
	return columns, nil
}

// Count returns the exact row count.
func (a *Adapter) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", a.qualified(table))
	if err := a.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, datasource.WrapConnError("count "+table, err)
	}
	return n, nil
}

// AnalyzeColumnStats computes counts for every column in a single scan and
// falls back to per-column queries when the combined one fails (for example on
// json columns, which have no equality operator for COUNT DISTINCT).
func (a *Adapter) AnalyzeColumnStats(ctx context.Context, table string, columns []string) ([]datasource.ColumnStats, error) {
	if len(columns) == 0 {
		return nil, nil
	}

	tableRef := a.qualified(table)
	selects := []string{"COUNT(*)"}
	for _, col := range columns {
		q := a.QuoteIdentifier(col)
		selects = append(selects, fmt.Sprintf("COUNT(%s)", q), fmt.Sprintf("COUNT(DISTINCT %s)", q))
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), tableRef)

	var rowCount int64
	counts := make([]int64, 2*len(columns))
	dest := []any{&rowCount}
	for i := range counts {
		dest = append(dest, &counts[i])
	}

	err := a.pool.QueryRow(ctx, query).Scan(dest...)
	if err == nil {
		stats := make([]datasource.ColumnStats, len(columns))
		for i, col := range columns {
			stats[i] = datasource.ColumnStats{
				ColumnName:    col,
				RowCount:      rowCount,
				NonNullCount:  counts[2*i],
				DistinctCount: counts[2*i+1],
			}
		}
		return stats, nil
	}
	if datasource.IsConnError(err) {
		return nil, datasource.WrapConnError("analyze "+table, err)
	}
	a.logger.Debug("Combined column stats query failed, analyzing columns individually",
		zap.String("table", table),
		zap.Error(err))

	stats := make([]datasource.ColumnStats, 0, len(columns))
	for _, col := range columns {
		s := datasource.ColumnStats{ColumnName: col}
		q := a.QuoteIdentifier(col)
		single := fmt.Sprintf("SELECT COUNT(*), COUNT(%s), COUNT(DISTINCT %s::text) FROM %s", q, q, tableRef)
		if err := a.pool.QueryRow(ctx, single).Scan(&s.RowCount, &s.NonNullCount, &s.DistinctCount); err != nil {
			a.logger.Warn("Failed to analyze column stats, using zero values",
				zap.String("table", table),
				zap.String("column", col),
				zap.Error(err))
			s = datasource.ColumnStats{ColumnName: col}
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// Sample returns up to limit distinct non-null values cast to text, sorted.
func (a *Adapter) Sample(ctx context.Context, table, column string, limit int) ([]string, error) {
	q := a.QuoteIdentifier(column)
	query := fmt.Sprintf(`
		SELECT DISTINCT %s::text
		FROM %s
		WHERE %s IS NOT NULL
		ORDER BY 1
		LIMIT $1`, q, a.qualified(table), q)

	rows, err := a.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, datasource.WrapConnError(fmt.Sprintf("sample %s.%s", table, column), err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan samples: %w", err)
	}
	return values, nil
}
