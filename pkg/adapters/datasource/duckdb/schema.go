package duckdb

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

// Describe returns columns from information_schema without reading table data.
func (a *Adapter) Describe(ctx context.Context, table string) ([]datasource.RawColumn, error) {
	const query = `
		SELECT column_name, data_type, is_nullable = 'YES', ordinal_position
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position`

	rows, err := a.db.QueryContext(ctx, query, table)
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
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", a.QuoteIdentifier(table))
	if err := a.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, datasource.WrapConnError("count "+table, err)
	}
	return n, nil
}

// AnalyzeColumnStats computes counts for all columns in one scan. If the
// combined query fails, each column is retried alone and failures get zero stats.
func (a *Adapter) AnalyzeColumnStats(ctx context.Context, table string, columns []string) ([]datasource.ColumnStats, error) {
	if len(columns) == 0 {
		return nil, nil
	}

	tableRef := a.QuoteIdentifier(table)
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

	if err := a.db.QueryRowContext(ctx, query).Scan(dest...); err == nil {
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
	} else if datasource.IsConnError(err) {
		return nil, datasource.WrapConnError("analyze "+table, err)
	} else {
		a.logger.Debug("Combined column stats query failed, analyzing columns individually",
			zap.String("table", table),
			zap.Error(err))
	}

	stats := make([]datasource.ColumnStats, 0, len(columns))
	for _, col := range columns {
		s := datasource.ColumnStats{ColumnName: col}
		q := a.QuoteIdentifier(col)
		single := fmt.Sprintf("SELECT COUNT(*), COUNT(%s), COUNT(DISTINCT %s) FROM %s", q, q, tableRef)
		if err := a.db.QueryRowContext(ctx, single).Scan(&s.RowCount, &s.NonNullCount, &s.DistinctCount); err != nil {
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
		SELECT DISTINCT CAST(%s AS VARCHAR)
		FROM %s
		WHERE %s IS NOT NULL
		ORDER BY 1
		LIMIT %d`, q, a.QuoteIdentifier(table), q, limit)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, datasource.WrapConnError(fmt.Sprintf("sample %s.%s", table, column), err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return values, nil
}
