package mssql

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

// Describe returns columns from INFORMATION_SCHEMA in ordinal order.
func (a *Adapter) Describe(ctx context.Context, table string) ([]datasource.RawColumn, error) {
	const query = `
		SELECT COLUMN_NAME, DATA_TYPE,
		       CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END,
		       ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`

	rows, err := a.db.QueryContext(ctx, query, a.config.Schema, table)
	if err != nil {
		return nil, datasource.WrapConnError("describe "+table, err)
	}
	defer rows.Close()

	var columns []datasource.RawColumn
	for rows.Next() {
		var c datasource.RawColumn
		var nullable int
		var dataType string
		if err := rows.Scan(&c.Name, &dataType, &nullable, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.DataType = mapSQLServerType(dataType)
		c.IsNullable = nullable == 1
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
	query := fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s", a.qualified(table))
	if err := a.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, datasource.WrapConnError("count "+table, err)
	}
	return n, nil
}

// AnalyzeColumnStats computes counts for all columns in one scan. On failure
// each column is analyzed alone, casting to NVARCHAR(MAX) for types that
// COUNT(DISTINCT) does not accept; columns that still fail get zero stats.
func (a *Adapter) AnalyzeColumnStats(ctx context.Context, table string, columns []string) ([]datasource.ColumnStats, error) {
	if len(columns) == 0 {
		return nil, nil
	}

	tableRef := a.qualified(table)
	selects := []string{"COUNT_BIG(*)"}
	for _, col := range columns {
		q := quoteName(col)
		selects = append(selects, fmt.Sprintf("COUNT_BIG(%s)", q), fmt.Sprintf("COUNT_BIG(DISTINCT %s)", q))
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), tableRef)

	var rowCount int64
	counts := make([]int64, 2*len(columns))
	dest := []any{&rowCount}
	for i := range counts {
		dest = append(dest, &counts[i])
	}

	err := a.db.QueryRowContext(ctx, query).Scan(dest...)
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
		stats = append(stats, a.analyzeColumn(ctx, table, tableRef, col))
	}
	return stats, nil
}

func (a *Adapter) analyzeColumn(ctx context.Context, table, tableRef, col string) datasource.ColumnStats {
	s := datasource.ColumnStats{ColumnName: col}
	q := quoteName(col)
	distinctExpr := fmt.Sprintf("CAST(%s AS NVARCHAR(4000))", q)
	query := fmt.Sprintf("SELECT COUNT_BIG(*), COUNT_BIG(%s), COUNT_BIG(DISTINCT %s) FROM %s", q, distinctExpr, tableRef)
	if err := a.db.QueryRowContext(ctx, query).Scan(&s.RowCount, &s.NonNullCount, &s.DistinctCount); err != nil {
		a.logger.Warn("Failed to analyze column stats, using zero values",
			zap.String("table", table),
			zap.String("column", col),
			zap.Error(err))
		return datasource.ColumnStats{ColumnName: col}
	}
	return s
}

// Sample returns up to limit distinct non-null values cast to text, sorted.
func (a *Adapter) Sample(ctx context.Context, table, column string, limit int) ([]string, error) {
	q := quoteName(column)
	query := fmt.Sprintf(`
		SELECT DISTINCT TOP (%d) CAST(%s AS NVARCHAR(4000)) AS val
		FROM %s
		WHERE %s IS NOT NULL
		ORDER BY val`, limit, q, a.qualified(table), q)

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
