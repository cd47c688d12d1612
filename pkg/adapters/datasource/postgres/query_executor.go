package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

// Execute runs a SELECT wrapped with a bounded LIMIT.
func (a *Adapter) Execute(ctx context.Context, query string, limit int) (*datasource.QueryExecutionResult, error) {
	inner := strings.TrimRight(strings.TrimSpace(query), ";")
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", inner, datasource.EffectiveLimit(limit))

	rows, err := a.pool.Query(ctx, wrapped)
	if err != nil {
		return nil, datasource.WrapConnError("execute query", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeName(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = normalizePgValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, datasource.WrapConnError("execute query", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

var defaultTypeMap = pgtype.NewMap()

// pgTypeName maps a type OID to an upper-case name ("INT4", "NUMERIC").
// Arrays are reported as "<ELEM>[]".
func pgTypeName(oid uint32) string {
	t, ok := defaultTypeMap.TypeForOID(oid)
	if !ok {
		return "UNKNOWN"
	}
	name := strings.ToUpper(t.Name)
	if strings.HasPrefix(name, "_") {
		return name[1:] + "[]"
	}
	return name
}

// normalizePgValue converts pgx scan types that do not serialize cleanly.
func normalizePgValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return datasource.NormalizeValue(v)
	}
}
