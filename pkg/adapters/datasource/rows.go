package datasource

import (
	"database/sql"
	"fmt"
	"time"
)

// CollectRows drains database/sql rows into a QueryExecutionResult.
// typeName maps a driver type name to the reported column type; nil keeps it as is.
func CollectRows(rows *sql.Rows, typeName func(string) string) (*QueryExecutionResult, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]ColumnInfo, len(columnTypes))
	for i, ct := range columnTypes {
		t := ct.DatabaseTypeName()
		if typeName != nil {
			t = typeName(t)
		}
		columns[i] = ColumnInfo{Name: ct.Name(), Type: t}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = NormalizeValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// NormalizeValue converts driver-specific values into JSON-friendly ones.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	default:
		return v
	}
}

// FormatValue renders a scanned value as sample text. Nil becomes "".
func FormatValue(v any) string {
	switch val := NormalizeValue(v).(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
