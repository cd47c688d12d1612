package datasource

// TableMetadata is a table with its row count.
type TableMetadata struct {
	TableName string
	RowCount  int64
}

// ColumnStats contains statistics for a column.
type ColumnStats struct {
	ColumnName    string
	RowCount      int64
	NonNullCount  int64
	DistinctCount int64
}

// NullPercentage returns the share of null values as 0-100.
func (s ColumnStats) NullPercentage() float64 {
	if s.RowCount <= 0 {
		return 0
	}
	return float64(s.RowCount-s.NonNullCount) / float64(s.RowCount) * 100
}

// CardinalityRatio returns distinct / non-null, 0 when there are no values.
func (s ColumnStats) CardinalityRatio() float64 {
	if s.NonNullCount <= 0 {
		return 0
	}
	return float64(s.DistinctCount) / float64(s.NonNullCount)
}
