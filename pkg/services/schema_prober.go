package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

const (
	// TextSampleSize is the probe window for text columns, used by date detection.
	TextSampleSize = 20
	// OtherSampleSize is the probe window for every other column.
	OtherSampleSize = 3
)

// SchemaProber builds a TableSchema from catalog introspection and
// aggregate queries. It never reads whole rows.
type SchemaProber interface {
	Probe(ctx context.Context, backend datasource.Backend, table string) (*models.TableSchema, error)
}

type schemaProber struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSchemaProber creates a prober.
func NewSchemaProber(logger *zap.Logger) SchemaProber {
	return &schemaProber{
		logger: logger.Named("schema-prober"),
		now:    time.Now,
	}
}

// Probe describes the table, counts its rows and, when it has data, gathers
// column statistics and samples. Describe and Count errors fail the probe;
// per-column stat and sample failures leave zero values.
func (p *schemaProber) Probe(ctx context.Context, backend datasource.Backend, table string) (*models.TableSchema, error) {
	raw, err := backend.Describe(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}

	rowCount, err := backend.Count(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}

	schema := &models.TableSchema{
		TableName: table,
		Backend:   backend.Type(),
		Columns:   make([]models.ColumnDescriptor, len(raw)),
		RowCount:  rowCount,
		HasData:   rowCount > 0,
		ProbedAt:  p.now(),
	}
	names := make([]string, len(raw))
	for i, c := range raw {
		names[i] = c.Name
		schema.Columns[i] = models.ColumnDescriptor{
			Name:           c.Name,
			DeclaredType:   c.DataType,
			Nullable:       c.IsNullable,
			NumericCapable: isNumericType(c.DataType),
			Role:           models.RoleUnknown,
			Hint:           models.HintNone,
		}
	}

	if !schema.HasData {
		p.logger.Debug("Table has no rows, skipping statistics", zap.String("table", table))
		return schema, nil
	}

	p.applyStats(ctx, backend, schema, names)

	for i := range schema.Columns {
		col := &schema.Columns[i]
		limit := OtherSampleSize
		if isTextType(col.DeclaredType) {
			limit = TextSampleSize
		}
		samples, err := backend.Sample(ctx, table, col.Name, limit)
		if err != nil {
			p.logger.Warn("Sampling column failed",
				zap.String("table", table),
				zap.String("column", col.Name),
				zap.Error(err))
			continue
		}
		col.SampleValues = samples
	}

	return schema, nil
}

func (p *schemaProber) applyStats(ctx context.Context, backend datasource.Backend, schema *models.TableSchema, names []string) {
	stats, err := backend.AnalyzeColumnStats(ctx, schema.TableName, names)
	if err != nil {
		p.logger.Warn("Column statistics failed",
			zap.String("table", schema.TableName),
			zap.Error(err))
		return
	}

	byName := make(map[string]datasource.ColumnStats, len(stats))
	for _, s := range stats {
		byName[s.ColumnName] = s
	}
	for i := range schema.Columns {
		col := &schema.Columns[i]
		s, ok := byName[col.Name]
		// Zero row count marks a column the backend could not analyze.
		if !ok || s.RowCount == 0 {
			continue
		}
		col.NonNullCount = s.NonNullCount
		col.DistinctCount = s.DistinctCount
		col.NullPercentage = s.NullPercentage()
		col.CardinalityRatio = s.CardinalityRatio()
	}
}
