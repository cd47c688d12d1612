package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/catalog"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

func TestSemanticClassifier_Superstore(t *testing.T) {
	_, schema, _ := superstoreFixture(t, "orders")

	expected := map[string]models.SemanticRole{
		"Row ID":        models.RoleIdentifier,
		"Order ID":      models.RoleIdentifier,
		"Order Date":    models.RoleTemporal,
		"Customer Name": models.RoleName,
		"Segment":       models.RoleCategorical,
		"Region":        models.RoleGeographic,
		"Category":      models.RoleCategorical,
		"Sales":         models.RoleMonetary,
		"Quantity":      models.RoleQuantity,
		"Profit":        models.RoleMonetary,
	}
	for name, role := range expected {
		col, ok := schema.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, role, col.Role, name)
	}

	rowID, _ := schema.Column("Row ID")
	assert.Equal(t, models.HintPrimaryKeyCandidate, rowID.Hint)
}

func TestSemanticClassifier_Roles(t *testing.T) {
	tests := []struct {
		name     string
		column   models.ColumnDescriptor
		expected models.SemanticRole
	}{
		{
			name:     "declared temporal type wins over name",
			column:   models.ColumnDescriptor{Name: "Sales", DeclaredType: "TIMESTAMP WITH TIME ZONE"},
			expected: models.RoleTemporal,
		},
		{
			name:     "declared boolean type",
			column:   models.ColumnDescriptor{Name: "is_active", DeclaredType: "BOOLEAN"},
			expected: models.RoleBoolean,
		},
		{
			name:     "unmatched numeric column",
			column:   models.ColumnDescriptor{Name: "Discount", DeclaredType: "DECIMAL(10,2)"},
			expected: models.RoleNumeric,
		},
		{
			name:     "unmatched text column",
			column:   models.ColumnDescriptor{Name: "Notes", DeclaredType: "VARCHAR"},
			expected: models.RoleText,
		},
		{
			name: "text column holding dates",
			column: models.ColumnDescriptor{Name: "Shipped", DeclaredType: "VARCHAR",
				SampleValues: []string{"08-11-2016", "12-06-2016", "11-10-2015", "n/a"}},
			expected: models.RoleTemporal,
		},
		{
			name: "text column with too few dates",
			column: models.ColumnDescriptor{Name: "Notes", DeclaredType: "VARCHAR",
				SampleValues: []string{"2016-01-02", "late", "early", "n/a"}},
			expected: models.RoleText,
		},
		{
			name: "iso timestamps in text",
			column: models.ColumnDescriptor{Name: "stamp", DeclaredType: "TEXT",
				SampleValues: []string{"2024-01-02T10:00:00Z", "2024-01-03 11:30"}},
			expected: models.RoleTemporal,
		},
		{
			name: "numeric column never becomes temporal from samples",
			column: models.ColumnDescriptor{Name: "code", DeclaredType: "INTEGER",
				SampleValues: []string{"2016", "2017"}},
			expected: models.RoleNumeric,
		},
	}

	c := NewSemanticClassifier(nil, zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.Classify(&models.TableSchema{TableName: "t", Columns: []models.ColumnDescriptor{tt.column}})
			assert.Equal(t, tt.expected, out.Columns[0].Role)
		})
	}
}

func TestSemanticClassifier_Hints(t *testing.T) {
	tests := []struct {
		name     string
		nonNull  int64
		ratio    float64
		expected models.RelationshipHint
	}{
		{"unique", 100, 1.0, models.HintPrimaryKeyCandidate},
		{"just above primary key ratio", 100, 0.91, models.HintPrimaryKeyCandidate},
		{"at primary key ratio", 100, 0.9, models.HintSecondaryIdentifierCandidate},
		{"secondary identifier", 100, 0.7, models.HintSecondaryIdentifierCandidate},
		{"middle", 100, 0.4, models.HintNone},
		{"grouping", 100, 0.05, models.HintGroupingCandidate},
		{"too few values to group", 9, 0.05, models.HintNone},
		{"no values", 0, 0, models.HintNone},
	}

	c := NewSemanticClassifier(catalog.Default(), zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.Classify(&models.TableSchema{Columns: []models.ColumnDescriptor{{
				Name: "x", DeclaredType: "VARCHAR", NonNullCount: tt.nonNull, CardinalityRatio: tt.ratio,
			}}})
			assert.Equal(t, tt.expected, out.Columns[0].Hint)
		})
	}
}

func TestSemanticClassifier_DoesNotMutateInput(t *testing.T) {
	in := &models.TableSchema{TableName: "t", Columns: []models.ColumnDescriptor{
		{Name: "Sales", DeclaredType: "DOUBLE", Role: models.RoleUnknown, SampleValues: []string{"1.5"}},
	}}

	out := NewSemanticClassifier(nil, zap.NewNop()).Classify(in)
	assert.Equal(t, models.RoleMonetary, out.Columns[0].Role)
	assert.Equal(t, models.RoleUnknown, in.Columns[0].Role)
	assert.False(t, in.Columns[0].NumericCapable)

	out.Columns[0].SampleValues[0] = "changed"
	assert.Equal(t, "1.5", in.Columns[0].SampleValues[0])
}

func TestSemanticClassifier_DeterministicAndIdempotent(t *testing.T) {
	_, schema, _ := superstoreFixture(t, "orders")
	c := NewSemanticClassifier(nil, zap.NewNop())

	again := c.Classify(schema)
	assert.Equal(t, schema, again)
	assert.Equal(t, again, c.Classify(schema))
}

func TestSemanticClassifier_Nil(t *testing.T) {
	assert.Nil(t, NewSemanticClassifier(nil, zap.NewNop()).Classify(nil))
}
