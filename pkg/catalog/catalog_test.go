package catalog

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

func TestDefault_MatchRole(t *testing.T) {
	c := Default()

	tests := []struct {
		column string
		role   models.SemanticRole
	}{
		{"Order ID", models.RoleIdentifier},
		{"customer_id", models.RoleIdentifier},
		{"Row ID", models.RoleIdentifier},
		{"Product Code", models.RoleIdentifier},
		{"Customer Name", models.RoleName},
		{"Product Name", models.RoleName},
		{"Customer", models.RoleName},
		{"Sales", models.RoleMonetary},
		{"Unit Price", models.RoleMonetary},
		{"Profit", models.RoleMonetary},
		{"Quantity", models.RoleQuantity},
		{"num_of_items", models.RoleQuantity},
		{"Order Date", models.RoleTemporal},
		{"created_at", models.RoleTemporal},
		{"Region", models.RoleGeographic},
		{"Postal Code", models.RoleGeographic},
		{"Category", models.RoleCategorical},
		{"Sub-Category", models.RoleCategorical},
		{"Ship Mode", models.RoleCategorical},
		{"Email", models.RoleContact},
		{"Phone Number", models.RoleContact},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			role, ok := c.MatchRole(tt.column)
			assert.True(t, ok)
			assert.Equal(t, tt.role, role)
		})
	}
}

func TestDefault_NoMatch(t *testing.T) {
	c := Default()
	for _, column := range []string{"col_1", "Notes", "Discount", "x"} {
		role, ok := c.MatchRole(column)
		assert.False(t, ok, column)
		assert.Equal(t, models.RoleUnknown, role, column)
	}
}

func TestIsIdentifierName(t *testing.T) {
	c := Default()
	assert.True(t, c.IsIdentifierName("Order ID"))
	assert.False(t, c.IsIdentifierName("Sales"))
}

func TestDefault_Slots(t *testing.T) {
	c := Default()
	names := make([]string, 0)
	for _, s := range c.Slots() {
		names = append(names, s.Name)
	}
	for _, required := range []string{"customer_name", "sales", "region", "product_name", "order_id", "quantity", "profit", "category", "date", "price"} {
		assert.Contains(t, names, required)
	}

	sales, ok := c.Slot("sales")
	require.True(t, ok)
	assert.True(t, sales.NumericOnly)
	assert.Equal(t, "sales", sales.Patterns[0])
}

func TestDefault_IsIndependentCopy(t *testing.T) {
	a := Default()
	slots := a.Slots()
	slots[0].Name = "mutated"
	assert.Equal(t, "customer_name", Default().Slots()[0].Name)
}

func TestNew_Validation(t *testing.T) {
	_, err := New([]RoleGroup{{Role: "bogus"}}, nil)
	assert.Error(t, err)

	_, err = New(nil, []Slot{{Name: "a"}, {Name: "A"}})
	assert.Error(t, err)

	_, err = New(nil, []Slot{{Name: " "}})
	assert.Error(t, err)

	c, err := New([]RoleGroup{{Role: models.RoleMonetary, Patterns: []*regexp.Regexp{regexp.MustCompile(`^amt$`)}}},
		[]Slot{{Name: " Sales ", Patterns: []string{" AMT ", ""}}})
	require.NoError(t, err)
	role, ok := c.MatchRole("AMT")
	assert.True(t, ok)
	assert.Equal(t, models.RoleMonetary, role)
	slot, ok := c.Slot("sales")
	require.True(t, ok)
	assert.Equal(t, []string{"amt"}, slot.Patterns)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
roles:
  - role: quantity
    patterns: ['^pcs$']
slots:
  - name: volume
    patterns: [pcs]
    numeric_only: true
`))
	require.NoError(t, err)

	role, ok := c.MatchRole("PCS")
	assert.True(t, ok)
	assert.Equal(t, models.RoleQuantity, role)

	_, ok = c.MatchRole("Sales")
	assert.False(t, ok, "roles section replaces the defaults")

	require.Len(t, c.Slots(), 1)
	assert.Equal(t, "volume", c.Slots()[0].Name)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("slots:\n  - name: sales\n    patterns: [umsatz]\n"))
	require.NoError(t, err)

	role, ok := c.MatchRole("Sales")
	assert.True(t, ok)
	assert.Equal(t, models.RoleMonetary, role)
	assert.Len(t, c.Slots(), 1)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad regex", "roles:\n  - role: name\n    patterns: ['(']\n"},
		{"unknown role", "roles:\n  - role: colour\n    patterns: ['x']\n"},
		{"unknown field", "rolez: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Slots())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	c, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(Default().Slots()), len(c.Slots()))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
