package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{"doubled quotes", `SELECT SUM(""Sales"") FROM "t"`, `SELECT SUM("Sales") FROM "t"`},
		{"tripled quotes", `SELECT """Region""" FROM "t"`, `SELECT "Region" FROM "t"`},
		{"backticks", "SELECT `Order Date` FROM `t`", `SELECT "Order Date" FROM "t"`},
		{"typographic quotes", "SELECT “Region” FROM t", `SELECT "Region" FROM t`},
		{"escaped quote inside identifier kept", `SELECT "a""b" FROM t`, `SELECT "a""b" FROM t`},
		{"literal untouched", "SELECT * FROM t WHERE n = '``x\"\"y'", "SELECT * FROM t WHERE n = '``x\"\"y'"},
		{"apostrophe inside identifier", `SELECT "Customer's Name" FROM t`, `SELECT "Customer's Name" FROM t`},
		{"trailing semicolon", "SELECT 1;\n", "SELECT 1"},
		{"top to limit", "SELECT TOP 5 \"Region\" FROM t", `SELECT "Region" FROM t LIMIT 5`},
		{"top with parens and existing limit", "SELECT TOP (5) x FROM t LIMIT 3", "SELECT x FROM t LIMIT 3"},
		{"year function", `SELECT SUM("Sales") FROM t WHERE YEAR("Order Date") = 2024`, `SELECT SUM("Sales") FROM t WHERE strftime("Order Date", '%Y') = '2024'`},
		{"extract year", `SELECT COUNT(*) FROM t WHERE EXTRACT(YEAR FROM "Order Date") >= 2023`, `SELECT COUNT(*) FROM t WHERE strftime("Order Date", '%Y') >= '2023'`},
		{"extract month kept", `SELECT EXTRACT(MONTH FROM "Order Date") FROM t`, `SELECT EXTRACT(MONTH FROM "Order Date") FROM t`},
		{"clean query unchanged", `SELECT "Region", SUM("Sales") FROM "t" GROUP BY 1`, `SELECT "Region", SUM("Sales") FROM "t" GROUP BY 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Repair(tt.query, RepairOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			again, err := Repair(got, RepairOptions{})
			require.NoError(t, err)
			assert.Equal(t, got, again, "repair must be idempotent")
		})
	}
}

func TestRepair_Aggressive(t *testing.T) {
	columns := []string{"Order Date", "Region", "Sales"}
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{
			name:     "year function",
			query:    `SELECT YEAR("Order Date"), SUM("Sales") FROM t GROUP BY 1`,
			expected: `SELECT strftime(TRY_CAST("Order Date" AS DATE), '%Y'), SUM("Sales") FROM t GROUP BY 1`,
		},
		{
			name:     "extract",
			query:    `SELECT * FROM t WHERE EXTRACT(MONTH FROM "Order Date") = 3`,
			expected: `SELECT * FROM t WHERE date_part('month', TRY_CAST("Order Date" AS DATE)) = 3`,
		},
		{
			name:     "existing strftime argument cast",
			query:    `SELECT * FROM t WHERE strftime("Order Date", '%Y') = '2024'`,
			expected: `SELECT * FROM t WHERE strftime(TRY_CAST("Order Date" AS DATE), '%Y') = '2024'`,
		},
		{
			name:     "double equals",
			query:    `SELECT * FROM t WHERE "Region" == 'West'`,
			expected: `SELECT * FROM t WHERE "Region" = 'West'`,
		},
		{
			name:     "double-quoted value becomes literal",
			query:    `SELECT * FROM t WHERE "Region" = "South"`,
			expected: `SELECT * FROM t WHERE "Region" = 'South'`,
		},
		{
			name:     "in list values",
			query:    `SELECT * FROM t WHERE "Region" IN ("East", "West")`,
			expected: `SELECT * FROM t WHERE "Region" IN ('East', 'West')`,
		},
		{
			name:     "column comparison kept",
			query:    `SELECT * FROM t WHERE "Sales" > "Region"`,
			expected: `SELECT * FROM t WHERE "Sales" > "Region"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Repair(tt.query, RepairOptions{Aggressive: true, Columns: columns})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRepair_DialectSkipsDateFunctions(t *testing.T) {
	query := `SELECT * FROM t WHERE YEAR("Order Date") = 2024`
	got, err := Repair(query, RepairOptions{Dialect: "sqlserver"})
	require.NoError(t, err)
	assert.Equal(t, query, got)
}

func TestRepair_UnbalancedParens(t *testing.T) {
	_, err := Repair("SELECT SUM(x FROM t", RepairOptions{})
	assert.ErrorIs(t, err, ErrUnbalancedParens)
}

func TestRewriteThenRepair(t *testing.T) {
	raw := `SELECT ""Region"", SUM(""Sales"") FROM data GROUP BY ""Region""`
	rewritten := RewriteIdentifiers(raw, testTable, superstoreAliases())
	final, err := Repair(rewritten.SQL, RepairOptions{})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "Region", SUM("Sales") FROM "`+testTable+`" GROUP BY "Region"`, final)

	guarded, err := Guard(final)
	require.NoError(t, err)
	assert.Equal(t, final, guarded)
}
