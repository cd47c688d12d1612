package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

func TestSchemaPromptBuilder_Render(t *testing.T) {
	_, schema, aliases := superstoreFixture(t, "orders")

	prompt := NewSchemaPromptBuilder(0).Render(schema, aliases, "  What are total sales in the South region? ")

	assert.Contains(t, prompt, "DuckDB")
	assert.Contains(t, prompt, `Table: "orders" (12 rows)`)
	assert.Contains(t, prompt, `- "Customer Name" VARCHAR name e.g. `)
	assert.Contains(t, prompt, `- "Sales" DOUBLE monetary`)
	assert.Contains(t, prompt, "Identifier columns: ")
	assert.Contains(t, prompt, `"Row ID"`)
	assert.Contains(t, prompt, "Grouping columns: ")
	assert.Contains(t, prompt, `- sales means "Sales"`)
	assert.Contains(t, prompt, `- customer_name means "Customer Name"`)
	assert.Contains(t, prompt, "Do not invent column names.")
	assert.Contains(t, prompt, "Do not join other tables.")
	assert.Contains(t, prompt, "Do not convert spaces in column names to underscores.")
	assert.True(t, strings.HasSuffix(prompt, "Question: What are total sales in the South region?\nSQL:"))
	assert.Equal(t, 1, strings.Count(prompt, `Table: "orders"`))
}

func TestSchemaPromptBuilder_TruncatesColumns(t *testing.T) {
	schema := &models.TableSchema{TableName: "wide", Backend: "postgres", RowCount: 3}
	for i := 0; i < 25; i++ {
		schema.Columns = append(schema.Columns, models.ColumnDescriptor{
			Name: fmt.Sprintf("c%02d", i), DeclaredType: "integer", Role: models.RoleNumeric,
		})
	}

	prompt := NewSchemaPromptBuilder(DefaultPromptColumns).Render(schema, nil, "q")
	assert.Contains(t, prompt, "PostgreSQL")
	assert.Contains(t, prompt, `"c19"`)
	assert.NotContains(t, prompt, `"c20"`)
	assert.Contains(t, prompt, "(5 more columns not shown)")
	assert.NotContains(t, prompt, "Semantic aliases:")
}

func TestSchemaPromptBuilder_ExamplesAreBounded(t *testing.T) {
	long := strings.Repeat("x", 60)
	schema := &models.TableSchema{TableName: "t", Columns: []models.ColumnDescriptor{{
		Name: "Notes", DeclaredType: "VARCHAR", Role: models.RoleText,
		SampleValues: []string{"it's", long, "b", "c"},
	}}}

	prompt := NewSchemaPromptBuilder(0).Render(schema, nil, "q")
	assert.Contains(t, prompt, `'it''s'`)
	assert.Contains(t, prompt, strings.Repeat("x", 40)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", 41))
	assert.Contains(t, prompt, `'b'`)
	assert.NotContains(t, prompt, `'c'`)
}

func TestSchemaPromptBuilder_IgnoresStaleAliases(t *testing.T) {
	_, schema, _ := superstoreFixture(t, "orders")
	stale := models.NewAliasMap("other_table")
	stale.SetSlot("sales", "Amount")

	prompt := NewSchemaPromptBuilder(0).Render(schema, stale, "q")
	assert.NotContains(t, prompt, "Semantic aliases:")
	assert.NotContains(t, prompt, "Amount")
}

func TestSchemaPromptBuilder_RenderNarrowed(t *testing.T) {
	_, schema, aliases := superstoreFixture(t, "orders")

	prompt := NewSchemaPromptBuilder(0).RenderNarrowed(schema, aliases, "sales by client", "Client", "Customer Name")
	assert.Contains(t, prompt, `A previous attempt referenced "Client", which does not exist. Use "Customer Name" instead.`)
	assert.Contains(t, prompt, `Columns: "Row ID", "Order ID"`)
	assert.True(t, strings.HasSuffix(prompt, "Question: sales by client\nSQL:"))

	noHint := NewSchemaPromptBuilder(0).RenderNarrowed(schema, aliases, "q", "Bogus", "")
	assert.NotContains(t, noHint, "instead")
}
