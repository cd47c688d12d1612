package services

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/sql"
)

const (
	// DefaultPromptColumns is the number of columns rendered in full.
	DefaultPromptColumns = 20
	promptExamples       = 3
	maxExampleLen        = 40
)

// SchemaPromptBuilder renders the LLM prompt for one question against one table.
type SchemaPromptBuilder interface {
	Render(schema *models.TableSchema, aliases *models.AliasMap, question string) string

	// RenderNarrowed renders the retry prompt after the backend rejected a
	// column. hint names the column that should have been used.
	RenderNarrowed(schema *models.TableSchema, aliases *models.AliasMap, question, offending, hint string) string
}

type schemaPromptBuilder struct {
	maxColumns int
}

// NewSchemaPromptBuilder creates a builder rendering at most maxColumns
// columns in full. maxColumns <= 0 uses DefaultPromptColumns.
func NewSchemaPromptBuilder(maxColumns int) SchemaPromptBuilder {
	if maxColumns <= 0 {
		maxColumns = DefaultPromptColumns
	}
	return &schemaPromptBuilder{maxColumns: maxColumns}
}

func dialectName(backend string) string {
	switch backend {
	case "postgres":
		return "PostgreSQL"
	case "sqlserver":
		return "SQL Server"
	default:
		return "DuckDB"
	}
}

func (b *schemaPromptBuilder) Render(schema *models.TableSchema, aliases *models.AliasMap, question string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Write one %s SELECT statement that answers the question using a single table.\n\n", dialectName(schema.Backend))
	fmt.Fprintf(&sb, "Table: %s (%d rows)\n\n", sql.QuoteIdentifier(schema.TableName), schema.RowCount)

	shown := schema.Columns
	if len(shown) > b.maxColumns {
		shown = shown[:b.maxColumns]
	}

	sb.WriteString("Columns (exact name, type, role, examples):\n")
	for _, c := range shown {
		fmt.Fprintf(&sb, "- %s %s %s", sql.QuoteIdentifier(c.Name), c.DeclaredType, c.Role)
		if examples := formatExamples(c.SampleValues); examples != "" {
			fmt.Fprintf(&sb, " e.g. %s", examples)
		}
		sb.WriteString("\n")
	}
	if extra := len(schema.Columns) - len(shown); extra > 0 {
		fmt.Fprintf(&sb, "(%d more columns not shown)\n", extra)
	}

	var identifiers, grouping []string
	for _, c := range shown {
		switch {
		case c.Role == models.RoleIdentifier || c.Hint == models.HintPrimaryKeyCandidate:
			identifiers = append(identifiers, sql.QuoteIdentifier(c.Name))
		case c.Hint == models.HintGroupingCandidate || c.Role == models.RoleCategorical || c.Role == models.RoleGeographic:
			grouping = append(grouping, sql.QuoteIdentifier(c.Name))
		}
	}
	if len(identifiers) > 0 {
		fmt.Fprintf(&sb, "\nIdentifier columns: %s\n", strings.Join(identifiers, ", "))
	}
	if len(grouping) > 0 {
		fmt.Fprintf(&sb, "Grouping columns: %s\n", strings.Join(grouping, ", "))
	}

	if aliases.BelongsTo(schema.TableName) {
		if slots := aliases.Slots(); len(slots) > 0 {
			sb.WriteString("\nSemantic aliases:\n")
			for _, s := range slots {
				fmt.Fprintf(&sb, "- %s means %s\n", s[0], sql.QuoteIdentifier(s[1]))
			}
		}
	}

	sb.WriteString("\nRules:\n")
	sb.WriteString("- Use only the columns listed above and write each name exactly as shown, in double quotes.\n")
	sb.WriteString("- Do not invent column names.\n")
	sb.WriteString("- Do not join other tables.\n")
	sb.WriteString("- Do not convert spaces in column names to underscores.\n")
	sb.WriteString("- Return only the SQL statement, without comments.\n")

	fmt.Fprintf(&sb, "\nQuestion: %s\nSQL:", strings.TrimSpace(question))
	return sb.String()
}

func (b *schemaPromptBuilder) RenderNarrowed(schema *models.TableSchema, aliases *models.AliasMap, question, offending, hint string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Write one %s SELECT statement that answers the question using a single table.\n\n", dialectName(schema.Backend))
	fmt.Fprintf(&sb, "Table: %s\n", sql.QuoteIdentifier(schema.TableName))

	names := schema.ColumnNames()
	if len(names) > b.maxColumns {
		names = names[:b.maxColumns]
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = sql.QuoteIdentifier(n)
	}
	fmt.Fprintf(&sb, "Columns: %s\n\n", strings.Join(quoted, ", "))

	fmt.Fprintf(&sb, "A previous attempt referenced %s, which does not exist.", sql.QuoteIdentifier(offending))
	if hint != "" {
		fmt.Fprintf(&sb, " Use %s instead.", sql.QuoteIdentifier(hint))
	}
	sb.WriteString("\nWrite each column name exactly as listed, in double quotes. Do not join other tables.\n")

	fmt.Fprintf(&sb, "\nQuestion: %s\nSQL:", strings.TrimSpace(question))
	return sb.String()
}

func formatExamples(samples []string) string {
	n := min(len(samples), promptExamples)
	out := make([]string, 0, n)
	for _, s := range samples[:n] {
		if len([]rune(s)) > maxExampleLen {
			s = string([]rune(s)[:maxExampleLen]) + "..."
		}
		out = append(out, sql.QuoteLiteral(s))
	}
	return strings.Join(out, ", ")
}
