package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected string
	}{
		{
			name:     "bare sql",
			response: `SELECT "Region" FROM t`,
			expected: `SELECT "Region" FROM t`,
		},
		{
			name:     "sql fence",
			response: "Here you go:\n```sql\nSELECT 1\nFROM t\n```\nThis sums sales.",
			expected: "SELECT 1\nFROM t",
		},
		{
			name:     "plain fence",
			response: "```\nWITH x AS (SELECT 1) SELECT * FROM x\n```",
			expected: "WITH x AS (SELECT 1) SELECT * FROM x",
		},
		{
			name:     "think block removed",
			response: "<think>I should SELECT the region column</think>\nSELECT \"Region\" FROM t",
			expected: `SELECT "Region" FROM t`,
		},
		{
			name:     "prose before and after",
			response: "Sure, with pleasure. SELECT COUNT(*) FROM t\n\nThis counts all rows.",
			expected: "SELECT COUNT(*) FROM t",
		},
		{
			name:     "sql prefix",
			response: "SQL: SELECT 2",
			expected: "SELECT 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSQL(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtractSQL_NoSQL(t *testing.T) {
	for _, response := range []string{"", "I cannot answer that.", "<think>SELECT 1</think>"} {
		_, err := ExtractSQL(response)
		assert.ErrorIs(t, err, ErrNoSQL, response)
	}
}

func TestExtractSQL_KeepsStatementsForGuard(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected string
		allowed  bool
	}{
		{
			name:     "drop",
			response: "DROP TABLE orders",
			expected: "DROP TABLE orders",
		},
		{
			name:     "update after prose",
			response: "Here is the statement:\nUPDATE orders SET \"Sales\" = 0",
			expected: "UPDATE orders SET \"Sales\" = 0",
		},
		{
			name:     "delete with subquery",
			response: "DELETE FROM orders WHERE id IN (SELECT id FROM orders)",
			expected: "DELETE FROM orders WHERE id IN (SELECT id FROM orders)",
		},
		{
			name:     "statement after blank line",
			response: "SELECT * FROM orders;\n\nDROP TABLE orders;",
			expected: "SELECT * FROM orders;\n\nDROP TABLE orders;",
		},
		{
			name:     "clause after blank line",
			response: "SELECT \"Region\"\nFROM orders\n\nWHERE \"Sales\" > 10\n\nThe filter keeps large orders.",
			expected: "SELECT \"Region\"\nFROM orders\n\nWHERE \"Sales\" > 10",
			allowed:  true,
		},
		{
			name:     "bullet notes dropped",
			response: "SELECT \"Region\" FROM orders\n\n- lists every region",
			expected: "SELECT \"Region\" FROM orders",
			allowed:  true,
		},
		{
			name:     "prose between statements",
			response: "SELECT 1\n\nThis is a check.\n\nDELETE FROM orders",
			expected: "SELECT 1\n\nDELETE FROM orders",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSQL(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			_, guardErr := Guard(got)
			if tt.allowed {
				assert.NoError(t, guardErr)
			} else {
				assert.ErrorIs(t, guardErr, apperrors.ErrSQLRejected)
			}
		})
	}
}
