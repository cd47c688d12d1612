package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLiteralForInjection_CleanValues(t *testing.T) {
	// Values that show up as filter literals in ordinary questions.
	cleanValues := []string{
		"South",
		"West Region",
		"2024-01-01",
		"user+tag@example.com",
		"+1-555-123-4567",
		"$1,234.56",
		"Office Supplies",
		"https://example.com/path?query=value&other=123",
		"",
	}

	for _, value := range cleanValues {
		t.Run(value, func(t *testing.T) {
			result := CheckLiteralForInjection(value)
			if result != nil {
				t.Errorf("legitimate value %q flagged as injection: fingerprint=%q", value, result.Fingerprint)
			}
		})
	}
}

func TestCheckLiteralForInjection_Fingerprints(t *testing.T) {
	injectionPatterns := []struct {
		name  string
		value string
	}{
		{"classic OR", "' OR '1'='1"},
		{"union select", "1 UNION SELECT * FROM users"},
		{"drop table", "'; DROP TABLE users--"},
		{"comment injection", "admin'--"},
	}

	for _, tt := range injectionPatterns {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckLiteralForInjection(tt.value)
			require.NotNil(t, result, "expected injection detection for %q", tt.value)
			assert.True(t, result.IsSQLi)
			assert.NotEmpty(t, result.Fingerprint)
			assert.Equal(t, tt.value, result.Literal)
		})
	}
}

func TestCheckLiterals(t *testing.T) {
	clean := `SELECT "Region" FROM t WHERE "Region" = 'South' AND "Segment" IN ('Consumer', 'Corporate')`
	assert.Empty(t, CheckLiterals(clean))

	dirty := `SELECT * FROM t WHERE "Region" = ''' OR ''1''=''1'`
	hits := CheckLiterals(dirty)
	require.Len(t, hits, 1)
	assert.Equal(t, "' OR '1'='1", hits[0].Literal)
}
