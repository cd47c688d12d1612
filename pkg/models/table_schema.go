package models

import (
	"slices"
	"time"
)

// ============================================================================
// Semantic Roles
// ============================================================================

// SemanticRole is the business meaning inferred for a column.
type SemanticRole string

const (
	RoleIdentifier  SemanticRole = "identifier"
	RoleName        SemanticRole = "name"
	RoleMonetary    SemanticRole = "monetary"
	RoleQuantity    SemanticRole = "quantity"
	RoleTemporal    SemanticRole = "temporal"
	RoleGeographic  SemanticRole = "geographic"
	RoleCategorical SemanticRole = "categorical"
	RoleContact     SemanticRole = "contact"
	RoleBoolean     SemanticRole = "boolean"
	RoleNumeric     SemanticRole = "numeric"
	RoleText        SemanticRole = "text"
	RoleUnknown     SemanticRole = "unknown"
)

// ValidSemanticRoles contains all valid role values.
var ValidSemanticRoles = []SemanticRole{
	RoleIdentifier,
	RoleName,
	RoleMonetary,
	RoleQuantity,
	RoleTemporal,
	RoleGeographic,
	RoleCategorical,
	RoleContact,
	RoleBoolean,
	RoleNumeric,
	RoleText,
	RoleUnknown,
}

// IsValidSemanticRole checks if the given role is valid.
func IsValidSemanticRole(r SemanticRole) bool {
	return slices.Contains(ValidSemanticRoles, r)
}

// IsMeasure reports whether the role holds values that are summed or averaged.
func (r SemanticRole) IsMeasure() bool {
	return r == RoleMonetary || r == RoleQuantity
}

// RelationshipHint is a cardinality-derived hint about how a column is used.
type RelationshipHint string

const (
	HintNone                         RelationshipHint = "none"
	HintPrimaryKeyCandidate          RelationshipHint = "primary_key_candidate"
	HintSecondaryIdentifierCandidate RelationshipHint = "secondary_identifier_candidate"
	HintGroupingCandidate            RelationshipHint = "grouping_candidate"
)

// ============================================================================
// Table Schema
// ============================================================================

// ColumnDescriptor is one column with its probe statistics and semantic model.
type ColumnDescriptor struct {
	Name             string           `json:"name"`
	DeclaredType     string           `json:"declared_type"`
	Role             SemanticRole     `json:"role"`
	NumericCapable   bool             `json:"numeric_capable"`
	Nullable         bool             `json:"nullable"`
	CardinalityRatio float64          `json:"cardinality_ratio"` // distinct / non-null (0.0 - 1.0)
	NullPercentage   float64          `json:"null_percentage"`   // 0.0 - 100.0
	NonNullCount     int64            `json:"non_null_count"`
	DistinctCount    int64            `json:"distinct_count"`
	SampleValues     []string         `json:"sample_values,omitempty"`
	Hint             RelationshipHint `json:"hint"`
}

// TableSchema is the probed shape of one physical table. It is rebuilt on
// every probe and never mutated in place.
type TableSchema struct {
	TableName string             `json:"table_name"`
	Backend   string             `json:"backend"` // adapter type, e.g. "duckdb"
	Columns   []ColumnDescriptor `json:"columns"`
	RowCount  int64              `json:"row_count"`
	HasData   bool               `json:"has_data"`
	ProbedAt  time.Time          `json:"probed_at"`
}

// Clone returns a deep copy.
func (s *TableSchema) Clone() *TableSchema {
	if s == nil {
		return nil
	}
	out := *s
	out.Columns = make([]ColumnDescriptor, len(s.Columns))
	for i, c := range s.Columns {
		c.SampleValues = slices.Clone(c.SampleValues)
		out.Columns[i] = c
	}
	return &out
}

// Column returns the column with exactly this name.
func (s *TableSchema) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// ColumnNames returns column names in table order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnsWithRole returns the columns assigned role, in table order.
func (s *TableSchema) ColumnsWithRole(role SemanticRole) []ColumnDescriptor {
	var out []ColumnDescriptor
	for _, c := range s.Columns {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}
