package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackendKind identifies which storage engine holds a data source.
type BackendKind string

const (
	BackendWarehouse  BackendKind = "warehouse"
	BackendRelational BackendKind = "relational"
)

// DataSourceRef is a logical dataset. The physical table behind it is found by
// the table locator; LegacyTableNames are hints from earlier naming generations.
type DataSourceRef struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	Backend           BackendKind `json:"backend"`
	BackendType       string      `json:"backend_type"` // adapter type: duckdb, postgres, sqlserver
	LegacyTableNames  []string    `json:"legacy_table_names,omitempty"`
	ResolvedTableName string      `json:"resolved_table_name,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// CanonicalTableName returns the current-generation physical name:
// "ds_" followed by the UUID with dashes replaced by underscores.
func (r *DataSourceRef) CanonicalTableName() string {
	return "ds_" + strings.ReplaceAll(r.ID.String(), "-", "_")
}

// HexID returns the UUID as 32 hex characters without dashes.
func (r *DataSourceRef) HexID() string {
	return strings.ReplaceAll(r.ID.String(), "-", "")
}
