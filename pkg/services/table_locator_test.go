package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/testhelpers"
)

var testDataSourceID = uuid.MustParse("6f1c2a9e-0b7d-4c1e-9a55-3e2f8d4b7a10")

func newTestRef(name string) *models.DataSourceRef {
	return &models.DataSourceRef{
		ID:          testDataSourceID,
		Name:        name,
		Backend:     models.BackendWarehouse,
		BackendType: "duckdb",
	}
}

func existsIn(tables ...string) func(ctx context.Context, table string) (bool, error) {
	set := make(map[string]bool)
	for _, t := range tables {
		set[t] = true
	}
	return func(_ context.Context, table string) (bool, error) {
		return set[table], nil
	}
}

func TestTableLocator_Strategies(t *testing.T) {
	hex := "6f1c2a9e0b7d4c1e9a553e2f8d4b7a10"

	tests := []struct {
		name     string
		ref      *models.DataSourceRef
		backend  func() datasource.Backend
		expected string
	}{
		{
			name: "canonical name",
			ref:  newTestRef("Sales"),
			backend: func() datasource.Backend {
				return &mockBackend{TableExistsFunc: existsIn("ds_6f1c2a9e_0b7d_4c1e_9a55_3e2f8d4b7a10", "data_"+hex)}
			},
			expected: "ds_6f1c2a9e_0b7d_4c1e_9a55_3e2f8d4b7a10",
		},
		{
			name: "legacy hint before fixed formats",
			ref: func() *models.DataSourceRef {
				r := newTestRef("Sales")
				r.LegacyTableNames = []string{"imported_sales_v1"}
				return r
			}(),
			backend: func() datasource.Backend {
				return &mockBackend{TableExistsFunc: existsIn("imported_sales_v1", "data_"+hex)}
			},
			expected: "imported_sales_v1",
		},
		{
			name: "legacy data_ format",
			ref:  newTestRef("Sales"),
			backend: func() datasource.Backend {
				return &mockBackend{TableExistsFunc: existsIn("data_" + hex)}
			},
			expected: "data_" + hex,
		},
		{
			name: "legacy dataset_ format",
			ref:  newTestRef("Sales"),
			backend: func() datasource.Backend {
				return &mockBackend{TableExistsFunc: existsIn("dataset_6f1c2a9e_0b7d_4c1e_9a55_3e2f8d4b7a10")}
			},
			expected: "dataset_6f1c2a9e_0b7d_4c1e_9a55_3e2f8d4b7a10",
		},
		{
			name: "name similarity takes first listed match",
			ref:  newTestRef("Sample - Superstore"),
			backend: func() datasource.Backend {
				return &mockBackend{ListTablesFunc: func(context.Context) ([]string, error) {
					return []string{"customers", "sample_superstore", "superstore_2"}, nil
				}}
			},
			expected: "sample_superstore",
		},
		{
			name: "table name contained in data source name",
			ref:  newTestRef("Superstore Orders 2017"),
			backend: func() datasource.Backend {
				return &mockBackend{ListTablesFunc: func(context.Context) ([]string, error) {
					return []string{"inventory", "Orders"}, nil
				}}
			},
			expected: "Orders",
		},
		{
			name: "largest table when nothing else matches",
			ref:  newTestRef("Quarterly upload"),
			backend: func() datasource.Backend {
				b := &mockCountingBackend{}
				b.ListTablesFunc = func(context.Context) ([]string, error) {
					return []string{"a_small", "b_big", "c_empty"}, nil
				}
				b.TableRowCountsFunc = func(context.Context) ([]datasource.TableMetadata, error) {
					return []datasource.TableMetadata{
						{TableName: "a_small", RowCount: 10},
						{TableName: "b_big", RowCount: 9994},
						{TableName: "c_empty", RowCount: 0},
					}, nil
				}
				return b
			},
			expected: "b_big",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locator := NewTableLocator(nil, time.Minute, zap.NewNop())
			table, err := locator.Locate(context.Background(), tt.ref, tt.backend())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, table)
		})
	}
}

func TestTableLocator_NotFound(t *testing.T) {
	backend := &mockCountingBackend{}
	backend.TableRowCountsFunc = func(context.Context) ([]datasource.TableMetadata, error) {
		return []datasource.TableMetadata{{TableName: "empty", RowCount: 0}}, nil
	}

	locator := NewTableLocator(nil, time.Minute, zap.NewNop())
	_, err := locator.Locate(context.Background(), newTestRef("Nothing"), backend)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "largest_table")
}

func TestTableLocator_NilRef(t *testing.T) {
	locator := NewTableLocator(nil, time.Minute, zap.NewNop())
	_, err := locator.Locate(context.Background(), nil, &mockBackend{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTableLocator_FirstProbeUnreachable(t *testing.T) {
	backend := &mockBackend{TableExistsFunc: func(context.Context, string) (bool, error) {
		return false, fmt.Errorf("check table: %w", apperrors.ErrBackendUnreachable)
	}}

	locator := NewTableLocator(nil, time.Minute, zap.NewNop())
	_, err := locator.Locate(context.Background(), newTestRef("x"), backend)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBackendUnreachable)
	assert.Len(t, backend.Probed(), 1, "must stop at the first probe")
}

func TestTableLocator_LaterProbeErrorsAreSkipped(t *testing.T) {
	hex := "6f1c2a9e0b7d4c1e9a553e2f8d4b7a10"
	calls := 0
	backend := &mockBackend{TableExistsFunc: func(_ context.Context, table string) (bool, error) {
		calls++
		if calls == 2 {
			return false, errors.New("transient catalog error")
		}
		return table == "ds_"+hex, nil
	}}

	locator := NewTableLocator(nil, time.Minute, zap.NewNop())
	table, err := locator.Locate(context.Background(), newTestRef("x"), backend)
	require.NoError(t, err)
	assert.Equal(t, "ds_"+hex, table)
}

func TestTableLocator_CachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	ref := newTestRef("Sales")
	backend := &mockBackend{TableExistsFunc: existsIn(ref.CanonicalTableName())}
	locator := NewTableLocator(nil, time.Minute, zap.NewNop())

	_, err := locator.Locate(ctx, ref, backend)
	require.NoError(t, err)
	_, err = locator.Locate(ctx, ref, backend)
	require.NoError(t, err)
	assert.Len(t, backend.Probed(), 1, "second lookup should be served from cache")

	locator.Invalidate(ctx, ref, backend.Type())
	_, err = locator.Locate(ctx, ref, backend)
	require.NoError(t, err)
	assert.Len(t, backend.Probed(), 2)
}

func TestTableLocator_CacheKeyIncludesBackendType(t *testing.T) {
	ctx := context.Background()
	ref := newTestRef("Sales")
	store := NewMemoryLocatorStore(time.Minute)
	locator := NewTableLocator(store, time.Minute, zap.NewNop())

	warehouse := &mockBackend{TableExistsFunc: existsIn(ref.CanonicalTableName())}
	relational := &mockBackend{TypeName: "postgres", TableExistsFunc: existsIn("data_" + ref.HexID())}

	a, err := locator.Locate(ctx, ref, warehouse)
	require.NoError(t, err)
	b, err := locator.Locate(ctx, ref, relational)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTableLocator_DuckDBCanonical(t *testing.T) {
	ref := newTestRef("Superstore")
	backend := testhelpers.NewWarehouse(t, testhelpers.SuperstoreDDL(ref.CanonicalTableName())...)

	locator := NewTableLocator(nil, time.Minute, zap.NewNop())
	table, err := locator.Locate(context.Background(), ref, backend)
	require.NoError(t, err)
	assert.Equal(t, ref.CanonicalTableName(), table)
}

func TestTableLocator_DuckDBLargestTable(t *testing.T) {
	ref := newTestRef("Quarterly upload")
	stmts := append(testhelpers.SuperstoreDDL("orders_2017"),
		`CREATE TABLE "lookup" (code INTEGER)`,
	)
	backend := testhelpers.NewWarehouse(t, stmts...)

	locator := NewTableLocator(nil, time.Minute, zap.NewNop())
	table, err := locator.Locate(context.Background(), ref, backend)
	require.NoError(t, err)
	assert.Equal(t, "orders_2017", table)
}
