package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/catalog"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/testhelpers"
)

// mockBackend is a configurable datasource.Backend for unit tests.
// Unset funcs return zero values.
type mockBackend struct {
	TypeName               string
	ListTablesFunc         func(ctx context.Context) ([]string, error)
	TableExistsFunc        func(ctx context.Context, table string) (bool, error)
	DescribeFunc           func(ctx context.Context, table string) ([]datasource.RawColumn, error)
	CountFunc              func(ctx context.Context, table string) (int64, error)
	AnalyzeColumnStatsFunc func(ctx context.Context, table string, columns []string) ([]datasource.ColumnStats, error)
	SampleFunc             func(ctx context.Context, table, column string, limit int) ([]string, error)
	ExecuteFunc            func(ctx context.Context, query string, limit int) (*datasource.QueryExecutionResult, error)

	mu       sync.Mutex
	executed []string
	probed   []string
}

func (m *mockBackend) Type() string {
	if m.TypeName == "" {
		return "duckdb"
	}
	return m.TypeName
}

func (m *mockBackend) Kind() datasource.Kind { return datasource.KindWarehouse }

func (m *mockBackend) ListTables(ctx context.Context) ([]string, error) {
	if m.ListTablesFunc != nil {
		return m.ListTablesFunc(ctx)
	}
	return nil, nil
}

func (m *mockBackend) TableExists(ctx context.Context, table string) (bool, error) {
	m.mu.Lock()
	m.probed = append(m.probed, table)
	m.mu.Unlock()
	if m.TableExistsFunc != nil {
		return m.TableExistsFunc(ctx, table)
	}
	return false, nil
}

func (m *mockBackend) Describe(ctx context.Context, table string) ([]datasource.RawColumn, error) {
	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, table)
	}
	return nil, datasource.TableNotFound(table)
}

func (m *mockBackend) Count(ctx context.Context, table string) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, table)
	}
	return 0, nil
}

func (m *mockBackend) AnalyzeColumnStats(ctx context.Context, table string, columns []string) ([]datasource.ColumnStats, error) {
	if m.AnalyzeColumnStatsFunc != nil {
		return m.AnalyzeColumnStatsFunc(ctx, table, columns)
	}
	return nil, nil
}

func (m *mockBackend) Sample(ctx context.Context, table, column string, limit int) ([]string, error) {
	if m.SampleFunc != nil {
		return m.SampleFunc(ctx, table, column, limit)
	}
	return nil, nil
}

func (m *mockBackend) Execute(ctx context.Context, query string, limit int) (*datasource.QueryExecutionResult, error) {
	m.mu.Lock()
	m.executed = append(m.executed, query)
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, query, limit)
	}
	return &datasource.QueryExecutionResult{}, nil
}

func (m *mockBackend) QuoteIdentifier(name string) string { return `"` + name + `"` }

func (m *mockBackend) Close() error { return nil }

func (m *mockBackend) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executed...)
}

func (m *mockBackend) Probed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.probed...)
}

// mockCountingBackend adds datasource.RowCounter.
type mockCountingBackend struct {
	mockBackend
	TableRowCountsFunc func(ctx context.Context) ([]datasource.TableMetadata, error)
}

func (m *mockCountingBackend) TableRowCounts(ctx context.Context) ([]datasource.TableMetadata, error) {
	if m.TableRowCountsFunc != nil {
		return m.TableRowCountsFunc(ctx)
	}
	return nil, nil
}

var (
	_ datasource.Backend    = (*mockBackend)(nil)
	_ datasource.RowCounter = (*mockCountingBackend)(nil)
)

// superstoreFixture seeds a warehouse with the orders table and returns it
// with its probed, classified schema and alias map.
func superstoreFixture(t *testing.T, table string) (datasource.Backend, *models.TableSchema, *models.AliasMap) {
	t.Helper()
	backend := testhelpers.NewWarehouse(t, testhelpers.SuperstoreDDL(table)...)

	logger := zap.NewNop()
	probed, err := NewSchemaProber(logger).Probe(context.Background(), backend, table)
	require.NoError(t, err)
	schema := NewSemanticClassifier(catalog.Default(), logger).Classify(probed)
	aliases := NewColumnAliasResolver(catalog.Default(), logger).BuildAliasMap(schema)
	return backend, schema, aliases
}
