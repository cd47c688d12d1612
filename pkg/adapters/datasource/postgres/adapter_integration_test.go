//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/testhelpers"
)

func setupOrders(t *testing.T) *Adapter {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	_, err := testDB.Pool.Exec(ctx, `
		DROP TABLE IF EXISTS pg_adapter_orders;
		CREATE TABLE pg_adapter_orders (
			"Order ID" text,
			"Region"   text,
			"Sales"    numeric(10,2),
			"Notes"    text
		);
		INSERT INTO pg_adapter_orders VALUES
			('CA-1', 'West', 10.50, NULL),
			('CA-2', 'East', 20.00, NULL),
			('CA-3', 'West', 5.25, 'rush');
		ANALYZE pg_adapter_orders;`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testDB.Pool.Exec(context.Background(), `DROP TABLE IF EXISTS pg_adapter_orders`)
	})

	return NewFromPool(testDB.Pool, "public", nil)
}

func TestAdapter_Introspection(t *testing.T) {
	a := setupOrders(t)
	ctx := context.Background()

	tables, err := a.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "pg_adapter_orders")

	exists, err := a.TableExists(ctx, "pg_adapter_orders")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = a.TableExists(ctx, "PG_ADAPTER_ORDERS")
	require.NoError(t, err)
	assert.False(t, exists, "lookup is exact")

	cols, err := a.Describe(ctx, "pg_adapter_orders")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "Order ID", cols[0].Name)
	assert.Equal(t, "numeric", cols[2].DataType)
	assert.Equal(t, 3, cols[2].OrdinalPosition)

	_, err = a.Describe(ctx, "missing_table")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	n, err := a.Count(ctx, "pg_adapter_orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	counts, err := a.TableRowCounts(ctx)
	require.NoError(t, err)
	found := false
	for _, c := range counts {
		if c.TableName == "pg_adapter_orders" {
			found = true
			assert.Equal(t, int64(3), c.RowCount)
		}
	}
	assert.True(t, found)
}

func TestAdapter_StatsAndSamples(t *testing.T) {
	a := setupOrders(t)
	ctx := context.Background()

	stats, err := a.AnalyzeColumnStats(ctx, "pg_adapter_orders", []string{"Region", "Notes"})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, int64(3), stats[0].NonNullCount)
	assert.Equal(t, int64(2), stats[0].DistinctCount)
	assert.Equal(t, int64(1), stats[1].NonNullCount)

	samples, err := a.Sample(ctx, "pg_adapter_orders", "Region", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"East", "West"}, samples)

	samples, err = a.Sample(ctx, "pg_adapter_orders", "Sales", 2)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}

func TestAdapter_Execute(t *testing.T) {
	a := setupOrders(t)
	ctx := context.Background()

	result, err := a.Execute(ctx, `SELECT "Region", SUM("Sales") AS total FROM pg_adapter_orders GROUP BY 1 ORDER BY 1;`, 0)
	require.NoError(t, err)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "TEXT", result.Columns[0].Type)
	assert.Equal(t, "NUMERIC", result.Columns[1].Type)
	assert.Equal(t, "East", result.Rows[0]["Region"])
	assert.InDelta(t, 20.0, result.Rows[0]["total"], 0.001)

	limited, err := a.Execute(ctx, `SELECT * FROM pg_adapter_orders`, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, limited.RowCount)

	_, err = a.Execute(ctx, `SELECT "Nope" FROM pg_adapter_orders`, 10)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrBackendUnreachable))
}
