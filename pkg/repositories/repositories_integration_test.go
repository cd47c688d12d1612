//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/testhelpers"
)

func TestDataSourceRepository_Postgres(t *testing.T) {
	registry := testhelpers.GetRegistryDB(t)
	repo := NewDataSourceRepository(registry.DB)
	ctx := context.Background()

	ds := &models.DataSourceRef{
		ID:               uuid.New(),
		Name:             "Superstore Sales",
		Backend:          models.BackendWarehouse,
		BackendType:      "duckdb",
		LegacyTableNames: []string{"superstore_2019", "orders_old"},
	}
	require.NoError(t, repo.Create(ctx, ds))
	t.Cleanup(func() { _ = repo.Delete(context.Background(), ds.ID) })

	err := repo.Create(ctx, ds)
	assert.True(t, errors.Is(err, ErrDataSourceExists))

	got, err := repo.GetByID(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, ds.Name, got.Name)
	assert.Equal(t, models.BackendWarehouse, got.Backend)
	assert.Equal(t, "duckdb", got.BackendType)
	assert.Equal(t, ds.LegacyTableNames, got.LegacyTableNames)
	assert.Empty(t, got.ResolvedTableName)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestTransformationAuditRepository_Postgres(t *testing.T) {
	registry := testhelpers.GetRegistryDB(t)
	ctx := context.Background()

	sources := NewDataSourceRepository(registry.DB)
	ds := &models.DataSourceRef{ID: uuid.New(), Name: "audit", Backend: models.BackendWarehouse, BackendType: "duckdb"}
	require.NoError(t, sources.Create(ctx, ds))
	t.Cleanup(func() { _ = sources.Delete(context.Background(), ds.ID) })

	before := 2.0
	repo := NewTransformationAuditRepository(registry.DB)
	require.NoError(t, repo.Record(ctx, ds.ID, "ds_table", []models.TransformationOutcome{
		{Column: "Order Date", SourceType: "VARCHAR", TargetType: "DATE", NullPercentageBefore: &before, NullPercentageAfter: 85, Verdict: models.VerdictWarn, Reason: "high null rate"},
		{Column: "Order ID", SourceType: "VARCHAR", TargetType: "INTEGER", NullPercentageAfter: 100, Verdict: models.VerdictFail, Critical: true},
	}))

	records, err := repo.ListByDataSource(ctx, ds.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byColumn := map[string]TransformationAuditRecord{}
	for _, r := range records {
		byColumn[r.Outcome.Column] = r
	}
	require.NotNil(t, byColumn["Order Date"].Outcome.NullPercentageBefore)
	assert.Equal(t, 2.0, *byColumn["Order Date"].Outcome.NullPercentageBefore)
	assert.Equal(t, models.VerdictWarn, byColumn["Order Date"].Outcome.Verdict)
	assert.Nil(t, byColumn["Order ID"].Outcome.NullPercentageBefore)
	assert.True(t, byColumn["Order ID"].Outcome.Critical)

	assert.NoError(t, repo.Record(ctx, ds.ID, "ds_table", nil))
}

func TestRedisLocatorCache(t *testing.T) {
	client := testhelpers.GetRedis(t)
	cache := NewRedisLocatorCache(client, time.Minute, zap.NewNop())
	ctx := context.Background()

	key := uuid.NewString() + ":duckdb"
	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	cache.Set(ctx, key, "ds_abc")
	table, ok := cache.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "ds_abc", table)

	cache.Delete(ctx, key)
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
}
