package repositories

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/database"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

// ErrDataSourceExists is returned by Create when the ID is already registered.
var ErrDataSourceExists = errors.New("data source already exists")

// DataSourceRepository is the dataset registry. The question pipeline only
// reads from it; Create and Delete serve registration tooling and tests.
type DataSourceRepository interface {
	// Create registers a data source. Returns ErrDataSourceExists on a duplicate ID.
	Create(ctx context.Context, ds *models.DataSourceRef) error

	// GetByID returns the data source or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.DataSourceRef, error)

	// List returns all data sources ordered by name.
	List(ctx context.Context) ([]*models.DataSourceRef, error)

	// Delete removes a data source. Missing IDs are not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}

// dataSourceRepository implements DataSourceRepository using PostgreSQL.
type dataSourceRepository struct {
	db *database.DB
}

// NewDataSourceRepository creates a PostgreSQL-backed registry.
func NewDataSourceRepository(db *database.DB) DataSourceRepository {
	return &dataSourceRepository{db: db}
}

const dataSourceColumns = `id, name, backend, backend_type, legacy_table_names, resolved_table_name, created_at, updated_at`

func (r *dataSourceRepository) Create(ctx context.Context, ds *models.DataSourceRef) error {
	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	if ds.LegacyTableNames == nil {
		ds.LegacyTableNames = []string{}
	}

	query := `
		INSERT INTO data_sources (` + dataSourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`

	_, err := r.db.Exec(ctx, query,
		ds.ID,
		ds.Name,
		string(ds.Backend),
		ds.BackendType,
		ds.LegacyTableNames,
		ds.ResolvedTableName,
		ds.CreatedAt,
		ds.UpdatedAt,
	)
	if err != nil {
		// Unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", ds.ID, ErrDataSourceExists)
		}
		return fmt.Errorf("failed to create data source: %w", err)
	}
	return nil
}

func (r *dataSourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DataSourceRef, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE id = $1`

	ds, err := scanDataSource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("data source %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}
	return ds, nil
}

func (r *dataSourceRepository) List(ctx context.Context) ([]*models.DataSourceRef, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources ORDER BY name, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	var out []*models.DataSourceRef
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate data sources: %w", err)
	}
	return out, nil
}

func (r *dataSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM data_sources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete data source: %w", err)
	}
	return nil
}

func scanDataSource(row pgx.Row) (*models.DataSourceRef, error) {
	var ds models.DataSourceRef
	var backend string
	var resolved *string
	if err := row.Scan(
		&ds.ID,
		&ds.Name,
		&backend,
		&ds.BackendType,
		&ds.LegacyTableNames,
		&resolved,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ds.Backend = models.BackendKind(backend)
	if resolved != nil {
		ds.ResolvedTableName = *resolved
	}
	return &ds, nil
}

// MemoryDataSourceRepository is an in-process registry for single-node use
// and tests. Returned values are copies.
type MemoryDataSourceRepository struct {
	mu      sync.RWMutex
	sources map[uuid.UUID]models.DataSourceRef
}

// NewMemoryDataSourceRepository creates an empty in-memory registry.
func NewMemoryDataSourceRepository() *MemoryDataSourceRepository {
	return &MemoryDataSourceRepository{sources: make(map[uuid.UUID]models.DataSourceRef)}
}

func (r *MemoryDataSourceRepository) Create(_ context.Context, ds *models.DataSourceRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[ds.ID]; ok {
		return fmt.Errorf("%s: %w", ds.ID, ErrDataSourceExists)
	}
	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	stored := *ds
	stored.LegacyTableNames = slices.Clone(ds.LegacyTableNames)
	r.sources[ds.ID] = stored
	return nil
}

func (r *MemoryDataSourceRepository) GetByID(_ context.Context, id uuid.UUID) (*models.DataSourceRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("data source %s: %w", id, apperrors.ErrNotFound)
	}
	ds.LegacyTableNames = slices.Clone(ds.LegacyTableNames)
	return &ds, nil
}

func (r *MemoryDataSourceRepository) List(_ context.Context) ([]*models.DataSourceRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.DataSourceRef, 0, len(r.sources))
	for _, ds := range r.sources {
		ds.LegacyTableNames = slices.Clone(ds.LegacyTableNames)
		out = append(out, &ds)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MemoryDataSourceRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, id)
	return nil
}

// Ensure implementations satisfy the interface at compile time.
var (
	_ DataSourceRepository = (*dataSourceRepository)(nil)
	_ DataSourceRepository = (*MemoryDataSourceRepository)(nil)
)
