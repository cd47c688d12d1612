package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/database"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

// TransformationAuditRecord is one persisted ETL validation outcome.
type TransformationAuditRecord struct {
	ID           int64
	DataSourceID uuid.UUID
	TableName    string
	Outcome      models.TransformationOutcome
	CreatedAt    time.Time
}

// TransformationAuditRepository stores ETL validation verdicts so null-rate
// regressions can be diagnosed after the fact.
type TransformationAuditRepository interface {
	// Record writes all outcomes of one validation run in a single batch.
	Record(ctx context.Context, dataSourceID uuid.UUID, table string, outcomes []models.TransformationOutcome) error

	// ListByDataSource returns the most recent records first.
	ListByDataSource(ctx context.Context, dataSourceID uuid.UUID, limit int) ([]TransformationAuditRecord, error)
}

type transformationAuditRepository struct {
	db *database.DB
}

// NewTransformationAuditRepository creates a PostgreSQL-backed audit repository.
func NewTransformationAuditRepository(db *database.DB) TransformationAuditRepository {
	return &transformationAuditRepository{db: db}
}

func (r *transformationAuditRepository) Record(ctx context.Context, dataSourceID uuid.UUID, table string, outcomes []models.TransformationOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	const query = `
		INSERT INTO transformation_audit
			(data_source_id, table_name, column_name, source_type, target_type,
			 null_pct_before, null_pct_after, verdict, reason, critical)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	batch := &pgx.Batch{}
	for _, o := range outcomes {
		batch.Queue(query,
			dataSourceID,
			table,
			o.Column,
			o.SourceType,
			o.TargetType,
			o.NullPercentageBefore,
			o.NullPercentageAfter,
			string(o.Verdict),
			o.Reason,
			o.Critical,
		)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to record transformation audit: %w", err)
	}
	return nil
}

func (r *transformationAuditRepository) ListByDataSource(ctx context.Context, dataSourceID uuid.UUID, limit int) ([]TransformationAuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT id, data_source_id, table_name, column_name, source_type, target_type,
		       null_pct_before, null_pct_after, verdict, reason, critical, created_at
		FROM transformation_audit
		WHERE data_source_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, dataSourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transformation audit: %w", err)
	}
	defer rows.Close()

	var records []TransformationAuditRecord
	for rows.Next() {
		var rec TransformationAuditRecord
		var verdict string
		if err := rows.Scan(
			&rec.ID,
			&rec.DataSourceID,
			&rec.TableName,
			&rec.Outcome.Column,
			&rec.Outcome.SourceType,
			&rec.Outcome.TargetType,
			&rec.Outcome.NullPercentageBefore,
			&rec.Outcome.NullPercentageAfter,
			&verdict,
			&rec.Outcome.Reason,
			&rec.Outcome.Critical,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transformation audit: %w", err)
		}
		rec.Outcome.Verdict = models.Verdict(verdict)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transformation audit: %w", err)
	}
	return records, nil
}

var _ TransformationAuditRepository = (*transformationAuditRepository)(nil)
