package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/audit"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/catalog"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/repositories"
)

// EtlTypeValidator judges the null rates an ETL type conversion left behind.
type EtlTypeValidator interface {
	// Validate is pure and records nothing.
	Validate(results []models.TransformationResult) *models.ValidationReport

	// ValidateAndRecord validates, writes every outcome to the audit log and
	// the audit repository, and returns a wrapped apperrors.ErrValidationFail
	// alongside the report when the run must not proceed.
	ValidateAndRecord(ctx context.Context, dataSourceID uuid.UUID, table string, results []models.TransformationResult) (*models.ValidationReport, error)
}

type etlTypeValidator struct {
	thresholds config.ValidationConfig
	catalog    *catalog.Catalog
	auditor    *audit.SecurityAuditor
	repo       repositories.TransformationAuditRepository
	logger     *zap.Logger
}

// NewEtlTypeValidator creates a validator. repo may be nil when no registry
// database is configured.
func NewEtlTypeValidator(
	thresholds config.ValidationConfig,
	cat *catalog.Catalog,
	auditor *audit.SecurityAuditor,
	repo repositories.TransformationAuditRepository,
	logger *zap.Logger,
) EtlTypeValidator {
	if cat == nil {
		cat = catalog.Default()
	}
	if auditor == nil {
		auditor = audit.NewSecurityAuditor(logger)
	}
	return &etlTypeValidator{
		thresholds: thresholds,
		catalog:    cat,
		auditor:    auditor,
		repo:       repo,
		logger:     logger.Named("etl-type-validator"),
	}
}

func (v *etlTypeValidator) Validate(results []models.TransformationResult) *models.ValidationReport {
	report := &models.ValidationReport{
		Overall:  models.VerdictPass,
		Outcomes: make([]models.TransformationOutcome, 0, len(results)),
	}

	for _, r := range results {
		outcome := v.judge(r)
		switch outcome.Verdict {
		case models.VerdictFail:
			report.CriticalFailures++
			report.Warnings = append(report.Warnings, fmt.Sprintf("column %q failed: %s", r.Column, outcome.Reason))
		case models.VerdictWarn:
			report.Warnings = append(report.Warnings, fmt.Sprintf("column %q: %s", r.Column, outcome.Reason))
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if len(results) > 0 && float64(report.CriticalFailures) > v.thresholds.CriticalShare*float64(len(results)) {
		report.Overall = models.VerdictFail
	}
	return report
}

func (v *etlTypeValidator) judge(r models.TransformationResult) models.TransformationOutcome {
	out := models.TransformationOutcome{
		Column:               r.Column,
		SourceType:           r.SourceType,
		TargetType:           r.TargetType,
		NullPercentageBefore: r.NullPercentageBefore,
		NullPercentageAfter:  r.NullPercentage,
		Verdict:              models.VerdictPass,
	}
	t := v.thresholds

	switch {
	case r.NullPercentage >= 100:
		out.Verdict = models.VerdictFail
		out.Reason = "every value is null after conversion"
	case v.catalog.IsIdentifierName(r.Column) && r.NullPercentage > t.IdentifierNullFailPct:
		out.Verdict = models.VerdictFail
		out.Reason = fmt.Sprintf("identifier column is %.1f%% null (limit %.1f%%)", r.NullPercentage, t.IdentifierNullFailPct)
	case r.NullPercentage > t.WarnNullPct:
		out.Verdict = models.VerdictWarn
		out.Reason = fmt.Sprintf("%.1f%% null (warning above %.1f%%)", r.NullPercentage, t.WarnNullPct)
	case r.NullPercentageBefore != nil && r.NullPercentage-*r.NullPercentageBefore > t.NullIncreaseWarnPct:
		out.Verdict = models.VerdictWarn
		out.Reason = fmt.Sprintf("null rate rose from %.1f%% to %.1f%%", *r.NullPercentageBefore, r.NullPercentage)
	}
	out.Critical = out.Verdict == models.VerdictFail
	return out
}

func (v *etlTypeValidator) ValidateAndRecord(ctx context.Context, dataSourceID uuid.UUID, table string, results []models.TransformationResult) (*models.ValidationReport, error) {
	report := v.Validate(results)

	for _, o := range report.Outcomes {
		v.auditor.LogTransformationOutcome(dataSourceID, table, o)
	}
	if v.repo != nil && len(report.Outcomes) > 0 {
		if err := v.repo.Record(ctx, dataSourceID, table, report.Outcomes); err != nil {
			v.logger.Error("Failed to record transformation audit",
				zap.String("data_source_id", dataSourceID.String()),
				zap.String("table", table),
				zap.Error(err))
		}
	}

	if !report.Passed() {
		return report, fmt.Errorf("%d of %d columns failed: %w",
			report.CriticalFailures, len(report.Outcomes), apperrors.ErrValidationFail)
	}
	return report, nil
}
