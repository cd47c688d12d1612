// Package audit provides security audit logging for SIEM consumption.
// Events are emitted as structured zap entries under the "security_audit"
// logger, each carrying a JSON copy of the event for downstream parsing.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/logging"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLRejected is logged when the guard refuses to execute a statement.
	EventSQLRejected SecurityEventType = "sql_rejected"
	// EventSQLInjectionAttempt is logged when libinjection flags a literal.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventQueryExecution is logged for each executed statement.
	EventQueryExecution SecurityEventType = "query_execution"
	// EventTransformationVerdict is logged for each validated ETL conversion.
	EventTransformationVerdict SecurityEventType = "transformation_verdict"
)

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    SecurityEventType `json:"event_type"`
	DataSourceID uuid.UUID         `json:"data_source_id"`
	Table        string            `json:"table,omitempty"`
	Details      any               `json:"details"`
	Severity     string            `json:"severity"` // info, warning, critical
}

// RejectionDetails describes a statement refused by the guard.
type RejectionDetails struct {
	SQL     string `json:"sql"`
	Reason  string `json:"reason"`
	Keyword string `json:"keyword,omitempty"`
	Source  string `json:"source"` // llm, llm_retry, fallback
}

// InjectionDetails describes a literal flagged by libinjection.
type InjectionDetails struct {
	Literal     string `json:"literal"`
	Fingerprint string `json:"fingerprint"`
	Origin      string `json:"origin"` // where the literal came from, e.g. "fallback_filter"
}

// ExecutionDetails describes an executed statement.
type ExecutionDetails struct {
	SQL        string `json:"sql"`
	Source     string `json:"source"`
	RowCount   int    `json:"row_count"`
	DurationMs int64  `json:"duration_ms"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor logging under the "security_audit" name.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func (a *SecurityAuditor) event(t SecurityEventType, dataSourceID uuid.UUID, table, severity string, details any) string {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    t,
		DataSourceID: dataSourceID,
		Table:        table,
		Details:      details,
		Severity:     severity,
	}
	// Marshaling known types does not fail.
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}

// LogSQLRejected records a statement the guard refused. Logged at ERROR with
// "critical" severity: rejected SQL is a security boundary violation whether it
// came from the LLM or from user-supplied text.
func (a *SecurityAuditor) LogSQLRejected(dataSourceID uuid.UUID, table string, details RejectionDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	a.logger.Error("SQL rejected by guard",
		zap.String("event_json", a.event(EventSQLRejected, dataSourceID, table, "critical", details)),
		zap.String("data_source_id", dataSourceID.String()),
		zap.String("table", table),
		zap.String("reason", details.Reason),
		zap.String("keyword", details.Keyword),
		zap.String("source", details.Source),
		zap.String("severity", "critical"),
	)
}

// LogInjectionAttempt records a literal that libinjection classified as SQLi.
func (a *SecurityAuditor) LogInjectionAttempt(dataSourceID uuid.UUID, table string, details InjectionDetails) {
	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", a.event(EventSQLInjectionAttempt, dataSourceID, table, "critical", details)),
		zap.String("data_source_id", dataSourceID.String()),
		zap.String("table", table),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("origin", details.Origin),
		zap.String("severity", "critical"),
	)
}

// LogQueryExecution records an executed statement. High volume, so INFO.
func (a *SecurityAuditor) LogQueryExecution(dataSourceID uuid.UUID, table string, details ExecutionDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	a.logger.Info("Query executed",
		zap.String("event_json", a.event(EventQueryExecution, dataSourceID, table, "info", details)),
		zap.String("data_source_id", dataSourceID.String()),
		zap.String("table", table),
		zap.String("source", details.Source),
		zap.Int("row_count", details.RowCount),
		zap.Int64("duration_ms", details.DurationMs),
		zap.String("severity", "info"),
	)
}

// LogTransformationOutcome records one ETL conversion verdict. Failures log at
// WARN, everything else at INFO.
func (a *SecurityAuditor) LogTransformationOutcome(dataSourceID uuid.UUID, table string, outcome models.TransformationOutcome) {
	severity := "info"
	log := a.logger.Info
	switch outcome.Verdict {
	case models.VerdictFail:
		severity = "warning"
		log = a.logger.Warn
	case models.VerdictWarn:
		severity = "warning"
	}

	log("Transformation validated",
		zap.String("event_json", a.event(EventTransformationVerdict, dataSourceID, table, severity, outcome)),
		zap.String("data_source_id", dataSourceID.String()),
		zap.String("table", table),
		zap.String("column", outcome.Column),
		zap.String("target_type", outcome.TargetType),
		zap.Float64("null_pct_after", outcome.NullPercentageAfter),
		zap.String("verdict", string(outcome.Verdict)),
		zap.String("severity", severity),
	)
}
