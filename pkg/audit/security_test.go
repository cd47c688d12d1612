package audit

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func decodeEvent(t *testing.T, entry observer.LoggedEntry) SecurityEvent {
	t.Helper()
	raw, ok := entry.ContextMap()["event_json"].(string)
	require.True(t, ok, "event_json should be a string")
	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestLogSQLRejected(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)
	dsID := uuid.New()

	auditor.LogSQLRejected(dsID, "ds_orders", RejectionDetails{
		SQL:     "DROP TABLE ds_orders WHERE name = 'secret'",
		Reason:  "forbidden keyword",
		Keyword: "DROP",
		Source:  "llm",
	})

	logs := recorded.All()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "security_audit", entry.LoggerName)
	assert.Equal(t, "SQL rejected by guard", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, dsID.String(), fields["data_source_id"])
	assert.Equal(t, "DROP", fields["keyword"])
	assert.Equal(t, "critical", fields["severity"])

	event := decodeEvent(t, entry)
	assert.Equal(t, EventSQLRejected, event.EventType)
	assert.Equal(t, dsID, event.DataSourceID)
	assert.Equal(t, "ds_orders", event.Table)

	details, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, details["sql"], "secret", "literals are redacted")
	assert.Equal(t, "llm", details["source"])
}

func TestLogInjectionAttempt(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogInjectionAttempt(uuid.Nil, "t", InjectionDetails{
		Literal: "' OR '1'='1", Fingerprint: "s&sos", Origin: "fallback_filter",
	})

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	assert.Equal(t, "s&sos", logs[0].ContextMap()["fingerprint"])
	assert.Equal(t, EventSQLInjectionAttempt, decodeEvent(t, logs[0]).EventType)
}

func TestLogQueryExecution(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogQueryExecution(uuid.New(), "t", ExecutionDetails{
		SQL: `SELECT COUNT(*) FROM "t"`, Source: "fallback", RowCount: 1, DurationMs: 12,
	})

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.InfoLevel, logs[0].Level)
	fields := logs[0].ContextMap()
	assert.Equal(t, int64(1), fields["row_count"])
	assert.Equal(t, int64(12), fields["duration_ms"])
	assert.Equal(t, "fallback", fields["source"])
}

func TestLogTransformationOutcome(t *testing.T) {
	tests := []struct {
		verdict      models.Verdict
		wantLevel    zapcore.Level
		wantSeverity string
	}{
		{models.VerdictPass, zapcore.InfoLevel, "info"},
		{models.VerdictWarn, zapcore.InfoLevel, "warning"},
		{models.VerdictFail, zapcore.WarnLevel, "warning"},
	}

	for _, tt := range tests {
		t.Run(string(tt.verdict), func(t *testing.T) {
			logger, recorded := setupTestLogger(t)
			auditor := NewSecurityAuditor(logger)

			auditor.LogTransformationOutcome(uuid.New(), "t", models.TransformationOutcome{
				Column: "Order Date", TargetType: "DATE", NullPercentageAfter: 85, Verdict: tt.verdict,
			})

			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantLevel, logs[0].Level)
			fields := logs[0].ContextMap()
			assert.Equal(t, tt.wantSeverity, fields["severity"])
			assert.Equal(t, string(tt.verdict), fields["verdict"])
			assert.Equal(t, 85.0, fields["null_pct_after"])
		})
	}
}

func TestNewSecurityAuditor_NilLogger(t *testing.T) {
	auditor := NewSecurityAuditor(nil)
	assert.NotPanics(t, func() {
		auditor.LogSQLRejected(uuid.New(), "t", RejectionDetails{SQL: "DELETE FROM t"})
	})
}
