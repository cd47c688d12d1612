package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/mcp/tools"
)

func newObservedAuditLogger() (*AuditLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return NewAuditLogger(zap.New(core)), logs
}

func callToolRequest(name string, args map[string]any) *mcplib.CallToolRequest {
	req := &mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestAuditLogger_LogsToolCallsThroughHooks(t *testing.T) {
	audit, logs := newObservedAuditLogger()
	s := NewServer("test-server", "1.0.0", audit, zap.NewNop())
	s.RegisterTool(mcplib.NewTool("ask_question"), func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return mcplib.NewToolResultText(`{"row_count":3}`), nil
	})

	request := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ask_question","arguments":{"question":"how many orders?"}}}`
	s.MCP().HandleMessage(context.Background(), []byte(request))

	entries := logs.FilterMessage("Tool call").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "mcp-audit", entries[0].LoggerName)
	assert.Equal(t, "ask_question", fields["tool"])
	assert.Equal(t, false, fields["is_error"])
	assert.Equal(t, int64(3), fields["row_count"])
	assert.Equal(t, SecurityNormal, fields["security_level"])
}

func TestAuditLogger_RejectedSQLIsCritical(t *testing.T) {
	audit, logs := newObservedAuditLogger()
	result := tools.NewErrorResult(tools.CodeSQLRejected, "sql rejected: stacked statements")

	audit.beforeCallTool(context.Background(), 1, nil)
	audit.afterCallTool(context.Background(), 1, callToolRequest("ask_question", map[string]any{"question": "drop it"}), result)

	entries := logs.FilterMessage("Tool call rejected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, SecurityCritical, fields["security_level"])
	assert.Equal(t, tools.CodeSQLRejected, fields["code"])
	assert.Contains(t, fields["preview"], "stacked statements")
}

func TestAuditLogger_OnErrorOnlyForToolCalls(t *testing.T) {
	audit, logs := newObservedAuditLogger()
	req := callToolRequest("describe_data_source", nil)

	audit.onError(context.Background(), 1, mcplib.MethodPing, req, errors.New("ignored"))
	assert.Zero(t, logs.Len())

	audit.onError(context.Background(), 2, mcplib.MethodToolsCall, req, errors.New("dial postgres://admin:hunter2@db:5432/x failed"))
	entries := logs.FilterMessage("Tool call failed").All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap()["error"], "hunter2")
}

func TestClassifyResult(t *testing.T) {
	tests := []struct {
		code     string
		expected string
	}{
		{"", SecurityNormal},
		{tools.CodeSQLRejected, SecurityCritical},
		{tools.CodeBackendUnreachable, SecurityWarning},
		{tools.CodeLLMFailure, SecurityWarning},
		{tools.CodeNotFound, SecurityNormal},
		{tools.CodeExecutionError, SecurityNormal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, classifyResult(resultSummary{Code: tt.code}), tt.code)
	}
}

func TestSanitizeParams(t *testing.T) {
	assert.Nil(t, sanitizeParams(nil))
	assert.Nil(t, sanitizeParams(map[string]any{}))

	long := strings.Repeat("q", maxParamSize+10)
	got := sanitizeParams(map[string]any{
		"question": long,
		"sql":      "SELECT * FROM t WHERE name = 'Claire Gute'",
		"results":  []any{1, 2, 3},
		"limit":    10.0,
		"nested":   map[string]any{"raw_sql": "SELECT 'x'"},
	})

	assert.Len(t, got["question"], maxParamSize+3)
	assert.NotContains(t, got["sql"], "Claire Gute")
	assert.Equal(t, "[3 items]", got["results"])
	assert.Equal(t, 10.0, got["limit"])
	assert.NotContains(t, got["nested"].(map[string]any)["raw_sql"], "'x'")
}

func TestIsSQLParam(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"sql", true},
		{"SQL", true},
		{"query", true},
		{"final_sql", true},
		{"question", false},
		{"data_source_id", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, isSQLParam(tt.key), tt.key)
	}
}

func TestSummarizeResult(t *testing.T) {
	assert.Equal(t, resultSummary{}, summarizeResult(nil))

	ok := summarizeResult(mcplib.NewToolResultText(`{"row_count":12,"rows":[]}`))
	require.NotNil(t, ok.RowCount)
	assert.Equal(t, 12, *ok.RowCount)
	assert.Empty(t, ok.Preview, "successful results are not previewed")

	raw, _ := json.Marshal(tools.ErrorResponse{Error: true, Code: tools.CodeNotFound, Message: strings.Repeat("m", 500)})
	failed := mcplib.NewToolResultText(string(raw))
	failed.IsError = true
	s := summarizeResult(failed)
	assert.True(t, s.IsError)
	assert.Equal(t, tools.CodeNotFound, s.Code)
	assert.Len(t, s.Preview, maxPreviewSize+3)
}
