package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/logging"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/mcp/tools"
)

// Security levels attached to tool call log entries.
const (
	SecurityNormal   = "normal"
	SecurityWarning  = "warning"
	SecurityCritical = "critical"
)

// maxParamSize bounds string parameters written to the audit log.
const maxParamSize = 2048

// maxPreviewSize bounds the result preview written to the audit log.
const maxPreviewSize = 200

// AuditLogger writes one structured log entry per MCP tool call.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP tool calls.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	duration := a.elapsed(id)
	summary := summarizeResult(result)
	level := classifyResult(summary)

	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Duration("duration", duration),
		zap.Bool("is_error", summary.IsError),
		zap.String("security_level", level),
	}
	if summary.Code != "" {
		fields = append(fields, zap.String("code", summary.Code))
	}
	if summary.RowCount != nil {
		fields = append(fields, zap.Int("row_count", *summary.RowCount))
	}
	if summary.Preview != "" {
		fields = append(fields, zap.String("preview", summary.Preview))
	}

	switch level {
	case SecurityCritical:
		a.logger.Warn("Tool call rejected", fields...)
	default:
		a.logger.Info("Tool call", fields...)
	}
}

func (a *AuditLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	a.logger.Error("Tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Duration("duration", a.elapsed(id)),
		zap.String("error", logging.SanitizeError(err)))
}

func (a *AuditLogger) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

// sanitizeParams prepares request parameters for the audit log. Long strings
// are truncated and literals in SQL-like parameters are masked.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	switch val := value.(type) {
	case string:
		if isSQLParam(key) {
			return logging.SanitizeQuery(val)
		}
		return logging.TruncateString(val, maxParamSize)
	case map[string]any:
		return sanitizeParams(val)
	case []any:
		return fmt.Sprintf("[%d items]", len(val))
	default:
		return value
	}
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql")
}

type resultSummary struct {
	IsError  bool
	Code     string
	RowCount *int
	Preview  string
}

// summarizeResult extracts the audit-relevant parts of a tool result.
func summarizeResult(result *mcplib.CallToolResult) resultSummary {
	var summary resultSummary
	if result == nil {
		return summary
	}
	summary.IsError = result.IsError

	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		var partial struct {
			Code     string `json:"code"`
			RowCount *int   `json:"row_count"`
		}
		if err := json.Unmarshal([]byte(tc.Text), &partial); err == nil {
			summary.RowCount = partial.RowCount
			if result.IsError {
				summary.Code = partial.Code
			}
		}
		if result.IsError {
			summary.Preview = logging.TruncateString(tc.Text, maxPreviewSize)
		}
		break
	}
	return summary
}

// classifyResult assigns a security level to a tool result. Guard rejections
// are critical; backend and model failures are warnings.
func classifyResult(summary resultSummary) string {
	switch summary.Code {
	case tools.CodeSQLRejected:
		return SecurityCritical
	case tools.CodeBackendUnreachable, tools.CodeLLMFailure:
		return SecurityWarning
	}
	return SecurityNormal
}
