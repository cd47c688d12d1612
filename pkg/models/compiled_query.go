package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

// SQLSource records which path produced the final SQL.
type SQLSource string

const (
	SQLSourceLLM      SQLSource = "llm"
	SQLSourceLLMRetry SQLSource = "llm_retry"
	SQLSourceFallback SQLSource = "fallback"
)

// CompiledQuery is the full record of one question's compilation and execution.
type CompiledQuery struct {
	ID             uuid.UUID                        `json:"id"`
	Question       string                           `json:"question"`
	TableName      string                           `json:"table_name"`
	RenderedPrompt string                           `json:"-"`
	RawLLMSQL      string                           `json:"raw_llm_sql,omitempty"`
	RewrittenSQL   string                           `json:"rewritten_sql,omitempty"`
	FinalSQL       string                           `json:"final_sql"`
	Source         SQLSource                        `json:"source"`
	Attempts       int                              `json:"attempts"`
	Result         *datasource.QueryExecutionResult `json:"result,omitempty"`
	Err            error                            `json:"-"`
	Warnings       []string                         `json:"warnings,omitempty"`
	Duration       time.Duration                    `json:"duration"`
}

// Success reports whether the query executed and produced a result.
func (q *CompiledQuery) Success() bool {
	return q != nil && q.Err == nil && q.Result != nil
}
