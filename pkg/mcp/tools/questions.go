// Package tools provides the MCP tools of ekaya-nlsql.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/services"
)

// QuestionToolDeps contains dependencies for the question tools.
type QuestionToolDeps struct {
	Pipeline services.QuestionPipeline
	Logger   *zap.Logger
}

// RegisterQuestionTools registers ask_question, describe_data_source and
// validate_transformation.
func RegisterQuestionTools(s *server.MCPServer, deps *QuestionToolDeps) {
	registerAskQuestionTool(s, deps)
	registerDescribeDataSourceTool(s, deps)
	registerValidateTransformationTool(s, deps)
}

type askQuestionResult struct {
	ID        uuid.UUID               `json:"id"`
	Table     string                  `json:"table"`
	SQL       string                  `json:"sql"`
	Source    models.SQLSource        `json:"source"`
	Attempts  int                     `json:"attempts"`
	Columns   []datasource.ColumnInfo `json:"columns"`
	Rows      []map[string]any        `json:"rows"`
	RowCount  int                     `json:"row_count"`
	Warnings  []string                `json:"warnings,omitempty"`
	ElapsedMs int64                   `json:"elapsed_ms"`
}

func registerAskQuestionTool(s *server.MCPServer, deps *QuestionToolDeps) {
	tool := mcp.NewTool(
		"ask_question",
		mcp.WithDescription(
			"Answer a natural-language question about a registered data source. "+
				"The question is compiled to a single read-only SELECT against the data source's table, "+
				"executed, and returned with the SQL that produced it. "+
				"Example: ask_question(data_source_id='...', question='What are total sales in the South region?')",
		),
		mcp.WithString(
			"data_source_id",
			mcp.Required(),
			mcp.Description("UUID of the data source to query"),
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, in plain language"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := requireDataSourceID(req)
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		question = trimString(question)
		if question == "" {
			return NewErrorResult(CodeInvalidParameters, "question must not be empty"), nil
		}

		q, err := deps.Pipeline.Ask(ctx, id, question)
		if err != nil {
			deps.Logger.Warn("ask_question failed",
				zap.String("data_source_id", id.String()),
				zap.Error(err))
			return toolError(err)
		}

		result := askQuestionResult{
			ID:        q.ID,
			Table:     q.TableName,
			SQL:       q.FinalSQL,
			Source:    q.Source,
			Attempts:  q.Attempts,
			Warnings:  q.Warnings,
			ElapsedMs: q.Duration.Milliseconds(),
		}
		if q.Result != nil {
			result.Columns = q.Result.Columns
			result.Rows = q.Result.Rows
			result.RowCount = q.Result.RowCount
		}
		return jsonResult(result)
	})
}

type describeColumn struct {
	Name         string                  `json:"name"`
	Type         string                  `json:"type"`
	Role         models.SemanticRole     `json:"role"`
	Hint         models.RelationshipHint `json:"hint,omitempty"`
	Nullable     bool                    `json:"nullable"`
	NullPercent  float64                 `json:"null_percentage"`
	SampleValues []string                `json:"sample_values,omitempty"`
}

type describeResult struct {
	DataSourceID uuid.UUID         `json:"data_source_id"`
	Name         string            `json:"name"`
	Backend      string            `json:"backend"`
	Table        string            `json:"table"`
	RowCount     int64             `json:"row_count"`
	Columns      []describeColumn  `json:"columns"`
	Aliases      map[string]string `json:"aliases"`
}

func registerDescribeDataSourceTool(s *server.MCPServer, deps *QuestionToolDeps) {
	tool := mcp.NewTool(
		"describe_data_source",
		mcp.WithDescription(
			"Describe the table behind a data source: its physical name, columns with declared types and "+
				"semantic roles (identifier, temporal, monetary, categorical...), sample values and the "+
				"semantic aliases used when compiling questions.",
		),
		mcp.WithString(
			"data_source_id",
			mcp.Required(),
			mcp.Description("UUID of the data source to describe"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := requireDataSourceID(req)
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		d, err := deps.Pipeline.Describe(ctx, id)
		if err != nil {
			return toolError(err)
		}

		result := describeResult{
			DataSourceID: d.DataSource.ID,
			Name:         d.DataSource.Name,
			Backend:      d.DataSource.BackendType,
			Table:        d.Table,
			RowCount:     d.Schema.RowCount,
			Aliases:      d.Aliases,
		}
		for _, c := range d.Schema.Columns {
			result.Columns = append(result.Columns, describeColumn{
				Name:         c.Name,
				Type:         c.DeclaredType,
				Role:         c.Role,
				Hint:         c.Hint,
				Nullable:     c.Nullable,
				NullPercent:  c.NullPercentage,
				SampleValues: c.SampleValues,
			})
		}
		return jsonResult(result)
	})
}

func registerValidateTransformationTool(s *server.MCPServer, deps *QuestionToolDeps) {
	tool := mcp.NewTool(
		"validate_transformation",
		mcp.WithDescription(
			"Judge the outcome of a column type conversion run against a data source. "+
				"Each result names the column, its source and target types and the null percentage after "+
				"conversion (optionally before). Returns a pass/warn/fail verdict per column and overall. "+
				"An overall fail means the conversion should not be applied without an explicit override.",
		),
		mcp.WithString(
			"data_source_id",
			mcp.Required(),
			mcp.Description("UUID of the data source whose table was converted"),
		),
		mcp.WithArray(
			"results",
			mcp.Required(),
			mcp.Description("Conversion results: objects with column, source_type, target_type, null_percentage and optional null_percentage_before"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := requireDataSourceID(req)
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		var results []models.TransformationResult
		present, err := decodeArrayParam(req, "results", &results)
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		if !present || len(results) == 0 {
			return NewErrorResult(CodeInvalidParameters, "results must contain at least one column"), nil
		}
		for i, r := range results {
			if trimString(r.Column) == "" {
				return NewErrorResult(CodeInvalidParameters, fmt.Sprintf("results[%d].column is required", i)), nil
			}
			if r.NullPercentage < 0 || r.NullPercentage > 100 {
				return NewErrorResult(CodeInvalidParameters, fmt.Sprintf("results[%d].null_percentage must be between 0 and 100", i)), nil
			}
		}

		report, err := deps.Pipeline.ValidateTransformation(ctx, id, results)
		if errors.Is(err, apperrors.ErrValidationFail) && report != nil {
			return NewErrorResultWithDetails(CodeValidationFailed, err.Error(), report), nil
		}
		if err != nil {
			return toolError(err)
		}
		return jsonResult(report)
	})
}
