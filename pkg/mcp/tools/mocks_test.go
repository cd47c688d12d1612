package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/services"
)

// mockPipeline implements services.QuestionPipeline for testing.
type mockPipeline struct {
	AskFunc                    func(ctx context.Context, id uuid.UUID, question string) (*models.CompiledQuery, error)
	DescribeFunc               func(ctx context.Context, id uuid.UUID) (*services.DataSourceDescription, error)
	ValidateTransformationFunc func(ctx context.Context, id uuid.UUID, results []models.TransformationResult) (*models.ValidationReport, error)

	asked []string
}

func (m *mockPipeline) Ask(ctx context.Context, id uuid.UUID, question string) (*models.CompiledQuery, error) {
	m.asked = append(m.asked, question)
	if m.AskFunc != nil {
		return m.AskFunc(ctx, id, question)
	}
	return &models.CompiledQuery{}, nil
}

func (m *mockPipeline) Describe(ctx context.Context, id uuid.UUID) (*services.DataSourceDescription, error) {
	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPipeline) ValidateTransformation(ctx context.Context, id uuid.UUID, results []models.TransformationResult) (*models.ValidationReport, error) {
	if m.ValidateTransformationFunc != nil {
		return m.ValidateTransformationFunc(ctx, id, results)
	}
	return &models.ValidationReport{Overall: models.VerdictPass}, nil
}

func (m *mockPipeline) InvalidateSchema(string, string) {}

var _ services.QuestionPipeline = (*mockPipeline)(nil)

// toolResponse is the decoded tools/call response.
type toolResponse struct {
	IsError bool
	Text    string
}

func newToolServer(p services.QuestionPipeline) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterQuestionTools(s, &QuestionToolDeps{Pipeline: p, Logger: zap.NewNop()})
	return s
}

// callTool sends a tools/call request and returns the first text content.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), request))
	require.NoError(t, err)

	var response struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))
	if response.Error != nil {
		return toolResponse{IsError: true, Text: response.Error.Message}
	}
	require.NotEmpty(t, response.Result.Content)
	return toolResponse{IsError: response.Result.IsError, Text: response.Result.Content[0].Text}
}

func decodeErrorResponse(t *testing.T, text string) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	return resp
}
