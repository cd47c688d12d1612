package tools

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestTrimString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  hello  ", "hello"},
		{"\t\nhello\n\t", "hello"},
		{"", ""},
		{"   ", ""},
		{"hello world", "hello world"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, trimString(tt.input))
	}
}

func TestRequireDataSourceID(t *testing.T) {
	id := uuid.New()

	got, err := requireDataSourceID(newRequest(map[string]any{"data_source_id": " " + id.String() + " "}))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = requireDataSourceID(newRequest(map[string]any{"data_source_id": "ds_orders"}))
	assert.ErrorContains(t, err, "not a valid UUID")

	_, err = requireDataSourceID(newRequest(map[string]any{}))
	assert.Error(t, err)
}

func TestDecodeArrayParam(t *testing.T) {
	type item struct {
		Column string `json:"column"`
	}

	var items []item
	present, err := decodeArrayParam(newRequest(map[string]any{
		"results": []any{map[string]any{"column": "Sales"}, map[string]any{"column": "Region"}},
	}), "results", &items)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []item{{"Sales"}, {"Region"}}, items)

	present, err = decodeArrayParam(newRequest(map[string]any{}), "results", &items)
	assert.NoError(t, err)
	assert.False(t, present)

	present, err = decodeArrayParam(newRequest(map[string]any{"results": "Sales"}), "results", &items)
	assert.True(t, present)
	assert.ErrorContains(t, err, "must be an array")
}
