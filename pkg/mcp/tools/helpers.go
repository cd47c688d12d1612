package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// requireDataSourceID reads and parses the required data_source_id argument.
func requireDataSourceID(req mcp.CallToolRequest) (uuid.UUID, error) {
	raw, err := req.RequireString("data_source_id")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(trimString(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("data_source_id %q is not a valid UUID", raw)
	}
	return id, nil
}

// decodeArrayParam decodes an array argument into out by round-tripping it
// through JSON. It returns false when the argument is absent.
func decodeArrayParam(req mcp.CallToolRequest, key string, out any) (bool, error) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return false, nil
	}
	val, ok := args[key]
	if !ok || val == nil {
		return false, nil
	}
	if _, isArray := val.([]any); !isArray {
		return true, fmt.Errorf("%s must be an array", key)
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return true, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("invalid %s: %w", key, err)
	}
	return true, nil
}

// jsonResult marshals v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
