package tools

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Backends []string `json:"backends"`
	LLM      bool     `json:"llm"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server version, the configured backend types and
// whether a language model is available.
func RegisterHealthTool(s *server.MCPServer, version string, backends []string, llmConfigured bool) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and configured backends"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	names := append([]string{}, backends...)
	sort.Strings(names)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := "ok"
		if len(names) == 0 {
			status = "degraded"
		}
		return jsonResult(healthResult{
			Status:   status,
			Version:  version,
			Backends: names,
			LLM:      llmConfigured,
		})
	})
}
