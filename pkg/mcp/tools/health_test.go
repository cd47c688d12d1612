package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthTool(t *testing.T) {
	tests := []struct {
		name     string
		backends []string
		llm      bool
		status   string
	}{
		{name: "configured", backends: []string{"postgres", "duckdb"}, llm: true, status: "ok"},
		{name: "no backends", backends: nil, llm: false, status: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
			RegisterHealthTool(s, `1.2.3-"beta"`, tt.backends, tt.llm)

			resp := callTool(t, s, "health", nil)
			require.False(t, resp.IsError, resp.Text)

			var health healthResult
			require.NoError(t, json.Unmarshal([]byte(resp.Text), &health))
			assert.Equal(t, tt.status, health.Status)
			assert.Equal(t, `1.2.3-"beta"`, health.Version)
			assert.Equal(t, tt.llm, health.LLM)
			assert.Len(t, health.Backends, len(tt.backends))
		})
	}
}

func TestHealthTool_SortsBackends(t *testing.T) {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	backends := []string{"sqlserver", "duckdb", "postgres"}
	RegisterHealthTool(s, "dev", backends, false)

	var health healthResult
	require.NoError(t, json.Unmarshal([]byte(callTool(t, s, "health", nil).Text), &health))
	assert.Equal(t, []string{"duckdb", "postgres", "sqlserver"}, health.Backends)
	assert.Equal(t, "sqlserver", backends[0], "caller's slice is not reordered")
}
