package mcp

import (
	"context"
	"errors"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Server wraps the mcp-go MCPServer with ekaya-nlsql patterns.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. When audit is non-nil every
// tool call is logged through its hooks.
func NewServer(name, version string, audit *AuditLogger, logger *zap.Logger) *Server {
	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	}
	if audit != nil {
		opts = append(opts, server.WithHooks(audit.Hooks()))
	}

	return &Server{
		mcp:    server.NewMCPServer(name, version, opts...),
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

// ServeStdio serves JSON-RPC over the given streams until ctx is cancelled
// or stdin is closed.
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))

	s.logger.Info("Serving MCP over stdio")
	err := stdio.Listen(ctx, stdin, stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Info("MCP stdio server stopped")
	return nil
}
