package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solvergate/solvergate/internal/health"
)

// HealthTool exposes the health reporter as the health_check MCP tool.
// It is read-only, ungoverned, and callable at arbitrary frequency.
type HealthTool struct {
	reporter *health.Reporter
}

// NewHealthTool creates the health_check tool.
func NewHealthTool(reporter *health.Reporter) *HealthTool {
	return &HealthTool{reporter: reporter}
}

// Definition returns the MCP tool definition for registration.
func (t *HealthTool) Definition() mcp.Tool {
	return mcp.NewTool("health_check",
		mcp.WithDescription(
			"Report server health: ok or degraded, active and maximum concurrent requests, "+
				"and memory usage against the configured budget.",
		),
	)
}

// Handle processes the health_check tool call. It never fails.
func (t *HealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.reporter.Report())
}
