package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solvergate/solvergate/internal/config"
)

// InfoTool implements get_server_info: name, version, the available
// solver tools and their budgets.
type InfoTool struct {
	version string
	budget  *config.ResourceBudget
	tools   []string
}

// NewInfoTool creates the get_server_info tool.
func NewInfoTool(version string, budget *config.ResourceBudget, toolNames []string) *InfoTool {
	return &InfoTool{version: version, budget: budget, tools: toolNames}
}

// Definition returns the MCP tool definition for registration.
func (t *InfoTool) Definition() mcp.Tool {
	return mcp.NewTool("get_server_info",
		mcp.WithDescription("Describe this server: version, available solver tools, and resource limits."),
	)
}

type toolInfo struct {
	TimeoutSeconds    float64 `json:"timeout_seconds"`
	EstimatedMemoryMB int     `json:"estimated_memory_mb"`
}

type serverInfo struct {
	Name                  string              `json:"name"`
	Version               string              `json:"version"`
	MaxConcurrentRequests int                 `json:"max_concurrent_requests"`
	MaxMemoryMB           int                 `json:"max_memory_mb"`
	Tools                 map[string]toolInfo `json:"tools"`
}

// Handle processes the get_server_info tool call.
func (t *InfoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := serverInfo{
		Name:                  "solvergate",
		Version:               t.version,
		MaxConcurrentRequests: t.budget.MaxConcurrentRequests,
		MaxMemoryMB:           t.budget.MaxMemoryMB,
		Tools:                 make(map[string]toolInfo, len(t.tools)),
	}
	for _, name := range t.tools {
		if tb, err := t.budget.Tool(name); err == nil {
			info.Tools[name] = toolInfo{
				TimeoutSeconds:    tb.Timeout.Seconds(),
				EstimatedMemoryMB: tb.EstimatedMemoryMB,
			}
		}
	}
	return jsonResult(info)
}
