// Package tools implements the MCP tool surface of solvergate.
//
// Each tool is a struct holding its dependencies and exposing
// Definition()/Handle() for registration. The solver tools all route
// through the invocation governor; only the cheap read-only tools
// (health, server info, input validation) bypass it.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// jsonResult renders v as an indented JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// structuredError renders an error tool result carrying a stable,
// machine-readable kind alongside the human message.
func structuredError(kind, message string) *mcp.CallToolResult {
	data, _ := json.Marshal(map[string]string{
		"error":   kind,
		"message": message,
	})
	return mcp.NewToolResultError(string(data))
}

// problemPayload extracts the "problem" object argument as raw JSON.
func problemPayload(req mcp.CallToolRequest) (json.RawMessage, error) {
	args := req.GetArguments()
	raw, ok := args["problem"]
	if !ok {
		return nil, fmt.Errorf("'problem' is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding problem: %w", err)
	}
	return data, nil
}
