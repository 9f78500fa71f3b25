package tools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ValidateTool implements validate_optimization_input: it runs the exact
// parse-and-check code the solvers use, without solving. Cheap enough to
// stay outside the governor.
type ValidateTool struct {
	validators map[string]func(json.RawMessage) error
}

// NewValidateTool creates the validation tool over the given per-type
// validators (solver.Validators in production).
func NewValidateTool(validators map[string]func(json.RawMessage) error) *ValidateTool {
	return &ValidateTool{validators: validators}
}

func (t *ValidateTool) problemTypes() []string {
	types := make([]string, 0, len(t.validators))
	for name := range t.validators {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Definition returns the MCP tool definition for registration.
func (t *ValidateTool) Definition() mcp.Tool {
	return mcp.NewTool("validate_optimization_input",
		mcp.WithDescription(
			"Check a problem definition against the schema of a problem type without solving it. "+
				"Problem types: "+strings.Join(t.problemTypes(), ", ")+".",
		),
		mcp.WithString("problem_type",
			mcp.Required(),
			mcp.Description("The problem type to validate against."),
		),
		mcp.WithObject("problem",
			mcp.Required(),
			mcp.Description("The problem definition to validate."),
		),
	)
}

type validationResult struct {
	Valid       bool   `json:"valid"`
	ProblemType string `json:"problem_type"`
	Error       string `json:"error,omitempty"`
}

// Handle processes the validate_optimization_input tool call.
func (t *ValidateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	problemType := req.GetString("problem_type", "")
	validate, ok := t.validators[problemType]
	if !ok {
		return mcp.NewToolResultError(
			"unknown problem_type " + problemType + "; expected one of: " + strings.Join(t.problemTypes(), ", "),
		), nil
	}

	payload, err := problemPayload(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := validationResult{Valid: true, ProblemType: problemType}
	if err := validate(payload); err != nil {
		result.Valid = false
		result.Error = err.Error()
	}
	return jsonResult(result)
}
