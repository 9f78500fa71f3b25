package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/solvergate/solvergate/internal/governor"
)

// SolveTool is the governed wrapper around one solver tool class. All
// nine optimization tools share this handler: the per-tool behavior
// (deadline, memory estimate, backend) is resolved by name through the
// governor, which is the only component that calls the solver.
type SolveTool struct {
	name        string
	description string
	gov         *governor.Governor
}

// NewSolveTool creates the governed tool named name.
func NewSolveTool(name, description string, gov *governor.Governor) *SolveTool {
	return &SolveTool{name: name, description: description, gov: gov}
}

// Definition returns the MCP tool definition for registration.
func (t *SolveTool) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription(t.description),
		mcp.WithObject("problem",
			mcp.Required(),
			mcp.Description("The problem definition. See validate_optimization_input for the accepted shape."),
		),
	)
}

// Handle runs one governed invocation and maps its outcome to a tool
// result. Rejections, solver failures and timeouts are structured error
// results, never protocol errors; only a missing budget entry (a
// deployment bug) surfaces as one.
func (t *SolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := problemPayload(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome := t.gov.Run(ctx, t.name, payload)
	switch outcome.Kind {
	case governor.KindCompleted:
		return jsonResult(outcome.Result)

	case governor.KindRejected:
		switch outcome.Reason {
		case governor.RejectMemoryExceeded:
			return structuredError("memory_exceeded",
				"request rejected: the memory budget cannot accommodate this solve right now; retry later or reduce load"), nil
		case governor.RejectConcurrencyLimit:
			return structuredError("concurrency_limit_exceeded",
				"request rejected: all solver slots are busy; retry later"), nil
		case governor.RejectRateLimited:
			return structuredError("rate_limited",
				"request rejected: the request rate limit was hit; slow down and retry"), nil
		default:
			return structuredError("rejected", "request rejected"), nil
		}

	case governor.KindTimedOut:
		return structuredError("timed_out",
			fmt.Sprintf("the solve exceeded its deadline and was abandoned (request %s)", outcome.RequestID)), nil

	case governor.KindFailed:
		return structuredError("solver_error", outcome.Err.Error()), nil

	default: // KindConfigError
		return nil, fmt.Errorf("tool %s: %w", t.name, outcome.Err)
	}
}

// SolverDescriptions maps each solver tool name to its user-facing
// description, in registration order.
func SolverDescriptions() map[string]string {
	return map[string]string{
		"solve_linear_program": "Solve a continuous linear program: maximize or minimize a linear objective " +
			"over variables with bounds, subject to linear constraints (<=, >=, =).",
		"solve_integer_program": "Solve a mixed-integer linear program via branch and bound. Variables may be " +
			"continuous, integer, or binary.",
		"solve_assignment_problem": "Assign workers to tasks one-to-one at minimum total cost (or maximum total " +
			"value) given a cost matrix.",
		"solve_transportation_problem": "Plan minimum-cost shipments from suppliers to consumers subject to supply " +
			"capacities and demand requirements.",
		"solve_knapsack_problem": "Pick items maximizing total value within an integral weight capacity; supports " +
			"bounded quantities per item.",
		"solve_routing_problem": "Build a short single-vehicle tour over locations (euclidean coordinates or an " +
			"explicit distance matrix) using nearest-neighbor plus 2-opt.",
		"solve_job_scheduling": "Schedule jobs on identical parallel machines minimizing makespan with the " +
			"longest-processing-time rule.",
		"optimize_portfolio": "Allocate a budget across assets maximizing expected return (optionally under a risk " +
			"ceiling) or minimizing risk, with per-asset and per-sector limits.",
		"optimize_production": "Choose production quantities maximizing profit subject to resource capacities and " +
			"demand bounds.",
	}
}
