// Package solver implements the optimization backends exposed as MCP
// tools: linear and integer programming on gonum's simplex engine, plus
// combinatorial solvers (assignment, knapsack, routing, scheduling) where
// the problem is not expressible as a small LP.
//
// The governor knows nothing about individual solvers; it invokes them
// through the Func contract and treats every returned error as a domain
// failure, never a crash.
package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Func is the contract between the governor and a solver backend. The
// context carries the invocation deadline; long-running solvers poll it
// at iteration boundaries.
type Func func(ctx context.Context, payload json.RawMessage) (any, error)

// Domain errors. These surface to the caller as structured failures with
// the solver's message; they never terminate the process.
var (
	ErrInfeasible = errors.New("problem is infeasible")
	ErrUnbounded  = errors.New("problem is unbounded")
)

// InputError marks a malformed or inconsistent problem definition.
type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

func inputErrf(format string, args ...any) error {
	return &InputError{msg: fmt.Sprintf(format, args...)}
}

// Solution status values, mirroring the wire vocabulary callers see.
const (
	StatusOptimal    = "optimal"
	StatusFeasible   = "feasible"
	StatusInfeasible = "infeasible"
	StatusUnbounded  = "unbounded"
)

// Registry maps tool names to solver backends.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register adds a backend under the given tool name, replacing any
// previous registration.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Invoke runs the named backend. An unregistered name is a programming
// error at the call site, reported as a plain error.
func (r *Registry) Invoke(ctx context.Context, name string, payload json.RawMessage) (any, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("no solver registered for tool %q", name)
	}
	return fn(ctx, payload)
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Standard returns a registry with every built-in solver registered under
// its public tool name.
func Standard() *Registry {
	r := NewRegistry()
	r.Register("solve_linear_program", SolveLinearProgram)
	r.Register("solve_integer_program", SolveIntegerProgram)
	r.Register("solve_assignment_problem", SolveAssignment)
	r.Register("solve_transportation_problem", SolveTransportation)
	r.Register("solve_knapsack_problem", SolveKnapsack)
	r.Register("solve_routing_problem", SolveRouting)
	r.Register("solve_job_scheduling", SolveJobScheduling)
	r.Register("optimize_portfolio", OptimizePortfolio)
	r.Register("optimize_production", OptimizeProduction)
	return r
}

// Validators maps problem types accepted by validate_optimization_input
// to their parse-and-check functions. Validation shares the exact parsing
// code the solvers use, so "valid" always means "solvable input shape".
func Validators() map[string]func(json.RawMessage) error {
	return map[string]func(json.RawMessage) error{
		"linear_program":  func(p json.RawMessage) error { _, err := parseLinearProgram(p); return err },
		"integer_program": func(p json.RawMessage) error { _, err := parseLinearProgram(p); return err },
		"assignment":      func(p json.RawMessage) error { _, err := parseAssignment(p); return err },
		"transportation":  func(p json.RawMessage) error { _, err := parseTransportation(p); return err },
		"knapsack":        func(p json.RawMessage) error { _, err := parseKnapsack(p); return err },
		"routing":         func(p json.RawMessage) error { _, err := parseRouting(p); return err },
		"job_scheduling":  func(p json.RawMessage) error { _, err := parseJobScheduling(p); return err },
		"portfolio":       func(p json.RawMessage) error { _, err := parsePortfolio(p); return err },
		"production":      func(p json.RawMessage) error { _, err := parseProduction(p); return err },
	}
}
