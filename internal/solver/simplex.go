package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Wire shapes for linear programs. Variables default to continuous with a
// lower bound of zero, matching the usual LP modeling convention; free
// variables need an explicit negative lower bound.

type lpObjective struct {
	Sense        string             `json:"sense"`
	Coefficients map[string]float64 `json:"coefficients"`
}

type lpVariable struct {
	Type  string   `json:"type,omitempty"` // continuous (default), integer, binary
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

type lpConstraint struct {
	Name       string             `json:"name,omitempty"`
	Expression map[string]float64 `json:"expression"`
	Operator   string             `json:"operator"` // <=, >=, =
	RHS        float64            `json:"rhs"`
}

type linearProgram struct {
	Objective   lpObjective           `json:"objective"`
	Variables   map[string]lpVariable `json:"variables"`
	Constraints []lpConstraint        `json:"constraints"`
}

func (v lpVariable) bounds() (lo, up float64) {
	if v.Type == "binary" {
		return 0, 1
	}
	lo, up = 0, math.Inf(1)
	if v.Lower != nil {
		lo = *v.Lower
	}
	if v.Upper != nil {
		up = *v.Upper
	}
	return lo, up
}

func parseLinearProgram(payload json.RawMessage) (*linearProgram, error) {
	var p linearProgram
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, inputErrf("parsing linear program: %v", err)
	}
	if p.Objective.Sense != "maximize" && p.Objective.Sense != "minimize" {
		return nil, inputErrf("objective sense must be 'maximize' or 'minimize', got %q", p.Objective.Sense)
	}
	if len(p.Variables) == 0 {
		return nil, inputErrf("at least one variable is required")
	}
	for name, v := range p.Variables {
		switch v.Type {
		case "", "continuous", "integer", "binary":
		default:
			return nil, inputErrf("variable %q: unknown type %q", name, v.Type)
		}
		lo, up := v.bounds()
		if lo > up {
			return nil, inputErrf("variable %q: lower bound %v exceeds upper bound %v", name, lo, up)
		}
		if math.IsInf(lo, -1) {
			return nil, inputErrf("variable %q: lower bound must be finite", name)
		}
	}
	for name := range p.Objective.Coefficients {
		if _, ok := p.Variables[name]; !ok {
			return nil, inputErrf("objective references unknown variable %q", name)
		}
	}
	for i, c := range p.Constraints {
		if len(c.Expression) == 0 {
			return nil, inputErrf("constraint %d: empty expression", i)
		}
		switch c.Operator {
		case "<=", ">=", "=", "==":
		default:
			return nil, inputErrf("constraint %d: operator must be <=, >= or =, got %q", i, c.Operator)
		}
		for name := range c.Expression {
			if _, ok := p.Variables[name]; !ok {
				return nil, inputErrf("constraint %d references unknown variable %q", i, name)
			}
		}
	}
	return &p, nil
}

// integerNames returns the variables that must take integral values.
func (p *linearProgram) integerNames() []string {
	var names []string
	for name, v := range p.Variables {
		if v.Type == "integer" || v.Type == "binary" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// solveContinuous solves the LP with the given per-variable bounds
// (callers pass the natural bounds, or tightened ones when branching).
// It converts the general form to standard form (shifted variables,
// slack columns, nonnegative right-hand side) and hands the result to
// gonum's simplex.
func solveContinuous(p *linearProgram, lower, upper map[string]float64) (float64, map[string]float64, error) {
	names := make([]string, 0, len(p.Variables))
	for name := range p.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	lo := make([]float64, len(names))
	up := make([]float64, len(names))
	for i, name := range names {
		index[name] = i
		lo[i] = lower[name]
		up[i] = upper[name]
		if lo[i] > up[i] {
			return 0, nil, ErrInfeasible
		}
	}

	// Rows: one per constraint, plus one per finite upper bound.
	type row struct {
		coeffs []float64 // length len(names)
		slack  float64   // +1 for <=, -1 for >=, 0 for =
		rhs    float64
	}
	var rows []row

	for _, c := range p.Constraints {
		r := row{coeffs: make([]float64, len(names)), rhs: c.RHS}
		for name, coeff := range c.Expression {
			i := index[name]
			r.coeffs[i] = coeff
			r.rhs -= coeff * lo[i] // substitute x = lo + y
		}
		switch c.Operator {
		case "<=":
			r.slack = 1
		case ">=":
			r.slack = -1
		}
		rows = append(rows, r)
	}
	for i := range names {
		if math.IsInf(up[i], 1) {
			continue
		}
		r := row{coeffs: make([]float64, len(names)), slack: 1, rhs: up[i] - lo[i]}
		r.coeffs[i] = 1
		rows = append(rows, r)
	}

	if len(rows) == 0 {
		// Unconstrained: each variable sits at whichever bound helps;
		// an improving direction with no finite bound is unbounded.
		values := make(map[string]float64, len(names))
		objective := 0.0
		for _, name := range names {
			i := index[name]
			coeff := p.Objective.Coefficients[name]
			val := lo[i]
			improving := (p.Objective.Sense == "maximize" && coeff > 0) ||
				(p.Objective.Sense == "minimize" && coeff < 0)
			if improving {
				if math.IsInf(up[i], 1) {
					return 0, nil, ErrUnbounded
				}
				val = up[i]
			}
			values[name] = val
			objective += coeff * val
		}
		return objective, values, nil
	}

	nSlack := 0
	for _, r := range rows {
		if r.slack != 0 {
			nSlack++
		}
	}
	nCols := len(names) + nSlack

	a := mat.NewDense(len(rows), nCols, nil)
	b := make([]float64, len(rows))
	slackCol := len(names)
	for ri, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1 // keep b nonnegative
		}
		for ci, coeff := range r.coeffs {
			a.Set(ri, ci, sign*coeff)
		}
		if r.slack != 0 {
			a.Set(ri, slackCol, sign*r.slack)
			slackCol++
		}
		b[ri] = sign * r.rhs
	}

	c := make([]float64, nCols)
	constant := 0.0
	for name, coeff := range p.Objective.Coefficients {
		i := index[name]
		constant += coeff * lo[i]
		if p.Objective.Sense == "maximize" {
			c[i] = -coeff
		} else {
			c[i] = coeff
		}
	}

	optF, optX, err := lp.Simplex(c, a, b, 1e-10, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return 0, nil, ErrInfeasible
		case errors.Is(err, lp.ErrUnbounded):
			return 0, nil, ErrUnbounded
		default:
			return 0, nil, fmt.Errorf("simplex: %w", err)
		}
	}

	values := make(map[string]float64, len(names))
	for _, name := range names {
		values[name] = lo[index[name]] + optX[index[name]]
	}
	objective := constant + optF
	if p.Objective.Sense == "maximize" {
		objective = constant - optF
	}
	return objective, values, nil
}

func naturalBounds(p *linearProgram) (lower, upper map[string]float64) {
	lower = make(map[string]float64, len(p.Variables))
	upper = make(map[string]float64, len(p.Variables))
	for name, v := range p.Variables {
		lower[name], upper[name] = v.bounds()
	}
	return lower, upper
}

// lpSolution is the common result shape for the LP-backed tools.
type lpSolution struct {
	Status         string             `json:"status"`
	ObjectiveValue float64            `json:"objective_value"`
	Variables      map[string]float64 `json:"variables"`
}

// SolveLinearProgram solves a continuous linear program.
func SolveLinearProgram(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parseLinearProgram(payload)
	if err != nil {
		return nil, err
	}
	if names := p.integerNames(); len(names) > 0 {
		return nil, inputErrf("variables %v are integral; use solve_integer_program", names)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower, upper := naturalBounds(p)
	objective, values, err := solveContinuous(p, lower, upper)
	if err != nil {
		return nil, err
	}
	return &lpSolution{Status: StatusOptimal, ObjectiveValue: objective, Variables: values}, nil
}
