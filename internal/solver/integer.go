package solver

import (
	"context"
	"encoding/json"
	"math"
)

// Branch & bound over the simplex relaxation. Node count is capped so a
// pathological model fails loudly instead of spinning until the governor's
// deadline; the context is polled at every node so cancellation lands at
// the next branch, not at process exit.
const maxBranchNodes = 50000

const integralityTol = 1e-6

type milpSolution struct {
	Status         string             `json:"status"`
	ObjectiveValue float64            `json:"objective_value"`
	Variables      map[string]float64 `json:"variables"`
	NodesExplored  int                `json:"nodes_explored"`
}

// SolveIntegerProgram solves a mixed-integer linear program.
func SolveIntegerProgram(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parseLinearProgram(payload)
	if err != nil {
		return nil, err
	}
	integers := p.integerNames()
	if len(integers) == 0 {
		return nil, inputErrf("no integer or binary variables; use solve_linear_program")
	}
	isInt := make(map[string]bool, len(integers))
	for _, name := range integers {
		isInt[name] = true
	}

	type node struct {
		lower, upper map[string]float64
	}
	lower, upper := naturalBounds(p)
	stack := []node{{lower: lower, upper: upper}}

	maximize := p.Objective.Sense == "maximize"
	incumbent := math.Inf(1)
	if maximize {
		incumbent = math.Inf(-1)
	}
	var best map[string]float64
	nodes := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nodes++
		if nodes > maxBranchNodes {
			return nil, inputErrf("branch and bound exceeded %d nodes; model is too hard for this solver", maxBranchNodes)
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		objective, values, err := solveContinuous(p, n.lower, n.upper)
		if err == ErrInfeasible {
			continue
		}
		if err != nil {
			return nil, err
		}

		// Relaxation bound cannot beat the incumbent: prune.
		if best != nil {
			if maximize && objective <= incumbent+integralityTol {
				continue
			}
			if !maximize && objective >= incumbent-integralityTol {
				continue
			}
		}

		// Pick the most fractional integer variable.
		branchVar := ""
		branchVal := 0.0
		worst := integralityTol
		for _, name := range integers {
			frac := math.Abs(values[name] - math.Round(values[name]))
			if frac > worst {
				worst = frac
				branchVar = name
				branchVal = values[name]
			}
		}

		if branchVar == "" {
			// Integral solution: new incumbent.
			rounded := make(map[string]float64, len(values))
			for name, v := range values {
				if isInt[name] {
					rounded[name] = math.Round(v)
				} else {
					rounded[name] = v
				}
			}
			incumbent = objective
			best = rounded
			continue
		}

		down := node{lower: copyBounds(n.lower), upper: copyBounds(n.upper)}
		down.upper[branchVar] = math.Floor(branchVal)
		up := node{lower: copyBounds(n.lower), upper: copyBounds(n.upper)}
		up.lower[branchVar] = math.Ceil(branchVal)
		stack = append(stack, down, up)
	}

	if best == nil {
		return nil, ErrInfeasible
	}
	return &milpSolution{
		Status:         StatusOptimal,
		ObjectiveValue: incumbent,
		Variables:      best,
		NodesExplored:  nodes,
	}, nil
}

func copyBounds(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
