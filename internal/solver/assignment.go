package solver

import (
	"context"
	"encoding/json"
	"math"
)

type assignmentProblem struct {
	Workers  []string    `json:"workers"`
	Tasks    []string    `json:"tasks"`
	Costs    [][]float64 `json:"costs"` // workers x tasks
	Maximize bool        `json:"maximize,omitempty"`
}

type assignmentPair struct {
	Worker string  `json:"worker"`
	Task   string  `json:"task"`
	Cost   float64 `json:"cost"`
}

type assignmentSolution struct {
	Status      string           `json:"status"`
	TotalCost   float64          `json:"total_cost"`
	Assignments []assignmentPair `json:"assignments"`
}

func parseAssignment(payload json.RawMessage) (*assignmentProblem, error) {
	var p assignmentProblem
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, inputErrf("parsing assignment problem: %v", err)
	}
	if len(p.Workers) == 0 || len(p.Tasks) == 0 {
		return nil, inputErrf("workers and tasks must both be non-empty")
	}
	if len(p.Costs) != len(p.Workers) {
		return nil, inputErrf("costs must have %d rows (one per worker), got %d", len(p.Workers), len(p.Costs))
	}
	for i, row := range p.Costs {
		if len(row) != len(p.Tasks) {
			return nil, inputErrf("costs row %d must have %d entries (one per task), got %d", i, len(p.Tasks), len(row))
		}
	}
	return &p, nil
}

// SolveAssignment finds a minimum-cost (or maximum-value) one-to-one
// assignment of workers to tasks via the Hungarian algorithm.
func SolveAssignment(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parseAssignment(payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nW, nT := len(p.Workers), len(p.Tasks)

	// The algorithm needs rows <= cols; pad with zero-cost dummy tasks
	// when there are more workers than tasks. A worker matched to a
	// dummy ends up unassigned.
	cols := nT
	if nW > nT {
		cols = nW
	}
	cost := make([][]float64, nW)
	for i := range cost {
		cost[i] = make([]float64, cols)
		for j := 0; j < nT; j++ {
			c := p.Costs[i][j]
			if p.Maximize {
				c = -c
			}
			cost[i][j] = c
		}
	}

	match := hungarian(cost)

	sol := &assignmentSolution{Status: StatusOptimal}
	for i, j := range match {
		if j >= nT {
			continue // dummy task
		}
		c := p.Costs[i][j]
		sol.TotalCost += c
		sol.Assignments = append(sol.Assignments, assignmentPair{
			Worker: p.Workers[i],
			Task:   p.Tasks[j],
			Cost:   c,
		})
	}
	return sol, nil
}

// hungarian computes a minimum-cost perfect matching of rows onto columns
// (rows <= cols) and returns the matched column for each row. This is the
// O(n^2 m) potentials formulation.
func hungarian(cost [][]float64) []int {
	n := len(cost)
	m := len(cost[0])

	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)   // p[j] = row matched to column j (1-based; 0 = free)
	way := make([]int, m+1) // alternating-path predecessors

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	match := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] > 0 {
			match[p[j]-1] = j - 1
		}
	}
	return match
}
