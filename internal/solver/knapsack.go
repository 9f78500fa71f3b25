package solver

import (
	"context"
	"encoding/json"
)

type knapsackItem struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Weight   int     `json:"weight"`
	Quantity int     `json:"quantity,omitempty"` // max copies, default 1
}

type knapsackProblem struct {
	Items    []knapsackItem `json:"items"`
	Capacity int            `json:"capacity"`
}

type knapsackPick struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Value    float64 `json:"value"`
	Weight   int     `json:"weight"`
}

type knapsackSolution struct {
	Status      string         `json:"status"`
	TotalValue  float64        `json:"total_value"`
	TotalWeight int            `json:"total_weight"`
	Selected    []knapsackPick `json:"selected_items"`
}

// dpCellLimit bounds the DP table so a huge capacity fails fast instead
// of eating the memory the admission check budgeted for.
const dpCellLimit = 50_000_000

func parseKnapsack(payload json.RawMessage) (*knapsackProblem, error) {
	var p knapsackProblem
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, inputErrf("parsing knapsack problem: %v", err)
	}
	if len(p.Items) == 0 {
		return nil, inputErrf("at least one item is required")
	}
	if p.Capacity < 0 {
		return nil, inputErrf("capacity must be >= 0, got %d", p.Capacity)
	}
	for i, it := range p.Items {
		if it.Weight < 0 {
			return nil, inputErrf("item %d (%s): weight must be >= 0", i, it.Name)
		}
		if it.Quantity < 0 {
			return nil, inputErrf("item %d (%s): quantity must be >= 0", i, it.Name)
		}
	}
	return &p, nil
}

// SolveKnapsack solves the bounded knapsack problem by dynamic
// programming over integral capacity.
func SolveKnapsack(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parseKnapsack(payload)
	if err != nil {
		return nil, err
	}

	// Expand bounded quantities into unit copies, clamped to what could
	// possibly fit.
	type copyItem struct {
		orig   int
		value  float64
		weight int
	}
	var copies []copyItem
	for i, it := range p.Items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		if it.Weight > 0 && qty > p.Capacity/it.Weight+1 {
			qty = p.Capacity/it.Weight + 1
		}
		for k := 0; k < qty; k++ {
			copies = append(copies, copyItem{orig: i, value: it.Value, weight: it.Weight})
		}
	}

	cells := (len(copies) + 1) * (p.Capacity + 1)
	if cells > dpCellLimit || cells < 0 {
		return nil, inputErrf("knapsack table of %d items x capacity %d is too large", len(copies), p.Capacity)
	}

	dp := make([]float64, p.Capacity+1)
	taken := make([][]bool, len(copies))
	for k, c := range copies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		taken[k] = make([]bool, p.Capacity+1)
		for w := p.Capacity; w >= c.weight; w-- {
			if with := dp[w-c.weight] + c.value; with > dp[w] {
				dp[w] = with
				taken[k][w] = true
			}
		}
	}

	counts := make([]int, len(p.Items))
	w := p.Capacity
	for k := len(copies) - 1; k >= 0; k-- {
		if taken[k][w] {
			counts[copies[k].orig]++
			w -= copies[k].weight
		}
	}

	sol := &knapsackSolution{Status: StatusOptimal, TotalValue: dp[p.Capacity]}
	for i, n := range counts {
		if n == 0 {
			continue
		}
		it := p.Items[i]
		sol.TotalWeight += n * it.Weight
		sol.Selected = append(sol.Selected, knapsackPick{
			Name:     it.Name,
			Quantity: n,
			Value:    float64(n) * it.Value,
			Weight:   n * it.Weight,
		})
	}
	return sol, nil
}
