package solver

import (
	"context"
	"encoding/json"
	"fmt"
)

type transportSupplier struct {
	Name   string  `json:"name"`
	Supply float64 `json:"supply"`
}

type transportConsumer struct {
	Name   string  `json:"name"`
	Demand float64 `json:"demand"`
}

type transportationProblem struct {
	Suppliers []transportSupplier `json:"suppliers"`
	Consumers []transportConsumer `json:"consumers"`
	Costs     [][]float64         `json:"costs"` // suppliers x consumers
}

type shipment struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Cost   float64 `json:"cost"`
}

type transportationSolution struct {
	Status    string     `json:"status"`
	TotalCost float64    `json:"total_cost"`
	Shipments []shipment `json:"shipments"`
}

func parseTransportation(payload json.RawMessage) (*transportationProblem, error) {
	var p transportationProblem
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, inputErrf("parsing transportation problem: %v", err)
	}
	if len(p.Suppliers) == 0 || len(p.Consumers) == 0 {
		return nil, inputErrf("suppliers and consumers must both be non-empty")
	}
	if len(p.Costs) != len(p.Suppliers) {
		return nil, inputErrf("costs must have %d rows (one per supplier), got %d", len(p.Suppliers), len(p.Costs))
	}
	for i, row := range p.Costs {
		if len(row) != len(p.Consumers) {
			return nil, inputErrf("costs row %d must have %d entries (one per consumer), got %d", i, len(p.Consumers), len(row))
		}
	}
	for i, s := range p.Suppliers {
		if s.Supply < 0 {
			return nil, inputErrf("supplier %d (%s): supply must be >= 0", i, s.Name)
		}
	}
	for j, c := range p.Consumers {
		if c.Demand < 0 {
			return nil, inputErrf("consumer %d (%s): demand must be >= 0", j, c.Name)
		}
	}
	return &p, nil
}

// SolveTransportation minimizes total shipping cost subject to supply
// capacities and demand requirements. Infeasibility (total demand above
// total supply) falls out of the LP rather than being special-cased.
func SolveTransportation(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parseTransportation(payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shipVar := func(i, j int) string { return fmt.Sprintf("ship_%d_%d", i, j) }

	lp := &linearProgram{
		Objective: lpObjective{Sense: "minimize", Coefficients: map[string]float64{}},
		Variables: map[string]lpVariable{},
	}
	for i := range p.Suppliers {
		for j := range p.Consumers {
			name := shipVar(i, j)
			lp.Variables[name] = lpVariable{}
			lp.Objective.Coefficients[name] = p.Costs[i][j]
		}
	}
	for i, s := range p.Suppliers {
		expr := map[string]float64{}
		for j := range p.Consumers {
			expr[shipVar(i, j)] = 1
		}
		lp.Constraints = append(lp.Constraints, lpConstraint{
			Name: "supply_" + s.Name, Expression: expr, Operator: "<=", RHS: s.Supply,
		})
	}
	for j, c := range p.Consumers {
		expr := map[string]float64{}
		for i := range p.Suppliers {
			expr[shipVar(i, j)] = 1
		}
		lp.Constraints = append(lp.Constraints, lpConstraint{
			Name: "demand_" + c.Name, Expression: expr, Operator: ">=", RHS: c.Demand,
		})
	}

	lower, upper := naturalBounds(lp)
	total, values, err := solveContinuous(lp, lower, upper)
	if err != nil {
		return nil, err
	}

	sol := &transportationSolution{Status: StatusOptimal, TotalCost: total}
	for i, s := range p.Suppliers {
		for j, c := range p.Consumers {
			amount := values[shipVar(i, j)]
			if amount <= 1e-9 {
				continue
			}
			sol.Shipments = append(sol.Shipments, shipment{
				From:   s.Name,
				To:     c.Name,
				Amount: amount,
				Cost:   amount * p.Costs[i][j],
			})
		}
	}
	return sol, nil
}
