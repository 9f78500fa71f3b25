package solver

import (
	"context"
	"encoding/json"
)

type productionProduct struct {
	Name      string             `json:"name"`
	Profit    float64            `json:"profit"` // per unit
	Uses      map[string]float64 `json:"uses"`   // resource name -> amount per unit
	MinDemand float64            `json:"min_demand,omitempty"`
	MaxDemand *float64           `json:"max_demand,omitempty"`
}

type productionResource struct {
	Name     string  `json:"name"`
	Capacity float64 `json:"capacity"`
}

type productionProblem struct {
	Products  []productionProduct  `json:"products"`
	Resources []productionResource `json:"resources"`
}

type productionPlanEntry struct {
	Product  string  `json:"product"`
	Quantity float64 `json:"quantity"`
	Profit   float64 `json:"profit"`
}

type resourceUsage struct {
	Resource string  `json:"resource"`
	Used     float64 `json:"used"`
	Capacity float64 `json:"capacity"`
}

type productionSolution struct {
	Status      string                `json:"status"`
	TotalProfit float64               `json:"total_profit"`
	Plan        []productionPlanEntry `json:"plan"`
	Resources   []resourceUsage       `json:"resource_usage"`
}

func parseProduction(payload json.RawMessage) (*productionProblem, error) {
	var p productionProblem
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, inputErrf("parsing production problem: %v", err)
	}
	if len(p.Products) == 0 {
		return nil, inputErrf("at least one product is required")
	}
	if len(p.Resources) == 0 {
		return nil, inputErrf("at least one resource is required")
	}
	known := map[string]bool{}
	for i, r := range p.Resources {
		if r.Capacity < 0 {
			return nil, inputErrf("resource %d (%s): capacity must be >= 0", i, r.Name)
		}
		known[r.Name] = true
	}
	for i, prod := range p.Products {
		if prod.MinDemand < 0 {
			return nil, inputErrf("product %d (%s): min_demand must be >= 0", i, prod.Name)
		}
		if prod.MaxDemand != nil && *prod.MaxDemand < prod.MinDemand {
			return nil, inputErrf("product %d (%s): max_demand must be >= min_demand", i, prod.Name)
		}
		for res := range prod.Uses {
			if !known[res] {
				return nil, inputErrf("product %d (%s) uses unknown resource %q", i, prod.Name, res)
			}
		}
	}
	return &p, nil
}

// OptimizeProduction maximizes total profit over product quantities
// subject to resource capacities and demand bounds.
func OptimizeProduction(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parseProduction(payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lp := &linearProgram{
		Objective: lpObjective{Sense: "maximize", Coefficients: map[string]float64{}},
		Variables: map[string]lpVariable{},
	}
	for _, prod := range p.Products {
		name := "make_" + prod.Name
		lo := prod.MinDemand
		v := lpVariable{Lower: &lo}
		if prod.MaxDemand != nil {
			v.Upper = prod.MaxDemand
		}
		lp.Variables[name] = v
		lp.Objective.Coefficients[name] = prod.Profit
	}
	for _, r := range p.Resources {
		expr := map[string]float64{}
		for _, prod := range p.Products {
			if use, ok := prod.Uses[r.Name]; ok && use != 0 {
				expr["make_"+prod.Name] = use
			}
		}
		if len(expr) == 0 {
			continue
		}
		lp.Constraints = append(lp.Constraints, lpConstraint{
			Name: "capacity_" + r.Name, Expression: expr, Operator: "<=", RHS: r.Capacity,
		})
	}

	lower, upper := naturalBounds(lp)
	profit, values, err := solveContinuous(lp, lower, upper)
	if err != nil {
		return nil, err
	}

	sol := &productionSolution{Status: StatusOptimal, TotalProfit: profit}
	for _, prod := range p.Products {
		qty := values["make_"+prod.Name]
		if qty > 1e-9 {
			sol.Plan = append(sol.Plan, productionPlanEntry{
				Product:  prod.Name,
				Quantity: qty,
				Profit:   qty * prod.Profit,
			})
		}
	}
	for _, r := range p.Resources {
		used := 0.0
		for _, prod := range p.Products {
			used += values["make_"+prod.Name] * prod.Uses[r.Name]
		}
		sol.Resources = append(sol.Resources, resourceUsage{
			Resource: r.Name,
			Used:     used,
			Capacity: r.Capacity,
		})
	}
	return sol, nil
}
