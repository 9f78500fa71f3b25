package solver

import (
	"context"
	"encoding/json"
)

type portfolioAsset struct {
	Name           string   `json:"name"`
	ExpectedReturn float64  `json:"expected_return"`
	Risk           float64  `json:"risk"`
	Sector         string   `json:"sector,omitempty"`
	MinAllocation  float64  `json:"min_allocation,omitempty"` // fraction of budget
	MaxAllocation  *float64 `json:"max_allocation,omitempty"` // fraction of budget, default 1
}

type portfolioProblem struct {
	Assets        []portfolioAsset   `json:"assets"`
	Budget        float64            `json:"budget"`
	Objective     string             `json:"objective,omitempty"` // maximize_return (default) | minimize_risk
	RiskTolerance float64            `json:"risk_tolerance,omitempty"`
	SectorLimits  map[string]float64 `json:"sector_limits,omitempty"` // fraction of budget per sector
}

type allocation struct {
	Asset    string  `json:"asset"`
	Amount   float64 `json:"amount"`
	Fraction float64 `json:"fraction"`
}

type portfolioSolution struct {
	Status         string       `json:"status"`
	ObjectiveValue float64      `json:"objective_value"`
	ExpectedReturn float64      `json:"expected_return"`
	PortfolioRisk  float64      `json:"portfolio_risk"`
	Allocations    []allocation `json:"allocations"`
}

func parsePortfolio(payload json.RawMessage) (*portfolioProblem, error) {
	var p portfolioProblem
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, inputErrf("parsing portfolio problem: %v", err)
	}
	if len(p.Assets) == 0 {
		return nil, inputErrf("at least one asset is required")
	}
	if p.Budget <= 0 {
		return nil, inputErrf("budget must be > 0, got %v", p.Budget)
	}
	switch p.Objective {
	case "", "maximize_return", "minimize_risk":
	default:
		return nil, inputErrf("objective must be 'maximize_return' or 'minimize_risk', got %q", p.Objective)
	}
	for i, a := range p.Assets {
		if a.Risk < 0 {
			return nil, inputErrf("asset %d (%s): risk must be >= 0", i, a.Name)
		}
		maxAlloc := 1.0
		if a.MaxAllocation != nil {
			maxAlloc = *a.MaxAllocation
		}
		if a.MinAllocation < 0 || a.MinAllocation > 1 || maxAlloc < 0 || maxAlloc > 1 {
			return nil, inputErrf("asset %d (%s): allocation bounds must be within [0, 1]", i, a.Name)
		}
		if maxAlloc < a.MinAllocation {
			return nil, inputErrf("asset %d (%s): max_allocation must be >= min_allocation", i, a.Name)
		}
	}
	for sector, limit := range p.SectorLimits {
		if limit < 0 || limit > 1 {
			return nil, inputErrf("sector limit for %q must be within [0, 1]", sector)
		}
	}
	return &p, nil
}

// OptimizePortfolio allocates a budget across assets by linear program:
// the full budget is invested, per-asset and per-sector allocation bounds
// hold, and the objective either maximizes expected return (optionally
// under a linear risk ceiling) or minimizes risk as the weighted average
// of individual asset risks.
func OptimizePortfolio(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parsePortfolio(payload)
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
	if p.Objective == "minimize_risk" {
		lp.Objective.Sense = "minimize"
	}

	budgetExpr := map[string]float64{}
	riskExpr := map[string]float64{}
	sectors := map[string]map[string]float64{}
	for _, a := range p.Assets {
		name := "alloc_" + a.Name
		lo := a.MinAllocation * p.Budget
		hi := p.Budget
		if a.MaxAllocation != nil {
			hi = *a.MaxAllocation * p.Budget
		}
		lp.Variables[name] = lpVariable{Lower: &lo, Upper: &hi}
		budgetExpr[name] = 1
		riskExpr[name] = a.Risk / p.Budget
		if p.Objective == "minimize_risk" {
			lp.Objective.Coefficients[name] = a.Risk / p.Budget
		} else {
			lp.Objective.Coefficients[name] = a.ExpectedReturn / p.Budget
		}
		if a.Sector != "" {
			if sectors[a.Sector] == nil {
				sectors[a.Sector] = map[string]float64{}
			}
			sectors[a.Sector][name] = 1
		}
	}

	lp.Constraints = append(lp.Constraints, lpConstraint{
		Name: "budget", Expression: budgetExpr, Operator: "=", RHS: p.Budget,
	})
	if p.Objective != "minimize_risk" && p.RiskTolerance > 0 {
		lp.Constraints = append(lp.Constraints, lpConstraint{
			Name: "risk_tolerance", Expression: riskExpr, Operator: "<=", RHS: p.RiskTolerance,
		})
	}
	for sector, limit := range p.SectorLimits {
		expr, ok := sectors[sector]
		if !ok {
			continue
		}
		lp.Constraints = append(lp.Constraints, lpConstraint{
			Name: "sector_" + sector, Expression: expr, Operator: "<=", RHS: limit * p.Budget,
		})
	}

	lower, upper := naturalBounds(lp)
	objective, values, err := solveContinuous(lp, lower, upper)
	if err != nil {
		return nil, err
	}

	sol := &portfolioSolution{Status: StatusOptimal, ObjectiveValue: objective}
	for _, a := range p.Assets {
		amount := values["alloc_"+a.Name]
		sol.ExpectedReturn += amount * a.ExpectedReturn / p.Budget
		sol.PortfolioRisk += amount * a.Risk / p.Budget
		if amount <= 1e-9 {
			continue
		}
		sol.Allocations = append(sol.Allocations, allocation{
			Asset:    a.Name,
			Amount:   amount,
			Fraction: amount / p.Budget,
		})
	}
	return sol, nil
}
