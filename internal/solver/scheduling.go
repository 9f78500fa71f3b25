package solver

import (
	"context"
	"encoding/json"
	"sort"
)

type schedulingJob struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

type schedulingProblem struct {
	Jobs     []schedulingJob `json:"jobs"`
	Machines int             `json:"machines"`
}

type scheduledJob struct {
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type machineSchedule struct {
	Machine int            `json:"machine"`
	Jobs    []scheduledJob `json:"jobs"`
	Load    float64        `json:"load"`
}

type schedulingSolution struct {
	Status   string            `json:"status"`
	Makespan float64           `json:"makespan"`
	Machines []machineSchedule `json:"machines"`
}

func parseJobScheduling(payload json.RawMessage) (*schedulingProblem, error) {
	var p schedulingProblem
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, inputErrf("parsing scheduling problem: %v", err)
	}
	if len(p.Jobs) == 0 {
		return nil, inputErrf("at least one job is required")
	}
	if p.Machines < 1 {
		return nil, inputErrf("machines must be >= 1, got %d", p.Machines)
	}
	for i, j := range p.Jobs {
		if j.Duration < 0 {
			return nil, inputErrf("job %d (%s): duration must be >= 0", i, j.Name)
		}
	}
	return &p, nil
}

// SolveJobScheduling minimizes makespan on identical parallel machines
// with the longest-processing-time rule. LPT is a 4/3-approximation, so
// the result reports "feasible" rather than "optimal".
func SolveJobScheduling(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := parseJobScheduling(payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := make([]int, len(p.Jobs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.Jobs[order[a]].Duration > p.Jobs[order[b]].Duration
	})

	machines := make([]machineSchedule, p.Machines)
	for m := range machines {
		machines[m].Machine = m
	}
	for _, ji := range order {
		least := 0
		for m := 1; m < p.Machines; m++ {
			if machines[m].Load < machines[least].Load {
				least = m
			}
		}
		job := p.Jobs[ji]
		start := machines[least].Load
		machines[least].Jobs = append(machines[least].Jobs, scheduledJob{
			Name:  job.Name,
			Start: start,
			End:   start + job.Duration,
		})
		machines[least].Load += job.Duration
	}

	makespan := 0.0
	for _, m := range machines {
		if m.Load > makespan {
			makespan = m.Load
		}
	}
	return &schedulingSolution{Status: StatusFeasible, Makespan: makespan, Machines: machines}, nil
}
