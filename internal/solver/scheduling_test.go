package solver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solveScheduling(t *testing.T, payload string) *schedulingSolution {
	t.Helper()
	out, err := SolveJobScheduling(context.Background(), json.RawMessage(payload))
	require.NoError(t, err)
	sol, ok := out.(*schedulingSolution)
	require.True(t, ok)
	return sol
}

func TestSolveJobScheduling_BalancesMachines(t *testing.T) {
	sol := solveScheduling(t, `{
		"machines": 2,
		"jobs": [
			{"name": "build", "duration": 4},
			{"name": "test", "duration": 3},
			{"name": "deploy", "duration": 3}
		]
	}`)

	assert.Equal(t, StatusFeasible, sol.Status)
	assert.InDelta(t, 6, sol.Makespan, 1e-9)
	require.Len(t, sol.Machines, 2)

	// The longest job runs alone; the two short jobs share a machine
	// back to back.
	var loads []float64
	for _, m := range sol.Machines {
		loads = append(loads, m.Load)
	}
	assert.ElementsMatch(t, []float64{4, 6}, loads)
}

func TestSolveJobScheduling_JobsRunBackToBack(t *testing.T) {
	sol := solveScheduling(t, `{
		"machines": 1,
		"jobs": [
			{"name": "long", "duration": 5},
			{"name": "short", "duration": 2}
		]
	}`)

	assert.InDelta(t, 7, sol.Makespan, 1e-9)
	jobs := sol.Machines[0].Jobs
	require.Len(t, jobs, 2)
	assert.Equal(t, "long", jobs[0].Name)
	assert.InDelta(t, 0, jobs[0].Start, 1e-9)
	assert.InDelta(t, 5, jobs[0].End, 1e-9)
	assert.InDelta(t, 5, jobs[1].Start, 1e-9)
	assert.InDelta(t, 7, jobs[1].End, 1e-9)
}

func TestSolveJobScheduling_MoreMachinesThanJobs(t *testing.T) {
	sol := solveScheduling(t, `{
		"machines": 4,
		"jobs": [{"name": "solo", "duration": 9}]
	}`)

	assert.InDelta(t, 9, sol.Makespan, 1e-9)
	require.Len(t, sol.Machines, 4)
}

func TestParseJobScheduling_Validation(t *testing.T) {
	var inputErr *InputError

	_, err := parseJobScheduling(json.RawMessage(`{"machines": 2, "jobs": []}`))
	assert.ErrorAs(t, err, &inputErr)

	_, err = parseJobScheduling(json.RawMessage(`{"machines": 0, "jobs": [{"name": "j", "duration": 1}]}`))
	assert.ErrorAs(t, err, &inputErr)

	_, err = parseJobScheduling(json.RawMessage(`{"machines": 1, "jobs": [{"name": "j", "duration": -1}]}`))
	assert.ErrorAs(t, err, &inputErr)
}
