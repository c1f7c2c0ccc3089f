// Package report records benchmark runs: CSV and YAML export, per-solver
// summaries and a SQLite history of results.
package report

import (
	"fmt"
	"time"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// NoExpected marks a result without a reference cost.
const NoExpected = -1

// Result is one solver run on one instance.
type Result struct {
	ID            string
	RunID         string
	CreatedAt     time.Time
	Instance      string
	Agents        int
	Obstacles     int
	GridSize      string
	Solver        string
	Threshold     float64
	Outcome       string
	Cost          int
	SumOfCost     int
	Makespan      int
	Expected      int
	Elapsed       time.Duration
	Expanded      int
	Generated     int
	Conflicts     int
	LowLevelCalls int
}

// NewResult flattens a finished run.
func NewResult(inst *core.Instance, sol *core.Solution, threshold float64) *Result {
	return &Result{
		RunID:         sol.RunID,
		CreatedAt:     time.Now().UTC(),
		Instance:      inst.Name,
		Agents:        len(inst.Agents),
		Obstacles:     len(inst.Obstacles),
		GridSize:      fmt.Sprintf("%dx%d", inst.Map.Rows(), inst.Map.Cols()),
		Solver:        sol.Solver,
		Threshold:     threshold,
		Outcome:       sol.Outcome.String(),
		Cost:          sol.Cost,
		SumOfCost:     sol.SumOfCost,
		Makespan:      sol.Makespan,
		Expected:      NoExpected,
		Elapsed:       sol.Stats.Elapsed,
		Expanded:      sol.Stats.Expanded,
		Generated:     sol.Stats.Generated,
		Conflicts:     sol.Stats.Conflicts,
		LowLevelCalls: sol.Stats.LowLevelCalls,
	}
}

// Solved reports whether the run found a solution.
func (r *Result) Solved() bool { return r.Outcome == core.Solved.String() }

// Mismatch reports a run whose sum of costs differs from its reference.
func (r *Result) Mismatch() bool {
	if r.Expected == NoExpected {
		return false
	}
	return !r.Solved() || r.SumOfCost != r.Expected
}
