package report

import (
	"sort"
	"time"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// SolverSummary aggregates the runs of one solver.
type SolverSummary struct {
	Solver     string
	Runs       int
	Solved     int
	Infeasible int
	Truncated  int
	Mismatches int
	// Averages over solved runs only.
	AvgElapsed  time.Duration
	AvgCost     float64
	AvgExpanded float64
}

// SuccessRate is the solved share of runs.
func (s SolverSummary) SuccessRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Solved) / float64(s.Runs)
}

// Summarize groups results by solver, sorted by solver name.
func Summarize(results []*Result) []SolverSummary {
	bySolver := make(map[string]*SolverSummary)
	var elapsed = make(map[string]time.Duration)
	for _, r := range results {
		s, ok := bySolver[r.Solver]
		if !ok {
			s = &SolverSummary{Solver: r.Solver}
			bySolver[r.Solver] = s
		}
		s.Runs++
		if r.Mismatch() {
			s.Mismatches++
		}
		switch r.Outcome {
		case core.Solved.String():
			s.Solved++
			elapsed[r.Solver] += r.Elapsed
			s.AvgCost += float64(r.Cost)
			s.AvgExpanded += float64(r.Expanded)
		case core.Infeasible.String():
			s.Infeasible++
		case core.Truncated.String():
			s.Truncated++
		}
	}

	out := make([]SolverSummary, 0, len(bySolver))
	for name, s := range bySolver {
		if s.Solved > 0 {
			s.AvgElapsed = elapsed[name] / time.Duration(s.Solved)
			s.AvgCost /= float64(s.Solved)
			s.AvgExpanded /= float64(s.Solved)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Solver < out[j].Solver })
	return out
}
