package core

import (
	"fmt"
	"sort"
	"time"
)

// TimedCell is a position at a specific time step.
type TimedCell struct {
	Cell `yaml:",inline"`
	T    int `yaml:"t"`
}

// Path is a dense sequence of timed positions: one entry per time step from
// the path start to goal arrival.
type Path []TimedCell

// Cost returns the goal arrival time.
func (p Path) Cost() int {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].T
}

// Moves counts the steps that change cell.
func (p Path) Moves() int {
	n := 0
	for i := 1; i < len(p); i++ {
		if p[i].Cell != p[i-1].Cell {
			n++
		}
	}
	return n
}

// At returns the cell occupied at time t. Before the path starts the agent
// is on its first cell; after it ends the agent stays at its goal.
func (p Path) At(t int) Cell {
	if len(p) == 0 {
		return Cell{}
	}
	i := t - p[0].T
	if i <= 0 {
		return p[0].Cell
	}
	if i >= len(p) {
		return p[len(p)-1].Cell
	}
	return p[i].Cell
}

// Clone returns an independent copy.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// CheckShape verifies that time advances by one per entry and that every
// step is a wait or a move to a free 4-neighbour.
func (p Path) CheckShape(g *GridMap) error {
	for i, tc := range p {
		if !g.IsFree(tc.Cell) {
			return fmt.Errorf("step %d: cell %s is not free", i, tc.Cell)
		}
		if i == 0 {
			continue
		}
		prev := p[i-1]
		if tc.T != prev.T+1 {
			return fmt.Errorf("step %d: time %d does not follow %d", i, tc.T, prev.T)
		}
		if tc.Cell != prev.Cell && !tc.Cell.Adjacent(prev.Cell) {
			return fmt.Errorf("step %d: %s is not adjacent to %s", i, tc.Cell, prev.Cell)
		}
	}
	return nil
}

// Objective selects the joint cost minimized by the coordinator.
type Objective string

const (
	SumOfCost Objective = "sum_of_cost"
	Makespan  Objective = "makespan"
)

// ParseObjective validates an objective name.
func ParseObjective(s string) (Objective, error) {
	switch Objective(s) {
	case SumOfCost, Makespan:
		return Objective(s), nil
	default:
		return "", invalidf("unknown objective %q", s)
	}
}

// Of computes the objective over a set of paths.
func (o Objective) Of(paths map[AgentID]Path) int {
	total := 0
	for _, p := range paths {
		c := p.Cost()
		if o == Makespan {
			if c > total {
				total = c
			}
			continue
		}
		total += c
	}
	return total
}

// Stats collects search counters for one run.
type Stats struct {
	Generated     int           `yaml:"generated"`
	Expanded      int           `yaml:"expanded"`
	Pruned        int           `yaml:"pruned"`
	Duplicates    int           `yaml:"duplicates"`
	Conflicts     int           `yaml:"conflicts"`
	LowLevelCalls int           `yaml:"low_level_calls"`
	CacheHits     int           `yaml:"cache_hits"`
	Elapsed       time.Duration `yaml:"elapsed"`
}

// AgentResult is the exported per-agent view of a solution.
type AgentResult struct {
	Agent AgentID `yaml:"agent"`
	Cost  int     `yaml:"cost"`
	Moves int     `yaml:"moves"`
	Path  Path    `yaml:"path"`
}

// Solution represents the outcome of a planning run.
type Solution struct {
	RunID     string
	Solver    string
	Outcome   Outcome
	Objective Objective
	Paths     map[AgentID]Path
	Cost      int
	SumOfCost int
	Makespan  int
	Stats     Stats
}

// NewSolution creates an empty solution.
func NewSolution() *Solution {
	return &Solution{
		Outcome: Infeasible,
		Paths:   make(map[AgentID]Path),
	}
}

// ComputeCosts fills SumOfCost, Makespan and Cost from the paths.
func (s *Solution) ComputeCosts() {
	s.SumOfCost = SumOfCost.Of(s.Paths)
	s.Makespan = Makespan.Of(s.Paths)
	if s.Objective == Makespan {
		s.Cost = s.Makespan
	} else {
		s.Cost = s.SumOfCost
	}
}

// Results returns per-agent results ordered by agent id.
func (s *Solution) Results() []AgentResult {
	ids := make([]AgentID, 0, len(s.Paths))
	for id := range s.Paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]AgentResult, 0, len(ids))
	for _, id := range ids {
		p := s.Paths[id]
		out = append(out, AgentResult{Agent: id, Cost: p.Cost(), Moves: p.Moves(), Path: p})
	}
	return out
}
