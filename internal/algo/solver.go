// Package algo implements safe interval path planning and conflict-based
// search over probabilistic obstacle risk.
package algo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/interval"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
)

var (
	// ErrInfeasible means the search proved that no solution exists.
	ErrInfeasible = errors.New("infeasible")
	// ErrTruncated means a deadline or search cap stopped the search
	// before a solution or a proof of infeasibility.
	ErrTruncated = errors.New("search truncated")
)

// Solver is the interface for multi-agent planners.
type Solver interface {
	// Solve plans every agent of the instance. The returned solution is
	// non-nil whenever the input was valid, with Outcome describing the
	// result; the error is nil only for Outcome Solved.
	Solve(ctx context.Context, inst *core.Instance) (*core.Solution, error)

	// Name returns the algorithm name.
	Name() string
}

// SplittingMode selects how a conflict is branched on.
type SplittingMode string

const (
	StandardSplitting SplittingMode = "standard"
	DisjointSplitting SplittingMode = "disjoint"
)

// ParseSplittingMode validates a splitting mode name.
func ParseSplittingMode(s string) (SplittingMode, error) {
	switch SplittingMode(s) {
	case StandardSplitting, DisjointSplitting:
		return SplittingMode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown splitting mode %q", core.ErrInvalidInput, s)
	}
}

// Options configures the low-level and high-level searches.
type Options struct {
	Threshold     float64
	Horizon       int // 0 = unbounded
	Resolution    int
	Interpolation risk.Interpolation
	Heuristic     HeuristicKind
	MaxExpansions int // per SIPP call, 0 = unlimited

	Splitting     SplittingMode
	Objective     core.Objective
	EdgeConflicts bool
	MaxNodes      int           // constraint tree cap, 0 = unlimited
	Deadline      time.Duration // 0 = none
	Workers       int
	MaxAgents     int
}

// DefaultOptions returns the default planner configuration.
func DefaultOptions() Options {
	return Options{
		Threshold:     0.1,
		Resolution:    1,
		Interpolation: risk.Linear,
		Heuristic:     ManhattanHeuristic,
		Splitting:     StandardSplitting,
		Objective:     core.SumOfCost,
		EdgeConflicts: true,
		MaxNodes:      100000,
		Workers:       runtime.NumCPU(),
		MaxAgents:     128,
	}
}

// BuildTable validates the instance and derives its safe interval table.
func BuildTable(inst *core.Instance, opts Options) (*interval.Table, error) {
	if err := inst.Validate(opts.MaxAgents); err != nil {
		return nil, err
	}
	model, err := risk.NewModel(inst.Map, inst.Obstacles, opts.Interpolation)
	if err != nil {
		return nil, err
	}
	return interval.Build(model, inst.Map, interval.Options{
		Threshold:  opts.Threshold,
		Horizon:    opts.Horizon,
		Resolution: opts.Resolution,
	})
}

// Conflict is a collision between two agents. A vertex conflict has both
// agents on Cell at Time. An edge conflict has Agent1 moving Cell -> To and
// Agent2 moving To -> Cell, both arriving at Time.
type Conflict struct {
	Agent1, Agent2 core.AgentID
	Cell           core.Cell
	To             core.Cell
	Time           int
	IsEdge         bool
}

func (c Conflict) String() string {
	if c.IsEdge {
		return fmt.Sprintf("edge a%d/a%d %s<>%s@%d", c.Agent1, c.Agent2, c.Cell, c.To, c.Time)
	}
	return fmt.Sprintf("vertex a%d/a%d %s@%d", c.Agent1, c.Agent2, c.Cell, c.Time)
}

// occupied returns the cell of the agent at t. An agent is not on the grid
// before its path starts and stays on its goal after the path ends.
func occupied(path core.Path, t int) (core.Cell, bool) {
	if len(path) == 0 || t < path[0].T {
		return core.Cell{}, false
	}
	return path.At(t), true
}

// sortedAgentIDs returns sorted agent IDs from paths map.
func sortedAgentIDs(paths map[core.AgentID]core.Path) []core.AgentID {
	ids := make([]core.AgentID, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// pairConflict returns the earliest conflict between two paths, checking
// the vertex conflict before the swap arriving at the same step.
func pairConflict(a1, a2 core.AgentID, p1, p2 core.Path, edges bool) *Conflict {
	end := max(p1.Cost(), p2.Cost())
	for t := 0; t <= end; t++ {
		c1, ok1 := occupied(p1, t)
		c2, ok2 := occupied(p2, t)
		if !ok1 || !ok2 {
			continue
		}
		if c1 == c2 {
			return &Conflict{Agent1: a1, Agent2: a2, Cell: c1, Time: t}
		}
		if !edges || t == 0 {
			continue
		}
		prev1, ok1 := occupied(p1, t-1)
		prev2, ok2 := occupied(p2, t-1)
		if ok1 && ok2 && prev1 == c2 && prev2 == c1 {
			return &Conflict{Agent1: a1, Agent2: a2, Cell: prev1, To: c1, Time: t, IsEdge: true}
		}
	}
	return nil
}

// FindFirstConflict returns the earliest conflict over all agent pairs, ties
// broken by agent order. Nil means the paths are jointly valid.
func FindFirstConflict(paths map[core.AgentID]core.Path, edges bool) *Conflict {
	ids := sortedAgentIDs(paths)
	var best *Conflict
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			c := pairConflict(ids[i], ids[j], paths[ids[i]], paths[ids[j]], edges)
			if c != nil && (best == nil || c.Time < best.Time) {
				best = c
			}
		}
	}
	return best
}

// FindAllConflicts returns the first conflict of every colliding pair.
func FindAllConflicts(paths map[core.AgentID]core.Path, edges bool) []*Conflict {
	ids := sortedAgentIDs(paths)
	var out []*Conflict
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if c := pairConflict(ids[i], ids[j], paths[ids[i]], paths[ids[j]], edges); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

func isTruncated(err error) bool {
	return errors.Is(err, ErrTruncated)
}
