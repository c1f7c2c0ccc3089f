package algo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// Prioritized implements prioritized planning: agents are planned one at a
// time and every earlier path becomes a set of reservations for the later
// ones. Fast but incomplete; a failure only means this order failed.
type Prioritized struct {
	opts   Options
	logger *slog.Logger
}

// NewPrioritized creates a prioritized planning solver.
func NewPrioritized(opts Options, options ...Option) *Prioritized {
	if opts.Objective == "" {
		opts.Objective = core.SumOfCost
	}
	h := applyHooks(options)
	return &Prioritized{opts: opts, logger: h.logger}
}

func (p *Prioritized) Name() string { return "Prioritized-SIPP" }

// Solve implements prioritized planning.
func (p *Prioritized) Solve(ctx context.Context, inst *core.Instance) (*core.Solution, error) {
	started := time.Now()

	tbl, err := BuildTable(inst, p.opts)
	if err != nil {
		return nil, err
	}
	sipp, err := NewSIPP(tbl, p.opts.Heuristic, p.opts.MaxExpansions)
	if err != nil {
		return nil, err
	}
	if p.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Deadline)
		defer cancel()
	}

	sol := core.NewSolution()
	sol.RunID = uuid.NewString()
	sol.Solver = p.Name()
	sol.Objective = p.opts.Objective
	log := p.logger.With("run_id", sol.RunID, "solver", sol.Solver)
	defer func() { sol.Stats.Elapsed = time.Since(started) }()

	var reserved []Constraint
	for _, agent := range computePriority(inst.Agents) {
		cs := make([]Constraint, len(reserved))
		for i, c := range reserved {
			c.Agent = agent.ID
			cs[i] = c
		}

		sol.Stats.LowLevelCalls++
		path, err := sipp.Solve(ctx, agent, cs)
		if err != nil {
			if isTruncated(err) {
				sol.Outcome = core.Truncated
			}
			log.Info("planning stopped", "agent", agent.ID, "error", err)
			return sol, fmt.Errorf("agent %d: %w", agent.ID, err)
		}
		sol.Paths[agent.ID] = path
		reserved = append(reserved, reservations(path, p.opts.EdgeConflicts)...)
	}

	sol.Stats.Expanded = int(sipp.Expanded())
	sol.Outcome = core.Solved
	sol.ComputeCosts()
	log.Info("solution found", "cost", sol.Cost, "makespan", sol.Makespan)
	return sol, nil
}

// computePriority orders agents for planning: longest static route first,
// ties by id.
func computePriority(agents []core.Agent) []core.Agent {
	out := append([]core.Agent(nil), agents...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LowerBound() != out[j].LowerBound() {
			return out[i].LowerBound() > out[j].LowerBound()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// reservations turns a planned path into constraints for later agents: its
// cells at their times, the opposite traversal of each move and the goal
// from arrival onwards.
func reservations(path core.Path, edges bool) []Constraint {
	out := make([]Constraint, 0, 2*len(path))
	for i, tc := range path {
		if i == len(path)-1 {
			out = append(out, Constraint{Cell: tc.Cell, Time: tc.T, Forever: true})
			break
		}
		out = append(out, Constraint{Cell: tc.Cell, Time: tc.T})
		next := path[i+1]
		if edges && next.Cell != tc.Cell {
			out = append(out, Constraint{Cell: next.Cell, To: tc.Cell, Time: next.T, IsEdge: true})
		}
	}
	return out
}
