package algo

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// CBS implements Conflict-Based Search with SIPP as the low-level planner.
type CBS struct {
	opts     Options
	logger   *slog.Logger
	observer Observer
}

// Option customizes a solver.
type Option func(*solverHooks)

type solverHooks struct {
	logger   *slog.Logger
	observer Observer
}

// WithLogger sets the logger. Nil discards output.
func WithLogger(l *slog.Logger) Option {
	return func(h *solverHooks) { h.logger = l }
}

// WithObserver attaches a search observer.
func WithObserver(o Observer) Option {
	return func(h *solverHooks) { h.observer = o }
}

func applyHooks(options []Option) solverHooks {
	var h solverHooks
	for _, o := range options {
		o(&h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h
}

// NewCBS creates a CBS solver.
func NewCBS(opts Options, options ...Option) *CBS {
	if opts.Objective == "" {
		opts.Objective = core.SumOfCost
	}
	if opts.Splitting == "" {
		opts.Splitting = StandardSplitting
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	h := applyHooks(options)
	obs := Observers{LogObserver{Logger: h.logger}}
	if h.observer != nil {
		obs = append(obs, h.observer)
	}
	return &CBS{opts: opts, logger: h.logger, observer: obs}
}

func (c *CBS) Name() string {
	if c.opts.Splitting == DisjointSplitting {
		return "CBS-SIPP-DS"
	}
	return "CBS-SIPP"
}

// ctNode is a node in the constraint tree. Nodes are never modified once
// pushed; children share unchanged paths with their parent.
type ctNode struct {
	id        int
	parent    int
	depth     int
	delta     []Constraint
	paths     map[core.AgentID]core.Path
	cost      int
	conflicts int
	index     int
}

type ctHeap []*ctNode

func (h ctHeap) Len() int { return len(h) }
func (h ctHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	if h[i].conflicts != h[j].conflicts {
		return h[i].conflicts < h[j].conflicts
	}
	return h[i].id < h[j].id
}
func (h ctHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *ctHeap) Push(x any) {
	n := x.(*ctNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *ctHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

type planResult struct {
	path core.Path
	err  error
}

// lowLevel memoizes SIPP results per agent and constraint set.
type lowLevel struct {
	sipp *SIPP

	mu    sync.Mutex
	cache map[string]planResult
	calls int
	hits  int
}

func newLowLevel(s *SIPP) *lowLevel {
	return &lowLevel{sipp: s, cache: make(map[string]planResult)}
}

func (l *lowLevel) plan(ctx context.Context, agent core.Agent, all []Constraint) (core.Path, error) {
	cs := constraintsFor(agent.ID, all)
	key := fmt.Sprintf("%d|%s", agent.ID, constraintKey(cs))

	l.mu.Lock()
	if r, ok := l.cache[key]; ok {
		l.hits++
		l.mu.Unlock()
		return r.path, r.err
	}
	l.calls++
	l.mu.Unlock()

	path, err := l.sipp.Solve(ctx, agent, cs)
	if err == nil || errors.Is(err, ErrInfeasible) {
		l.mu.Lock()
		l.cache[key] = planResult{path: path, err: err}
		l.mu.Unlock()
	}
	return path, err
}

func (l *lowLevel) counters() (calls, hits int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls, l.hits
}

// cbsSearch holds the state of one Solve call.
type cbsSearch struct {
	*CBS
	log    *slog.Logger
	agents map[core.AgentID]core.Agent
	ids    []core.AgentID
	ll     *lowLevel
	arena  []*ctNode
	open   ctHeap
	seen   map[string]bool
	sol    *core.Solution
	// incomplete is set when a branch was dropped because its low-level
	// search was capped rather than proven infeasible.
	incomplete bool
}

// Solve implements the CBS algorithm.
func (c *CBS) Solve(ctx context.Context, inst *core.Instance) (*core.Solution, error) {
	started := time.Now()

	tbl, err := BuildTable(inst, c.opts)
	if err != nil {
		return nil, err
	}
	sipp, err := NewSIPP(tbl, c.opts.Heuristic, c.opts.MaxExpansions)
	if err != nil {
		return nil, err
	}

	if c.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Deadline)
		defer cancel()
	}

	sol := core.NewSolution()
	sol.RunID = uuid.NewString()
	sol.Solver = c.Name()
	sol.Objective = c.opts.Objective

	s := &cbsSearch{
		CBS:    c,
		log:    c.logger.With("run_id", sol.RunID, "solver", sol.Solver),
		agents: make(map[core.AgentID]core.Agent, len(inst.Agents)),
		ll:     newLowLevel(sipp),
		seen:   make(map[string]bool),
		sol:    sol,
	}
	for _, a := range inst.Agents {
		s.agents[a.ID] = a
		s.ids = append(s.ids, a.ID)
	}
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })

	s.log.Info("planning", "instance", inst.Name, "agents", len(inst.Agents),
		"obstacles", len(inst.Obstacles), "splitting", c.opts.Splitting, "objective", c.opts.Objective)

	err = s.run(ctx)
	sol.Stats.Generated = len(s.arena)
	sol.Stats.LowLevelCalls, sol.Stats.CacheHits = s.ll.counters()
	sol.Stats.Elapsed = time.Since(started)
	if err != nil {
		s.log.Info("planning stopped", "outcome", sol.Outcome, "error", err, "expanded", sol.Stats.Expanded)
		return sol, err
	}
	c.observer.OnSolutionFound(sol)
	return sol, nil
}

func (s *cbsSearch) run(ctx context.Context) error {
	rootPaths, err := s.planRoot(ctx)
	if err != nil {
		return err
	}
	root := s.newNode(nil, nil, rootPaths)
	s.seen[""] = true
	heap.Push(&s.open, root)

	for s.open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return s.truncate("%v", err)
		}

		node := heap.Pop(&s.open).(*ctNode)
		s.sol.Stats.Expanded++
		s.observer.OnNodeExpanded(s.info(node))

		conflict := FindFirstConflict(node.paths, s.opts.EdgeConflicts)
		if conflict == nil {
			s.sol.Outcome = core.Solved
			s.sol.Paths = node.paths
			s.sol.ComputeCosts()
			return nil
		}
		s.sol.Stats.Conflicts++
		s.observer.OnConflictDetected(s.info(node), *conflict)

		if s.opts.MaxNodes > 0 && len(s.arena) >= s.opts.MaxNodes {
			return s.truncate("constraint tree reached %d nodes", s.opts.MaxNodes)
		}

		if err := s.branch(ctx, node, *conflict); err != nil {
			return err
		}
	}

	if s.incomplete {
		return s.truncate("branches dropped by the expansion cap")
	}
	s.sol.Outcome = core.Infeasible
	return fmt.Errorf("%w: constraint tree exhausted after %d expansions", ErrInfeasible, s.sol.Stats.Expanded)
}

func (s *cbsSearch) truncate(format string, args ...any) error {
	s.sol.Outcome = core.Truncated
	return fmt.Errorf("%w: %s", ErrTruncated, fmt.Sprintf(format, args...))
}

// planRoot solves every agent without constraints, concurrently.
func (s *cbsSearch) planRoot(ctx context.Context) (map[core.AgentID]core.Path, error) {
	results := make([]planResult, len(s.ids))
	p := pool.New().WithMaxGoroutines(s.opts.Workers)
	for i, id := range s.ids {
		p.Go(func() {
			path, err := s.ll.plan(ctx, s.agents[id], nil)
			results[i] = planResult{path: path, err: err}
		})
	}
	p.Wait()

	paths := make(map[core.AgentID]core.Path, len(s.ids))
	for i, id := range s.ids {
		r := results[i]
		switch {
		case errors.Is(r.err, ErrTruncated):
			return nil, s.truncate("root plan for agent %d: %v", id, r.err)
		case r.err != nil:
			if errors.Is(r.err, ErrInfeasible) {
				s.sol.Outcome = core.Infeasible
			}
			return nil, r.err
		}
		paths[id] = r.path
	}
	return paths, nil
}

// split returns the constraint added by each child of a conflict.
func (s *cbsSearch) split(c Conflict) []Constraint {
	first := Constraint{Agent: c.Agent1, Cell: c.Cell, Time: c.Time}
	second := Constraint{Agent: c.Agent2, Cell: c.Cell, Time: c.Time}
	if c.IsEdge {
		first.To, first.IsEdge = c.To, true
		second.Cell, second.To, second.IsEdge = c.To, c.Cell, true
	}
	if s.opts.Splitting == DisjointSplitting {
		positive := first
		positive.Positive = true
		return []Constraint{positive, first}
	}
	return []Constraint{first, second}
}

type childPlan struct {
	delta  Constraint
	all    []Constraint
	replan []core.AgentID
}

// branch creates the children of node and pushes the feasible ones.
func (s *cbsSearch) branch(ctx context.Context, node *ctNode, conflict Conflict) error {
	inherited := s.constraints(node)

	var children []childPlan
	for _, delta := range s.split(conflict) {
		all := append(append([]Constraint(nil), inherited...), delta)
		key := constraintKey(all)
		if s.seen[key] {
			s.sol.Stats.Duplicates++
			s.observer.OnNodePruned(s.info(node), "duplicate constraint set")
			continue
		}
		s.seen[key] = true
		children = append(children, childPlan{delta: delta, all: all, replan: s.affected(node, delta)})
	}

	results := make([][]planResult, len(children))
	p := pool.New().WithMaxGoroutines(s.opts.Workers)
	for ci, ch := range children {
		results[ci] = make([]planResult, len(ch.replan))
		for ai, id := range ch.replan {
			p.Go(func() {
				path, err := s.ll.plan(ctx, s.agents[id], ch.all)
				results[ci][ai] = planResult{path: path, err: err}
			})
		}
	}
	p.Wait()

	for ci, ch := range children {
		paths := maps.Clone(node.paths)
		var failure error
		for ai, id := range ch.replan {
			r := results[ci][ai]
			if r.err != nil {
				failure = r.err
				break
			}
			paths[id] = r.path
		}
		if failure != nil {
			if errors.Is(failure, ErrTruncated) {
				if err := ctx.Err(); err != nil {
					return s.truncate("%v", err)
				}
				s.incomplete = true
			}
			s.sol.Stats.Pruned++
			s.observer.OnNodePruned(s.info(node), failure.Error())
			continue
		}
		heap.Push(&s.open, s.newNode(node, []Constraint{ch.delta}, paths))
	}
	return nil
}

// affected lists the agents whose paths must be replanned after delta.
func (s *cbsSearch) affected(node *ctNode, delta Constraint) []core.AgentID {
	if !delta.Positive {
		return []core.AgentID{delta.Agent}
	}
	var out []core.AgentID
	for _, id := range s.ids {
		if id == delta.Agent {
			continue
		}
		for _, c := range constraintsFor(id, []Constraint{delta}) {
			if violates(node.paths[id], c) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// constraints collects every constraint on the path from the root to node.
func (s *cbsSearch) constraints(node *ctNode) []Constraint {
	var out []Constraint
	for n := node; n != nil; {
		out = append(out, n.delta...)
		if n.parent < 0 {
			break
		}
		n = s.arena[n.parent]
	}
	return out
}

func (s *cbsSearch) newNode(parent *ctNode, delta []Constraint, paths map[core.AgentID]core.Path) *ctNode {
	n := &ctNode{
		id:        len(s.arena),
		parent:    -1,
		delta:     delta,
		paths:     paths,
		cost:      s.opts.Objective.Of(paths),
		conflicts: len(FindAllConflicts(paths, s.opts.EdgeConflicts)),
	}
	if parent != nil {
		n.parent = parent.id
		n.depth = parent.depth + 1
	}
	s.arena = append(s.arena, n)
	return n
}

func (s *cbsSearch) info(n *ctNode) NodeInfo {
	return NodeInfo{
		ID:        n.id,
		Parent:    n.parent,
		Depth:     n.depth,
		Cost:      n.cost,
		Conflicts: n.conflicts,
		Delta:     n.delta,
	}
}
