package algo

import (
	"container/heap"
	"context"
	"fmt"
	"sync/atomic"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/interval"
)

// cancelCheckInterval is how many expansions pass between context checks.
const cancelCheckInterval = 256

// sippState is a (cell, safe interval) pair.
type sippState struct {
	cell int
	iv   int
}

// sippNode for priority queue. Parents are arena indices.
type sippNode struct {
	state   sippState
	cell    core.Cell
	arrival int // g: earliest arrival time in the interval
	f       int // arrival + h
	moves   int
	parent  int
	id      int
	index   int // heap index
}

// sippHeap implements heap.Interface. Ties on f go to fewer moves, then the
// lower cell id, the earlier interval and finally insertion order.
type sippHeap []*sippNode

func (h sippHeap) Len() int { return len(h) }
func (h sippHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.moves != b.moves {
		return a.moves < b.moves
	}
	if a.state.cell != b.state.cell {
		return a.state.cell < b.state.cell
	}
	if a.state.iv != b.state.iv {
		return a.state.iv < b.state.iv
	}
	return a.id < b.id
}
func (h sippHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *sippHeap) Push(x any) {
	n := x.(*sippNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *sippHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// SIPP is the single-agent safe interval planner. One SIPP may serve many
// concurrent Solve calls; each call owns its open list, closed set and
// node arena.
type SIPP struct {
	table         *interval.Table
	heuristic     HeuristicKind
	distances     *DistanceTables
	maxExpansions int

	expanded atomic.Int64
}

// NewSIPP creates a planner over a safe interval table.
func NewSIPP(tbl *interval.Table, kind HeuristicKind, maxExpansions int) (*SIPP, error) {
	s := &SIPP{table: tbl, heuristic: kind, maxExpansions: maxExpansions}
	switch kind {
	case ManhattanHeuristic, "":
		s.heuristic = ManhattanHeuristic
	case DistanceHeuristic:
		d, err := NewDistanceTables(tbl.Grid())
		if err != nil {
			return nil, err
		}
		s.distances = d
	default:
		return nil, fmt.Errorf("%w: unknown heuristic %q", core.ErrInvalidInput, kind)
	}
	return s, nil
}

// Table returns the safe interval table the planner searches.
func (s *SIPP) Table() *interval.Table { return s.table }

// Expanded returns the total number of states expanded so far.
func (s *SIPP) Expanded() int64 { return s.expanded.Load() }

func (s *SIPP) heuristicFor(goal core.Cell) (heuristicFunc, error) {
	if s.distances != nil {
		return s.distances.heuristic(goal)
	}
	return manhattanTo(goal), nil
}

// Solve finds the earliest-arrival path for agent that stays inside safe
// intervals and honours every constraint binding the agent. It fails with
// ErrInfeasible when no such path exists and ErrTruncated when ctx is done
// or the expansion cap is hit.
func (s *SIPP) Solve(ctx context.Context, agent core.Agent, constraints []Constraint) (core.Path, error) {
	grid := s.table.Grid()
	if !grid.IsFree(agent.Start) || !grid.IsFree(agent.Goal) {
		return nil, fmt.Errorf("%w: agent %d start or goal not free", core.ErrInvalidInput, agent.ID)
	}

	ct, err := newConstraintTable(grid, constraintsFor(agent.ID, constraints))
	if err != nil {
		return nil, err
	}
	h, err := s.heuristicFor(agent.Goal)
	if err != nil {
		return nil, err
	}
	if h(agent.Start) >= unreachable {
		return nil, fmt.Errorf("%w: agent %d goal %s unreachable", ErrInfeasible, agent.ID, agent.Goal)
	}

	effective := make(map[int][]interval.Interval)
	intervalsOf := func(idx int, c core.Cell) []interval.Interval {
		ivs, ok := effective[idx]
		if !ok {
			ivs = ct.effective(s.table.Intervals(c), idx)
			effective[idx] = ivs
		}
		return ivs
	}

	startIdx := grid.Index(agent.Start)
	startIvs := intervalsOf(startIdx, agent.Start)
	if len(startIvs) == 0 {
		return nil, fmt.Errorf("%w: agent %d start %s never safe", ErrInfeasible, agent.ID, agent.Start)
	}
	if agent.Start == agent.Goal && ct.empty() && startIvs[0].Start == 0 && s.table.ReachesHorizon(startIvs[0]) {
		return core.Path{{Cell: agent.Start, T: 0}}, nil
	}

	var arena []*sippNode
	newNode := func(n *sippNode) *sippNode {
		n.id = len(arena)
		arena = append(arena, n)
		return n
	}

	root := newNode(&sippNode{
		state:   sippState{cell: startIdx, iv: 0},
		cell:    agent.Start,
		arrival: startIvs[0].Start,
		f:       startIvs[0].Start + h(agent.Start),
		parent:  -1,
	})
	best := map[sippState]int{root.state: root.arrival}

	open := &sippHeap{}
	heap.Init(open)
	heap.Push(open, root)

	expanded := 0
	defer func() { s.expanded.Add(int64(expanded)) }()

	for open.Len() > 0 {
		current := heap.Pop(open).(*sippNode)
		if current.arrival > best[current.state] {
			continue
		}

		expanded++
		if expanded%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: agent %d: %v", ErrTruncated, agent.ID, err)
			}
		}
		if s.maxExpansions > 0 && expanded > s.maxExpansions {
			return nil, fmt.Errorf("%w: agent %d exceeded %d expansions", ErrTruncated, agent.ID, s.maxExpansions)
		}

		cur := intervalsOf(current.state.cell, current.cell)[current.state.iv]
		if current.cell == agent.Goal && s.table.ReachesHorizon(cur) {
			return reconstructPath(arena, current), nil
		}

		for _, nb := range grid.Neighbors(current.cell) {
			hn := h(nb)
			if hn >= unreachable {
				continue
			}
			nbIdx := grid.Index(nb)
			for j, iv := range intervalsOf(nbIdx, nb) {
				// leaving at iv.Start-1 must still be inside cur
				if iv.Start > cur.End {
					break
				}
				arrive := max(current.arrival+1, iv.Start)
				for arrive-1 < cur.End && arrive < iv.End && ct.edgeForbidden(current.state.cell, nbIdx, arrive) {
					arrive++
				}
				if arrive-1 >= cur.End || arrive >= iv.End {
					continue
				}

				st := sippState{cell: nbIdx, iv: j}
				if b, ok := best[st]; ok && b <= arrive {
					continue
				}
				best[st] = arrive
				heap.Push(open, newNode(&sippNode{
					state:   st,
					cell:    nb,
					arrival: arrive,
					f:       arrive + hn,
					moves:   current.moves + 1,
					parent:  current.id,
				}))
			}
		}
	}

	return nil, fmt.Errorf("%w: agent %d has no safe route to %s", ErrInfeasible, agent.ID, agent.Goal)
}

// reconstructPath expands the interval hops into one entry per time step,
// filling waits in place.
func reconstructPath(arena []*sippNode, goal *sippNode) core.Path {
	var hops []*sippNode
	for n := goal; ; n = arena[n.parent] {
		hops = append(hops, n)
		if n.parent < 0 {
			break
		}
	}

	path := make(core.Path, 0, goal.arrival-hops[len(hops)-1].arrival+1)
	for i := len(hops) - 1; i > 0; i-- {
		from, to := hops[i], hops[i-1]
		for t := from.arrival; t < to.arrival; t++ {
			path = append(path, core.TimedCell{Cell: from.cell, T: t})
		}
	}
	return append(path, core.TimedCell{Cell: goal.cell, T: goal.arrival})
}
