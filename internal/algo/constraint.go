package algo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/interval"
)

// Constraint restricts where one agent may be at one time step.
//
// A vertex constraint concerns Cell at Time. An edge constraint concerns the
// move Cell -> To that arrives at Time. Negative constraints forbid the
// location, positive ones require it of Agent and forbid it to everyone
// else.
type Constraint struct {
	Agent    core.AgentID
	Cell     core.Cell
	To       core.Cell
	Time     int
	IsEdge   bool
	Positive bool
	// Forever extends a negative vertex constraint to every t >= Time.
	Forever bool
}

func (c Constraint) String() string {
	sign := "-"
	if c.Positive {
		sign = "+"
	}
	if c.IsEdge {
		return fmt.Sprintf("%sa%d %s>%s@%d", sign, c.Agent, c.Cell, c.To, c.Time)
	}
	if c.Forever {
		return fmt.Sprintf("%sa%d %s@%d+", sign, c.Agent, c.Cell, c.Time)
	}
	return fmt.Sprintf("%sa%d %s@%d", sign, c.Agent, c.Cell, c.Time)
}

// constraintKey returns a canonical identity for a set of constraints.
func constraintKey(cs []Constraint) string {
	keys := make([]string, len(cs))
	for i, c := range cs {
		keys[i] = c.String()
	}
	sort.Strings(keys)
	return strings.Join(keys, ";")
}

// constraintsFor selects the constraints that bind agent. Positive
// constraints of other agents become negative ones: a required vertex is
// forbidden, and a required move forbids both of its endpoints at their
// times plus the opposite traversal.
func constraintsFor(agent core.AgentID, all []Constraint) []Constraint {
	var out []Constraint
	for _, c := range all {
		if c.Agent == agent {
			out = append(out, c)
			continue
		}
		if !c.Positive {
			continue
		}
		if !c.IsEdge {
			out = append(out, Constraint{Agent: agent, Cell: c.Cell, Time: c.Time})
			continue
		}
		out = append(out,
			Constraint{Agent: agent, Cell: c.To, Time: c.Time},
			Constraint{Agent: agent, Cell: c.Cell, Time: c.Time - 1},
			Constraint{Agent: agent, Cell: c.To, To: c.Cell, Time: c.Time, IsEdge: true},
		)
	}
	return out
}

// violates reports whether path breaks a negative constraint that binds it.
func violates(path core.Path, c Constraint) bool {
	if c.Positive || len(path) == 0 {
		return false
	}
	if c.IsEdge {
		from, ok1 := occupied(path, c.Time-1)
		to, ok2 := occupied(path, c.Time)
		return ok1 && ok2 && from == c.Cell && to == c.To
	}
	if c.Forever {
		for t := c.Time; t <= max(c.Time, path.Cost()); t++ {
			if at, ok := occupied(path, t); ok && at == c.Cell {
				return true
			}
		}
		return false
	}
	at, ok := occupied(path, c.Time)
	return ok && at == c.Cell
}

type edgeKey struct {
	from, to, t int
}

// constraintTable indexes the constraints binding one agent for the
// low-level search.
type constraintTable struct {
	grid *core.GridMap
	// forbidden[cell] holds the vertex-forbidden time steps of a cell.
	forbidden map[int][]int
	// foreverFrom[cell] forbids the cell from that time onwards.
	foreverFrom map[int]int
	edges       map[edgeKey]bool
	// pins[t] is the only cell the agent may occupy at t.
	pins map[int]int
}

func newConstraintTable(grid *core.GridMap, cs []Constraint) (*constraintTable, error) {
	ct := &constraintTable{
		grid:        grid,
		forbidden:   make(map[int][]int),
		foreverFrom: make(map[int]int),
		edges:       make(map[edgeKey]bool),
		pins:        make(map[int]int),
	}
	pin := func(t, cell int) error {
		if prev, ok := ct.pins[t]; ok && prev != cell {
			return fmt.Errorf("%w: contradictory positive constraints at t=%d", ErrInfeasible, t)
		}
		ct.pins[t] = cell
		return nil
	}

	for _, c := range cs {
		if c.Time < 0 {
			continue
		}
		from := grid.Index(c.Cell)
		switch {
		case c.Positive && c.IsEdge:
			if err := pin(c.Time-1, from); err != nil {
				return nil, err
			}
			if err := pin(c.Time, grid.Index(c.To)); err != nil {
				return nil, err
			}
		case c.Positive:
			if err := pin(c.Time, from); err != nil {
				return nil, err
			}
		case c.IsEdge:
			ct.edges[edgeKey{from: from, to: grid.Index(c.To), t: c.Time}] = true
		case c.Forever:
			if t, ok := ct.foreverFrom[from]; !ok || c.Time < t {
				ct.foreverFrom[from] = c.Time
			}
		default:
			ct.forbidden[from] = append(ct.forbidden[from], c.Time)
		}
	}
	return ct, nil
}

func (ct *constraintTable) empty() bool {
	return len(ct.forbidden) == 0 && len(ct.foreverFrom) == 0 && len(ct.edges) == 0 && len(ct.pins) == 0
}

// edgeForbidden reports whether moving from -> to arriving at t is forbidden.
func (ct *constraintTable) edgeForbidden(from, to, t int) bool {
	return ct.edges[edgeKey{from: from, to: to, t: t}]
}

// forbiddenTimes returns the sorted vertex-forbidden times of cell,
// including times pinned to another cell.
func (ct *constraintTable) forbiddenTimes(cell int) []int {
	ts := append([]int(nil), ct.forbidden[cell]...)
	for t, c := range ct.pins {
		if c != cell {
			ts = append(ts, t)
		}
	}
	sort.Ints(ts)
	return ts
}

// effective returns the safe intervals of cell minus every time the
// constraints forbid.
func (ct *constraintTable) effective(base []interval.Interval, cell int) []interval.Interval {
	ts := ct.forbiddenTimes(cell)
	limit, hasLimit := ct.foreverFrom[cell]
	if len(ts) == 0 && !hasLimit {
		return base
	}

	var out []interval.Interval
	k := 0
	for _, iv := range base {
		start, end := iv.Start, iv.End
		if hasLimit && end > limit {
			end = limit
		}
		for k < len(ts) && ts[k] < start {
			k++
		}
		for k < len(ts) && ts[k] < end {
			if ts[k] > start {
				out = append(out, interval.Interval{Start: start, End: ts[k]})
			}
			start = ts[k] + 1
			k++
		}
		if start < end {
			out = append(out, interval.Interval{Start: start, End: end})
		}
	}
	return out
}
