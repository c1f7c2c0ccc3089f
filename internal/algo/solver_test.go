package algo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/interval"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
)

// createGrid creates an open rows x cols grid.
func createGrid(t *testing.T, rows, cols int, blocked ...core.Cell) *core.GridMap {
	t.Helper()
	g, err := core.NewGridMap(rows, cols, blocked)
	require.NoError(t, err)
	return g
}

// createTable builds a safe interval table for the given obstacles.
func createTable(t *testing.T, g *core.GridMap, theta float64, horizon int, obs ...core.DynamicObstacle) *interval.Table {
	t.Helper()
	m, err := risk.NewModel(g, obs, risk.Linear)
	require.NoError(t, err)
	tbl, err := interval.Build(m, g, interval.Options{Threshold: theta, Horizon: horizon})
	require.NoError(t, err)
	return tbl
}

// pointObstacle is present only on c at time ts.
func pointObstacle(id string, c core.Cell, ts int, p float64) core.DynamicObstacle {
	return core.DynamicObstacle{
		ID:    id,
		Start: c,
		Trajectories: []core.Trajectory{{
			Points:          []core.Waypoint{{X: c.X, Y: c.Y, T: ts, P: p}},
			HideBeforeStart: true,
		}},
	}
}

func cells(cs ...[2]int) core.Path {
	p := make(core.Path, len(cs))
	for i, c := range cs {
		p[i] = core.TimedCell{Cell: core.Cell{X: c[0], Y: c[1]}, T: i}
	}
	return p
}

func TestFindFirstConflict_NoConflict(t *testing.T) {
	paths := map[core.AgentID]core.Path{
		0: cells([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2}),
		1: cells([2]int{2, 0}, [2]int{2, 1}, [2]int{2, 2}),
	}

	if c := FindFirstConflict(paths, true); c != nil {
		t.Errorf("Expected no conflict, got %s", c)
	}
}

func TestFindFirstConflict_VertexConflict(t *testing.T) {
	paths := map[core.AgentID]core.Path{
		0: cells([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2}),
		1: cells([2]int{1, 1}, [2]int{0, 1}, [2]int{1, 1}),
	}

	c := FindFirstConflict(paths, true)
	if c == nil {
		t.Fatal("Expected vertex conflict, got nil")
	}
	if c.IsEdge || c.Cell != (core.Cell{X: 0, Y: 1}) || c.Time != 1 {
		t.Errorf("Expected vertex conflict at (0,1) t=1, got %s", c)
	}
}

func TestFindFirstConflict_EdgeConflict(t *testing.T) {
	paths := map[core.AgentID]core.Path{
		0: cells([2]int{0, 0}, [2]int{0, 1}),
		1: cells([2]int{0, 1}, [2]int{0, 0}),
	}

	c := FindFirstConflict(paths, true)
	if c == nil {
		t.Fatal("Expected edge conflict, got nil")
	}
	if !c.IsEdge || c.Cell != (core.Cell{X: 0, Y: 0}) || c.To != (core.Cell{X: 0, Y: 1}) || c.Time != 1 {
		t.Errorf("Unexpected edge conflict %s", c)
	}

	if c := FindFirstConflict(paths, false); c != nil {
		t.Errorf("Edge conflicts disabled, got %s", c)
	}
}

func TestFindFirstConflict_GoalWaiting(t *testing.T) {
	// Agent 0 parks on (0,1) at t=1; agent 1 passes it at t=3.
	paths := map[core.AgentID]core.Path{
		0: cells([2]int{0, 0}, [2]int{0, 1}),
		1: cells([2]int{2, 1}, [2]int{2, 1}, [2]int{1, 1}, [2]int{0, 1}, [2]int{0, 2}),
	}

	c := FindFirstConflict(paths, true)
	if c == nil || c.Time != 3 {
		t.Fatalf("Expected conflict at t=3, got %v", c)
	}
}

func TestFindFirstConflict_LateStart(t *testing.T) {
	late := core.Path{{Cell: core.Cell{X: 0, Y: 1}, T: 3}, {Cell: core.Cell{X: 0, Y: 2}, T: 4}}
	paths := map[core.AgentID]core.Path{
		0: cells([2]int{0, 0}, [2]int{0, 1}, [2]int{1, 1}),
		1: late,
	}

	if c := FindFirstConflict(paths, true); c != nil {
		t.Errorf("Agent before its start must not collide, got %s", c)
	}
}

func TestFindAllConflicts(t *testing.T) {
	paths := map[core.AgentID]core.Path{
		0: cells([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2}),
		1: cells([2]int{1, 1}, [2]int{0, 1}, [2]int{1, 1}),
		2: cells([2]int{1, 2}, [2]int{0, 2}, [2]int{0, 2}),
		3: cells([2]int{3, 3}, [2]int{3, 2}),
	}

	conflicts := FindAllConflicts(paths, true)
	if len(conflicts) != 2 {
		t.Errorf("Expected 2 colliding pairs, got %d", len(conflicts))
	}
}
