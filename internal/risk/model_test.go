package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

func createGrid(t *testing.T, n int) *core.GridMap {
	t.Helper()
	g, err := core.NewGridMap(n, n, nil)
	require.NoError(t, err)
	return g
}

func obstacle(id string, start core.Cell, trs ...[]core.Waypoint) core.DynamicObstacle {
	o := core.DynamicObstacle{ID: id, Start: start}
	for _, pts := range trs {
		o.Trajectories = append(o.Trajectories, core.Trajectory{Points: pts})
	}
	return o
}

func TestExpand_Linear(t *testing.T) {
	tr := core.Trajectory{Points: []core.Waypoint{
		{X: 0, Y: 0, T: 0, P: 0.2},
		{X: 0, Y: 4, T: 4, P: 0.6},
	}}
	occ := Expand(core.Cell{}, tr, Linear)
	require.Len(t, occ, 5)
	for i, o := range occ {
		assert.Equal(t, core.Cell{X: 0, Y: i}, o.Cell)
		assert.Equal(t, i, o.T)
		assert.InDelta(t, 0.2+0.1*float64(i), o.P, 1e-9)
	}
}

func TestExpand_HoldAndStep(t *testing.T) {
	tr := core.Trajectory{Points: []core.Waypoint{
		{X: 2, Y: 0, T: 0, P: 0.5},
		{X: 2, Y: 2, T: 2, P: 1.0},
	}}

	hold := Expand(core.Cell{}, tr, Hold)
	require.Len(t, hold, 3)
	assert.Equal(t, core.Cell{X: 2, Y: 1}, hold[1].Cell)
	assert.Equal(t, 0.5, hold[1].P)

	step := Expand(core.Cell{}, tr, Step)
	require.Len(t, step, 3)
	assert.Equal(t, core.Cell{X: 2, Y: 0}, step[1].Cell)
	assert.Equal(t, 0.5, step[1].P)
	assert.Equal(t, core.Cell{X: 2, Y: 2}, step[2].Cell)
	assert.Equal(t, 1.0, step[2].P)
}

func TestExpand_ImplicitStart(t *testing.T) {
	tr := core.Trajectory{Points: []core.Waypoint{{X: 1, Y: 0, T: 2, P: 0.4}}}

	occ := Expand(core.Cell{X: 3, Y: 0}, tr, Linear)
	require.Len(t, occ, 3)
	assert.Equal(t, core.Cell{X: 3, Y: 0}, occ[0].Cell)
	assert.Equal(t, core.Cell{X: 2, Y: 0}, occ[1].Cell)
	assert.Equal(t, core.Cell{X: 1, Y: 0}, occ[2].Cell)
	assert.Equal(t, 0.4, occ[0].P)

	tr.HideBeforeStart = true
	occ = Expand(core.Cell{X: 3, Y: 0}, tr, Linear)
	require.Len(t, occ, 1)
	assert.Equal(t, 2, occ[0].T)
}

func TestModel_ProbabilisticOr(t *testing.T) {
	g := createGrid(t, 5)
	obs := []core.DynamicObstacle{
		obstacle("a", core.Cell{X: 3, Y: 3},
			[]core.Waypoint{{X: 3, Y: 3, T: 0, P: 0.5}, {X: 3, Y: 3, T: 1, P: 0.5}},
			[]core.Waypoint{{X: 3, Y: 3, T: 0, P: 0.5}},
		),
		obstacle("b", core.Cell{X: 0, Y: 0},
			[]core.Waypoint{{X: 3, Y: 3, T: 0, P: 0.2}},
		),
	}

	m, err := NewModel(g, obs, Linear)
	require.NoError(t, err)

	// 1 - 0.5*0.5*0.8
	assert.InDelta(t, 0.8, m.Risk(core.Cell{X: 3, Y: 3}, 0), 1e-9)
	assert.InDelta(t, 0.5, m.Risk(core.Cell{X: 3, Y: 3}, 1), 1e-9)
	assert.Equal(t, 0.0, m.Risk(core.Cell{X: 3, Y: 3}, 2))
	assert.Equal(t, 0.0, m.Risk(core.Cell{X: 1, Y: 1}, 0))
	assert.Equal(t, []int{0, 1}, m.Times(core.Cell{X: 3, Y: 3}))
	assert.Equal(t, 1, m.Horizon())
}

func TestModel_DisappearsAfterLastWaypoint(t *testing.T) {
	g := createGrid(t, 8)
	obs := []core.DynamicObstacle{obstacle("a", core.Cell{X: 3, Y: 3},
		[]core.Waypoint{{X: 3, Y: 3, T: 5, P: 1.0}},
	)}

	m, err := NewModel(g, obs, Linear)
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.Risk(core.Cell{X: 3, Y: 3}, 5))
	assert.Equal(t, 1.0, m.Risk(core.Cell{X: 3, Y: 3}, 0))
	assert.Equal(t, 0.0, m.Risk(core.Cell{X: 3, Y: 3}, 6))
	assert.Equal(t, 0.0, m.TailRisk(core.Cell{X: 3, Y: 3}))
}

func TestModel_Persist(t *testing.T) {
	g := createGrid(t, 4)
	obs := []core.DynamicObstacle{
		{ID: "a", Start: core.Cell{}, Trajectories: []core.Trajectory{{
			Points:  []core.Waypoint{{X: 0, Y: 0, T: 0, P: 1}, {X: 0, Y: 1, T: 1, P: 1}},
			Persist: true,
		}}},
		obstacle("b", core.Cell{X: 3, Y: 3}, []core.Waypoint{{X: 3, Y: 3, T: 4, P: 0.3}}),
	}

	m, err := NewModel(g, obs, Linear)
	require.NoError(t, err)

	assert.Equal(t, 4, m.Horizon())
	assert.Equal(t, 1.0, m.Risk(core.Cell{X: 0, Y: 1}, 3))
	assert.Equal(t, 1.0, m.Risk(core.Cell{X: 0, Y: 1}, 50))
	assert.Equal(t, 1.0, m.TailRisk(core.Cell{X: 0, Y: 1}))
	assert.Equal(t, 0.0, m.Risk(core.Cell{X: 3, Y: 3}, 50))
}

func TestModel_InvalidInput(t *testing.T) {
	g := createGrid(t, 4)

	_, err := NewModel(g, []core.DynamicObstacle{obstacle("a", core.Cell{},
		[]core.Waypoint{{X: 0, Y: 0, T: 3, P: 0.1}, {X: 0, Y: 1, T: 3, P: 0.1}},
	)}, Linear)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = NewModel(g, []core.DynamicObstacle{{ID: "a"}}, Linear)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestParseInterpolation(t *testing.T) {
	for _, mode := range []Interpolation{Linear, Hold, Step} {
		got, err := ParseInterpolation(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}
	_, err := ParseInterpolation("cubic")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
