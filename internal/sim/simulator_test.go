package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

func corridor(t *testing.T, obs ...core.DynamicObstacle) *core.Instance {
	t.Helper()
	g, err := core.NewGridMap(1, 3, nil)
	require.NoError(t, err)
	return &core.Instance{
		Map:       g,
		Agents:    []core.Agent{{ID: 0, Start: core.Cell{}, Goal: core.Cell{Y: 2}}},
		Obstacles: obs,
	}
}

func point(c core.Cell, ts int, p float64) core.DynamicObstacle {
	return core.DynamicObstacle{
		ID:    "a",
		Start: c,
		Trajectories: []core.Trajectory{{
			Points:          []core.Waypoint{{X: c.X, Y: c.Y, T: ts, P: p}},
			HideBeforeStart: true,
		}},
	}
}

func straight() *core.Solution {
	sol := core.NewSolution()
	sol.Paths[0] = core.Path{{Cell: core.Cell{}, T: 0}, {Cell: core.Cell{Y: 1}, T: 1}, {Cell: core.Cell{Y: 2}, T: 2}}
	sol.Outcome = core.Solved
	sol.ComputeCosts()
	return sol
}

func config(trials int) Config {
	cfg := DefaultConfig()
	cfg.Threshold = 0.6
	cfg.Trials = trials
	cfg.Workers = 4
	return cfg
}

func TestRun_ReplaysCBSSolution(t *testing.T) {
	g, err := core.NewGridMap(3, 3, nil)
	require.NoError(t, err)
	inst := &core.Instance{
		Map: g,
		Agents: []core.Agent{
			{ID: 0, Start: core.Cell{X: 1, Y: 0}, Goal: core.Cell{X: 1, Y: 2}},
			{ID: 1, Start: core.Cell{X: 0, Y: 1}, Goal: core.Cell{X: 2, Y: 1}},
		},
	}
	sol, err := algo.NewCBS(algo.DefaultOptions()).Solve(context.Background(), inst)
	require.NoError(t, err)

	rep, err := New(config(100), nil).Run(context.Background(), inst, sol)
	require.NoError(t, err)
	assert.True(t, rep.OK(), "%+v", rep)
	assert.Equal(t, 3, rep.Steps)
	assert.Zero(t, rep.Collisions)
	assert.Equal(t, 100, rep.Trials)
}

func TestRun_DetectsConflictsAndBadPaths(t *testing.T) {
	g, err := core.NewGridMap(1, 3, nil)
	require.NoError(t, err)
	inst := &core.Instance{
		Map: g,
		Agents: []core.Agent{
			{ID: 0, Start: core.Cell{}, Goal: core.Cell{Y: 1}},
			{ID: 1, Start: core.Cell{Y: 2}, Goal: core.Cell{Y: 0}},
		},
	}
	sol := core.NewSolution()
	sol.Paths[0] = core.Path{{Cell: core.Cell{}, T: 0}, {Cell: core.Cell{Y: 1}, T: 1}}
	sol.Paths[1] = core.Path{{Cell: core.Cell{Y: 2}, T: 0}, {Cell: core.Cell{Y: 1}, T: 1}, {Cell: core.Cell{}, T: 2}}

	rep, err := New(config(0), nil).Run(context.Background(), inst, sol)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	assert.NotEmpty(t, rep.Conflicts)

	sol.Paths[0] = core.Path{{Cell: core.Cell{}, T: 0}, {Cell: core.Cell{Y: 2}, T: 1}}
	rep, err = New(config(0), nil).Run(context.Background(), inst, sol)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.Invalid)
}

func TestRun_ThresholdViolation(t *testing.T) {
	inst := corridor(t, point(core.Cell{Y: 1}, 1, 1.0))

	rep, err := New(config(0), nil).Run(context.Background(), inst, straight())
	require.NoError(t, err)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, Violation{Agent: 0, Cell: core.Cell{Y: 1}, T: 1, Risk: 1}, rep.Violations[0])
	assert.InDelta(t, 1.0, rep.PathRisk[0], 1e-9)
}

func TestRun_MonteCarlo(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want float64
		tol  float64
	}{
		{"never", 0, 0, 0},
		{"half", 0.5, 0.5, 0.05},
		{"always", 1, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config(4000)
			cfg.Threshold = 1
			inst := corridor(t, point(core.Cell{Y: 1}, 1, tt.p))

			rep, err := New(cfg, nil).Run(context.Background(), inst, straight())
			require.NoError(t, err)
			assert.Equal(t, 4000, rep.Trials)
			assert.InDelta(t, tt.want, rep.CollisionRate, tt.tol)
			assert.InDelta(t, tt.p, rep.PathRisk[0], 1e-9)
			assert.Equal(t, rep.Collisions, rep.AgentCollisions[0])
		})
	}
}

func TestRun_MissedObstacle(t *testing.T) {
	// the obstacle reaches the middle cell after the agent left it
	inst := corridor(t, point(core.Cell{Y: 1}, 2, 1.0))

	rep, err := New(config(500), nil).Run(context.Background(), inst, straight())
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Zero(t, rep.Collisions)
}

func TestRun_Reproducible(t *testing.T) {
	inst := corridor(t, point(core.Cell{Y: 1}, 1, 0.3))
	sim := New(config(1000), nil)

	first, err := sim.Run(context.Background(), inst, straight())
	require.NoError(t, err)
	second, err := sim.Run(context.Background(), inst, straight())
	require.NoError(t, err)
	assert.Equal(t, first.Collisions, second.Collisions)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inst := corridor(t, point(core.Cell{Y: 1}, 1, 0.3))
	_, err := New(config(1000), nil).Run(ctx, inst, straight())
	assert.ErrorIs(t, err, context.Canceled)
}
