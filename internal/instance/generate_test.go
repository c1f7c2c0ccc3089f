package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

func TestNextObstacleID(t *testing.T) {
	tests := map[string]string{
		"a":  "b",
		"y":  "z",
		"z":  "aa",
		"az": "ba",
		"zz": "aaa",
	}
	for in, want := range tests {
		assert.Equal(t, want, NextObstacleID(in), in)
	}
}

func TestGenerate(t *testing.T) {
	g, err := core.NewGridMap(8, 8, []core.Cell{{X: 3, Y: 3}, {X: 4, Y: 4}})
	require.NoError(t, err)

	opts := GenerateOptions{Agents: 4, Obstacles: 3, MaxTrajectories: 3, P: 0.1, Seed: 7}
	inst, err := Generate(g, opts)
	require.NoError(t, err)

	require.NoError(t, inst.Validate(0))
	assert.Len(t, inst.Agents, 4)
	require.Len(t, inst.Obstacles, 3)
	assert.Equal(t, []string{"a", "b", "c"},
		[]string{inst.Obstacles[0].ID, inst.Obstacles[1].ID, inst.Obstacles[2].ID})

	agentStarts := make(map[core.Cell]bool)
	for _, a := range inst.Agents {
		agentStarts[a.Start] = true
	}
	for _, o := range inst.Obstacles {
		assert.False(t, agentStarts[o.Start], "obstacle %s starts on an agent", o.ID)
		assert.True(t, g.IsFree(o.Start))
		assert.NotEmpty(t, o.Trajectories)
		assert.LessOrEqual(t, len(o.Trajectories), 3)
		for _, tr := range o.Trajectories {
			assert.LessOrEqual(t, len(tr.Points), 7)
			for _, p := range tr.Points {
				assert.Equal(t, 0.1, p.P)
				assert.True(t, g.IsFree(p.Cell()))
			}
		}
	}

	again, err := Generate(g, opts)
	require.NoError(t, err)
	assert.Equal(t, inst, again)

	opts.Seed = 8
	other, err := Generate(g, opts)
	require.NoError(t, err)
	assert.NotEqual(t, inst, other)
}

func TestGenerate_TooManyAgents(t *testing.T) {
	g, err := core.NewGridMap(2, 2, nil)
	require.NoError(t, err)

	_, err = Generate(g, GenerateOptions{Agents: 3, Obstacles: 1, MaxTrajectories: 1})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = Generate(g, GenerateOptions{Agents: 1, P: 2})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
