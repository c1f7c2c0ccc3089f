package vis

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
)

func TestPlayback(t *testing.T) {
	pb := NewPlayback(2)
	assert.False(t, pb.Prev())
	assert.True(t, pb.Next())
	assert.True(t, pb.Next())
	assert.False(t, pb.Next())
	assert.True(t, pb.Done())

	pb.Seek(-4)
	assert.Equal(t, 0, pb.Current)
	pb.Seek(9)
	assert.Equal(t, 2, pb.Current)
}

func TestAgentSymbol(t *testing.T) {
	assert.Equal(t, byte('0'), AgentSymbol(0))
	assert.Equal(t, byte('9'), AgentSymbol(9))
	assert.Equal(t, byte('a'), AgentSymbol(10))
	assert.Equal(t, byte('z'), AgentSymbol(35))
	assert.Equal(t, byte('0'), AgentSymbol(36))
}

func TestRenderer_Frame(t *testing.T) {
	g, err := core.NewGridMap(2, 3, []core.Cell{{X: 1, Y: 2}})
	require.NoError(t, err)

	obstacles := []core.DynamicObstacle{
		{ID: "a", Start: core.Cell{X: 1, Y: 1}, Trajectories: []core.Trajectory{{
			Points:          []core.Waypoint{{X: 1, Y: 1, T: 1, P: 1}},
			HideBeforeStart: true,
		}}},
		{ID: "b", Start: core.Cell{X: 1, Y: 0}, Trajectories: []core.Trajectory{{
			Points:          []core.Waypoint{{X: 1, Y: 0, T: 1, P: 0.05}},
			HideBeforeStart: true,
		}}},
	}
	model, err := risk.NewModel(g, obstacles, risk.Linear)
	require.NoError(t, err)

	paths := map[core.AgentID]core.Path{
		0:  {{Cell: core.Cell{X: 0, Y: 0}, T: 0}, {Cell: core.Cell{X: 0, Y: 1}, T: 1}, {Cell: core.Cell{X: 0, Y: 2}, T: 2}},
		11: {{Cell: core.Cell{X: 0, Y: 2}, T: 1}},
	}
	r := NewRenderer(g, model, 0.5, paths)
	assert.Equal(t, 2, r.Makespan())

	assert.Equal(t, "t=0\n0..\n..@\n", r.Frame(0))
	assert.Equal(t, "t=1\n.0b\n:#@\n", r.Frame(1))
	assert.Equal(t, "t=2\n..*\n..@\n", r.Frame(2))

	var buf bytes.Buffer
	require.NoError(t, r.WriteFrames(&buf, NewPlayback(r.Makespan())))
	assert.Equal(t, 3, strings.Count(buf.String(), "t="))
	assert.Contains(t, buf.String(), "@\n\nt=1")
}

func TestTreeRecorder(t *testing.T) {
	g, err := core.NewGridMap(3, 3, nil)
	require.NoError(t, err)
	inst := &core.Instance{
		Map: g,
		Agents: []core.Agent{
			{ID: 0, Start: core.Cell{X: 1, Y: 0}, Goal: core.Cell{X: 1, Y: 2}},
			{ID: 1, Start: core.Cell{X: 0, Y: 1}, Goal: core.Cell{X: 2, Y: 1}},
		},
	}
	opts := algo.DefaultOptions()
	opts.Workers = 1

	rec := NewTreeRecorder()
	sol, err := algo.NewCBS(opts, algo.WithObserver(rec)).Solve(context.Background(), inst)
	require.NoError(t, err)

	nodes := rec.Nodes()
	require.Len(t, nodes, sol.Stats.Expanded)
	root := nodes[0]
	assert.Equal(t, -1, root.Parent)
	require.NotNil(t, root.Conflict)
	assert.False(t, root.IsSolution)

	last := nodes[len(nodes)-1]
	assert.True(t, last.IsSolution)
	assert.Nil(t, last.Conflict)
	assert.NotEmpty(t, last.Delta)

	var buf bytes.Buffer
	require.NoError(t, rec.WriteDOT(&buf))
	dot := buf.String()
	assert.True(t, strings.HasPrefix(dot, "digraph ct {"))
	assert.Contains(t, dot, "peripheries=2")
	assert.Contains(t, dot, "n0 -> n")
	assert.Contains(t, dot, root.Conflict.String())
}
