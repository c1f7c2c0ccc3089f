package instance

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

const markedMap = "3 4\n. . a .\n. . . .\n. . . .\n"

func mustMap(t *testing.T, s string) *MapFile {
	t.Helper()
	mf, err := ParseMap(strings.NewReader(s))
	require.NoError(t, err)
	return mf
}

func TestDecode_Probabilistic(t *testing.T) {
	doc := `
[[agents]]
id = 0
start_point = { x = 0, y = 0 }
goal_point = { x = 2, y = 3 }

[[dynamic_obstacles]]
id = "a"
start_point = { x = 0, y = 2 }

  [[dynamic_obstacles.trajectories]]
  points = [ { x = 1, y = 2, t = 2, p = 0.5 }, { x = 2, y = 2, t = 4, p = 0.25 } ]

  [[dynamic_obstacles.trajectories]]
  points = [ { x = 0, y = 3, t = 1, p = 1 } ]
`
	inst, err := Decode(strings.NewReader(doc), mustMap(t, markedMap))
	require.NoError(t, err)

	require.Len(t, inst.Agents, 1)
	assert.Equal(t, core.Agent{ID: 0, Start: core.Cell{}, Goal: core.Cell{X: 2, Y: 3}}, inst.Agents[0])

	require.Len(t, inst.Obstacles, 1)
	obs := inst.Obstacles[0]
	assert.Equal(t, "a", obs.ID)
	assert.Equal(t, core.Cell{X: 0, Y: 2}, obs.Start)
	require.Len(t, obs.Trajectories, 2)
	assert.Equal(t, []core.Waypoint{{X: 1, Y: 2, T: 2, P: 0.5}, {X: 2, Y: 2, T: 4, P: 0.25}}, obs.Trajectories[0].Points)
	assert.Equal(t, 1.0, obs.Trajectories[1].Points[0].P)
	assert.NoError(t, inst.Validate(0))
}

func TestDecode_Deterministic(t *testing.T) {
	doc := `
[[dynamic_obstacle]]
id = "a"
type = "deterministic"
start_t = 1
hide_before_start = true
disappear_after_end = false
trajectory = ["D", "d", "W", "L"]
`
	inst, err := Decode(strings.NewReader(doc), mustMap(t, markedMap))
	require.NoError(t, err)
	require.Len(t, inst.Obstacles, 1)

	tr := inst.Obstacles[0].Trajectories[0]
	assert.Equal(t, []core.Waypoint{
		{X: 0, Y: 2, T: 1, P: 1},
		{X: 1, Y: 2, T: 2, P: 1},
		{X: 2, Y: 2, T: 3, P: 1},
		{X: 2, Y: 2, T: 4, P: 1},
		{X: 2, Y: 1, T: 5, P: 1},
	}, tr.Points)
	assert.True(t, tr.HideBeforeStart)
	assert.True(t, tr.Persist)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"unknown move", "[[dynamic_obstacle]]\nid = \"a\"\ntype = \"deterministic\"\nstart_t = 0\nhide_before_start = false\ndisappear_after_end = true\ntrajectory = [\"X\"]\n", "must only contain"},
		{"unknown type", "[[dynamic_obstacle]]\nid = \"a\"\ntype = \"random\"\nstart_t = 0\nhide_before_start = false\ndisappear_after_end = true\ntrajectory = []\n", "unknown movement type"},
		{"not on map", "[[dynamic_obstacles]]\nid = \"zz\"\nstart_point = { x = 0, y = 2 }\n", "not marked on the map"},
		{"wrong start", "[[dynamic_obstacles]]\nid = \"a\"\nstart_point = { x = 1, y = 1 }\n", "is marked at"},
		{"missing obstacle", "[[agents]]\nid = 0\nstart_point = { x = 0, y = 0 }\ngoal_point = { x = 1, y = 1 }\n", "missing obstacle data for a"},
		{"unknown field", "speed = 3\n", "toml"},
		{"syntax", "[[agents]\n", "toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), mustMap(t, markedMap))
			require.ErrorIs(t, err, core.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	mf := mustMap(t, "4 4\n....\n.@..\n....\n....\n")
	inst := &core.Instance{
		Map: mf.Grid,
		Agents: []core.Agent{
			{ID: 0, Start: core.Cell{}, Goal: core.Cell{X: 3, Y: 3}},
			{ID: 1, Start: core.Cell{X: 3}, Goal: core.Cell{Y: 3}},
		},
		Obstacles: []core.DynamicObstacle{{
			ID:    "a",
			Start: core.Cell{X: 2, Y: 2},
			Trajectories: []core.Trajectory{
				{Points: []core.Waypoint{{X: 2, Y: 3, T: 2, P: 0.1}, {X: 3, Y: 3, T: 5, P: 0.3}}},
				{Points: []core.Waypoint{{X: 0, Y: 2, T: 1, P: 1}}, HideBeforeStart: true, Persist: true},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, inst))
	back, err := Decode(&buf, mf)
	require.NoError(t, err)

	assert.Equal(t, inst.Agents, back.Agents)
	assert.Equal(t, inst.Obstacles, back.Obstacles)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "grid.map")
	require.NoError(t, os.WriteFile(mapPath, []byte("2 2\n..\n..\n"), 0o644))

	mf, err := LoadMap(mapPath)
	require.NoError(t, err)
	inst := &core.Instance{
		Map:    mf.Grid,
		Agents: []core.Agent{{ID: 0, Start: core.Cell{}, Goal: core.Cell{X: 1, Y: 1}}},
	}
	instPath := filepath.Join(dir, "grid-0.toml")
	require.NoError(t, Save(instPath, inst))

	loaded, err := Load(mapPath, instPath)
	require.NoError(t, err)
	assert.Equal(t, "grid-0", loaded.Name)
	assert.Equal(t, inst.Agents, loaded.Agents)

	_, err = Load(mapPath, filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
