package instance

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

type pointSpec struct {
	X int `toml:"x"`
	Y int `toml:"y"`
}

func (p pointSpec) cell() core.Cell { return core.Cell{X: p.X, Y: p.Y} }

type agentSpec struct {
	ID         int       `toml:"id"`
	StartPoint pointSpec `toml:"start_point,inline"`
	GoalPoint  pointSpec `toml:"goal_point,inline"`
}

type trajectorySpec struct {
	Points          []core.Waypoint `toml:"points"`
	HideBeforeStart bool            `toml:"hide_before_start,omitempty"`
	Persist         bool            `toml:"persist,omitempty"`
}

type obstacleSpec struct {
	ID           string           `toml:"id"`
	StartPoint   pointSpec        `toml:"start_point,inline"`
	Trajectories []trajectorySpec `toml:"trajectories"`
}

// movementSpec is an obstacle following a fixed sequence of moves.
type movementSpec struct {
	ID                string   `toml:"id"`
	Type              string   `toml:"type"`
	StartT            int      `toml:"start_t"`
	HideBeforeStart   bool     `toml:"hide_before_start"`
	DisappearAfterEnd bool     `toml:"disappear_after_end"`
	Trajectory        []string `toml:"trajectory"`
}

// fileSpec is the on-disk layout of a TOML instance.
type fileSpec struct {
	Agents           []agentSpec    `toml:"agents"`
	DynamicObstacles []obstacleSpec `toml:"dynamic_obstacles,omitempty"`
	DynamicObstacle  []movementSpec `toml:"dynamic_obstacle,omitempty"`
}

// Load reads a map file and a TOML instance. The instance is named after
// the instance file and is not yet validated.
func Load(mapPath, instancePath string) (*core.Instance, error) {
	mf, err := LoadMap(mapPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(instancePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	inst, err := Decode(f, mf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", instancePath, err)
	}
	inst.Name = Name(instancePath)
	return inst, nil
}

// Name derives an instance name from its file path.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Decode reads a TOML instance for the map mf. Probabilistic obstacles come
// from [[dynamic_obstacles]], deterministic ones from [[dynamic_obstacle]].
// When the map carries obstacle markers every obstacle must match one and
// every marker must be described.
func Decode(r io.Reader, mf *MapFile) (*core.Instance, error) {
	var doc fileSpec
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, invalid("toml line %d column %d: %s", row, col, derr.Error())
		}
		return nil, invalid("toml: %v", err)
	}

	inst := &core.Instance{Map: mf.Grid}
	for _, a := range doc.Agents {
		inst.Agents = append(inst.Agents, core.Agent{
			ID:    core.AgentID(a.ID),
			Start: a.StartPoint.cell(),
			Goal:  a.GoalPoint.cell(),
		})
	}

	for i, o := range doc.DynamicObstacles {
		start := o.StartPoint.cell()
		if len(mf.Markers) > 0 {
			at, ok := mf.Markers[o.ID]
			if !ok {
				return nil, invalid("obstacle %q (index %d) is not marked on the map", o.ID, i)
			}
			if at != start {
				return nil, invalid("obstacle %q starts at %s but is marked at %s", o.ID, start, at)
			}
		}
		obs := core.DynamicObstacle{ID: o.ID, Start: start}
		for _, tr := range o.Trajectories {
			obs.Trajectories = append(obs.Trajectories, core.Trajectory{
				Points:          tr.Points,
				HideBeforeStart: tr.HideBeforeStart,
				Persist:         tr.Persist,
			})
		}
		inst.Obstacles = append(inst.Obstacles, obs)
	}

	for i, m := range doc.DynamicObstacle {
		start, ok := mf.Markers[m.ID]
		if !ok {
			return nil, invalid("obstacle %q (index %d) is not marked on the map", m.ID, i)
		}
		obs, err := deterministic(m, start)
		if err != nil {
			return nil, err
		}
		inst.Obstacles = append(inst.Obstacles, obs)
	}

	if len(mf.Markers) > 0 {
		described := make(map[string]bool, len(inst.Obstacles))
		for _, o := range inst.Obstacles {
			described[o.ID] = true
		}
		var missing []string
		for id := range mf.Markers {
			if !described[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, invalid("missing obstacle data for %s", strings.Join(missing, ", "))
		}
	}
	return inst, nil
}

// moves maps a move letter to its cell offset.
var moves = map[string]core.Cell{
	"U": {X: -1, Y: 0},
	"D": {X: 1, Y: 0},
	"L": {X: 0, Y: -1},
	"R": {X: 0, Y: 1},
	"W": {X: 0, Y: 0},
}

// deterministic converts a move sequence into a certain trajectory: the
// obstacle is on its start cell at start_t and takes one move per step.
func deterministic(m movementSpec, start core.Cell) (core.DynamicObstacle, error) {
	if !strings.EqualFold(strings.TrimSpace(m.Type), "deterministic") {
		return core.DynamicObstacle{}, invalid("obstacle %q: unknown movement type %q", m.ID, m.Type)
	}
	if m.StartT < 0 {
		return core.DynamicObstacle{}, invalid("obstacle %q: negative start_t %d", m.ID, m.StartT)
	}

	pos := start
	points := []core.Waypoint{{X: pos.X, Y: pos.Y, T: m.StartT, P: 1}}
	for k, raw := range m.Trajectory {
		d, ok := moves[strings.ToUpper(strings.TrimSpace(raw))]
		if !ok {
			return core.DynamicObstacle{}, invalid("obstacle %q: trajectory must only contain L, R, U, D, W; got %q", m.ID, raw)
		}
		pos = pos.Add(d)
		points = append(points, core.Waypoint{X: pos.X, Y: pos.Y, T: m.StartT + k + 1, P: 1})
	}

	return core.DynamicObstacle{
		ID:    m.ID,
		Start: start,
		Trajectories: []core.Trajectory{{
			Points:          points,
			HideBeforeStart: m.HideBeforeStart,
			Persist:         !m.DisappearAfterEnd,
		}},
	}, nil
}

// Encode writes inst as a TOML instance. Every obstacle is written in the
// probabilistic form.
func Encode(w io.Writer, inst *core.Instance) error {
	var doc fileSpec
	for _, a := range inst.Agents {
		doc.Agents = append(doc.Agents, agentSpec{
			ID:         int(a.ID),
			StartPoint: pointSpec{X: a.Start.X, Y: a.Start.Y},
			GoalPoint:  pointSpec{X: a.Goal.X, Y: a.Goal.Y},
		})
	}
	for _, o := range inst.Obstacles {
		out := obstacleSpec{ID: o.ID, StartPoint: pointSpec{X: o.Start.X, Y: o.Start.Y}}
		for _, tr := range o.Trajectories {
			out.Trajectories = append(out.Trajectories, trajectorySpec{
				Points:          tr.Points,
				HideBeforeStart: tr.HideBeforeStart,
				Persist:         tr.Persist,
			})
		}
		doc.DynamicObstacles = append(doc.DynamicObstacles, out)
	}

	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(doc)
}

// Save writes inst to path as TOML.
func Save(path string, inst *core.Instance) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, inst); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
