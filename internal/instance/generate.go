package instance

import (
	"fmt"
	"math/rand/v2"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// GenerateOptions controls random instance generation.
type GenerateOptions struct {
	Agents          int
	Obstacles       int
	MaxTrajectories int
	// P is the probability attached to every generated waypoint.
	P float64
	// MaxTime bounds waypoint times. Zero picks rows*cols.
	MaxTime int
	Seed    uint64
}

// DefaultGenerateOptions returns one agent, one obstacle with a single
// trajectory and p = 0.1.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Agents: 1, Obstacles: 1, MaxTrajectories: 1, P: 0.1}
}

// NextObstacleID returns the id after s in the sequence a, b, ..., z, aa, ab, ...
func NextObstacleID(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 'z' {
			b[i]++
			return string(b)
		}
		b[i] = 'a'
	}
	return "a" + string(b)
}

// Generate builds a random instance on g. Agents get distinct starts and
// distinct goals; obstacles start on cells no agent starts on and end each
// trajectory on a cell no agent finishes on while such cells remain. The
// same options and seed always give the same instance.
func Generate(g *core.GridMap, opts GenerateOptions) (*core.Instance, error) {
	free := g.FreeCells()
	switch {
	case opts.Agents < 0 || opts.Obstacles < 0:
		return nil, invalid("negative agent or obstacle count")
	case opts.Agents+opts.Obstacles >= len(free):
		return nil, invalid("not enough free cells (%d) for %d agents and %d obstacles",
			len(free), opts.Agents, opts.Obstacles)
	case opts.Obstacles > 0 && opts.MaxTrajectories < 1:
		return nil, invalid("max trajectories must be >= 1")
	case opts.P < 0 || opts.P > 1:
		return nil, invalid("probability %v outside [0,1]", opts.P)
	}

	maxTime := opts.MaxTime
	if maxTime <= 0 {
		maxTime = g.Rows() * g.Cols()
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	gen := &generator{
		grid:    g,
		rng:     rng,
		free:    free,
		starts:  newPool(free),
		goals:   newPool(free),
		maxTime: maxTime,
		p:       opts.P,
	}

	inst := &core.Instance{Map: g}
	for i := 0; i < opts.Agents; i++ {
		inst.Agents = append(inst.Agents, core.Agent{
			ID:    core.AgentID(i),
			Start: gen.starts.take(rng),
			Goal:  gen.goals.take(rng),
		})
	}

	id := "a"
	for i := 0; i < opts.Obstacles; i++ {
		obs := core.DynamicObstacle{ID: id, Start: gen.starts.take(rng)}
		for k := rng.IntN(opts.MaxTrajectories) + 1; k > 0; k-- {
			obs.Trajectories = append(obs.Trajectories, gen.trajectory())
		}
		inst.Obstacles = append(inst.Obstacles, obs)
		id = NextObstacleID(id)
	}
	return inst, nil
}

type generator struct {
	grid    *core.GridMap
	rng     *rand.Rand
	free    []core.Cell
	starts  *pool
	goals   *pool
	maxTime int
	p       float64
}

// trajectory draws 1..rows-1 waypoints at strictly increasing times. The
// last waypoint ends on a free goal cell when one is left.
func (g *generator) trajectory() core.Trajectory {
	n := 1 + g.rng.IntN(max(1, g.grid.Rows()-1))
	n = min(n, g.maxTime)
	increment := g.maxTime / n

	t := 1 + g.rng.IntN(increment)
	points := make([]core.Waypoint, 0, n)
	for k := 1; k <= n; k++ {
		var c core.Cell
		if k == n && g.goals.len() > 0 {
			c = g.goals.take(g.rng)
		} else {
			c = g.free[g.rng.IntN(len(g.free))]
		}
		points = append(points, core.Waypoint{X: c.X, Y: c.Y, T: t, P: g.p})

		hi := max(t+1, increment*k)
		t = t + 1 + g.rng.IntN(hi-t)
	}
	return core.Trajectory{Points: points}
}

// pool hands out cells without replacement in a reproducible order.
type pool struct {
	cells []core.Cell
}

func newPool(cells []core.Cell) *pool {
	return &pool{cells: append([]core.Cell(nil), cells...)}
}

func (p *pool) len() int { return len(p.cells) }

func (p *pool) take(rng *rand.Rand) core.Cell {
	i := rng.IntN(len(p.cells))
	c := p.cells[i]
	last := len(p.cells) - 1
	p.cells[i] = p.cells[last]
	p.cells = p.cells[:last]
	return c
}

func (o GenerateOptions) String() string {
	return fmt.Sprintf("agents=%d obstacles=%d trajectories<=%d p=%v seed=%d",
		o.Agents, o.Obstacles, o.MaxTrajectories, o.P, o.Seed)
}
