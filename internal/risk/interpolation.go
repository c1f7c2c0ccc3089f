package risk

import (
	"fmt"
	"math"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// Interpolation selects how a trajectory is filled in between waypoints.
type Interpolation int

const (
	// Linear lerps both position (snapped to the nearest cell) and
	// probability between consecutive waypoints.
	Linear Interpolation = iota
	// Hold lerps position but keeps the probability of the segment's
	// first waypoint.
	Hold
	// Step keeps the obstacle on the segment's first waypoint, with its
	// probability, until the next waypoint time.
	Step
)

func (m Interpolation) String() string {
	switch m {
	case Linear:
		return "linear"
	case Hold:
		return "hold"
	case Step:
		return "step"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(m))
	}
}

// ParseInterpolation maps a configuration value to an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "linear", "":
		return Linear, nil
	case "hold":
		return Hold, nil
	case "step":
		return Step, nil
	default:
		return 0, fmt.Errorf("%w: unknown interpolation %q", core.ErrInvalidInput, s)
	}
}

// Occupancy is the predicted presence of one trajectory at one time step.
type Occupancy struct {
	Cell core.Cell
	T    int
	P    float64
}

// Expand returns one occupancy per time step from the trajectory start to
// its last waypoint. Unless the trajectory hides before its start, the
// obstacle start cell is used as an implicit waypoint at t=0 carrying the
// first waypoint's probability.
func Expand(start core.Cell, tr core.Trajectory, mode Interpolation) []Occupancy {
	pts := tr.Points
	if len(pts) == 0 {
		return nil
	}
	if !tr.HideBeforeStart && pts[0].T > 0 {
		lead := core.Waypoint{X: start.X, Y: start.Y, T: 0, P: pts[0].P}
		pts = append([]core.Waypoint{lead}, pts...)
	}

	last := pts[len(pts)-1]
	out := make([]Occupancy, 0, last.T-pts[0].T+1)
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		span := float64(b.T - a.T)
		for t := a.T; t < b.T; t++ {
			frac := float64(t-a.T) / span
			out = append(out, segmentAt(a, b, frac, t, mode))
		}
	}
	return append(out, Occupancy{Cell: last.Cell(), T: last.T, P: last.P})
}

func segmentAt(a, b core.Waypoint, frac float64, t int, mode Interpolation) Occupancy {
	if mode == Step {
		return Occupancy{Cell: a.Cell(), T: t, P: a.P}
	}
	c := core.Cell{
		X: int(math.Round(lerp(float64(a.X), float64(b.X), frac))),
		Y: int(math.Round(lerp(float64(a.Y), float64(b.Y), frac))),
	}
	p := a.P
	if mode == Linear {
		p = lerp(a.P, b.P, frac)
	}
	return Occupancy{Cell: c, T: t, P: p}
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}
