package core

// Waypoint is a predicted obstacle position at time T with probability P.
type Waypoint struct {
	X int     `yaml:"x" toml:"x"`
	Y int     `yaml:"y" toml:"y"`
	T int     `yaml:"t" toml:"t"`
	P float64 `yaml:"p" toml:"p"`
}

// Cell returns the waypoint location.
func (w Waypoint) Cell() Cell { return Cell{X: w.X, Y: w.Y} }

// Trajectory is one candidate future of a dynamic obstacle.
type Trajectory struct {
	Points []Waypoint

	// HideBeforeStart suppresses the implicit stay at the obstacle start
	// cell before the first waypoint.
	HideBeforeStart bool
	// Persist keeps the obstacle on its last waypoint forever instead of
	// disappearing after it.
	Persist bool
}

// Start returns the time of the first waypoint.
func (tr Trajectory) Start() int { return tr.Points[0].T }

// End returns the time of the last waypoint.
func (tr Trajectory) End() int { return tr.Points[len(tr.Points)-1].T }

// DynamicObstacle moves along one of several candidate trajectories.
type DynamicObstacle struct {
	ID           string
	Start        Cell
	Trajectories []Trajectory
}

// Validate checks the obstacle against the grid bounds.
func (o *DynamicObstacle) Validate(g *GridMap) error {
	if o.ID == "" {
		return invalidf("obstacle with empty id")
	}
	if !g.InBounds(o.Start) {
		return invalidf("obstacle %s start %s out of bounds", o.ID, o.Start)
	}
	if len(o.Trajectories) == 0 {
		return invalidf("obstacle %s has no trajectories", o.ID)
	}
	for i, tr := range o.Trajectories {
		if len(tr.Points) == 0 {
			return invalidf("obstacle %s trajectory %d has no points", o.ID, i)
		}
		prev := -1
		for j, w := range tr.Points {
			if !g.InBounds(w.Cell()) {
				return invalidf("obstacle %s trajectory %d point %d at %s out of bounds", o.ID, i, j, w.Cell())
			}
			if w.T < 0 || w.T <= prev {
				return invalidf("obstacle %s trajectory %d point %d: time %d not increasing", o.ID, i, j, w.T)
			}
			if w.P < 0 || w.P > 1 || w.P != w.P {
				return invalidf("obstacle %s trajectory %d point %d: probability %v outside [0,1]", o.ID, i, j, w.P)
			}
			prev = w.T
		}
	}
	return nil
}
