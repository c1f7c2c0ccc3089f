// Package risk turns probabilistic obstacle trajectories into a per cell,
// per time step occupancy risk.
package risk

import (
	"sort"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// Model answers risk queries for a fixed set of obstacles. It is built once
// and is read-only afterwards.
type Model struct {
	grid *core.GridMap
	mode Interpolation

	// survival[cell][t] is the product of (1 - p_i) over all trajectories
	// predicted on cell at t.
	survival map[int]map[int]float64
	// tail holds the survival product of persistent trajectories for every
	// t after the horizon.
	tail    map[int]float64
	horizon int
}

// NewModel validates the obstacles and expands every trajectory.
func NewModel(grid *core.GridMap, obstacles []core.DynamicObstacle, mode Interpolation) (*Model, error) {
	m := &Model{
		grid:     grid,
		mode:     mode,
		survival: make(map[int]map[int]float64),
		tail:     make(map[int]float64),
	}

	for i := range obstacles {
		o := &obstacles[i]
		if err := o.Validate(grid); err != nil {
			return nil, err
		}
		for _, tr := range o.Trajectories {
			if tr.End() > m.horizon {
				m.horizon = tr.End()
			}
		}
	}

	for _, o := range obstacles {
		for _, tr := range o.Trajectories {
			for _, occ := range Expand(o.Start, tr, mode) {
				m.add(occ.Cell, occ.T, occ.P)
			}
			if !tr.Persist {
				continue
			}
			last := tr.Points[len(tr.Points)-1]
			for t := last.T + 1; t <= m.horizon; t++ {
				m.add(last.Cell(), t, last.P)
			}
			idx := grid.Index(last.Cell())
			s, ok := m.tail[idx]
			if !ok {
				s = 1
			}
			m.tail[idx] = s * (1 - last.P)
		}
	}
	return m, nil
}

func (m *Model) add(c core.Cell, t int, p float64) {
	idx := m.grid.Index(c)
	byTime, ok := m.survival[idx]
	if !ok {
		byTime = make(map[int]float64)
		m.survival[idx] = byTime
	}
	s, ok := byTime[t]
	if !ok {
		s = 1
	}
	byTime[t] = s * (1 - p)
}

// Risk returns the aggregate occupancy risk 1 - Π(1 - p_i) of c at t.
func (m *Model) Risk(c core.Cell, t int) float64 {
	if !m.grid.InBounds(c) || t < 0 {
		return 0
	}
	idx := m.grid.Index(c)
	if t > m.horizon {
		if s, ok := m.tail[idx]; ok {
			return 1 - s
		}
		return 0
	}
	if s, ok := m.survival[idx][t]; ok {
		return 1 - s
	}
	return 0
}

// TailRisk is the risk of c at every time after the horizon.
func (m *Model) TailRisk(c core.Cell) float64 {
	return m.Risk(c, m.horizon+1)
}

// Times returns, in ascending order, the time steps at which at least one
// trajectory is predicted on c.
func (m *Model) Times(c core.Cell) []int {
	byTime := m.survival[m.grid.Index(c)]
	out := make([]int, 0, len(byTime))
	for t := range byTime {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// Horizon is the latest waypoint time over all trajectories.
func (m *Model) Horizon() int { return m.horizon }

// Interpolation returns the mode the model was built with.
func (m *Model) Interpolation() Interpolation { return m.mode }
