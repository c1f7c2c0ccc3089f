// Package interval derives per-cell safe time intervals from a risk model.
package interval

import (
	"fmt"
	"math"
	"sort"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
)

// Infinity marks an unbounded interval end.
const Infinity = math.MaxInt

// riskEpsilon absorbs rounding in 1 - Π(1 - p) so that a risk equal to the
// threshold is treated as unsafe.
const riskEpsilon = 1e-9

// Interval is the half-open time window [Start, End).
type Interval struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether t lies in the interval.
func (iv Interval) Contains(t int) bool {
	return t >= iv.Start && t < iv.End
}

// Unbounded reports whether the interval never ends.
func (iv Interval) Unbounded() bool { return iv.End == Infinity }

// Len returns the interval duration, or Infinity.
func (iv Interval) Len() int {
	if iv.Unbounded() {
		return Infinity
	}
	return iv.End - iv.Start
}

func (iv Interval) String() string {
	if iv.Unbounded() {
		return fmt.Sprintf("[%d,inf)", iv.Start)
	}
	return fmt.Sprintf("[%d,%d)", iv.Start, iv.End)
}

// Options configures table construction.
type Options struct {
	// Threshold is the risk at or above which a time step is unsafe.
	Threshold float64
	// Horizon bounds the table to [0, Horizon). Zero means unbounded: every
	// cell becomes safe forever once all trajectories have ended.
	Horizon int
	// Resolution groups time steps into buckets; a bucket is unsafe when any
	// step in it is.
	Resolution int
}

// ValidateThreshold checks that θ lies in (0, 1].
func ValidateThreshold(theta float64) error {
	if !(theta > 0 && theta <= 1) {
		return fmt.Errorf("%w: safety threshold %v outside (0,1]", core.ErrInvalidInput, theta)
	}
	return nil
}

// Table holds the safe intervals of every cell. It is read-only after
// Build and safe for concurrent readers.
type Table struct {
	grid      *core.GridMap
	horizon   int
	threshold float64
	safe      [][]Interval
}

// Build computes the safe intervals of every free cell.
func Build(m *risk.Model, grid *core.GridMap, opts Options) (*Table, error) {
	if err := ValidateThreshold(opts.Threshold); err != nil {
		return nil, err
	}
	if opts.Horizon < 0 {
		return nil, fmt.Errorf("%w: negative time horizon %d", core.ErrInvalidInput, opts.Horizon)
	}
	res := opts.Resolution
	if res < 1 {
		res = 1
	}
	horizon := Infinity
	if opts.Horizon > 0 {
		horizon = opts.Horizon
	}

	tbl := &Table{
		grid:      grid,
		horizon:   horizon,
		threshold: opts.Threshold,
		safe:      make([][]Interval, grid.Size()),
	}
	for i := range tbl.safe {
		c := grid.CellAt(i)
		if !grid.IsFree(c) {
			continue
		}
		tbl.safe[i] = complement(unsafeWindows(m, c, opts.Threshold, res), horizon)
	}
	return tbl, nil
}

// IsUnsafe reports whether risk r violates threshold theta. Values within
// rounding distance of theta count as violations.
func IsUnsafe(r, theta float64) bool {
	return r >= theta-riskEpsilon
}

// unsafeWindows returns the merged, sorted unsafe windows of c.
func unsafeWindows(m *risk.Model, c core.Cell, theta float64, res int) []Interval {
	var out []Interval
	push := func(iv Interval) {
		if n := len(out); n > 0 && iv.Start <= out[n-1].End {
			if iv.End > out[n-1].End {
				out[n-1].End = iv.End
			}
			return
		}
		out = append(out, iv)
	}

	for _, t := range m.Times(c) {
		if !IsUnsafe(m.Risk(c, t), theta) {
			continue
		}
		start := (t / res) * res
		push(Interval{Start: start, End: start + res})
	}
	if IsUnsafe(m.TailRisk(c), theta) {
		start := ((m.Horizon() + 1) / res) * res
		push(Interval{Start: start, End: Infinity})
	}
	return out
}

// complement returns the safe intervals inside [0, horizon) given sorted,
// merged unsafe windows.
func complement(unsafe []Interval, horizon int) []Interval {
	var out []Interval
	cursor := 0
	for _, u := range unsafe {
		if u.Start >= horizon {
			break
		}
		if u.Start > cursor {
			out = append(out, Interval{Start: cursor, End: u.Start})
		}
		cursor = u.End
		if cursor >= horizon {
			return out
		}
	}
	if cursor < horizon {
		out = append(out, Interval{Start: cursor, End: horizon})
	}
	return out
}

// Grid returns the map the table was built for.
func (t *Table) Grid() *core.GridMap { return t.grid }

// Horizon returns the table horizon, or Infinity when unbounded.
func (t *Table) Horizon() int { return t.horizon }

// Threshold returns the safety threshold the table was built with.
func (t *Table) Threshold() float64 { return t.threshold }

// Intervals returns the safe intervals of c in ascending order. Blocked and
// out-of-bounds cells have none. The slice must not be modified.
func (t *Table) Intervals(c core.Cell) []Interval {
	if !t.grid.InBounds(c) {
		return nil
	}
	return t.safe[t.grid.Index(c)]
}

// Find returns the index of the interval of c containing time step ts.
func (t *Table) Find(c core.Cell, ts int) (int, bool) {
	ivs := t.Intervals(c)
	i := sort.Search(len(ivs), func(i int) bool { return ivs[i].End > ts })
	if i < len(ivs) && ivs[i].Contains(ts) {
		return i, true
	}
	return -1, false
}

// Safe reports whether c may be occupied at ts.
func (t *Table) Safe(c core.Cell, ts int) bool {
	_, ok := t.Find(c, ts)
	return ok
}

// ReachesHorizon reports whether an agent may stay in iv forever.
func (t *Table) ReachesHorizon(iv Interval) bool {
	return iv.Unbounded() || (t.horizon != Infinity && iv.End >= t.horizon)
}

// Unsafe returns the complement of the safe intervals of c within the
// table horizon.
func (t *Table) Unsafe(c core.Cell) []Interval {
	if !t.grid.IsFree(c) {
		return []Interval{{Start: 0, End: t.horizon}}
	}
	return complement(t.Intervals(c), t.horizon)
}
