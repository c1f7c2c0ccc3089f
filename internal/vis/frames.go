package vis

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/interval"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
)

// Frame symbols.
const (
	SymBlocked  = '@'
	SymFree     = '.'
	SymRisky    = ':' // some risk, below the threshold
	SymUnsafe   = '#' // risk at or above the threshold
	SymCollided = '*' // two or more agents
)

// Playback is a cursor over the time steps 0..Max.
type Playback struct {
	Current int
	Max     int
}

// NewPlayback starts at step 0.
func NewPlayback(max int) *Playback {
	return &Playback{Max: max}
}

// Next advances one step and reports whether it moved.
func (p *Playback) Next() bool {
	if p.Current >= p.Max {
		return false
	}
	p.Current++
	return true
}

// Prev steps back and reports whether it moved.
func (p *Playback) Prev() bool {
	if p.Current <= 0 {
		return false
	}
	p.Current--
	return true
}

// Seek jumps to t, clamped to the playback range.
func (p *Playback) Seek(t int) {
	p.Current = min(max(t, 0), p.Max)
}

// Done reports whether the cursor is on the last step.
func (p *Playback) Done() bool { return p.Current >= p.Max }

// Renderer draws a solution on its grid one time step at a time.
type Renderer struct {
	grid      *core.GridMap
	model     *risk.Model
	threshold float64
	paths     map[core.AgentID]core.Path
}

// NewRenderer creates a renderer. A nil model draws no obstacle risk.
func NewRenderer(grid *core.GridMap, model *risk.Model, threshold float64, paths map[core.AgentID]core.Path) *Renderer {
	return &Renderer{grid: grid, model: model, threshold: threshold, paths: paths}
}

// Makespan is the last time step worth drawing.
func (r *Renderer) Makespan() int {
	return core.Makespan.Of(r.paths)
}

// AgentSymbol labels agents 0-9 then a-z, wrapping after 35.
func AgentSymbol(id core.AgentID) byte {
	return strconv.FormatInt(int64(id)%36, 36)[0]
}

// Frame draws time step t, one grid row per line.
func (r *Renderer) Frame(t int) string {
	at := make(map[core.Cell][]core.AgentID)
	for id, p := range r.paths {
		if len(p) == 0 || t < p[0].T {
			continue
		}
		c := p.At(t)
		at[c] = append(at[c], id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "t=%d\n", t)
	for x := 0; x < r.grid.Rows(); x++ {
		for y := 0; y < r.grid.Cols(); y++ {
			b.WriteByte(r.symbol(core.Cell{X: x, Y: y}, t, at))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *Renderer) symbol(c core.Cell, t int, at map[core.Cell][]core.AgentID) byte {
	if !r.grid.IsFree(c) {
		return SymBlocked
	}
	switch ids := at[c]; len(ids) {
	case 0:
	case 1:
		return AgentSymbol(ids[0])
	default:
		return SymCollided
	}
	if r.model == nil {
		return SymFree
	}
	switch p := r.model.Risk(c, t); {
	case interval.IsUnsafe(p, r.threshold):
		return SymUnsafe
	case p > 0:
		return SymRisky
	default:
		return SymFree
	}
}

// WriteFrames writes every frame from the playback cursor to its end,
// separated by blank lines.
func (r *Renderer) WriteFrames(w io.Writer, pb *Playback) error {
	for {
		if _, err := io.WriteString(w, r.Frame(pb.Current)); err != nil {
			return err
		}
		if !pb.Next() {
			return nil
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
}
