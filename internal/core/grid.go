package core

// GridMap is the static 4-connected occupancy grid. It is immutable after
// construction and safe for concurrent readers.
type GridMap struct {
	rows, cols int
	blocked    []bool
}

// NewGridMap creates a rows x cols grid with the given blocked cells.
func NewGridMap(rows, cols int, blocked []Cell) (*GridMap, error) {
	if rows <= 0 || cols <= 0 {
		return nil, invalidf("grid size %dx%d", rows, cols)
	}
	g := &GridMap{rows: rows, cols: cols, blocked: make([]bool, rows*cols)}
	for _, c := range blocked {
		if !g.InBounds(c) {
			return nil, invalidf("blocked cell %s outside %dx%d grid", c, rows, cols)
		}
		g.blocked[g.Index(c)] = true
	}
	return g, nil
}

// Rows returns the number of rows.
func (g *GridMap) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *GridMap) Cols() int { return g.cols }

// Size returns the total number of cells.
func (g *GridMap) Size() int { return g.rows * g.cols }

// InBounds reports whether c lies on the grid.
func (g *GridMap) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.rows && c.Y >= 0 && c.Y < g.cols
}

// IsFree reports whether c is on the grid and not blocked.
func (g *GridMap) IsFree(c Cell) bool {
	return g.InBounds(c) && !g.blocked[g.Index(c)]
}

// Index returns the row-major cell id. The id doubles as the deterministic
// tie-break order during search.
func (g *GridMap) Index(c Cell) int {
	return c.X*g.cols + c.Y
}

// CellAt is the inverse of Index.
func (g *GridMap) CellAt(i int) Cell {
	return Cell{X: i / g.cols, Y: i % g.cols}
}

// Neighbors returns the free 4-neighbours of c in Directions order.
func (g *GridMap) Neighbors(c Cell) []Cell {
	out := make([]Cell, 0, len(Directions))
	for _, d := range Directions {
		n := c.Add(d)
		if g.IsFree(n) {
			out = append(out, n)
		}
	}
	return out
}

// FreeCells returns all free cells in id order.
func (g *GridMap) FreeCells() []Cell {
	out := make([]Cell, 0, len(g.blocked))
	for i, b := range g.blocked {
		if !b {
			out = append(out, g.CellAt(i))
		}
	}
	return out
}
