package algo

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	lvcore "github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dijkstra"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// HeuristicKind selects the SIPP distance estimate.
type HeuristicKind string

const (
	// ManhattanHeuristic ignores static obstacles.
	ManhattanHeuristic HeuristicKind = "manhattan"
	// DistanceHeuristic uses exact shortest-path distances on the static
	// grid, computed once per goal.
	DistanceHeuristic HeuristicKind = "distance"
)

// ParseHeuristic validates a heuristic name.
func ParseHeuristic(s string) (HeuristicKind, error) {
	switch HeuristicKind(s) {
	case ManhattanHeuristic, DistanceHeuristic:
		return HeuristicKind(s), nil
	default:
		return "", fmt.Errorf("%w: unknown heuristic %q", core.ErrInvalidInput, s)
	}
}

// unreachable marks cells with no static route to the goal.
const unreachable = math.MaxInt32

// heuristicFunc estimates the remaining steps from a cell to a fixed goal.
type heuristicFunc func(c core.Cell) int

func manhattanTo(goal core.Cell) heuristicFunc {
	return func(c core.Cell) int { return core.Manhattan(c, goal) }
}

// DistanceTables caches static shortest-path distances to goal cells. The
// grid is mirrored into a weighted lvlath graph once; each goal runs a
// single Dijkstra. Safe for concurrent use.
type DistanceTables struct {
	grid  *core.GridMap
	graph *lvcore.Graph

	mu     sync.Mutex
	tables map[core.Cell][]int
}

// NewDistanceTables builds the graph of free cells with unit edges.
func NewDistanceTables(grid *core.GridMap) (*DistanceTables, error) {
	g := lvcore.NewGraph(lvcore.WithWeighted())
	for _, c := range grid.FreeCells() {
		if err := g.AddVertex(vertexID(grid, c)); err != nil {
			return nil, fmt.Errorf("add vertex %s: %w", c, err)
		}
	}
	for _, c := range grid.FreeCells() {
		// right and down only; lvlath edges are undirected
		for _, d := range []core.Cell{{X: 1, Y: 0}, {X: 0, Y: 1}} {
			n := c.Add(d)
			if !grid.IsFree(n) {
				continue
			}
			if _, err := g.AddEdge(vertexID(grid, c), vertexID(grid, n), 1); err != nil {
				return nil, fmt.Errorf("add edge %s-%s: %w", c, n, err)
			}
		}
	}
	return &DistanceTables{grid: grid, graph: g, tables: make(map[core.Cell][]int)}, nil
}

func vertexID(grid *core.GridMap, c core.Cell) string {
	return strconv.Itoa(grid.Index(c))
}

// To returns the distance table rooted at goal, indexed by cell id.
func (d *DistanceTables) To(goal core.Cell) ([]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tbl, ok := d.tables[goal]; ok {
		return tbl, nil
	}
	dist, _, err := dijkstra.Dijkstra(d.graph, dijkstra.Source(vertexID(d.grid, goal)))
	if err != nil {
		return nil, fmt.Errorf("distances to %s: %w", goal, err)
	}

	tbl := make([]int, d.grid.Size())
	for i := range tbl {
		tbl[i] = unreachable
	}
	for id, v := range dist {
		if v == math.MaxInt64 {
			continue
		}
		idx, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("vertex id %q: %w", id, err)
		}
		tbl[idx] = int(v)
	}
	d.tables[goal] = tbl
	return tbl, nil
}

func (d *DistanceTables) heuristic(goal core.Cell) (heuristicFunc, error) {
	tbl, err := d.To(goal)
	if err != nil {
		return nil, err
	}
	return func(c core.Cell) int { return tbl[d.grid.Index(c)] }, nil
}
