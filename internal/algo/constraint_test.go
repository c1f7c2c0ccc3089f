package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/interval"
)

func TestConstraintsFor(t *testing.T) {
	all := []Constraint{
		{Agent: 0, Cell: core.Cell{X: 1, Y: 1}, Time: 2, Positive: true},
		{Agent: 0, Cell: core.Cell{}, To: core.Cell{X: 0, Y: 1}, Time: 3, IsEdge: true, Positive: true},
		{Agent: 1, Cell: core.Cell{X: 2, Y: 2}, Time: 4},
		{Agent: 0, Cell: core.Cell{}, Time: 1},
	}

	got := constraintsFor(1, all)
	want := []Constraint{
		{Agent: 1, Cell: core.Cell{X: 1, Y: 1}, Time: 2},
		{Agent: 1, Cell: core.Cell{X: 0, Y: 1}, Time: 3},
		{Agent: 1, Cell: core.Cell{}, Time: 2},
		{Agent: 1, Cell: core.Cell{X: 0, Y: 1}, To: core.Cell{}, Time: 3, IsEdge: true},
		{Agent: 1, Cell: core.Cell{X: 2, Y: 2}, Time: 4},
	}
	assert.Equal(t, want, got)

	// the owner keeps its own constraints unchanged
	assert.Len(t, constraintsFor(0, all), 3)
}

func TestConstraintKey_OrderIndependent(t *testing.T) {
	a := Constraint{Agent: 0, Cell: core.Cell{X: 1}, Time: 2}
	b := Constraint{Agent: 1, Cell: core.Cell{Y: 1}, To: core.Cell{}, Time: 3, IsEdge: true}

	assert.Equal(t, constraintKey([]Constraint{a, b}), constraintKey([]Constraint{b, a}))
	assert.NotEqual(t, constraintKey([]Constraint{a}), constraintKey([]Constraint{b}))
}

func TestViolates(t *testing.T) {
	path := cells([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2})

	tests := []struct {
		name string
		c    Constraint
		want bool
	}{
		{"vertex hit", Constraint{Cell: core.Cell{Y: 1}, Time: 1}, true},
		{"vertex miss", Constraint{Cell: core.Cell{Y: 1}, Time: 2}, false},
		{"edge hit", Constraint{Cell: core.Cell{}, To: core.Cell{Y: 1}, Time: 1, IsEdge: true}, true},
		{"edge wrong time", Constraint{Cell: core.Cell{}, To: core.Cell{Y: 1}, Time: 2, IsEdge: true}, false},
		{"goal after arrival", Constraint{Cell: core.Cell{Y: 2}, Time: 7}, true},
		{"before start", Constraint{Cell: core.Cell{}, Time: -1}, false},
		{"forever hit", Constraint{Cell: core.Cell{Y: 2}, Time: 1, Forever: true}, true},
		{"forever miss", Constraint{Cell: core.Cell{}, Time: 1, Forever: true}, false},
		{"positive never violates", Constraint{Cell: core.Cell{Y: 1}, Time: 1, Positive: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, violates(path, tt.c))
		})
	}
}

func TestConstraintTable_Effective(t *testing.T) {
	g := createGrid(t, 3, 3)
	center := core.Cell{X: 1, Y: 1}

	ct, err := newConstraintTable(g, []Constraint{
		{Cell: center, Time: 3},
		{Cell: center, Time: 4},
		{Cell: center, Time: 8, Forever: true},
	})
	require.NoError(t, err)

	base := []interval.Interval{{Start: 0, End: 10}}
	assert.Equal(t, []interval.Interval{{Start: 0, End: 3}, {Start: 5, End: 8}}, ct.effective(base, g.Index(center)))
	assert.Equal(t, base, ct.effective(base, g.Index(core.Cell{})))
	assert.False(t, ct.empty())
}

func TestConstraintTable_Pins(t *testing.T) {
	g := createGrid(t, 3, 3)

	ct, err := newConstraintTable(g, []Constraint{{Cell: core.Cell{}, Time: 2, Positive: true}})
	require.NoError(t, err)

	base := []interval.Interval{{Start: 0, End: interval.Infinity}}
	assert.Equal(t, []interval.Interval{{Start: 0, End: 2}, {Start: 3, End: interval.Infinity}},
		ct.effective(base, g.Index(core.Cell{X: 1, Y: 1})))
	assert.Equal(t, base, ct.effective(base, g.Index(core.Cell{})))

	_, err = newConstraintTable(g, []Constraint{
		{Cell: core.Cell{}, Time: 2, Positive: true},
		{Cell: core.Cell{X: 1}, Time: 2, Positive: true},
	})
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestConstraintTable_Edges(t *testing.T) {
	g := createGrid(t, 1, 3)
	from, to := g.Index(core.Cell{}), g.Index(core.Cell{Y: 1})

	ct, err := newConstraintTable(g, []Constraint{{Cell: core.Cell{}, To: core.Cell{Y: 1}, Time: 1, IsEdge: true}})
	require.NoError(t, err)
	assert.True(t, ct.edgeForbidden(from, to, 1))
	assert.False(t, ct.edgeForbidden(to, from, 1))
	assert.False(t, ct.edgeForbidden(from, to, 2))
}
