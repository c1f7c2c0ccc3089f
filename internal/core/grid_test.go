package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridMap(t *testing.T) {
	g, err := NewGridMap(3, 4, []Cell{{1, 1}})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Rows())
	assert.Equal(t, 4, g.Cols())
	assert.Equal(t, 12, g.Size())
	assert.False(t, g.IsFree(Cell{1, 1}))
	assert.True(t, g.IsFree(Cell{2, 3}))
	assert.False(t, g.IsFree(Cell{3, 0}))
	assert.Len(t, g.FreeCells(), 11)

	_, err = NewGridMap(0, 4, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewGridMap(2, 2, []Cell{{5, 5}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGridMap_IndexRoundTrip(t *testing.T) {
	g, err := NewGridMap(5, 7, nil)
	require.NoError(t, err)

	for i := 0; i < g.Size(); i++ {
		assert.Equal(t, i, g.Index(g.CellAt(i)))
	}
	assert.Equal(t, 7+3, g.Index(Cell{1, 3}))
}

func TestGridMap_NeighborsOrder(t *testing.T) {
	g, err := NewGridMap(3, 3, []Cell{{0, 1}})
	require.NoError(t, err)

	// up (0,-1), right (1,0), down (0,1), left (-1,0); (0,1) is blocked.
	assert.Equal(t, []Cell{{1, 0}, {2, 1}, {1, 2}}, g.Neighbors(Cell{1, 1}))
	assert.Equal(t, []Cell{{1, 0}}, g.Neighbors(Cell{0, 0}))
}

func TestManhattan(t *testing.T) {
	assert.Equal(t, 14, Manhattan(Cell{0, 0}, Cell{7, 7}))
	assert.Equal(t, 0, Manhattan(Cell{2, 2}, Cell{2, 2}))
	assert.True(t, Cell{1, 1}.Adjacent(Cell{1, 2}))
	assert.False(t, Cell{1, 1}.Adjacent(Cell{2, 2}))
}
