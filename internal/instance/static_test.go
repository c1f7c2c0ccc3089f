package instance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

func TestParseStatic(t *testing.T) {
	in := "4 4\n. . . .\n. @ @ .\n. . . .\n. . . .\n2\n0 0 3 3\n3 0 0 3\n"
	inst, err := ParseStatic(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []core.Agent{
		{ID: 0, Start: core.Cell{}, Goal: core.Cell{X: 3, Y: 3}},
		{ID: 1, Start: core.Cell{X: 3}, Goal: core.Cell{Y: 3}},
	}, inst.Agents)
	assert.False(t, inst.Map.IsFree(core.Cell{X: 1, Y: 2}))
	assert.Empty(t, inst.Obstacles)
	assert.NoError(t, inst.Validate(0))
}

func TestParseStatic_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing count", "1 2\n..\n"},
		{"bad count", "1 2\n..\nmany\n"},
		{"too few agents", "1 2\n..\n2\n0 0 0 1\n"},
		{"short agent line", "1 2\n..\n1\n0 0 0\n"},
		{"bad coordinate", "1 2\n..\n1\n0 0 0 x\n"},
		{"markers", "1 2\n. a\n0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatic(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}

func TestParseExpected(t *testing.T) {
	got, err := ParseExpected(strings.NewReader("instances/test_1.txt,41\ninstances/test_10.txt, 19,extra\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"instances/test_1.txt":  41,
		"instances/test_10.txt": 19,
	}, got)

	_, err = ParseExpected(strings.NewReader("a.txt,lots\n"))
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = ParseExpected(strings.NewReader("a.txt\n"))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
