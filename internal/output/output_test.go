package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestMessages(t *testing.T) {
	u, out, errOut := newTestUI()
	u.Info("loaded %d agents", 3)
	u.Success("solved in %s", "2ms")
	u.Warning("threshold %v", 0.9)
	u.Error("failed %s", "badly")

	assert.Contains(t, out.String(), "loaded 3 agents")
	assert.Contains(t, out.String(), "solved in 2ms")
	assert.Contains(t, errOut.String(), "threshold 0.9")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog(t *testing.T) {
	u, out, _ := newTestUI()
	u.VerboseLog("hidden")
	assert.Empty(t, out.String())

	u.Verbose = true
	u.VerboseLog("node %d", 7)
	assert.Contains(t, out.String(), "node 7")
}

func TestOutcomeColor(t *testing.T) {
	for _, o := range []string{"solved", "truncated", "infeasible", "other"} {
		assert.Contains(t, OutcomeColor(o), o)
	}
	assert.Contains(t, RateColor(1), "100%")
	assert.Contains(t, RateColor(0.25), "25%")
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Agent", "Cost"})
	require.NoError(t, table.Append([]string{"0", "4"}))
	require.NoError(t, table.Render())

	assert.Contains(t, strings.ToUpper(out.String()), "AGENT")
	assert.Contains(t, out.String(), "4")
}
