package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

type runCounter struct{ runs []*core.Solution }

func (c *runCounter) ObserveRun(sol *core.Solution) { c.runs = append(c.runs, sol) }

func TestBench_Run(t *testing.T) {
	opts := algo.DefaultOptions()
	opts.Workers = 1

	store := newTestStore(t)
	counter := &runCounter{}
	var progress []int
	b := &Bench{
		Solvers:   []algo.Solver{algo.NewCBS(opts), algo.NewPrioritized(opts)},
		Threshold: opts.Threshold,
		Expected:  map[string]int{"crossing.txt": 5},
		Observer:  counter,
		Store:     store,
		Progress:  func(done, _ int, _ *Result) { progress = append(progress, done) },
	}

	results, err := b.Run(context.Background(), []Case{{Path: "crossing.txt", Instance: crossing(t)}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []int{1, 2}, progress)
	assert.Len(t, counter.runs, 2)

	for _, r := range results {
		assert.Equal(t, "crossing.txt", r.Instance)
		assert.Equal(t, 5, r.Expected)
		assert.False(t, r.Mismatch(), r.Solver)
	}

	stored, err := store.ListRuns(context.Background(), RunFilter{Instance: "crossing.txt"})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestBench_InvalidInstance(t *testing.T) {
	inst := crossing(t)
	inst.Agents[1].Goal = inst.Agents[0].Goal

	b := &Bench{Solvers: []algo.Solver{algo.NewCBS(algo.DefaultOptions())}}
	_, err := b.Run(context.Background(), []Case{{Path: "bad.txt", Instance: inst}})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestBench_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &Bench{Solvers: []algo.Solver{algo.NewCBS(algo.DefaultOptions())}}
	results, err := b.Run(ctx, []Case{{Path: "crossing.txt", Instance: crossing(t)}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}
