package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// RunObserver receives every finished run.
type RunObserver interface {
	ObserveRun(sol *core.Solution)
}

// Case is a named benchmark instance.
type Case struct {
	Path     string
	Instance *core.Instance
}

// Bench runs every solver on every case.
type Bench struct {
	Solvers   []algo.Solver
	Threshold float64
	// Expected maps case paths to reference sum of costs.
	Expected map[string]int
	Observer RunObserver
	Store    *Store
	Logger   *slog.Logger
	// Progress is called after each run.
	Progress func(done, total int, r *Result)
}

// Run benchmarks the cases in order. It stops early only when ctx is
// cancelled or a result cannot be stored; solver failures are results.
func (b *Bench) Run(ctx context.Context, cases []Case) ([]*Result, error) {
	log := b.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	total := len(cases) * len(b.Solvers)
	results := make([]*Result, 0, total)
	for _, c := range cases {
		for _, solver := range b.Solvers {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			sol, err := solver.Solve(ctx, c.Instance)
			if sol == nil {
				return results, fmt.Errorf("%s: %w", c.Path, err)
			}
			if err != nil && !errors.Is(err, algo.ErrInfeasible) && !errors.Is(err, algo.ErrTruncated) {
				log.Warn("solver error", "instance", c.Path, "solver", solver.Name(), "error", err)
			}
			if b.Observer != nil {
				b.Observer.ObserveRun(sol)
			}

			r := NewResult(c.Instance, sol, b.Threshold)
			r.Instance = c.Path
			if exp, ok := b.Expected[c.Path]; ok {
				r.Expected = exp
			}
			if r.Mismatch() {
				log.Warn("cost mismatch", "instance", c.Path, "solver", r.Solver,
					"expected", r.Expected, "got", r.SumOfCost, "outcome", r.Outcome)
			}
			if b.Store != nil {
				if err := b.Store.SaveRun(ctx, r); err != nil {
					return results, err
				}
			}
			results = append(results, r)
			if b.Progress != nil {
				b.Progress(len(results), total, r)
			}
		}
	}
	return results, nil
}
