package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/instance"
)

// loadInstance reads a static .txt instance, or a TOML instance paired
// with its map file.
func loadInstance(mapPath, path string) (*core.Instance, error) {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return instance.LoadStatic(path)
	}
	if mapPath == "" {
		return nil, fmt.Errorf("%w: %s needs a map file (--map)", core.ErrInvalidInput, path)
	}
	return instance.Load(mapPath, path)
}

// solverNames lists the accepted --solver values.
var solverNames = []string{"cbs", "cbs-ds", "prioritized"}

// newSolver builds a solver by name. "cbs" uses the configured splitting
// mode; "cbs-ds" forces disjoint splitting.
func (a *app) newSolver(name string, observers ...algo.Observer) (algo.Solver, error) {
	opts, err := a.cfg.Options()
	if err != nil {
		return nil, err
	}
	hooks := []algo.Option{algo.WithLogger(a.logger)}
	if a.verbose {
		observers = append(observers, algo.LogObserver{Logger: a.logger})
	}
	if len(observers) > 0 {
		hooks = append(hooks, algo.WithObserver(algo.Observers(observers)))
	}

	switch strings.ToLower(name) {
	case "cbs":
		return algo.NewCBS(opts, hooks...), nil
	case "cbs-ds":
		opts.Splitting = algo.DisjointSplitting
		return algo.NewCBS(opts, hooks...), nil
	case "prioritized":
		return algo.NewPrioritized(opts, hooks...), nil
	default:
		return nil, fmt.Errorf("%w: unknown solver %q (want one of %s)",
			core.ErrInvalidInput, name, strings.Join(solverNames, ", "))
	}
}
