package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/instance"
)

func (a *app) generateCmd() *cobra.Command {
	opts := instance.DefaultGenerateOptions()
	var (
		count int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "generate MAP",
		Short: "Generate random TOML instances for a map",
		Long: `Generate random instances on the free cells of MAP. Each instance gets
distinct agent starts and goals, and obstacles with 1..max-trajectories
probabilistic trajectories. With --count N, instance i uses seed+i and is
written to the --out directory.`,
		Example: `  cbssipp generate maps/empty-8-8.map --agents 4 --obstacles 2 > inst.toml
  cbssipp generate maps/empty-8-8.map --agents 8 --count 20 --out instances/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generateRun(args[0], opts, count, out)
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&opts.Agents, "agents", "a", opts.Agents, "Number of agents")
	fl.IntVar(&opts.Obstacles, "obstacles", opts.Obstacles, "Number of dynamic obstacles")
	fl.IntVar(&opts.MaxTrajectories, "max-trajectories", opts.MaxTrajectories, "Maximum trajectories per obstacle")
	fl.Float64VarP(&opts.P, "p", "p", opts.P, "Probability of every waypoint")
	fl.IntVar(&opts.MaxTime, "max-time", 0, "Latest waypoint time (0 = rows*cols)")
	fl.Uint64Var(&opts.Seed, "seed", 42, "Random seed")
	fl.IntVarP(&count, "count", "n", 1, "Number of instances")
	fl.StringVarP(&out, "out", "o", "", "Output file, or directory when --count > 1 (default stdout)")
	return cmd
}

func (a *app) generateRun(mapPath string, opts instance.GenerateOptions, count int, out string) error {
	mf, err := instance.LoadMap(mapPath)
	if err != nil {
		return err
	}
	if len(mf.Markers) > 0 {
		return fmt.Errorf("%w: %s already places obstacles", core.ErrInvalidInput, mapPath)
	}
	if count < 1 {
		return fmt.Errorf("%w: --count must be >= 1", core.ErrInvalidInput)
	}

	if count == 1 {
		inst, err := instance.Generate(mf.Grid, opts)
		if err != nil {
			return err
		}
		a.logger.Debug("generated instance", "options", opts.String())
		if out == "" {
			return instance.Encode(a.ui.Out, inst)
		}
		if err := instance.Save(out, inst); err != nil {
			return err
		}
		a.ui.Success("Instance written to %s", out)
		return nil
	}

	if out == "" {
		return fmt.Errorf("%w: --out directory is required with --count", core.ErrInvalidInput)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	base := instance.Name(mapPath)
	seed := opts.Seed
	for i := 0; i < count; i++ {
		opts.Seed = seed + uint64(i)
		inst, err := instance.Generate(mf.Grid, opts)
		if err != nil {
			return err
		}
		path := filepath.Join(out, fmt.Sprintf("%s_%da_%do_%03d.toml", base, opts.Agents, opts.Obstacles, i))
		if err := instance.Save(path, inst); err != nil {
			return err
		}
		a.ui.VerboseLog("%s (%s)", path, opts)
	}
	a.ui.Success("%d instances written to %s", count, out)
	return nil
}
