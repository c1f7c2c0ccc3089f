package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/report"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
	"github.com/elektrokombinacija/cbs-sipp/internal/sim"
)

func (a *app) simulateCmd() *cobra.Command {
	var (
		mapPath string
		trials  int
		seed    uint64
		frames  bool
	)
	cmd := &cobra.Command{
		Use:   "simulate INSTANCE SOLUTION",
		Short: "Replay a saved solution against the obstacle model",
		Long: `Replay a YAML solution written by 'solve -o'. The replay checks path
shape, agent conflicts and the safety threshold at every step, then samples
obstacle behaviour to estimate how often each agent is hit.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := loadInstance(mapPath, args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			doc, paths, err := report.ReadSolution(f)
			if err != nil {
				return err
			}

			sol := core.NewSolution()
			sol.RunID = doc.RunID
			sol.Solver = doc.Solver
			sol.Objective = doc.Objective
			sol.Paths = paths
			sol.ComputeCosts()
			if frames {
				if err := a.printFrames(inst, sol.Paths); err != nil {
					return err
				}
			}
			return a.simulateSolution(cmd, inst, sol, trials, seed)
		},
	}
	cmd.Flags().StringVarP(&mapPath, "map", "m", "", "Map file for TOML instances")
	cmd.Flags().IntVar(&trials, "trials", 1000, "Monte Carlo trials (0 skips sampling)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Sampling seed (0 uses the default)")
	cmd.Flags().BoolVar(&frames, "frames", false, "Print the solution one time step at a time first")
	return cmd
}

func (a *app) simulateSolution(cmd *cobra.Command, inst *core.Instance, sol *core.Solution, trials int, seed uint64) error {
	interp, err := risk.ParseInterpolation(a.cfg.Interpolation)
	if err != nil {
		return err
	}
	cfg := sim.DefaultConfig()
	cfg.Threshold = a.cfg.SafetyThreshold
	cfg.Interpolation = interp
	cfg.EdgeConflicts = a.cfg.EdgeConflicts
	cfg.Workers = a.cfg.Workers
	cfg.Trials = trials
	if seed != 0 {
		cfg.Seed = seed
	}

	rep, err := sim.New(cfg, a.logger).Run(cmd.Context(), inst, sol)
	if err != nil {
		return err
	}

	for _, msg := range rep.Invalid {
		a.ui.Error("invalid path: %s", msg)
	}
	for _, msg := range rep.Conflicts {
		a.ui.Error("conflict: %s", msg)
	}
	for _, v := range rep.Violations {
		a.ui.Warning("agent %d at %s t=%d: risk %.3f >= %.3f", v.Agent, v.Cell, v.T, v.Risk, cfg.Threshold)
	}

	ids := make([]core.AgentID, 0, len(rep.PathRisk))
	for id := range rep.PathRisk {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	table := a.ui.Table([]string{"Agent", "Path risk", "Hit rate"})
	for _, id := range ids {
		hit := "-"
		if rep.Trials > 0 {
			hit = fmt.Sprintf("%.4f", float64(rep.AgentCollisions[id])/float64(rep.Trials))
		}
		_ = table.Append([]string{strconv.Itoa(int(id)), fmt.Sprintf("%.4f", rep.PathRisk[id]), hit})
	}
	_ = table.Render()

	if rep.Trials > 0 {
		a.ui.Info("%d of %d trials had a collision (rate %.4f)", rep.Collisions, rep.Trials, rep.CollisionRate)
	}
	if !rep.OK() {
		return fmt.Errorf("replay failed: %d invalid paths, %d conflicts, %d threshold violations",
			len(rep.Invalid), len(rep.Conflicts), len(rep.Violations))
	}
	a.ui.Success("Replay of %d steps passed", rep.Steps)
	return nil
}
