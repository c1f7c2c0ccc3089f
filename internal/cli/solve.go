package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/metrics"
	"github.com/elektrokombinacija/cbs-sipp/internal/output"
	"github.com/elektrokombinacija/cbs-sipp/internal/report"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
	"github.com/elektrokombinacija/cbs-sipp/internal/vis"
)

type solveFlags struct {
	mapPath     string
	solver      string
	out         string
	metricsFile string
	simulate    bool
	trials      int
	treeFile    string
	frames      bool
}

func (a *app) solveCmd() *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve INSTANCE",
		Short: "Plan paths for one instance",
		Long: `Plan paths for every agent of an instance.

INSTANCE is a static .txt instance, or a TOML instance used with --map.`,
		Example: `  cbssipp solve instances/test_1.txt
  cbssipp solve --map maps/warehouse.map instances/warehouse.toml -o plan.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.solveRun(cmd, f, args[0])
		},
	}
	cmd.Flags().StringVarP(&f.mapPath, "map", "m", "", "Map file for TOML instances")
	cmd.Flags().StringVarP(&f.solver, "solver", "s", "cbs", "Solver: cbs, cbs-ds or prioritized")
	cmd.Flags().StringVarP(&f.out, "output", "o", "", "Write the solution as YAML to this file (- for stdout)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	cmd.Flags().BoolVar(&f.simulate, "simulate", false, "Replay the solution and sample obstacle behaviour")
	cmd.Flags().IntVar(&f.trials, "trials", 1000, "Monte Carlo trials for --simulate")
	cmd.Flags().StringVar(&f.treeFile, "tree", "", "Write the explored constraint tree as Graphviz DOT")
	cmd.Flags().BoolVar(&f.frames, "frames", false, "Print the solution one time step at a time")
	return cmd
}

func (a *app) solveRun(cmd *cobra.Command, f *solveFlags, path string) error {
	inst, err := loadInstance(f.mapPath, path)
	if err != nil {
		return err
	}
	a.ui.VerboseLog("Loaded %s: %dx%d grid, %d agents, %d obstacles",
		inst.Name, inst.Map.Rows(), inst.Map.Cols(), len(inst.Agents), len(inst.Obstacles))

	rec := metrics.NewRecorder()
	observers := []algo.Observer{rec}
	var tree *vis.TreeRecorder
	if f.treeFile != "" {
		tree = vis.NewTreeRecorder()
		observers = append(observers, tree)
	}
	solver, err := a.newSolver(f.solver, observers...)
	if err != nil {
		return err
	}

	sol, solveErr := solver.Solve(cmd.Context(), inst)
	if sol == nil {
		return solveErr
	}
	rec.ObserveRun(sol)
	if f.metricsFile != "" {
		if err := rec.WriteTextfile(f.metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if tree != nil {
		if err := writeDOT(f.treeFile, tree); err != nil {
			return err
		}
	}

	if f.out == "-" {
		return report.WriteSolution(a.ui.Out, inst, sol)
	}

	a.printSolution(inst, sol)
	if f.out != "" {
		if err := report.SaveSolution(f.out, inst, sol); err != nil {
			return err
		}
		a.ui.Success("Solution written to %s", f.out)
	}
	if solveErr != nil {
		return solveErr
	}

	if f.frames {
		if err := a.printFrames(inst, sol.Paths); err != nil {
			return err
		}
	}
	if f.simulate {
		return a.simulateSolution(cmd, inst, sol, f.trials, 0)
	}
	return nil
}

func (a *app) printSolution(inst *core.Instance, sol *core.Solution) {
	switch sol.Outcome {
	case core.Solved:
		a.ui.Success("%s %s %s: cost %d, sum of costs %d, makespan %d",
			inst.Name, sol.Solver, output.OutcomeColor(sol.Outcome.String()), sol.Cost, sol.SumOfCost, sol.Makespan)
	default:
		a.ui.Error("%s %s %s", inst.Name, sol.Solver, output.OutcomeColor(sol.Outcome.String()))
	}
	a.ui.VerboseLog("run %s: %d nodes expanded, %d generated, %d low-level calls, %s",
		sol.RunID, sol.Stats.Expanded, sol.Stats.Generated, sol.Stats.LowLevelCalls, sol.Stats.Elapsed)

	if len(sol.Paths) == 0 {
		return
	}
	table := a.ui.Table([]string{"Agent", "Start", "Goal", "Cost", "Moves", "Waits"})
	for _, r := range sol.Results() {
		agent, _ := inst.AgentByID(r.Agent)
		_ = table.Append([]string{
			strconv.Itoa(int(r.Agent)),
			agent.Start.String(),
			agent.Goal.String(),
			strconv.Itoa(r.Cost),
			strconv.Itoa(r.Moves),
			strconv.Itoa(len(r.Path) - 1 - r.Moves),
		})
	}
	_ = table.Render()
}

func writeDOT(path string, tree *vis.TreeRecorder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tree.WriteDOT(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// printFrames draws every time step of the paths with obstacle risk.
func (a *app) printFrames(inst *core.Instance, paths map[core.AgentID]core.Path) error {
	interp, err := risk.ParseInterpolation(a.cfg.Interpolation)
	if err != nil {
		return err
	}
	model, err := risk.NewModel(inst.Map, inst.Obstacles, interp)
	if err != nil {
		return err
	}
	r := vis.NewRenderer(inst.Map, model, a.cfg.SafetyThreshold, paths)
	fmt.Fprintln(a.ui.Out)
	return r.WriteFrames(a.ui.Out, vis.NewPlayback(r.Makespan()))
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
