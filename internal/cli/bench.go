package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/instance"
	"github.com/elektrokombinacija/cbs-sipp/internal/metrics"
	"github.com/elektrokombinacija/cbs-sipp/internal/output"
	"github.com/elektrokombinacija/cbs-sipp/internal/report"
)

type benchFlags struct {
	mapPath     string
	solvers     []string
	expected    string
	csvPath     string
	metricsFile string
	noStore     bool
}

func (a *app) benchCmd() *cobra.Command {
	f := &benchFlags{}
	cmd := &cobra.Command{
		Use:   "bench PATTERN...",
		Short: "Run solvers over a set of instances",
		Long: `Run every selected solver on every instance matching the glob patterns.
Results are stored in the results database and optionally written as CSV.
With --expected, sums of costs are checked against an instance,cost CSV and
the command fails when any run disagrees.`,
		Example: `  cbssipp bench 'instances/test_*.txt' --expected instances/min-sum-of-cost.csv
  cbssipp bench --map maps/empty-8-8.map 'generated/*.toml' -s cbs,cbs-ds,prioritized --csv out/bench.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.benchRun(cmd, f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.mapPath, "map", "m", "", "Map file for TOML instances")
	fl.StringSliceVarP(&f.solvers, "solver", "s", []string{"cbs"}, "Solvers to run: cbs, cbs-ds, prioritized")
	fl.StringVar(&f.expected, "expected", "", "CSV of instance,cost reference results")
	fl.StringVar(&f.csvPath, "csv", "", "Write results to this CSV file")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	fl.BoolVar(&f.noStore, "no-store", false, "Do not record results in the results database")

	cmd.AddCommand(a.benchHistoryCmd())
	return cmd
}

func (a *app) benchRun(cmd *cobra.Command, f *benchFlags, patterns []string) error {
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return fmt.Errorf("%w: pattern %q: %v", core.ErrInvalidInput, p, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return fmt.Errorf("%w: no instance files match %v", core.ErrInvalidInput, patterns)
	}

	cases := make([]report.Case, 0, len(files))
	for _, path := range files {
		inst, err := loadInstance(f.mapPath, path)
		if err != nil {
			return err
		}
		cases = append(cases, report.Case{Path: path, Instance: inst})
	}

	rec := metrics.NewRecorder()
	solvers := make([]algo.Solver, 0, len(f.solvers))
	for _, name := range f.solvers {
		s, err := a.newSolver(name, rec)
		if err != nil {
			return err
		}
		solvers = append(solvers, s)
	}

	b := &report.Bench{
		Solvers:   solvers,
		Threshold: a.cfg.SafetyThreshold,
		Observer:  rec,
		Logger:    a.logger,
		Progress: func(done, total int, r *report.Result) {
			a.ui.VerboseLog("[%d/%d] %s / %s: %s cost=%d %s", done, total, r.Instance, r.Solver,
				r.Outcome, r.Cost, r.Elapsed)
		},
	}
	if f.expected != "" {
		exp, err := instance.LoadExpected(f.expected)
		if err != nil {
			return err
		}
		b.Expected = exp
	}
	if !f.noStore {
		store, err := report.OpenStore(a.cfg.ResultsDB)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate results database: %w", err)
		}
		b.Store = store
	}

	a.ui.Info("Running %d instances x %d solvers", len(cases), len(solvers))
	results, runErr := b.Run(cmd.Context(), cases)

	if f.csvPath != "" && len(results) > 0 {
		if err := report.SaveCSV(f.csvPath, results); err != nil {
			return err
		}
		a.ui.Success("Results written to %s", f.csvPath)
	}
	if f.metricsFile != "" {
		if err := rec.WriteTextfile(f.metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	a.printSummary(results)

	mismatches := 0
	for _, r := range results {
		if r.Mismatch() {
			mismatches++
			a.ui.Error("%s %s: expected %d, got %d (%s)", r.Instance, r.Solver, r.Expected, r.SumOfCost, r.Outcome)
		}
	}
	if b.Expected != nil {
		checked := 0
		for _, r := range results {
			if r.Expected != report.NoExpected {
				checked++
			}
		}
		if mismatches > 0 {
			return fmt.Errorf("%d of %d checked runs did not match the expected cost", mismatches, checked)
		}
		a.ui.Success("All %d checked runs match the expected cost", checked)
	}
	return nil
}

func (a *app) printSummary(results []*report.Result) {
	table := a.ui.Table([]string{"Solver", "Runs", "Solved", "Infeasible", "Truncated", "Success", "Avg time", "Avg cost", "Avg nodes"})
	for _, s := range report.Summarize(results) {
		_ = table.Append([]string{
			s.Solver,
			strconv.Itoa(s.Runs),
			strconv.Itoa(s.Solved),
			strconv.Itoa(s.Infeasible),
			strconv.Itoa(s.Truncated),
			output.RateColor(s.SuccessRate()),
			s.AvgElapsed.String(),
			fmt.Sprintf("%.2f", s.AvgCost),
			fmt.Sprintf("%.1f", s.AvgExpanded),
		})
	}
	_ = table.Render()
}

func (a *app) benchHistoryCmd() *cobra.Command {
	var filter report.RunFilter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored benchmark results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := report.OpenStore(a.cfg.ResultsDB)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate results database: %w", err)
			}

			runs, err := store.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				a.ui.Info("No stored runs")
				return nil
			}
			table := a.ui.Table([]string{"Time", "Instance", "Solver", "Outcome", "Cost", "Expected", "Elapsed"})
			for _, r := range runs {
				exp := "-"
				if r.Expected != report.NoExpected {
					exp = strconv.Itoa(r.Expected)
				}
				_ = table.Append([]string{
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					r.Instance,
					r.Solver,
					output.OutcomeColor(r.Outcome),
					strconv.Itoa(r.Cost),
					exp,
					r.Elapsed.String(),
				})
			}
			return table.Render()
		},
	}
	cmd.Flags().StringVar(&filter.Instance, "instance", "", "Only runs of this instance path")
	cmd.Flags().StringVar(&filter.Solver, "solver", "", "Only runs of this solver name")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum runs to list (0 = all)")
	return cmd
}
