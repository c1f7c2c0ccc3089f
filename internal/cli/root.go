// Package cli implements the cbssipp command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/elektrokombinacija/cbs-sipp/internal/config"
	"github.com/elektrokombinacija/cbs-sipp/internal/output"
)

// app holds the dependencies shared by every command, set up before a
// command runs.
type app struct {
	v       *viper.Viper
	ui      *output.UI
	logger  *slog.Logger
	cfg     *config.Config
	cfgFile string
	verbose bool
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree over a fresh viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "cbssipp",
		Short: "Multi-agent path finding among probabilistic dynamic obstacles",
		Long: `cbssipp plans collision-free paths for agents on a grid shared with
dynamic obstacles whose motion is only known as probabilistic trajectories.
It runs conflict-based search over safe interval path planning, keeping every
agent off cells whose occupancy risk reaches the safety threshold.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default ./cbssipp.yaml or ~/.config/cbssipp/config.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	pf.Float64("threshold", 0, "Safety threshold in (0,1]")
	pf.String("splitting", "", "Conflict splitting: standard or disjoint")
	pf.String("horizon", "", "Time horizon: auto or an integer")
	pf.String("deadline", "", "Search deadline: none or a duration")
	pf.String("objective", "", "sum_of_cost or makespan")
	pf.String("log-level", "", "debug, info, warn or error")

	for flag, key := range map[string]string{
		"threshold": "safety_threshold",
		"splitting": "splitting_mode",
		"horizon":   "time_horizon",
		"deadline":  "search_deadline",
		"objective": "objective",
		"log-level": "log_level",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		a.solveCmd(),
		a.generateCmd(),
		a.benchCmd(),
		a.simulateCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.ui = &output.UI{Verbose: a.verbose, Out: cmd.OutOrStdout(), ErrOut: cmd.ErrOrStderr()}

	config.SetDefaults(a.v)
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := cfg.Level()
	if a.verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	a.logger = newLogger(cmd.ErrOrStderr(), level)
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
