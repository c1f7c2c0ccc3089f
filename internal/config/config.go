// Package config loads planner settings from defaults, an optional YAML
// file and CBSSIPP_ environment variables.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/interval"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CBSSIPP"

// Config is the effective planner configuration.
type Config struct {
	SafetyThreshold float64 `mapstructure:"safety_threshold"`
	SplittingMode   string  `mapstructure:"splitting_mode"`
	TimeHorizon     string  `mapstructure:"time_horizon"`
	Objective       string  `mapstructure:"objective"`
	SearchDeadline  string  `mapstructure:"search_deadline"`
	EdgeConflicts   bool    `mapstructure:"edge_conflicts"`
	Interpolation   string  `mapstructure:"interpolation"`
	TimeResolution  int     `mapstructure:"time_resolution"`
	Heuristic       string  `mapstructure:"heuristic"`
	MaxAgents       int     `mapstructure:"max_agents"`
	MaxTreeNodes    int     `mapstructure:"max_tree_nodes"`
	MaxExpansions   int     `mapstructure:"max_expansions"`
	Workers         int     `mapstructure:"workers"`
	LogLevel        string  `mapstructure:"log_level"`
	ResultsDB       string  `mapstructure:"results_db"`
}

// Key describes one configuration key for display.
type Key struct {
	Name   string
	EnvVar string
}

// Keys lists every configuration key in display order.
var Keys = []Key{
	{Name: "safety_threshold"},
	{Name: "splitting_mode"},
	{Name: "time_horizon"},
	{Name: "objective"},
	{Name: "search_deadline"},
	{Name: "edge_conflicts"},
	{Name: "interpolation"},
	{Name: "time_resolution"},
	{Name: "heuristic"},
	{Name: "max_agents"},
	{Name: "max_tree_nodes"},
	{Name: "max_expansions"},
	{Name: "workers"},
	{Name: "log_level"},
	{Name: "results_db"},
}

func init() {
	for i := range Keys {
		Keys[i].EnvVar = EnvPrefix + "_" + strings.ToUpper(Keys[i].Name)
	}
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cbssipp"), nil
}

// SetDefaults registers defaults and environment lookup on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("safety_threshold", 0.1)
	v.SetDefault("splitting_mode", string(algo.StandardSplitting))
	v.SetDefault("time_horizon", "auto")
	v.SetDefault("objective", string(core.SumOfCost))
	v.SetDefault("search_deadline", "none")
	v.SetDefault("edge_conflicts", true)
	v.SetDefault("interpolation", risk.Linear.String())
	v.SetDefault("time_resolution", 1)
	v.SetDefault("heuristic", string(algo.ManhattanHeuristic))
	v.SetDefault("max_agents", 128)
	v.SetDefault("max_tree_nodes", 100000)
	v.SetDefault("max_expansions", 0)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("log_level", "info")

	dbPath := "results.db"
	if dir, err := Dir(); err == nil {
		dbPath = filepath.Join(dir, "results.db")
	}
	v.SetDefault("results_db", dbPath)
}

// ReadFile points v at cfgFile, or at the default locations when cfgFile
// is empty, and reads it. A missing default file is not an error.
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	if _, err := os.Stat("cbssipp.yaml"); err == nil {
		v.SetConfigFile("cbssipp.yaml")
	} else {
		dir, err := Dir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if err := interval.ValidateThreshold(c.SafetyThreshold); err != nil {
		return err
	}
	if _, err := algo.ParseSplittingMode(c.SplittingMode); err != nil {
		return err
	}
	if _, err := c.Horizon(); err != nil {
		return err
	}
	if _, err := core.ParseObjective(c.Objective); err != nil {
		return err
	}
	if _, err := c.Deadline(); err != nil {
		return err
	}
	if _, err := risk.ParseInterpolation(c.Interpolation); err != nil {
		return err
	}
	if _, err := algo.ParseHeuristic(c.Heuristic); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch {
	case c.TimeResolution < 1:
		return invalid("time_resolution must be >= 1, got %d", c.TimeResolution)
	case c.MaxAgents < 1:
		return invalid("max_agents must be >= 1, got %d", c.MaxAgents)
	case c.MaxTreeNodes < 0:
		return invalid("max_tree_nodes must be >= 0, got %d", c.MaxTreeNodes)
	case c.MaxExpansions < 0:
		return invalid("max_expansions must be >= 0, got %d", c.MaxExpansions)
	case c.Workers < 1:
		return invalid("workers must be >= 1, got %d", c.Workers)
	}
	return nil
}

// Horizon returns the explicit time horizon, or 0 for auto.
func (c *Config) Horizon() (int, error) {
	if c.TimeHorizon == "" || strings.EqualFold(c.TimeHorizon, "auto") {
		return 0, nil
	}
	h, err := strconv.Atoi(c.TimeHorizon)
	if err != nil || h < 1 {
		return 0, invalid("time_horizon must be auto or a positive integer, got %q", c.TimeHorizon)
	}
	return h, nil
}

// Deadline returns the search deadline, or 0 for none.
func (c *Config) Deadline() (time.Duration, error) {
	if c.SearchDeadline == "" || strings.EqualFold(c.SearchDeadline, "none") {
		return 0, nil
	}
	d, err := time.ParseDuration(c.SearchDeadline)
	if err != nil || d <= 0 {
		return 0, invalid("search_deadline must be none or a positive duration, got %q", c.SearchDeadline)
	}
	return d, nil
}

// Level maps log_level to a slog level.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, invalid("unknown log_level %q", c.LogLevel)
	}
}

// Options converts the configuration into solver options.
func (c *Config) Options() (algo.Options, error) {
	if err := c.Validate(); err != nil {
		return algo.Options{}, err
	}
	horizon, _ := c.Horizon()
	deadline, _ := c.Deadline()
	mode, _ := risk.ParseInterpolation(c.Interpolation)

	return algo.Options{
		Threshold:     c.SafetyThreshold,
		Horizon:       horizon,
		Resolution:    c.TimeResolution,
		Interpolation: mode,
		Heuristic:     algo.HeuristicKind(c.Heuristic),
		MaxExpansions: c.MaxExpansions,
		Splitting:     algo.SplittingMode(c.SplittingMode),
		Objective:     core.Objective(c.Objective),
		EdgeConflicts: c.EdgeConflicts,
		MaxNodes:      c.MaxTreeNodes,
		Deadline:      deadline,
		Workers:       c.Workers,
		MaxAgents:     c.MaxAgents,
	}, nil
}

// fileTemplate is the commented config.yaml written by config init.
const fileTemplate = `# cbssipp configuration
# See: cbssipp config show (for effective values and sources)

# Risk at or above this value makes a cell unsafe, in (0,1]
safety_threshold: {{ .SafetyThreshold }}

# Conflict splitting: standard | disjoint
splitting_mode: {{ .SplittingMode }}

# auto (unbounded) or an integer number of time steps
time_horizon: "{{ .TimeHorizon }}"

# sum_of_cost | makespan
objective: {{ .Objective }}

# none or a Go duration such as 30s
search_deadline: "{{ .SearchDeadline }}"

# Forbid agents swapping cells in one step
edge_conflicts: {{ .EdgeConflicts }}

# Obstacle motion between waypoints: linear | hold | step
interpolation: {{ .Interpolation }}

# Width of a time bucket in steps
time_resolution: {{ .TimeResolution }}

# manhattan | distance
heuristic: {{ .Heuristic }}

# Limits (0 = unlimited for tree nodes and expansions)
max_agents: {{ .MaxAgents }}
max_tree_nodes: {{ .MaxTreeNodes }}
max_expansions: {{ .MaxExpansions }}

# Concurrent low-level searches
workers: {{ .Workers }}

# debug | info | warn | error
log_level: {{ .LogLevel }}

# SQLite database for bench results
results_db: "{{ .ResultsDB }}"
`

var tmpl = template.Must(template.New("config").Parse(fileTemplate))

// Render returns the commented YAML form of c.
func Render(c *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c); err != nil {
		return nil, fmt.Errorf("template execute error: %w", err)
	}
	var check map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &check); err != nil {
		return nil, fmt.Errorf("rendered config is not valid YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// FileKeys reads the YAML file at path and returns the keys present in it.
func FileKeys(path string) map[string]bool {
	out := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return out
	}
	for k := range parsed {
		out[k] = true
	}
	return out
}

// Source reports where the value of k comes from.
func Source(k Key, fileKeys map[string]bool) string {
	if _, ok := os.LookupEnv(k.EnvVar); ok {
		return fmt.Sprintf("(env: %s)", k.EnvVar)
	}
	if fileKeys[k.Name] {
		return "(file)"
	}
	return "(default)"
}
