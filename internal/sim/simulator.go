// Package sim replays planned solutions against the obstacle model. It
// verifies a solution step by step and estimates how often agents would
// actually meet an obstacle by sampling obstacle behaviour.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
	"github.com/elektrokombinacija/cbs-sipp/internal/interval"
	"github.com/elektrokombinacija/cbs-sipp/internal/risk"
)

// Config configures a simulation run.
type Config struct {
	Threshold     float64
	Interpolation risk.Interpolation
	EdgeConflicts bool

	// Trials is the number of Monte Carlo samples; 0 skips sampling.
	Trials  int
	Seed    uint64
	Workers int
}

// DefaultConfig returns 1000 trials with seed 42.
func DefaultConfig() Config {
	return Config{
		Threshold:     0.1,
		Interpolation: risk.Linear,
		EdgeConflicts: true,
		Trials:        1000,
		Seed:          42,
		Workers:       runtime.NumCPU(),
	}
}

// Violation is a step where an agent stands on a cell whose risk is at or
// above the threshold.
type Violation struct {
	Agent core.AgentID `yaml:"agent"`
	Cell  core.Cell    `yaml:"cell"`
	T     int          `yaml:"t"`
	Risk  float64      `yaml:"risk"`
}

// Report is the outcome of a simulation.
type Report struct {
	Steps      int               `yaml:"steps"`
	Invalid    []string          `yaml:"invalid,omitempty"`
	Conflicts  []string          `yaml:"conflicts,omitempty"`
	Violations []Violation       `yaml:"violations,omitempty"`
	// PathRisk is the probability that an agent meets at least one
	// occupied cell, assuming independent occupancy events.
	PathRisk map[core.AgentID]float64 `yaml:"path_risk"`

	Trials          int                      `yaml:"trials"`
	Collisions      int                      `yaml:"collisions"`
	AgentCollisions map[core.AgentID]int     `yaml:"agent_collisions"`
	CollisionRate   float64                  `yaml:"collision_rate"`
	Elapsed         time.Duration            `yaml:"elapsed"`
}

// OK reports whether the replay found no invalid path, conflict or
// threshold violation.
func (r *Report) OK() bool {
	return len(r.Invalid) == 0 && len(r.Conflicts) == 0 && len(r.Violations) == 0
}

// Simulator replays solutions.
type Simulator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a simulator. A nil logger discards output.
func New(cfg Config, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Simulator{cfg: cfg, logger: logger}
}

// Run replays sol on inst and, when trials are configured, samples
// obstacle behaviour. ctx cancels the sampling.
func (s *Simulator) Run(ctx context.Context, inst *core.Instance, sol *core.Solution) (*Report, error) {
	started := time.Now()
	if err := inst.Validate(0); err != nil {
		return nil, err
	}
	if err := interval.ValidateThreshold(s.cfg.Threshold); err != nil {
		return nil, err
	}
	model, err := risk.NewModel(inst.Map, inst.Obstacles, s.cfg.Interpolation)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		PathRisk:        make(map[core.AgentID]float64),
		AgentCollisions: make(map[core.AgentID]int),
	}
	s.replay(inst, sol, model, rep)

	if s.cfg.Trials > 0 {
		if err := s.sample(ctx, inst, sol, rep); err != nil {
			return nil, err
		}
	}
	rep.Elapsed = time.Since(started)

	s.logger.Info("simulation finished", "run_id", sol.RunID, "steps", rep.Steps, "ok", rep.OK(),
		"conflicts", len(rep.Conflicts), "violations", len(rep.Violations),
		"trials", rep.Trials, "collision_rate", rep.CollisionRate)
	return rep, nil
}

// replay walks every path once, checking shape, endpoints, safety and
// conflicts.
func (s *Simulator) replay(inst *core.Instance, sol *core.Solution, model *risk.Model, rep *Report) {
	for _, a := range inst.Agents {
		p, ok := sol.Paths[a.ID]
		if !ok || len(p) == 0 {
			rep.Invalid = append(rep.Invalid, fmt.Sprintf("agent %d has no path", a.ID))
			continue
		}
		if err := p.CheckShape(inst.Map); err != nil {
			rep.Invalid = append(rep.Invalid, fmt.Sprintf("agent %d: %v", a.ID, err))
		}
		if p[0].Cell != a.Start || p[len(p)-1].Cell != a.Goal {
			rep.Invalid = append(rep.Invalid, fmt.Sprintf("agent %d does not go from %s to %s", a.ID, a.Start, a.Goal))
		}
		rep.Steps = max(rep.Steps, p.Cost())

		survive := 1.0
		for _, tc := range p {
			r := model.Risk(tc.Cell, tc.T)
			survive *= 1 - r
			if interval.IsUnsafe(r, s.cfg.Threshold) {
				rep.Violations = append(rep.Violations, Violation{Agent: a.ID, Cell: tc.Cell, T: tc.T, Risk: r})
			}
		}
		rep.PathRisk[a.ID] = 1 - survive
	}

	for _, c := range algo.FindAllConflicts(sol.Paths, s.cfg.EdgeConflicts) {
		rep.Conflicts = append(rep.Conflicts, c.String())
	}
}

// hit is a step where an agent stands where a trajectory predicts the
// obstacle, with the probability of that prediction.
type hit struct {
	agent core.AgentID
	p     float64
}

// hits matches every trajectory against the agent paths.
func (s *Simulator) hits(inst *core.Instance, sol *core.Solution) [][]hit {
	ids := make([]core.AgentID, 0, len(sol.Paths))
	for id := range sol.Paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out [][]hit
	for _, o := range inst.Obstacles {
		for _, tr := range o.Trajectories {
			occ := risk.Expand(o.Start, tr, s.cfg.Interpolation)
			if tr.Persist && len(occ) > 0 {
				last := occ[len(occ)-1]
				for t := last.T + 1; t <= sol.Makespan; t++ {
					occ = append(occ, risk.Occupancy{Cell: last.Cell, T: t, P: last.P})
				}
			}

			var hs []hit
			for _, id := range ids {
				p := sol.Paths[id]
				for _, oc := range occ {
					if len(p) == 0 || oc.T < p[0].T {
						continue
					}
					if p.At(oc.T) == oc.Cell {
						hs = append(hs, hit{agent: id, p: oc.P})
					}
				}
			}
			out = append(out, hs)
		}
	}
	return out
}

type tally struct {
	trials     int
	collisions int
	agents     map[core.AgentID]int
}

// sample runs the Monte Carlo trials. In each trial every trajectory is
// realized by one uniform draw u and occupies each predicted step whose
// probability exceeds u.
func (s *Simulator) sample(ctx context.Context, inst *core.Instance, sol *core.Solution, rep *Report) error {
	hits := s.hits(inst, sol)
	chunks := min(s.cfg.Workers, s.cfg.Trials)
	per := s.cfg.Trials / chunks

	p := pool.NewWithResults[tally]().WithContext(ctx).WithMaxGoroutines(chunks)
	for c := 0; c < chunks; c++ {
		n := per
		if c == chunks-1 {
			n = s.cfg.Trials - per*(chunks-1)
		}
		seed := s.cfg.Seed + uint64(c)
		p.Go(func(ctx context.Context) (tally, error) {
			return runTrials(ctx, hits, n, seed)
		})
	}
	results, err := p.Wait()
	if err != nil {
		return fmt.Errorf("sampling: %w", err)
	}

	for _, r := range results {
		rep.Trials += r.trials
		rep.Collisions += r.collisions
		for id, n := range r.agents {
			rep.AgentCollisions[id] += n
		}
	}
	if rep.Trials > 0 {
		rep.CollisionRate = float64(rep.Collisions) / float64(rep.Trials)
	}
	return nil
}

func runTrials(ctx context.Context, hits [][]hit, n int, seed uint64) (tally, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))
	t := tally{agents: make(map[core.AgentID]int)}
	hitAgents := make(map[core.AgentID]bool)

	for i := 0; i < n; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return t, err
			}
		}
		clear(hitAgents)
		for _, hs := range hits {
			u := rng.Float64()
			for _, h := range hs {
				if u < h.p {
					hitAgents[h.agent] = true
				}
			}
		}
		t.trials++
		if len(hitAgents) > 0 {
			t.collisions++
		}
		for id := range hitAgents {
			t.agents[id]++
		}
	}
	return t, nil
}
