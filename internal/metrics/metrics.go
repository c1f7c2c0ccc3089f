// Package metrics exports planner counters in the Prometheus format.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

const namespace = "cbssipp"

// Recorder collects search metrics on its own registry. It implements
// algo.Observer and is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	solutionCost  *prometheus.HistogramVec
	expanded      prometheus.Counter
	nodeDepth     prometheus.Histogram
	conflicts     *prometheus.CounterVec
	pruned        *prometheus.CounterVec
	lowLevelCalls prometheus.Counter
	cacheHits     prometheus.Counter
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Planning runs by solver and outcome",
		}, []string{"solver", "outcome"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of planning runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"solver"}),
		solutionCost: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solution_cost",
			Help:      "Objective value of solved runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"solver"}),
		expanded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ct_nodes_expanded_total",
			Help:      "Constraint tree nodes expanded",
		}),
		nodeDepth: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ct_node_depth",
			Help:      "Depth of expanded constraint tree nodes",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Conflicts branched on, by kind",
		}, []string{"kind"}),
		pruned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ct_nodes_pruned_total",
			Help:      "Constraint tree children dropped, by reason",
		}, []string{"reason"}),
		lowLevelCalls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_level_calls_total",
			Help:      "Single-agent searches run",
		}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_level_cache_hits_total",
			Help:      "Single-agent searches answered from cache",
		}),
	}
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func (r *Recorder) OnNodeExpanded(node algo.NodeInfo) {
	r.expanded.Inc()
	r.nodeDepth.Observe(float64(node.Depth))
}

func (r *Recorder) OnConflictDetected(_ algo.NodeInfo, c algo.Conflict) {
	kind := "vertex"
	if c.IsEdge {
		kind = "edge"
	}
	r.conflicts.WithLabelValues(kind).Inc()
}

func (r *Recorder) OnNodePruned(_ algo.NodeInfo, reason string) {
	r.pruned.WithLabelValues(pruneReason(reason)).Inc()
}

// OnSolutionFound is a no-op; ObserveRun records every run including
// failed ones.
func (r *Recorder) OnSolutionFound(*core.Solution) {}

// ObserveRun records the outcome and counters of a finished run. A nil
// solution (invalid input) is ignored.
func (r *Recorder) ObserveRun(sol *core.Solution) {
	if sol == nil {
		return
	}
	r.runs.WithLabelValues(sol.Solver, sol.Outcome.String()).Inc()
	r.runDuration.WithLabelValues(sol.Solver).Observe(sol.Stats.Elapsed.Seconds())
	if sol.Outcome == core.Solved {
		r.solutionCost.WithLabelValues(sol.Solver).Observe(float64(sol.Cost))
	}
	r.lowLevelCalls.Add(float64(sol.Stats.LowLevelCalls))
	r.cacheHits.Add(float64(sol.Stats.CacheHits))
}

// pruneReason folds free-form prune messages into a small label set.
func pruneReason(reason string) string {
	switch {
	case strings.Contains(reason, "duplicate"):
		return "duplicate"
	case strings.Contains(reason, algo.ErrTruncated.Error()):
		return "truncated"
	case strings.Contains(reason, algo.ErrInfeasible.Error()):
		return "infeasible"
	default:
		return "other"
	}
}
