package algo

import (
	"log/slog"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// NodeInfo describes a constraint tree node to observers.
type NodeInfo struct {
	ID        int
	Parent    int
	Depth     int
	Cost      int
	Conflicts int
	// Delta holds only the constraints added by this node.
	Delta []Constraint
}

// Observer is the interface for observing conflict-based search.
type Observer interface {
	// OnNodeExpanded is called when a node is popped from the open list.
	OnNodeExpanded(node NodeInfo)

	// OnConflictDetected is called with the conflict a node branches on.
	OnConflictDetected(node NodeInfo, conflict Conflict)

	// OnNodePruned is called when a child is dropped before entering the
	// open list.
	OnNodePruned(parent NodeInfo, reason string)

	// OnSolutionFound is called once with the final solution.
	OnSolutionFound(solution *core.Solution)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnNodeExpanded(NodeInfo)              {}
func (NopObserver) OnConflictDetected(NodeInfo, Conflict) {}
func (NopObserver) OnNodePruned(NodeInfo, string)         {}
func (NopObserver) OnSolutionFound(*core.Solution)        {}

// LogObserver writes search events at debug level.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) OnNodeExpanded(node NodeInfo) {
	o.Logger.Debug("node expanded", "node", node.ID, "depth", node.Depth, "cost", node.Cost, "conflicts", node.Conflicts)
}

func (o LogObserver) OnConflictDetected(node NodeInfo, conflict Conflict) {
	o.Logger.Debug("conflict", "node", node.ID, "conflict", conflict.String())
}

func (o LogObserver) OnNodePruned(parent NodeInfo, reason string) {
	o.Logger.Debug("child pruned", "parent", parent.ID, "reason", reason)
}

func (o LogObserver) OnSolutionFound(solution *core.Solution) {
	o.Logger.Info("solution found", "cost", solution.Cost, "sum_of_cost", solution.SumOfCost,
		"makespan", solution.Makespan, "expanded", solution.Stats.Expanded)
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (os Observers) OnNodeExpanded(node NodeInfo) {
	for _, o := range os {
		o.OnNodeExpanded(node)
	}
}

func (os Observers) OnConflictDetected(node NodeInfo, conflict Conflict) {
	for _, o := range os {
		o.OnConflictDetected(node, conflict)
	}
}

func (os Observers) OnNodePruned(parent NodeInfo, reason string) {
	for _, o := range os {
		o.OnNodePruned(parent, reason)
	}
}

func (os Observers) OnSolutionFound(solution *core.Solution) {
	for _, o := range os {
		o.OnSolutionFound(solution)
	}
}
