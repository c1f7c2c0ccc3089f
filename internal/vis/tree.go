// Package vis renders planner state as text: the constraint tree explored
// by conflict-based search and step-by-step frames of a solution.
package vis

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/elektrokombinacija/cbs-sipp/internal/algo"
	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// TreeNode is an expanded constraint tree node.
type TreeNode struct {
	algo.NodeInfo
	Conflict   *algo.Conflict
	Pruned     []string
	IsSolution bool
}

// TreeRecorder records the expanded constraint tree. It implements
// algo.Observer.
type TreeRecorder struct {
	mu      sync.Mutex
	nodes   []*TreeNode
	byID    map[int]*TreeNode
	current *TreeNode
}

// NewTreeRecorder creates an empty recorder.
func NewTreeRecorder() *TreeRecorder {
	return &TreeRecorder{byID: make(map[int]*TreeNode)}
}

func (r *TreeRecorder) OnNodeExpanded(node algo.NodeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := &TreeNode{NodeInfo: node}
	r.nodes = append(r.nodes, n)
	r.byID[node.ID] = n
	r.current = n
}

func (r *TreeRecorder) OnConflictDetected(node algo.NodeInfo, conflict algo.Conflict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.byID[node.ID]; ok {
		n.Conflict = &conflict
	}
}

func (r *TreeRecorder) OnNodePruned(parent algo.NodeInfo, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.byID[parent.ID]; ok {
		n.Pruned = append(n.Pruned, reason)
	}
}

// OnSolutionFound marks the last expanded node as the goal node.
func (r *TreeRecorder) OnSolutionFound(*core.Solution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.IsSolution = true
	}
}

// Nodes returns the expanded nodes in expansion order.
func (r *TreeRecorder) Nodes() []TreeNode {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TreeNode, len(r.nodes))
	for i, n := range r.nodes {
		out[i] = *n
	}
	return out
}

// WriteDOT writes the tree in Graphviz DOT format. Edges are labelled with
// the constraints the child added; the goal node is drawn doubled.
func (r *TreeRecorder) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph ct {\n  node [shape=box, fontname=monospace];\n")
	for i, n := range r.Nodes() {
		label := fmt.Sprintf("#%d (%d)\ncost %d, %d conflicts", n.ID, i, n.Cost, n.Conflicts)
		if n.Conflict != nil {
			label += "\n" + n.Conflict.String()
		}
		if len(n.Pruned) > 0 {
			label += fmt.Sprintf("\n%d pruned", len(n.Pruned))
		}
		attrs := ""
		if n.IsSolution {
			attrs = ", peripheries=2"
		}
		fmt.Fprintf(&b, "  n%d [label=%q%s];\n", n.ID, label, attrs)

		if n.Parent >= 0 {
			parts := make([]string, len(n.Delta))
			for j, c := range n.Delta {
				parts[j] = c.String()
			}
			fmt.Fprintf(&b, "  n%d -> n%d [label=%q];\n", n.Parent, n.ID, strings.Join(parts, " "))
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
