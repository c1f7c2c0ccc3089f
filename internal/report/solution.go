package report

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/cbs-sipp/internal/core"
)

// SolutionDoc is the YAML form of a solution.
type SolutionDoc struct {
	Instance  string             `yaml:"instance"`
	RunID     string             `yaml:"run_id"`
	Solver    string             `yaml:"solver"`
	Outcome   string             `yaml:"outcome"`
	Objective core.Objective     `yaml:"objective"`
	Cost      int                `yaml:"cost"`
	SumOfCost int                `yaml:"sum_of_cost"`
	Makespan  int                `yaml:"makespan"`
	Stats     core.Stats         `yaml:"stats"`
	Agents    []core.AgentResult `yaml:"agents"`
}

// NewSolutionDoc builds the export document for a solution.
func NewSolutionDoc(inst *core.Instance, sol *core.Solution) SolutionDoc {
	return SolutionDoc{
		Instance:  inst.Name,
		RunID:     sol.RunID,
		Solver:    sol.Solver,
		Outcome:   sol.Outcome.String(),
		Objective: sol.Objective,
		Cost:      sol.Cost,
		SumOfCost: sol.SumOfCost,
		Makespan:  sol.Makespan,
		Stats:     sol.Stats,
		Agents:    sol.Results(),
	}
}

// WriteSolution encodes a solution as YAML.
func WriteSolution(w io.Writer, inst *core.Instance, sol *core.Solution) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewSolutionDoc(inst, sol)); err != nil {
		return fmt.Errorf("encode solution: %w", err)
	}
	return enc.Close()
}

// SaveSolution writes the YAML solution to path.
func SaveSolution(path string, inst *core.Instance, sol *core.Solution) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSolution(f, inst, sol); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadSolution decodes a YAML solution back into paths keyed by agent.
func ReadSolution(r io.Reader) (*SolutionDoc, map[core.AgentID]core.Path, error) {
	var doc SolutionDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: decode solution: %v", core.ErrInvalidInput, err)
	}
	paths := make(map[core.AgentID]core.Path, len(doc.Agents))
	for _, a := range doc.Agents {
		if _, dup := paths[a.Agent]; dup {
			return nil, nil, fmt.Errorf("%w: agent %d listed twice", core.ErrInvalidInput, a.Agent)
		}
		paths[a.Agent] = a.Path
	}
	return &doc, paths, nil
}
