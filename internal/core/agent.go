package core

// AgentID is a unique agent identifier.
type AgentID int

// Agent is a planned entity with a start and a goal cell.
type Agent struct {
	ID    AgentID `yaml:"id"`
	Start Cell    `yaml:"start"`
	Goal  Cell    `yaml:"goal"`
}

// LowerBound is the static distance ignoring every obstacle.
func (a Agent) LowerBound() int {
	return Manhattan(a.Start, a.Goal)
}
