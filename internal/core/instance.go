package core

// Instance is a complete planning problem: static map, agents and the
// probabilistic dynamic obstacles.
type Instance struct {
	Name      string
	Map       *GridMap
	Agents    []Agent
	Obstacles []DynamicObstacle
}

// Validate checks instance consistency. maxAgents <= 0 disables the cap.
func (inst *Instance) Validate(maxAgents int) error {
	if inst.Map == nil {
		return invalidf("instance has no map")
	}
	if maxAgents > 0 && len(inst.Agents) > maxAgents {
		return invalidf("%d agents exceeds the limit of %d", len(inst.Agents), maxAgents)
	}

	ids := make(map[AgentID]bool, len(inst.Agents))
	starts := make(map[Cell]AgentID, len(inst.Agents))
	goals := make(map[Cell]AgentID, len(inst.Agents))
	for _, a := range inst.Agents {
		if ids[a.ID] {
			return invalidf("duplicate agent id %d", a.ID)
		}
		ids[a.ID] = true

		if !inst.Map.IsFree(a.Start) {
			return invalidf("agent %d start %s is blocked or out of bounds", a.ID, a.Start)
		}
		if !inst.Map.IsFree(a.Goal) {
			return invalidf("agent %d goal %s is blocked or out of bounds", a.ID, a.Goal)
		}
		if other, ok := starts[a.Start]; ok {
			return invalidf("agents %d and %d share start %s", other, a.ID, a.Start)
		}
		starts[a.Start] = a.ID
		if other, ok := goals[a.Goal]; ok {
			return invalidf("agents %d and %d share goal %s", other, a.ID, a.Goal)
		}
		goals[a.Goal] = a.ID
	}

	seen := make(map[string]bool, len(inst.Obstacles))
	for i := range inst.Obstacles {
		o := &inst.Obstacles[i]
		if err := o.Validate(inst.Map); err != nil {
			return err
		}
		if seen[o.ID] {
			return invalidf("duplicate obstacle id %q", o.ID)
		}
		seen[o.ID] = true
	}
	return nil
}

// AgentByID finds an agent by id.
func (inst *Instance) AgentByID(id AgentID) (Agent, bool) {
	for _, a := range inst.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}
