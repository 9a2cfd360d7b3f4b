package models

// Agent is an immutable catalog entry describing an agent identity.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id" yaml:"id"`
	// Name is the display name used when the agent speaks.
	Name string `json:"name,omitempty" yaml:"name"`
	// Role is the role tasks are assigned to.
	Role string `json:"role" yaml:"role"`
	// Capabilities are tags used to match work to the agent.
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities"`
	// Persona is the system prompt the agent replies under.
	Persona string `json:"persona,omitempty" yaml:"persona"`
}

// DisplayName returns Name, falling back to ID.
func (a Agent) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
