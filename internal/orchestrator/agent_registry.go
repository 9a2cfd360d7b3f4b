package orchestrator

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/ShayCichocki/huddle/pkg/models"
)

// AgentRegistry is the static agent catalog. It is filled once at start and
// only read afterwards.
type AgentRegistry struct {
	// agents maps agent IDs to catalog entries.
	agents map[string]models.Agent
	// order keeps registration order for deterministic lookups.
	order []string
	// coordinatorRole names the role that runs meetings.
	coordinatorRole string
	// mu protects all fields.
	mu sync.RWMutex
}

// NewAgentRegistry creates a registry holding agents.
func NewAgentRegistry(agents []models.Agent, coordinatorRole string) (*AgentRegistry, error) {
	r := &AgentRegistry{
		agents:          make(map[string]models.Agent, len(agents)),
		coordinatorRole: coordinatorRole,
	}
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an agent. IDs must be unique and every agent needs a role.
func (r *AgentRegistry) Register(a models.Agent) error {
	if a.ID == "" || a.Role == "" {
		return fmt.Errorf("agent needs an id and a role: %+v", a)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID]; exists {
		return fmt.Errorf("duplicate agent id %q", a.ID)
	}
	r.agents[a.ID] = a
	r.order = append(r.order, a.ID)
	return nil
}

// Get retrieves an agent by ID.
func (r *AgentRegistry) Get(id string) (models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// ByRole returns the first registered agent with the role.
func (r *AgentRegistry) ByRole(role string) (models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if a := r.agents[id]; a.Role == role {
			return a, true
		}
	}
	return models.Agent{}, false
}

// Resolve finds an agent by id, then by role. Unknown names get a bare
// agent so callers can still speak under that name.
func (r *AgentRegistry) Resolve(name string) models.Agent {
	if a, ok := r.Get(name); ok {
		return a
	}
	if a, ok := r.ByRole(name); ok {
		return a
	}
	return models.Agent{ID: name, Role: name}
}

// Coordinator returns the agent that runs meetings.
func (r *AgentRegistry) Coordinator() models.Agent {
	return r.Resolve(r.CoordinatorRole())
}

// CoordinatorRole returns the configured coordinator role.
func (r *AgentRegistry) CoordinatorRole() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.coordinatorRole
}

// All returns a copy of all agents in registration order.
func (r *AgentRegistry) All() []models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]models.Agent, 0, len(r.order))
	for _, id := range r.order {
		agents = append(agents, r.agents[id])
	}
	return agents
}

// Count returns the number of registered agents.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// MatchRole picks the role whose agent shares the most capability tags with
// the words in text. Ties go to the earlier registered agent.
func (r *AgentRegistry) MatchRole(text string) (string, bool) {
	words := wordSet(text)
	if len(words) == 0 {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	best, bestScore := "", 0
	for _, id := range r.order {
		a := r.agents[id]
		score := 0
		for _, tag := range a.Capabilities {
			if words[strings.ToLower(tag)] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = a.Role, score
		}
	}
	return best, bestScore > 0
}

// wordSet lowercases text into words, adding each word's naive singular.
func wordSet(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields)*2)
	for _, f := range fields {
		set[f] = true
		if len(f) > 1 && strings.HasSuffix(f, "s") {
			set[strings.TrimSuffix(f, "s")] = true
		}
	}
	return set
}
