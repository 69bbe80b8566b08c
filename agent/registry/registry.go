// Package registry holds the immutable agent configuration: identity,
// capability description, permitted tool subset, and the ordered routing
// rules the handoff router evaluates.
package registry

import (
	"fmt"
	"strings"

	"github.com/jtavares/agentic-support-rag/agent/contract"
)

// Rule maps a classified intent tag to a handoff target. Rules are evaluated
// in declaration order; the first match wins.
type Rule struct {
	Intent string
	Target string
}

// Agent is immutable configuration once constructed.
type Agent struct {
	ID             string
	Capabilities   string
	Source         string
	PermittedTools []string
	// RetrievalTools is the ordered subset of PermittedTools the router
	// dispatches for context gathering when the plan selects this agent's
	// source. Mutating tools stay out of this list.
	RetrievalTools []string
	Rules          []Rule
}

// Permits reports whether the agent may invoke the named tool.
func (a Agent) Permits(tool string) bool {
	for _, t := range a.PermittedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// HandoffFor resolves the first rule matching the intent, or "" to stay.
func (a Agent) HandoffFor(intent string) string {
	for _, r := range a.Rules {
		if r.Intent == intent {
			return r.Target
		}
	}
	return ""
}

// Registry is the declaration-ordered agent set with one distinguished entry
// (router) agent.
type Registry struct {
	order  []string
	agents map[string]Agent
	entry  string
}

// New validates the agent set: unique ids, rule targets that exist, and no
// agent routing to itself. The first agent is the entry agent.
func New(entry Agent, specialists ...Agent) (*Registry, error) {
	all := append([]Agent{entry}, specialists...)

	r := &Registry{
		agents: make(map[string]Agent, len(all)),
		entry:  entry.ID,
	}
	for _, a := range all {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: agent id is empty", contract.ErrValidation)
		}
		if _, dup := r.agents[id]; dup {
			return nil, fmt.Errorf("%w: duplicate agent id %q", contract.ErrValidation, id)
		}
		r.agents[id] = a
		r.order = append(r.order, id)
	}

	for _, a := range all {
		for _, rule := range a.Rules {
			if rule.Target == a.ID {
				return nil, fmt.Errorf("%w: agent %q routes to itself", contract.ErrValidation, a.ID)
			}
			if _, ok := r.agents[rule.Target]; !ok {
				return nil, fmt.Errorf("%w: agent %q routes to unknown agent %q", contract.ErrValidation, a.ID, rule.Target)
			}
		}
	}
	return r, nil
}

func (r *Registry) Entry() Agent {
	return r.agents[r.entry]
}

func (r *Registry) Get(id string) (Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// Agents returns the agent set in declaration order.
func (r *Registry) Agents() []Agent {
	out := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}
