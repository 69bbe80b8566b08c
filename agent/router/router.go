// Package router implements the handoff state machine. One state per
// registered agent plus an implicit answered state; transitions are resolved
// by matching the plan's intent against the current agent's routing rules and
// always forward the same query. The handoff chain is capped so a cyclic
// agent set terminates with a degraded outcome instead of looping.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	"github.com/jtavares/agentic-support-rag/agent/registry"
	"github.com/jtavares/agentic-support-rag/agent/session"
)

const defaultMaxHandoffs = 4

type Config struct {
	// MaxHandoffs caps the handoff chain length per query.
	MaxHandoffs int
}

type Router struct {
	reg         *registry.Registry
	gw          contract.ToolGateway
	maxHandoffs int
}

// Outcome is the result of driving one query through the state machine.
type Outcome struct {
	// Terminal is the agent that produced (or will produce) the answer.
	Terminal registry.Agent
	// Retrieved maps source identifier to the aggregated text gathered for
	// it. Empty when no tool call succeeded.
	Retrieved map[string]string
	// URLs collected across tool results, in dispatch order.
	URLs []string
	// Results holds every tool result in declaration order of the calls.
	Results []contract.ToolResult
	// Exhausted is set when the handoff cap terminated the chain.
	Exhausted bool
}

func New(reg *registry.Registry, gw contract.ToolGateway, cfg Config) *Router {
	if cfg.MaxHandoffs <= 0 {
		cfg.MaxHandoffs = defaultMaxHandoffs
	}
	return &Router{reg: reg, gw: gw, maxHandoffs: cfg.MaxHandoffs}
}

// Route drives the query from the entry agent to a terminal agent, appending
// every handoff and tool call to the session in causal order. On cap
// exhaustion the returned error wraps ErrRoutingExhausted and the outcome
// still names the last agent so the caller can degrade instead of abort.
func (r *Router) Route(ctx context.Context, sess *session.Session, query string, plan contract.Plan) (Outcome, error) {
	current := r.reg.Entry()
	sess.ActiveAgent = current.ID

	handoffs := 0
	for {
		target := current.HandoffFor(plan.Intent)
		if target == "" || target == current.ID {
			// No rule matched, or the rule points back at the current
			// agent; either way this agent answers.
			break
		}
		if handoffs >= r.maxHandoffs {
			sess.Append(contract.RoleAgent,
				fmt.Sprintf("handoff chain capped at %d, answering as %s", r.maxHandoffs, current.ID),
				current.ID, "")
			log.Warn().
				Str("session", sess.ID).
				Str("intent", plan.Intent).
				Int("cap", r.maxHandoffs).
				Msg("handoff chain exhausted")
			return Outcome{Terminal: current, Exhausted: true},
				fmt.Errorf("%w: intent %q after %d handoffs", contract.ErrRoutingExhausted, plan.Intent, handoffs)
		}

		next, ok := r.reg.Get(target)
		if !ok {
			// Registry construction validates targets; treat a miss as terminal.
			break
		}
		sess.Append(contract.RoleAgent,
			fmt.Sprintf("handoff to %s for intent %s", next.ID, plan.Intent),
			current.ID, "")
		sess.RecordHandoff(next.ID)
		handoffs++
		current = next
	}

	out := Outcome{Terminal: current}
	calls := retrievalCalls(current, plan, query)
	if len(calls) == 0 {
		return out, nil
	}

	out.Results = r.dispatch(ctx, current, calls)
	for i, res := range out.Results {
		content := res.Text
		if !res.OK() {
			content = res.Err
		}
		sess.Append(contract.RoleTool, content, current.ID, calls[i].Tool)
	}

	out.Retrieved = make(map[string]string)
	var texts []string
	for _, res := range out.Results {
		if !res.OK() || res.Text == "" {
			continue
		}
		texts = append(texts, res.Text)
		out.URLs = append(out.URLs, res.URLs...)
	}
	if len(texts) > 0 {
		out.Retrieved[current.Source] = strings.Join(texts, "\n")
	}
	return out, nil
}

// dispatch enforces tool permissions, fans permitted calls out through the
// gateway, and merges everything back in declaration order.
func (r *Router) dispatch(ctx context.Context, agent registry.Agent, calls []contract.ToolCall) []contract.ToolResult {
	results := make([]contract.ToolResult, len(calls))

	var permitted []contract.ToolCall
	var permittedIdx []int
	for i, call := range calls {
		if !agent.Permits(call.Tool) {
			err := fmt.Errorf("%w: agent %q may not invoke %q", contract.ErrValidation, agent.ID, call.Tool)
			log.Warn().Err(err).Str("agent", agent.ID).Str("tool", call.Tool).Msg("tool permission denied")
			results[i] = contract.ToolResult{
				Tool:   call.Tool,
				Status: contract.ToolStatusError,
				Err:    err.Error(),
			}
			continue
		}
		permitted = append(permitted, call)
		permittedIdx = append(permittedIdx, i)
	}

	for j, res := range r.gw.InvokeAll(ctx, permitted) {
		results[permittedIdx[j]] = res
	}
	return results
}

// retrievalCalls derives the context-gathering calls for the terminal agent.
// Only fires when the plan's candidate sources include the agent's source;
// the same query text is forwarded as the tool argument.
func retrievalCalls(agent registry.Agent, plan contract.Plan, query string) []contract.ToolCall {
	if !plan.HasSource(agent.Source) {
		return nil
	}
	calls := make([]contract.ToolCall, 0, len(agent.RetrievalTools))
	for _, tool := range agent.RetrievalTools {
		calls = append(calls, contract.ToolCall{
			Tool: tool,
			Args: map[string]any{"query": query},
		})
	}
	return calls
}
