// Package orchestrator is the query API facade. It owns session acquisition,
// cancellation rollback, and the degraded-answer policy: a single query never
// surfaces a taxonomy error to the caller, only a best-effort textual answer.
package orchestrator

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	nodex "github.com/jtavares/agentic-support-rag/agent/nodes"
	"github.com/jtavares/agentic-support-rag/agent/router"
	"github.com/jtavares/agentic-support-rag/agent/session"
	"github.com/jtavares/agentic-support-rag/agent/synth"
)

const emptyQueryAnswer = "I need a question to work with. What can I help you with?"

type Orchestrator struct {
	sessions  *session.Manager
	memory    contract.ContextStore
	planner   contract.Planner
	router    *router.Router
	generator contract.Generator
	gateway   contract.ToolGateway

	runner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
}

func New(
	sessions *session.Manager,
	memory contract.ContextStore,
	planner contract.Planner,
	r *router.Router,
	generator contract.Generator,
	gateway contract.ToolGateway,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if memory == nil {
		return nil, errors.New("memory store is required")
	}
	if planner == nil {
		return nil, errors.New("planner is required")
	}
	if r == nil {
		return nil, errors.New("router is required")
	}
	if generator == nil {
		generator = synth.StaticGenerator{}
	}
	if gateway == nil {
		return nil, errors.New("tool gateway is required")
	}

	o := &Orchestrator{
		sessions:  sessions,
		memory:    memory,
		planner:   planner,
		router:    r,
		generator: generator,
		gateway:   gateway,
	}

	runner, err := o.compileQueryGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.runner = runner
	return o, nil
}

// HealthCheck verifies the tool server answers before queries are accepted.
// A dead server process is a startup-fatal condition, unlike per-call
// degradation.
func (o *Orchestrator) HealthCheck(ctx context.Context) error {
	if _, err := o.gateway.Discover(ctx); err != nil {
		return err
	}
	return nil
}

// Process runs one query end to end and returns the terminal agent's answer.
// The only error paths are caller cancellation and an unusable session id;
// every in-pipeline failure degrades to a non-empty textual answer.
func (o *Orchestrator) Process(ctx context.Context, sessionID, query string) (contract.Answer, error) {
	sess, release, err := o.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return contract.Answer{}, err
	}
	defer release()

	snap := sess.Snapshot()

	out, err := o.runner.Invoke(ctx, nodex.GraphInput{Query: query, Session: sess})
	switch {
	case err == nil:
		return out.Answer, nil
	case ctx.Err() != nil:
		// Cancelled mid-flight: no partially-appended history may remain.
		sess.Restore(snap)
		return contract.Answer{}, ctx.Err()
	case errors.Is(err, nodex.ErrEmptyQuery):
		sess.Restore(snap)
		return contract.Answer{Source: sess.ActiveAgent, Results: emptyQueryAnswer}, nil
	default:
		log.Error().Err(err).Str("session_id", sessionID).Msg("query pipeline failed, degrading")
		sess.Restore(snap)
		return contract.Answer{
			Source:  sess.ActiveAgent,
			Results: synth.Fallback(query, contract.GenerationContext{Query: query}),
		}, nil
	}
}

// ProcessQuery is the plain-text query API.
func (o *Orchestrator) ProcessQuery(ctx context.Context, sessionID, query string) (string, error) {
	answer, err := o.Process(ctx, sessionID, query)
	if err != nil {
		return "", err
	}
	return answer.Results, nil
}

// MemoryStats reports short-term and long-term entry counts.
func (o *Orchestrator) MemoryStats() (shortTerm, longTerm int) {
	return o.memory.Stats()
}

// ResetConversation discards the session's history.
func (o *Orchestrator) ResetConversation(sessionID string) {
	o.sessions.Reset(sessionID)
}

// Close releases the tool-server session.
func (o *Orchestrator) Close() error {
	return o.gateway.Close()
}
