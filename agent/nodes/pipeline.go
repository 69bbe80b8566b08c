// Package nodes holds the per-stage functions of the query pipeline. Each
// node takes the shared graph state plus its dependencies as explicit
// arguments so the stages stay testable without a compiled graph.
package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	"github.com/jtavares/agentic-support-rag/agent/router"
	"github.com/jtavares/agentic-support-rag/agent/session"
	"github.com/jtavares/agentic-support-rag/agent/synth"
)

var ErrEmptyQuery = errors.New("query is empty")

// GraphInput enters the pipeline once per query. Session is the acquired,
// exclusively-owned conversation for the query's session id.
type GraphInput struct {
	Query   string
	Session *session.Session
}

// GraphOutput is the terminal answer.
type GraphOutput struct {
	Answer contract.Answer
}

// GraphState is threaded through the pipeline stages.
type GraphState struct {
	Query   string
	Session *session.Session

	Memory  map[string]any
	Plan    contract.Plan
	Outcome router.Outcome
	Answer  contract.Answer
}

// ValidateQuery checks the input and appends the user turn.
func ValidateQuery(in GraphInput) (*GraphState, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if in.Session == nil {
		return nil, fmt.Errorf("%w: session is required", contract.ErrValidation)
	}

	in.Session.Append(contract.RoleUser, query, "", "")
	return &GraphState{Query: query, Session: in.Session}, nil
}

// ReadMemory pulls conversation context relevant to the query.
func ReadMemory(ctx context.Context, st *GraphState, store contract.ContextStore) (*GraphState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.Memory = store.RelevantContext(st.Query)
	if len(st.Memory) > 0 {
		log.Debug().Int("hits", len(st.Memory)).Msg("memory context recalled")
	}
	return st, nil
}

// PlanQuery classifies the query. The planner fails closed, so this stage
// cannot error.
func PlanQuery(ctx context.Context, st *GraphState, planner contract.Planner) (*GraphState, error) {
	st.Plan = planner.CreatePlan(ctx, st.Query, st.Memory)
	return st, nil
}

// RouteQuery drives the handoff state machine. Cap exhaustion is a degraded
// outcome, not a pipeline failure; the synthesis stage falls back to
// whatever was gathered before the cap hit.
func RouteQuery(ctx context.Context, st *GraphState, r *router.Router) (*GraphState, error) {
	outcome, err := r.Route(ctx, st.Session, st.Query, st.Plan)
	if err != nil && !errors.Is(err, contract.ErrRoutingExhausted) {
		return nil, err
	}
	st.Outcome = outcome
	return st, nil
}

// Synthesize produces the answer text. Generation failures and exhausted
// routing degrade to a deterministic fallback built from the gathered
// context; the stage never fails.
func Synthesize(ctx context.Context, st *GraphState, gen contract.Generator) (*GraphState, error) {
	enriched := contract.GenerationContext{
		MemoryContext:    st.Memory,
		RetrievedContext: st.Outcome.Retrieved,
		ReasoningTrace:   st.Plan.ReasoningTrace,
		Query:            st.Query,
	}

	var text string
	if st.Outcome.Exhausted {
		text = synth.Fallback(st.Query, enriched)
	} else {
		out, err := gen.Generate(ctx, st.Query, enriched)
		if err != nil {
			log.Warn().Err(err).Msg("generation failed, degrading to fallback answer")
			out = synth.Fallback(st.Query, enriched)
		}
		text = out
	}

	st.Answer = contract.Answer{
		Source:  st.Outcome.Terminal.ID,
		Results: text,
	}
	return st, nil
}

// RecordAnswer appends the output turn and stores the exchange in short-term
// memory for later recall.
func RecordAnswer(ctx context.Context, st *GraphState, store contract.ContextStore) (*GraphState, error) {
	st.Session.Append(contract.RoleAgent, st.Answer.Results, st.Answer.Source, "")

	store.AddShortTerm(store.NextShortTermKey(), map[string]any{
		"query":  st.Query,
		"answer": st.Answer.Results,
		"source": st.Answer.Source,
	})
	return st, nil
}

// FinalizeAnswer guards the non-empty output contract.
func FinalizeAnswer(st *GraphState) (GraphOutput, error) {
	if strings.TrimSpace(st.Answer.Results) == "" {
		st.Answer.Results = synth.Fallback(st.Query, contract.GenerationContext{Query: st.Query})
	}
	return GraphOutput{Answer: st.Answer}, nil
}
