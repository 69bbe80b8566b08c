package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	"github.com/jtavares/agentic-support-rag/agent/planner"
	"github.com/jtavares/agentic-support-rag/agent/registry"
	"github.com/jtavares/agentic-support-rag/agent/session"
)

type fakeGateway struct {
	results map[string]contract.ToolResult
	calls   []contract.ToolCall
}

func (f *fakeGateway) Discover(ctx context.Context) ([]contract.ToolInfo, error) {
	return nil, nil
}

func (f *fakeGateway) Invoke(ctx context.Context, call contract.ToolCall) contract.ToolResult {
	f.calls = append(f.calls, call)
	if res, ok := f.results[call.Tool]; ok {
		res.Tool = call.Tool
		return res
	}
	return contract.ToolResult{Tool: call.Tool, Status: contract.ToolStatusOK, Text: "canned " + call.Tool}
}

func (f *fakeGateway) InvokeAll(ctx context.Context, calls []contract.ToolCall) []contract.ToolResult {
	out := make([]contract.ToolResult, len(calls))
	for i, call := range calls {
		out[i] = f.Invoke(ctx, call)
	}
	return out
}

func (f *fakeGateway) Close() error { return nil }

func defaultRouter(t *testing.T, gw contract.ToolGateway) *Router {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	return New(reg, gw, Config{})
}

func hardwarePlan() contract.Plan {
	return contract.Plan{
		Strategy:         contract.StrategyReAct,
		Intent:           planner.IntentHardwareSupport,
		Steps:            []string{"analyze intent"},
		CandidateSources: []string{planner.SourceLocal},
	}
}

func TestRouteHandsOffToHardwareSupport(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{results: map[string]contract.ToolResult{
		registry.ToolSupportDocs: {Status: contract.ToolStatusOK, Text: "Hold the power button."},
	}}
	r := defaultRouter(t, gw)
	sess := session.New("s1", registry.AgentTriage)

	out, err := r.Route(context.Background(), sess, "I can't turn off my Mac mini", hardwarePlan())
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if out.Terminal.ID != registry.AgentHardwareSupport {
		t.Fatalf("expected terminal %s, got %s", registry.AgentHardwareSupport, out.Terminal.ID)
	}
	if len(gw.calls) != 1 || gw.calls[0].Tool != registry.ToolSupportDocs {
		t.Fatalf("expected exactly one docs call, got %+v", gw.calls)
	}
	if gw.calls[0].Args["query"] != "I can't turn off my Mac mini" {
		t.Fatalf("query must be forwarded unchanged, got %v", gw.calls[0].Args)
	}
	if got := out.Retrieved[planner.SourceLocal]; got != "Hold the power button." {
		t.Fatalf("unexpected retrieved context: %q", got)
	}
	if sess.ActiveAgent != registry.AgentHardwareSupport || sess.Handoffs != 1 {
		t.Fatalf("session state not updated: agent=%s handoffs=%d", sess.ActiveAgent, sess.Handoffs)
	}
}

func TestRouteGeneralIntentStaysOnTriage(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	r := defaultRouter(t, gw)
	sess := session.New("s1", registry.AgentTriage)

	plan := contract.Plan{
		Strategy:         contract.StrategyReAct,
		Intent:           planner.IntentGeneral,
		Steps:            []string{"analyze intent"},
		CandidateSources: []string{planner.SourceLocal},
	}
	out, err := r.Route(context.Background(), sess, "how are you", plan)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if out.Terminal.ID != registry.AgentTriage {
		t.Fatalf("expected triage terminal, got %s", out.Terminal.ID)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("triage has no retrieval tools, got calls %+v", gw.calls)
	}
	if sess.Handoffs != 0 {
		t.Fatalf("expected no handoffs, got %d", sess.Handoffs)
	}
}

func TestRouteTurnOrderIsReproducible(t *testing.T) {
	t.Parallel()

	run := func() []string {
		gw := &fakeGateway{results: map[string]contract.ToolResult{
			registry.ToolSearchTickets: {Status: contract.ToolStatusOK, Text: "2 open tickets"},
			registry.ToolSearchKB:      {Status: contract.ToolStatusOK, Text: "1 article"},
		}}
		r := defaultRouter(t, gw)
		sess := session.New("s1", registry.AgentTriage)
		plan := contract.Plan{
			Strategy:         contract.StrategyReAct,
			Intent:           planner.IntentHelpdeskOps,
			Steps:            []string{"analyze intent"},
			CandidateSources: []string{planner.SourceCloudEngine},
		}
		if _, err := r.Route(context.Background(), sess, "show open tickets", plan); err != nil {
			t.Fatalf("route: %v", err)
		}
		var trace []string
		for _, turn := range sess.History() {
			trace = append(trace, string(turn.Role)+"/"+turn.AgentID+"/"+turn.ToolName)
		}
		return trace
	}

	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("replay length differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay diverges at turn %d: %s vs %s", i, first[i], second[i])
		}
	}
	// handoff, then the two retrieval tools in declaration order
	want := []string{
		"agent/triage/",
		"tool/helpdesk-ops/search_tickets",
		"tool/helpdesk-ops/search_knowledge_base",
	}
	for i, w := range want {
		if first[i] != w {
			t.Fatalf("turn %d: got %s want %s", i, first[i], w)
		}
	}
}

func TestRouteCapsAdversarialHandoffCycle(t *testing.T) {
	t.Parallel()

	// Two agents that forever refer the same intent to each other.
	a := registry.Agent{
		ID:           "ping",
		Capabilities: "always refers",
		Source:       planner.SourceLocal,
		Rules:        []registry.Rule{{Intent: "loop", Target: "pong"}},
	}
	b := registry.Agent{
		ID:           "pong",
		Capabilities: "always refers back",
		Source:       planner.SourceLocal,
		Rules:        []registry.Rule{{Intent: "loop", Target: "ping"}},
	}
	reg, err := registry.New(a, b)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	gw := &fakeGateway{}
	r := New(reg, gw, Config{MaxHandoffs: 4})
	sess := session.New("s1", "ping")

	plan := contract.Plan{
		Strategy:         contract.StrategyReAct,
		Intent:           "loop",
		Steps:            []string{"analyze intent"},
		CandidateSources: []string{planner.SourceLocal},
	}
	out, err := r.Route(context.Background(), sess, "anything", plan)
	if !errors.Is(err, contract.ErrRoutingExhausted) {
		t.Fatalf("expected ErrRoutingExhausted, got %v", err)
	}
	if !out.Exhausted {
		t.Fatal("outcome must be marked exhausted")
	}
	if out.Terminal.ID == "" {
		t.Fatal("exhausted outcome must still name the last agent")
	}
	if sess.Handoffs != 4 {
		t.Fatalf("expected exactly 4 handoffs, got %d", sess.Handoffs)
	}
	last := sess.History()[len(sess.History())-1]
	if !strings.Contains(last.Content, "capped") {
		t.Fatalf("expected capped marker turn, got %q", last.Content)
	}
}

func TestDispatchRejectsUnpermittedTool(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	r := defaultRouter(t, gw)
	reg, _ := registry.Default()
	hardware, _ := reg.Get(registry.AgentHardwareSupport)

	results := r.dispatch(context.Background(), hardware, []contract.ToolCall{
		{Tool: registry.ToolWebSearch},
		{Tool: registry.ToolSupportDocs},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != contract.ToolStatusError || !strings.Contains(results[0].Err, "may not invoke") {
		t.Fatalf("expected permission error, got %+v", results[0])
	}
	if len(gw.calls) != 1 || gw.calls[0].Tool != registry.ToolSupportDocs {
		t.Fatalf("denied tool must not be dispatched, got %+v", gw.calls)
	}
}

func TestRouteSkipsRetrievalWhenSourceNotCandidate(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	r := defaultRouter(t, gw)
	sess := session.New("s1", registry.AgentTriage)

	// Hardware intent but a plan whose sources exclude the specialist's.
	plan := contract.Plan{
		Strategy:         contract.StrategyReAct,
		Intent:           planner.IntentHardwareSupport,
		Steps:            []string{"analyze intent"},
		CandidateSources: []string{planner.SourceCloudEngine},
	}
	out, err := r.Route(context.Background(), sess, "mac mini is stuck", plan)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(gw.calls) != 0 {
		t.Fatalf("expected no dispatch, got %+v", gw.calls)
	}
	if len(out.Retrieved) != 0 {
		t.Fatalf("expected empty retrieved context, got %+v", out.Retrieved)
	}
}
