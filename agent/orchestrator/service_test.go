package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	"github.com/jtavares/agentic-support-rag/agent/memory"
	"github.com/jtavares/agentic-support-rag/agent/planner"
	"github.com/jtavares/agentic-support-rag/agent/registry"
	"github.com/jtavares/agentic-support-rag/agent/router"
	"github.com/jtavares/agentic-support-rag/agent/session"
	"github.com/jtavares/agentic-support-rag/agent/synth"
)

type fakeGateway struct {
	results     map[string]contract.ToolResult
	calls       []contract.ToolCall
	discoverErr error
}

func (f *fakeGateway) Discover(ctx context.Context) ([]contract.ToolInfo, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return []contract.ToolInfo{{Name: registry.ToolSupportDocs}}, nil
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

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, query string, enriched contract.GenerationContext) (string, error) {
	return "", contract.ErrGeneration
}

type env struct {
	orch     *Orchestrator
	gateway  *fakeGateway
	sessions *session.Manager
	memory   *memory.Store
}

func newEnv(t *testing.T, persist bool, gen contract.Generator) *env {
	t.Helper()

	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	gw := &fakeGateway{results: map[string]contract.ToolResult{
		registry.ToolSupportDocs: {
			Status: contract.ToolStatusOK,
			Text:   "Hold the power button for 10 seconds.",
		},
	}}
	sessions := session.NewManager(session.ManagerConfig{
		EntryAgent:           registry.AgentTriage,
		PersistAcrossQueries: persist,
	}, nil)
	mem := memory.NewStore()

	orch, err := New(
		sessions,
		mem,
		planner.NewRulePlanner(contract.StrategyReAct),
		router.New(reg, gw, router.Config{}),
		gen,
		gw,
	)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return &env{orch: orch, gateway: gw, sessions: sessions, memory: mem}
}

func TestProcessRoutesMacMiniQueryToHardwareSupport(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true, synth.StaticGenerator{})
	answer, err := e.orch.Process(context.Background(), "s1", "I can't turn off my Mac mini")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if answer.Source != registry.AgentHardwareSupport {
		t.Fatalf("expected source %s, got %s", registry.AgentHardwareSupport, answer.Source)
	}
	if len(e.gateway.calls) != 1 || e.gateway.calls[0].Tool != registry.ToolSupportDocs {
		t.Fatalf("expected exactly one docs lookup, got %+v", e.gateway.calls)
	}
	if !strings.Contains(answer.Results, "Hold the power button") {
		t.Fatalf("answer missing documentation text: %q", answer.Results)
	}
}

func TestProcessQueryNeverEmptyNeverErrors(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true, synth.StaticGenerator{})
	queries := []string{
		"I can't turn off my Mac mini",
		"what's the latest Go release",
		"show open tickets",
		"hello",
		"",
		"   ",
	}
	for _, q := range queries {
		out, err := e.orch.ProcessQuery(context.Background(), "s1", q)
		if err != nil {
			t.Fatalf("query %q errored: %v", q, err)
		}
		if strings.TrimSpace(out) == "" {
			t.Fatalf("query %q produced empty answer", q)
		}
	}
}

func TestProcessDegradesWhenGenerationFails(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true, failingGenerator{})
	answer, err := e.orch.Process(context.Background(), "s1", "I can't turn off my Mac mini")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(answer.Results, "Hold the power button") {
		t.Fatalf("fallback must use retrieved context: %q", answer.Results)
	}
	if !strings.Contains(answer.Results, "confidence is reduced") {
		t.Fatalf("degraded answer must say so: %q", answer.Results)
	}
}

func TestResetSemantics(t *testing.T) {
	t.Parallel()

	// Reset-per-query: no turns shared between consecutive queries.
	e := newEnv(t, false, synth.StaticGenerator{})
	ctx := context.Background()

	if _, err := e.orch.Process(ctx, "s1", "first question about my mac mini"); err != nil {
		t.Fatalf("first: %v", err)
	}
	sess1, release1, _ := e.sessions.Acquire(ctx, "s1")
	first := sess1.History()
	release1()

	if _, err := e.orch.Process(ctx, "s1", "second question about printers"); err != nil {
		t.Fatalf("second: %v", err)
	}
	sess2, release2, _ := e.sessions.Acquire(ctx, "s1")
	second := sess2.History()
	release2()

	for _, ft := range first {
		for _, st := range second {
			if ft.ID == st.ID {
				t.Fatalf("turn %s leaked across reset-per-query boundary", ft.ID)
			}
		}
	}

	// Persistent: the second history strictly extends the first.
	p := newEnv(t, true, synth.StaticGenerator{})
	if _, err := p.orch.Process(ctx, "s1", "first question about my mac mini"); err != nil {
		t.Fatalf("first: %v", err)
	}
	s1, r1, _ := p.sessions.Acquire(ctx, "s1")
	before := s1.History()
	r1()

	if _, err := p.orch.Process(ctx, "s1", "second question about printers"); err != nil {
		t.Fatalf("second: %v", err)
	}
	s2, r2, _ := p.sessions.Acquire(ctx, "s1")
	after := s2.History()
	r2()

	if len(after) <= len(before) {
		t.Fatalf("expected history growth, before=%d after=%d", len(before), len(after))
	}
	for i, turn := range before {
		if after[i].ID != turn.ID {
			t.Fatalf("prefix diverges at turn %d", i)
		}
	}
}

func TestCancellationRollsBackHistory(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true, synth.StaticGenerator{})
	ctx := context.Background()

	if _, err := e.orch.Process(ctx, "s1", "I can't turn off my Mac mini"); err != nil {
		t.Fatalf("seed query: %v", err)
	}
	sess, release, _ := e.sessions.Acquire(ctx, "s1")
	before := len(sess.History())
	release()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.orch.Process(cancelled, "s1", "another question"); err == nil {
		t.Fatal("expected cancellation error")
	}

	sess, release, _ = e.sessions.Acquire(ctx, "s1")
	after := len(sess.History())
	release()
	if after != before {
		t.Fatalf("cancelled query left %d partial turns", after-before)
	}
}

func TestMemoryAccumulatesPerQuery(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true, synth.StaticGenerator{})
	ctx := context.Background()

	for _, q := range []string{"mac mini stuck", "printer offline"} {
		if _, err := e.orch.ProcessQuery(ctx, "s1", q); err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
	}
	short, long := e.orch.MemoryStats()
	if short != 2 {
		t.Fatalf("expected 2 short-term entries, got %d", short)
	}
	if long != 0 {
		t.Fatalf("expected 0 long-term entries, got %d", long)
	}
}

func TestHealthCheckSurfacesDeadToolServer(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true, synth.StaticGenerator{})
	if err := e.orch.HealthCheck(context.Background()); err != nil {
		t.Fatalf("healthy gateway: %v", err)
	}

	e.gateway.discoverErr = contract.ErrToolTransport
	if err := e.orch.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check failure")
	}
}

func TestShortTermKeysStartAtZero(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true, synth.StaticGenerator{})
	ctx := context.Background()

	for _, q := range []string{"I can't turn off my Mac mini", "my Mac mini fan is loud"} {
		if _, err := e.orch.ProcessQuery(ctx, "s1", q); err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
	}

	relevant := e.memory.RelevantContext("Mac mini")
	if _, ok := relevant["query_0"]; !ok {
		t.Fatalf("expected query_0 in relevant context, got %v", relevant)
	}
	if _, ok := relevant["query_1"]; !ok {
		t.Fatalf("expected query_1 in relevant context, got %v", relevant)
	}
	if k := e.memory.NextShortTermKey(); k != "query_2" {
		t.Fatalf("next key = %q, want query_2", k)
	}
}
