package synth

import (
	"context"
	"strings"
	"testing"

	"github.com/jtavares/agentic-support-rag/agent/contract"
)

func TestStaticGeneratorUsesRetrievedContext(t *testing.T) {
	t.Parallel()

	enriched := contract.GenerationContext{
		RetrievedContext: map[string]string{
			"search_engine": "Second source text.",
			"local":         "Hold the power button for 10 seconds.",
		},
	}
	out, err := (StaticGenerator{}).Generate(context.Background(), "mac mini stuck", enriched)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "Hold the power button") {
		t.Fatalf("answer missing retrieved text: %q", out)
	}
	// Sources are emitted in sorted order for reproducible output.
	if strings.Index(out, "From local:") > strings.Index(out, "From search_engine:") {
		t.Fatalf("sources out of order: %q", out)
	}
}

func TestFallbackIsNeverEmpty(t *testing.T) {
	t.Parallel()

	out := Fallback("anything at all", contract.GenerationContext{})
	if strings.TrimSpace(out) == "" {
		t.Fatal("fallback must produce text")
	}
	if !strings.Contains(out, "confidence is reduced") {
		t.Fatalf("fallback must carry the degraded-confidence note: %q", out)
	}
}

func TestFallbackNamesMemoryKeysWhenNothingRetrieved(t *testing.T) {
	t.Parallel()

	enriched := contract.GenerationContext{
		MemoryContext: map[string]any{
			"company_info": map[string]any{"name": "Apple"},
		},
	}
	out := Fallback("who do I work for", enriched)
	if !strings.Contains(out, "company_info") {
		t.Fatalf("expected memory key in fallback: %q", out)
	}
}
