// Package synth is the response-synthesis boundary: it turns an enriched
// context object into a plain-text answer. The model-backed generator wraps
// every failure in ErrGeneration so the caller can degrade to a fallback
// answer instead of surfacing the error.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	"github.com/jtavares/agentic-support-rag/agent/prompt"
)

const defaultTimeout = 60 * time.Second

type Config struct {
	// Timeout bounds one generation round-trip.
	Timeout time.Duration
}

// LLMGenerator synthesizes answers through a prompt+model graph compiled once
// at construction.
type LLMGenerator struct {
	runner  compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

func NewLLMGenerator(ctx context.Context, chatModel einomodel.BaseChatModel, cfg Config) (*LLMGenerator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	runner, err := compileSynthesisGraph(ctx, chatModel, prompt.LoadPromptSet().Synthesizer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrGeneration, err)
	}
	return &LLMGenerator{runner: runner, timeout: cfg.Timeout}, nil
}

// Generate serializes the enriched context, invokes the graph, and returns
// the model's text. Any failure, including an empty completion, comes back
// wrapped in ErrGeneration.
func (g *LLMGenerator) Generate(ctx context.Context, query string, enriched contract.GenerationContext) (string, error) {
	enriched.Query = query
	payload, err := json.Marshal(enriched)
	if err != nil {
		return "", fmt.Errorf("%w: marshal context: %v", contract.ErrGeneration, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.runner.Invoke(callCtx, map[string]any{"input": string(payload)})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contract.ErrGeneration, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", contract.ErrGeneration)
	}

	log.Debug().Str("query", query).Int("chars", len(msg.Content)).Msg("answer synthesized")
	return strings.TrimSpace(msg.Content), nil
}

// StaticGenerator produces deterministic answers straight from the gathered
// context. Used when no model backend is configured and in tests.
type StaticGenerator struct{}

func (StaticGenerator) Generate(ctx context.Context, query string, enriched contract.GenerationContext) (string, error) {
	return composeAnswer(query, enriched), nil
}

// Fallback composes a best-effort answer from whatever context was gathered,
// marked as reduced confidence. It is the degraded path for generation
// failures, so it must always return non-empty text.
func Fallback(query string, enriched contract.GenerationContext) string {
	return composeAnswer(query, enriched) +
		"\n\n(Note: this answer was assembled without the response model; confidence is reduced.)"
}

func composeAnswer(query string, enriched contract.GenerationContext) string {
	var b strings.Builder

	sources := make([]string, 0, len(enriched.RetrievedContext))
	for source := range enriched.RetrievedContext {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		text := strings.TrimSpace(enriched.RetrievedContext[source])
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "From %s:\n%s", source, text)
	}

	if b.Len() == 0 {
		fmt.Fprintf(&b, "I could not find supporting material for %q.", query)
		if len(enriched.MemoryContext) > 0 {
			keys := make([]string, 0, len(enriched.MemoryContext))
			for k := range enriched.MemoryContext {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			b.WriteString(" Related conversation context: ")
			b.WriteString(strings.Join(keys, ", "))
			b.WriteString(".")
		}
	}
	return b.String()
}
