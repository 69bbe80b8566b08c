package contract

import "context"

// Planner classifies a query into a reasoning strategy, an intent tag, and an
// initial candidate source set. Implementations must fail closed: a
// classification failure yields a conservative default plan, never an error
// that aborts query processing.
type Planner interface {
	CreatePlan(ctx context.Context, query string, memoryContext map[string]any) Plan
}

// ToolGateway dispatches named tool calls over the shared tool-server session.
// Invoke never returns a Go error for per-call failures; those are folded into
// ToolResult with an error status. InvokeAll dispatches independent calls
// concurrently and merges results in declaration order.
type ToolGateway interface {
	Discover(ctx context.Context) ([]ToolInfo, error)
	Invoke(ctx context.Context, call ToolCall) ToolResult
	InvokeAll(ctx context.Context, calls []ToolCall) []ToolResult
	Close() error
}

// Generator is the text-generation boundary: given a query and serializable
// context, return a plain-text answer.
type Generator interface {
	Generate(ctx context.Context, query string, enriched GenerationContext) (string, error)
}

// ContextStore is the memory boundary consumed by the pipeline.
type ContextStore interface {
	AddShortTerm(key string, value any)
	AddLongTerm(key string, value any)
	RelevantContext(query string) map[string]any
	Stats() (shortTerm, longTerm int)
	// NextShortTermKey names the next short-term record; the store owns the
	// key scheme.
	NextShortTermKey() string
}
