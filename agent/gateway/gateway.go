// Package gateway is the domain-facing Tool Dispatch Gateway. It owns the
// single tool-server session, resolves tool names against the discovered set,
// and folds every per-call failure into an error-status ToolResult so a
// failing tool degrades the answer instead of aborting the query.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	"github.com/jtavares/agentic-support-rag/pkg/mcp"
)

// RPC is the client surface the gateway needs from the tool-server session.
// Satisfied by *mcp.Client.
type RPC interface {
	ListTools(ctx context.Context) ([]mcp.ToolSchema, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallResult, error)
	Ping(ctx context.Context) error
	Close() error
}

var _ RPC = (*mcp.Client)(nil)

type Config struct {
	// CallTimeout bounds each tools/call round-trip.
	CallTimeout time.Duration
	// MaxConcurrent bounds fan-out dispatch over the shared session.
	MaxConcurrent int
}

type Option func(*Gateway)

// WithReleaseHook observes every per-call session release. Used by tests to
// assert exactly-once release on success and failure paths.
func WithReleaseHook(hook func()) Option {
	return func(g *Gateway) {
		g.releaseHook = hook
	}
}

type Gateway struct {
	rpc         RPC
	callTimeout time.Duration
	maxInFlight int

	mu         sync.Mutex
	discovered map[string]contract.ToolInfo

	releaseHook func()
	closeOnce   sync.Once
	closeErr    error
}

func New(rpc RPC, cfg Config, opts ...Option) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	g := &Gateway{
		rpc:         rpc,
		callTimeout: cfg.CallTimeout,
		maxInFlight: cfg.MaxConcurrent,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Discover lists the server's tools once and caches them by name.
func (g *Gateway) Discover(ctx context.Context) ([]contract.ToolInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.discoverLocked(ctx)
}

func (g *Gateway) discoverLocked(ctx context.Context) ([]contract.ToolInfo, error) {
	if g.discovered == nil {
		schemas, err := g.rpc.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: discovery: %v", contract.ErrToolTransport, err)
		}
		g.discovered = make(map[string]contract.ToolInfo, len(schemas))
		for _, s := range schemas {
			g.discovered[s.Name] = contract.ToolInfo{Name: s.Name, Description: s.Description}
		}
	}

	out := make([]contract.ToolInfo, 0, len(g.discovered))
	for _, info := range g.discovered {
		out = append(out, info)
	}
	return out, nil
}

// Ping checks the tool server answers at all. Used by the startup health
// check to distinguish a dead server process from per-call degradation.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.rpc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", contract.ErrToolTransport, err)
	}
	return nil
}

// Invoke dispatches one tool call. The returned result always has the call's
// tool name; transport failures, unknown tools, and timeouts come back with
// an error status, never as a Go error.
func (g *Gateway) Invoke(ctx context.Context, call contract.ToolCall) contract.ToolResult {
	release := g.acquire()
	defer release()

	g.mu.Lock()
	_, derr := g.discoverLocked(ctx)
	known := derr == nil && g.discovered != nil
	var found bool
	if known {
		_, found = g.discovered[call.Tool]
	}
	g.mu.Unlock()

	if derr != nil {
		log.Error().Err(derr).Str("tool", call.Tool).Msg("tool discovery failed")
		return errorResult(call.Tool, derr)
	}
	if !found {
		err := fmt.Errorf("%w: %s", contract.ErrToolNotFound, call.Tool)
		log.Warn().Str("tool", call.Tool).Msg("requested tool is not advertised by the server")
		return errorResult(call.Tool, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	res, err := g.rpc.CallTool(callCtx, call.Tool, call.Args)
	if err != nil {
		werr := fmt.Errorf("%w: %s: %v", contract.ErrToolTransport, call.Tool, err)
		log.Error().Err(werr).Str("tool", call.Tool).Msg("tool call failed")
		return errorResult(call.Tool, werr)
	}

	return decodeResult(call.Tool, res)
}

// InvokeAll dispatches independent calls concurrently over the shared
// session and merges results in declaration order of the calls, not arrival
// order, so conversation replay stays reproducible.
func (g *Gateway) InvokeAll(ctx context.Context, calls []contract.ToolCall) []contract.ToolResult {
	results := make([]contract.ToolResult, len(calls))

	var eg errgroup.Group
	eg.SetLimit(g.maxInFlight)
	for i, call := range calls {
		eg.Go(func() error {
			results[i] = g.Invoke(ctx, call)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// Close releases the underlying session. Safe to call more than once.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		g.closeErr = g.rpc.Close()
	})
	return g.closeErr
}

// acquire scopes one call's use of the shared session. The JSON-RPC session
// multiplexes requests by id, so leases only track checkout/release; the
// release hook must fire exactly once per call on every exit path.
func (g *Gateway) acquire() (release func()) {
	var once sync.Once
	return func() {
		once.Do(func() {
			if g.releaseHook != nil {
				g.releaseHook()
			}
		})
	}
}

func errorResult(tool string, err error) contract.ToolResult {
	return contract.ToolResult{
		Tool:   tool,
		Status: contract.ToolStatusError,
		Err:    err.Error(),
	}
}
