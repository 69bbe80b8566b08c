package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("mcp: not connected")
	ErrClosed       = errors.New("mcp: connection closed")
)

const closeDrainTimeout = time.Second

// Client is one long-lived JSON-RPC session to a tool server. Requests are
// correlated to responses through a pending map keyed by numeric id, so calls
// may be issued concurrently over the single session.
type Client struct {
	mu      sync.Mutex
	stdin   io.WriteCloser
	cmd     *exec.Cmd
	pending map[int]chan *response
	nextID  int
	closed  bool

	wg sync.WaitGroup
}

// Dial starts the tool server subprocess from a shell-style command line,
// wires its stdio, and performs the initialize handshake.
func Dial(ctx context.Context, command string) (*Client, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("mcp: empty tool server command")
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: start %s: %w", parts[0], err)
	}

	c := newClient(stdin, stdout)
	c.cmd = cmd

	c.wg.Add(1)
	go c.drainStderr(stderr)

	if err := c.initialize(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// NewPipeClient builds a client over pre-wired pipes and performs the
// initialize handshake. Used by tests and in-process servers.
func NewPipeClient(ctx context.Context, stdin io.WriteCloser, stdout io.Reader) (*Client, error) {
	c := newClient(stdin, stdout)
	if err := c.initialize(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func newClient(stdin io.WriteCloser, stdout io.Reader) *Client {
	c := &Client{
		stdin:   stdin,
		pending: make(map[int]chan *response),
		nextID:  1,
	}
	c.wg.Add(1)
	go c.readLoop(stdout)
	return c
}

func (c *Client) initialize(ctx context.Context) error {
	resp, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]string{
			"name":    "agentic-support-rag",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return fmt.Errorf("mcp: initialize: %w", err)
	}

	var result struct {
		ServerInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("mcp: parse initialize result: %w", err)
	}
	log.Debug().
		Str("server", result.ServerInfo.Name).
		Str("version", result.ServerInfo.Version).
		Msg("mcp session initialized")

	return c.notify("notifications/initialized", nil)
}

// ListTools retrieves the tools the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]ToolSchema, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}

	var result struct {
		Tools []ToolSchema `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("mcp: parse tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a named tool with named arguments.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	resp, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}

	var result CallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("mcp: parse tools/call result: %w", err)
	}
	return &result, nil
}

// Ping checks the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "ping", nil)
	return err
}

// Close tears the session down: stdin is closed, the subprocess (if any) is
// killed, every pending call fails with ErrClosed, and the reader goroutines
// are drained with a timeout. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		if c.cmd != nil {
			_ = c.cmd.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(closeDrainTimeout):
		log.Warn().Msg("mcp: timeout draining session goroutines")
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params any) (*response, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}

	id := c.nextID
	c.nextID++

	ch := make(chan *response, 1)
	c.pending[id] = ch

	data, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("mcp: marshal request: %w", err)
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("mcp: write request: %w", err)
	}
	c.mu.Unlock()

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, ErrClosed
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("mcp: server error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *Client) notify(method string, params any) error {
	data, err := json.Marshal(notification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("mcp: marshal notification: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("mcp: write notification: %w", err)
	}
	return nil
}

func (c *Client) readLoop(stdout io.Reader) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			log.Warn().Err(err).Msg("mcp: unparseable frame on stdout")
			continue
		}
		if resp.ID == 0 {
			// Server-initiated notification; none are handled.
			log.Debug().Str("frame", string(line)).Msg("mcp: ignoring notification")
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		} else {
			log.Warn().Int("id", resp.ID).Msg("mcp: response for unknown request id")
		}
	}

	if err := scanner.Err(); err != nil {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			log.Error().Err(err).Msg("mcp: stdout read failed")
		}
	}

	// A closed stdout means the session is gone; fail anything still waiting.
	c.mu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Client) drainStderr(stderr io.Reader) {
	defer c.wg.Done()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.Debug().Str("stream", "toolserver-stderr").Msg(scanner.Text())
	}
}
