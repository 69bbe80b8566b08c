package helpdesk

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jtavares/agentic-support-rag/pkg/mcp"
)

func startServer(t *testing.T) *mcp.Client {
	t.Helper()

	srv := NewServer(NewMemStore(), NewDocIndex(), StubSearcher{})

	toServer, clientStdin := io.Pipe()
	clientStdout, fromServer := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer fromServer.Close()
		_ = srv.Serve(ctx, toServer, fromServer)
	}()
	t.Cleanup(func() {
		cancel()
		_ = clientStdin.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down")
		}
	})

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	client, err := mcp.NewPipeClient(dialCtx, clientStdin, clientStdout)
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestServerAdvertisesAllTools(t *testing.T) {
	t.Parallel()

	client := startServer(t)
	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}

	want := []string{
		"get_info_support_docs", "web_search", "search_tickets", "search_knowledge_base",
		"get_customer_by_email", "get_agent_workload", "create_ticket", "update_ticket_status",
		"add_ticket_comment", "create_customer", "create_kb_article", "increment_kb_view_count",
		"get_ticket_statistics",
	}
	byName := make(map[string]mcp.ToolSchema, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	for _, name := range want {
		tool, ok := byName[name]
		if !ok {
			t.Fatalf("tool %s not advertised", name)
		}
		if tool.Description == "" {
			t.Fatalf("tool %s has no description", name)
		}
	}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
}

func TestSupportDocsReturnsPageContentBlocks(t *testing.T) {
	t.Parallel()

	client := startServer(t)
	res, err := client.CallTool(context.Background(), "get_info_support_docs",
		map[string]any{"query": "mac mini will not turn off"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.IsError || len(res.Content) == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	var chunk DocChunk
	if err := json.Unmarshal([]byte(res.Content[0].Text), &chunk); err != nil {
		t.Fatalf("first block is not a doc chunk: %v", err)
	}
	if !strings.Contains(chunk.PageContent, "power button") {
		t.Fatalf("top chunk should cover forced shutdown: %q", chunk.PageContent)
	}
}

func TestWebSearchReturnsContentAndURL(t *testing.T) {
	t.Parallel()

	client := startServer(t)
	res, err := client.CallTool(context.Background(), "web_search", map[string]any{"query": "latest os release"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	var hit SearchHit
	if err := json.Unmarshal([]byte(res.Content[0].Text), &hit); err != nil {
		t.Fatalf("block is not a search hit: %v", err)
	}
	if hit.URL == "" || hit.Content == "" {
		t.Fatalf("hit missing content or url: %+v", hit)
	}
}

func TestTicketLifecycleOverProtocol(t *testing.T) {
	t.Parallel()

	client := startServer(t)
	ctx := context.Background()

	res, err := client.CallTool(ctx, "create_ticket", map[string]any{
		"customer_id": 1,
		"category_id": 2,
		"subject":     "Photos app crashes when posting",
		"description": "Crash on every attempt since the last update",
		"priority":    "Medium",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var created struct {
		TicketNumber string `json:"ticket_number"`
	}
	if err := json.Unmarshal([]byte(res.Content[0].Text), &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}
	if !strings.HasPrefix(created.TicketNumber, "APL-") {
		t.Fatalf("unexpected ticket number: %s", created.TicketNumber)
	}

	res, err = client.CallTool(ctx, "search_tickets", map[string]any{"query": "Photos app"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var ticket Ticket
	if err := json.Unmarshal([]byte(res.Content[0].Text), &ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if ticket.TicketNumber != created.TicketNumber {
		t.Fatalf("search did not find created ticket: %+v", ticket)
	}

	res, err = client.CallTool(ctx, "update_ticket_status", map[string]any{
		"ticket_id":  ticket.ID,
		"status":     "Resolved",
		"agent_id":   1,
		"resolution": "Reinstalling the app fixed the crash",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	var updated struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal([]byte(res.Content[0].Text), &updated); err != nil {
		t.Fatalf("decode update result: %v", err)
	}
	if !updated.Success {
		t.Fatal("expected update to succeed")
	}

	res, err = client.CallTool(ctx, "get_ticket_statistics", nil)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	var stats Statistics
	if err := json.Unmarshal([]byte(res.Content[0].Text), &stats); err != nil {
		t.Fatalf("decode statistics: %v", err)
	}
	if stats.ByStatus["Resolved"] < 2 {
		t.Fatalf("expected at least 2 resolved tickets, got %+v", stats.ByStatus)
	}
}

func TestToolFailureStaysInBand(t *testing.T) {
	t.Parallel()

	client := startServer(t)
	res, err := client.CallTool(context.Background(), "get_agent_workload", map[string]any{"agent_id": 999})
	if err != nil {
		t.Fatalf("protocol must not fail for a tool error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected in-band error result")
	}
	if !strings.Contains(res.Content[0].Text, "agent not found") {
		t.Fatalf("unexpected error text: %s", res.Content[0].Text)
	}
}

func TestUnknownToolIsProtocolError(t *testing.T) {
	t.Parallel()

	client := startServer(t)
	_, err := client.CallTool(context.Background(), "drop_all_tables", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "unknown tool") {
		t.Fatalf("unexpected error: %v", err)
	}
}
