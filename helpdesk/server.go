package helpdesk

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jtavares/agentic-support-rag/pkg/mcp"
)

const serverVersion = "1.0.0"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcFault `json:"error,omitempty"`
}

type rpcFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolHandler func(ctx context.Context, args map[string]any) (*mcp.CallResult, error)

// Server answers the tool protocol over newline-delimited JSON-RPC frames.
// Stdout carries frames only; all logging goes to stderr.
type Server struct {
	store    Store
	docs     *DocIndex
	search   WebSearcher
	handlers map[string]toolHandler
	schemas  []mcp.ToolSchema
}

func NewServer(store Store, docs *DocIndex, search WebSearcher) *Server {
	if store == nil {
		store = NewMemStore()
	}
	if docs == nil {
		docs = NewDocIndex()
	}
	if search == nil {
		search = StubSearcher{}
	}
	s := &Server{store: store, docs: docs, search: search}
	s.registerTools()
	return s
}

// Serve reads frames from in until EOF or context cancellation.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn().Err(err).Msg("unparseable frame on stdin")
			continue
		}
		if req.ID == 0 {
			// Notification, nothing to answer.
			continue
		}

		resp := s.handle(ctx, &req)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("helpdesk: write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("helpdesk: read request: %w", err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, req *rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": mcp.ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]string{"name": "helpdeskd", "version": serverVersion},
		}
	case "ping":
		resp.Result = map[string]any{}
	case "tools/list":
		resp.Result = map[string]any{"tools": s.schemas}
	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &rpcFault{Code: -32602, Message: "invalid tools/call params"}
			break
		}
		handler, ok := s.handlers[params.Name]
		if !ok {
			resp.Error = &rpcFault{Code: -32602, Message: fmt.Sprintf("unknown tool %q", params.Name)}
			break
		}
		result, err := handler(ctx, params.Arguments)
		if err != nil {
			// Tool-level failures stay in-band so the client can degrade.
			log.Warn().Err(err).Str("tool", params.Name).Msg("tool call failed")
			result = &mcp.CallResult{
				IsError: true,
				Content: []mcp.ContentItem{{Type: "text", Text: err.Error()}},
			}
		}
		resp.Result = result
	default:
		resp.Error = &rpcFault{Code: -32601, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
	return resp
}

func objectSchema(required []string, props map[string]any) json.RawMessage {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return raw
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func (s *Server) registerTools() {
	queryOnly := objectSchema([]string{"query"}, map[string]any{"query": strProp("free-text query")})

	tools := []struct {
		schema  mcp.ToolSchema
		handler toolHandler
	}{
		{
			schema: mcp.ToolSchema{
				Name:        "get_info_support_docs",
				Description: "Look up passages from the technical support documentation",
				InputSchema: queryOnly,
			},
			handler: s.handleSupportDocs,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "web_search",
				Description: "Search the web for current information",
				InputSchema: queryOnly,
			},
			handler: s.handleWebSearch,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "search_tickets",
				Description: "Search support tickets with optional filters",
				InputSchema: objectSchema(nil, map[string]any{
					"query":          strProp("free-text match on subject or description"),
					"customer_email": strProp("filter by customer email"),
					"agent_id":       intProp("filter by assigned agent id"),
					"status":         strProp("filter by status"),
					"priority":       strProp("filter by priority"),
					"category":       strProp("filter by category name"),
					"product_line":   strProp("filter by product line"),
					"limit":          intProp("maximum results"),
				}),
			},
			handler: s.handleSearchTickets,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "search_knowledge_base",
				Description: "Search knowledge base articles by title, content, or tags",
				InputSchema: objectSchema([]string{"query"}, map[string]any{
					"query":       strProp("search term"),
					"category_id": intProp("restrict to a category"),
					"limit":       intProp("maximum results"),
				}),
			},
			handler: s.handleSearchKB,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "get_customer_by_email",
				Description: "Find a customer record by email address",
				InputSchema: objectSchema([]string{"email"}, map[string]any{"email": strProp("customer email")}),
			},
			handler: s.handleCustomerByEmail,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "get_agent_workload",
				Description: "Get an agent's active ticket workload",
				InputSchema: objectSchema([]string{"agent_id"}, map[string]any{"agent_id": intProp("agent id")}),
			},
			handler: s.handleAgentWorkload,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "create_ticket",
				Description: "Create a new support ticket and return its ticket number",
				InputSchema: objectSchema([]string{"customer_id", "category_id", "subject", "description"}, map[string]any{
					"customer_id":   intProp("customer id"),
					"category_id":   intProp("category id"),
					"subject":       strProp("short subject"),
					"description":   strProp("problem description"),
					"priority":      strProp("Low, Medium, High, or Critical"),
					"product_id":    intProp("product id"),
					"serial_number": strProp("device serial number"),
					"os_version":    strProp("operating system version"),
				}),
			},
			handler: s.handleCreateTicket,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "update_ticket_status",
				Description: "Update a ticket's status, optionally assigning an agent or resolution",
				InputSchema: objectSchema([]string{"ticket_id", "status"}, map[string]any{
					"ticket_id":  intProp("ticket id"),
					"status":     strProp("new status"),
					"agent_id":   intProp("agent to assign"),
					"resolution": strProp("resolution text"),
				}),
			},
			handler: s.handleUpdateTicketStatus,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "add_ticket_comment",
				Description: "Add a comment to a ticket",
				InputSchema: objectSchema([]string{"ticket_id", "content"}, map[string]any{
					"ticket_id":    intProp("ticket id"),
					"content":      strProp("comment body"),
					"agent_id":     intProp("authoring agent id"),
					"comment_type": strProp("note, reply, or escalation"),
					"is_public":    map[string]any{"type": "boolean", "description": "visible to the customer"},
				}),
			},
			handler: s.handleAddTicketComment,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "create_customer",
				Description: "Create a new customer record",
				InputSchema: objectSchema([]string{"first_name", "last_name", "email"}, map[string]any{
					"first_name": strProp("first name"),
					"last_name":  strProp("last name"),
					"email":      strProp("email address"),
					"phone":      strProp("phone number"),
					"account_id": strProp("cloud account id"),
				}),
			},
			handler: s.handleCreateCustomer,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "create_kb_article",
				Description: "Create a knowledge base article",
				InputSchema: objectSchema([]string{"title", "content", "category_id", "created_by"}, map[string]any{
					"title":       strProp("article title"),
					"content":     strProp("article body"),
					"category_id": intProp("category id"),
					"created_by":  intProp("authoring agent id"),
					"product_id":  intProp("related product id"),
					"tags":        strProp("comma-separated tags"),
				}),
			},
			handler: s.handleCreateKBArticle,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "increment_kb_view_count",
				Description: "Record a view of a knowledge base article",
				InputSchema: objectSchema([]string{"article_id"}, map[string]any{"article_id": intProp("article id")}),
			},
			handler: s.handleIncrementKBViews,
		},
		{
			schema: mcp.ToolSchema{
				Name:        "get_ticket_statistics",
				Description: "Aggregate ticket counts by status, priority, and category",
				InputSchema: objectSchema(nil, map[string]any{}),
			},
			handler: s.handleTicketStatistics,
		},
	}

	s.handlers = make(map[string]toolHandler, len(tools))
	s.schemas = make([]mcp.ToolSchema, 0, len(tools))
	for _, t := range tools {
		s.handlers[t.schema.Name] = t.handler
		s.schemas = append(s.schemas, t.schema)
	}
}

func argString(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func argInt64(args map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := args[key].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func jsonItems[T any](records []T) ([]mcp.ContentItem, error) {
	items := make([]mcp.ContentItem, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("helpdesk: encode record: %w", err)
		}
		items = append(items, mcp.ContentItem{Type: "text", Text: string(raw)})
	}
	return items, nil
}

func textResult(text string) *mcp.CallResult {
	return &mcp.CallResult{Content: []mcp.ContentItem{{Type: "text", Text: text}}}
}

func recordResult(record any) (*mcp.CallResult, error) {
	items, err := jsonItems([]any{record})
	if err != nil {
		return nil, err
	}
	return &mcp.CallResult{Content: items}, nil
}

func (s *Server) handleSupportDocs(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	query := argString(args, "query")
	chunks := s.docs.Query(query, 3)
	if len(chunks) == 0 {
		return textResult("No matching documentation found."), nil
	}
	items, err := jsonItems(chunks)
	if err != nil {
		return nil, err
	}
	return &mcp.CallResult{Content: items}, nil
}

func (s *Server) handleWebSearch(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	query := argString(args, "query")
	hits, err := s.search.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("helpdesk: web search: %w", err)
	}
	if len(hits) == 0 {
		return textResult("No search results."), nil
	}
	items, err := jsonItems(hits)
	if err != nil {
		return nil, err
	}
	return &mcp.CallResult{Content: items}, nil
}

func (s *Server) handleSearchTickets(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	filter := TicketFilter{
		CustomerEmail: argString(args, "customer_email"),
		AgentID:       argInt64(args, "agent_id"),
		Status:        argString(args, "status"),
		Priority:      argString(args, "priority"),
		Category:      argString(args, "category"),
		ProductLine:   argString(args, "product_line"),
		FreeText:      argString(args, "query", "search_term"),
		Limit:         int(argInt64(args, "limit")),
	}
	tickets, err := s.store.SearchTickets(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return textResult("No matching tickets."), nil
	}
	items, err := jsonItems(tickets)
	if err != nil {
		return nil, err
	}
	return &mcp.CallResult{Content: items}, nil
}

func (s *Server) handleSearchKB(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	term := argString(args, "query", "search_term")
	articles, err := s.store.SearchKnowledgeBase(ctx, term, argInt64(args, "category_id"), int(argInt64(args, "limit")))
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return textResult("No matching knowledge base articles."), nil
	}
	items, err := jsonItems(articles)
	if err != nil {
		return nil, err
	}
	return &mcp.CallResult{Content: items}, nil
}

func (s *Server) handleCustomerByEmail(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	email := argString(args, "email")
	customer, err := s.store.CustomerByEmail(ctx, email)
	if errors.Is(err, ErrCustomerNotFound) {
		return textResult(fmt.Sprintf("No customer found for %s.", email)), nil
	}
	if err != nil {
		return nil, err
	}
	return recordResult(customer)
}

func (s *Server) handleAgentWorkload(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	workload, err := s.store.AgentWorkload(ctx, argInt64(args, "agent_id"))
	if err != nil {
		return nil, err
	}
	return recordResult(workload)
}

func (s *Server) handleCreateTicket(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	t := NewTicket{
		CustomerID:   argInt64(args, "customer_id"),
		CategoryID:   argInt64(args, "category_id"),
		Subject:      argString(args, "subject"),
		Description:  argString(args, "description"),
		Priority:     argString(args, "priority"),
		SerialNumber: argString(args, "serial_number"),
		OSVersion:    argString(args, "os_version"),
	}
	if id := argInt64(args, "product_id"); id != 0 {
		t.ProductID = &id
	}
	if t.CustomerID == 0 || t.CategoryID == 0 || t.Subject == "" {
		return nil, fmt.Errorf("helpdesk: create_ticket requires customer_id, category_id, and subject")
	}

	number, err := s.store.CreateTicket(ctx, t)
	if err != nil {
		return nil, err
	}
	return recordResult(map[string]any{"ticket_number": number})
}

func (s *Server) handleUpdateTicketStatus(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	u := TicketUpdate{
		TicketID:   argInt64(args, "ticket_id"),
		Status:     argString(args, "status"),
		Resolution: argString(args, "resolution"),
	}
	if id := argInt64(args, "agent_id"); id != 0 {
		u.AgentID = &id
	}
	if u.TicketID == 0 || u.Status == "" {
		return nil, fmt.Errorf("helpdesk: update_ticket_status requires ticket_id and status")
	}

	ok, err := s.store.UpdateTicketStatus(ctx, u)
	if err != nil {
		return nil, err
	}
	return recordResult(map[string]any{"success": ok})
}

func (s *Server) handleAddTicketComment(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	c := NewComment{
		TicketID:    argInt64(args, "ticket_id"),
		Content:     argString(args, "content"),
		CommentType: argString(args, "comment_type"),
		IsPublic:    argBool(args, "is_public"),
	}
	if id := argInt64(args, "agent_id"); id != 0 {
		c.AgentID = &id
	}
	if c.TicketID == 0 || c.Content == "" {
		return nil, fmt.Errorf("helpdesk: add_ticket_comment requires ticket_id and content")
	}

	id, err := s.store.AddTicketComment(ctx, c)
	if err != nil {
		return nil, err
	}
	return recordResult(map[string]any{"comment_id": id})
}

func (s *Server) handleCreateCustomer(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	c := NewCustomer{
		FirstName: argString(args, "first_name"),
		LastName:  argString(args, "last_name"),
		Email:     argString(args, "email"),
		Phone:     argString(args, "phone"),
		AccountID: argString(args, "account_id"),
	}
	if c.FirstName == "" || c.LastName == "" || c.Email == "" {
		return nil, fmt.Errorf("helpdesk: create_customer requires first_name, last_name, and email")
	}

	id, err := s.store.CreateCustomer(ctx, c)
	if err != nil {
		return nil, err
	}
	return recordResult(map[string]any{"customer_id": id})
}

func (s *Server) handleCreateKBArticle(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	a := NewArticle{
		Title:      argString(args, "title"),
		Content:    argString(args, "content"),
		CategoryID: argInt64(args, "category_id"),
		CreatedBy:  argInt64(args, "created_by"),
		Tags:       argString(args, "tags"),
	}
	if id := argInt64(args, "product_id"); id != 0 {
		a.ProductID = &id
	}
	if a.Title == "" || a.Content == "" || a.CategoryID == 0 || a.CreatedBy == 0 {
		return nil, fmt.Errorf("helpdesk: create_kb_article requires title, content, category_id, and created_by")
	}

	id, err := s.store.CreateKBArticle(ctx, a)
	if err != nil {
		return nil, err
	}
	return recordResult(map[string]any{"article_id": id})
}

func (s *Server) handleIncrementKBViews(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	id := argInt64(args, "article_id")
	if id == 0 {
		return nil, fmt.Errorf("helpdesk: increment_kb_view_count requires article_id")
	}
	if err := s.store.IncrementKBViews(ctx, id); err != nil {
		return nil, err
	}
	return recordResult(map[string]any{"ok": true})
}

func (s *Server) handleTicketStatistics(ctx context.Context, args map[string]any) (*mcp.CallResult, error) {
	stats, err := s.store.TicketStatistics(ctx)
	if err != nil {
		return nil, err
	}
	return recordResult(stats)
}
