package registry

import "github.com/jtavares/agentic-support-rag/agent/planner"

// Tool names exposed by the helpdesk tool server.
const (
	ToolSupportDocs        = "get_info_support_docs"
	ToolWebSearch          = "web_search"
	ToolSearchTickets      = "search_tickets"
	ToolSearchKB           = "search_knowledge_base"
	ToolGetCustomer        = "get_customer_by_email"
	ToolAgentWorkload      = "get_agent_workload"
	ToolCreateTicket       = "create_ticket"
	ToolUpdateTicketStatus = "update_ticket_status"
	ToolAddTicketComment   = "add_ticket_comment"
	ToolCreateCustomer     = "create_customer"
	ToolCreateKBArticle    = "create_kb_article"
	ToolIncrementKBViews   = "increment_kb_view_count"
	ToolTicketStatistics   = "get_ticket_statistics"
)

// Agent ids of the default set.
const (
	AgentTriage          = "triage"
	AgentHardwareSupport = "hardware-support"
	AgentWebResearch     = "web-research"
	AgentHelpdeskOps     = "helpdesk-ops"
)

// Default builds the stock agent set: a triage router that owns incoming
// queries and three specialists with disjoint tool permissions.
func Default() (*Registry, error) {
	triage := Agent{
		ID:           AgentTriage,
		Capabilities: "Entry router: answers general questions from memory and delegates device troubleshooting, research, and helpdesk operations.",
		Source:       planner.SourceLocal,
		Rules: []Rule{
			{Intent: planner.IntentHardwareSupport, Target: AgentHardwareSupport},
			{Intent: planner.IntentWebResearch, Target: AgentWebResearch},
			{Intent: planner.IntentHelpdeskOps, Target: AgentHelpdeskOps},
		},
	}
	hardware := Agent{
		ID:             AgentHardwareSupport,
		Capabilities:   "Device troubleshooting specialist backed by the local support documentation index.",
		Source:         planner.SourceLocal,
		PermittedTools: []string{ToolSupportDocs},
		RetrievalTools: []string{ToolSupportDocs},
	}
	web := Agent{
		ID:             AgentWebResearch,
		Capabilities:   "Web research specialist for questions needing current external information.",
		Source:         planner.SourceSearchEngine,
		PermittedTools: []string{ToolWebSearch},
		RetrievalTools: []string{ToolWebSearch},
	}
	helpdesk := Agent{
		ID:           AgentHelpdeskOps,
		Capabilities: "Helpdesk operations specialist: ticket and knowledge-base lifecycle.",
		Source:       planner.SourceCloudEngine,
		PermittedTools: []string{
			ToolSearchTickets,
			ToolSearchKB,
			ToolGetCustomer,
			ToolAgentWorkload,
			ToolCreateTicket,
			ToolUpdateTicketStatus,
			ToolAddTicketComment,
			ToolCreateCustomer,
			ToolCreateKBArticle,
			ToolIncrementKBViews,
			ToolTicketStatistics,
		},
		RetrievalTools: []string{ToolSearchTickets, ToolSearchKB},
	}
	return New(triage, hardware, web, helpdesk)
}
