package contract

import (
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"
)

// Turn is one entry of the conversation history. Turns are immutable once
// appended; Seq is the causal order assigned by the session.
type Turn struct {
	ID       string    `json:"id"`
	Seq      int       `json:"seq"`
	Role     Role      `json:"role"`
	Content  string    `json:"content"`
	AgentID  string    `json:"agent_id,omitempty"`
	ToolName string    `json:"tool_name,omitempty"`
	At       time.Time `json:"at"`
}

// Strategy names the reasoning approach a plan was built with.
type Strategy string

const (
	StrategyReAct          Strategy = "react"
	StrategyChainOfThought Strategy = "chain_of_thought"
)

// Plan is the Intent Planner's output. Produced fresh per query and consumed
// read-only by the router. Steps and ReasoningTrace are diagnostic text, not
// executed literally.
type Plan struct {
	Strategy         Strategy `json:"strategy"`
	Intent           string   `json:"intent"`
	Steps            []string `json:"steps"`
	CandidateSources []string `json:"candidate_sources"`
	ReasoningTrace   []string `json:"reasoning_trace"`
}

// HasSource reports whether the plan names the given candidate source.
func (p Plan) HasSource(name string) bool {
	for _, s := range p.CandidateSources {
		if s == name {
			return true
		}
	}
	return false
}

// ToolCall requests one named remote tool invocation.
type ToolCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolStatus is the outcome class of a dispatched tool call.
type ToolStatus string

const (
	ToolStatusOK    ToolStatus = "ok"
	ToolStatusError ToolStatus = "error"
)

// ContentBlock is one unit of a tool server response. Record is set when the
// block's text body parsed as a structured record, otherwise only Text is set.
type ContentBlock struct {
	Text   string         `json:"text"`
	Record map[string]any `json:"record,omitempty"`
}

// ToolResult is the decoded, aggregated outcome of one tool call. An error
// status never aborts a query; it is surfaced to the invoking agent as
// degraded content.
type ToolResult struct {
	Tool   string         `json:"tool"`
	Status ToolStatus     `json:"status"`
	Blocks []ContentBlock `json:"blocks,omitempty"`
	Text   string         `json:"text,omitempty"`
	URLs   []string       `json:"urls,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// OK reports whether the call succeeded.
func (r ToolResult) OK() bool {
	return r.Status == ToolStatusOK
}

// ToolInfo is the name/description pair a tool server advertises at discovery.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Answer is the terminal routing output: the id of the agent that produced
// the final text plus that text.
type Answer struct {
	Source  string `json:"source"`
	Results string `json:"results"`
}

// GenerationContext is the enriched context handed to the response
// synthesizer boundary.
type GenerationContext struct {
	MemoryContext    map[string]any    `json:"memory_context"`
	RetrievedContext map[string]string `json:"retrieved_context"`
	ReasoningTrace   []string          `json:"reasoning_trace"`
	Query            string            `json:"query"`
}
