package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/jtavares/agentic-support-rag/agent/contract"
)

var (
	hardwareKeywords = []string{
		"mac", "macbook", "iphone", "ipad", "imac", "airpods", "watch",
		"turn off", "turn on", "restart", "boot", "screen", "battery",
		"charge", "broken", "repair", "frozen", "won't", "can't",
	}
	freshnessKeywords = []string{"current", "latest", "news", "trend", "recent", "today"}
	helpdeskKeywords = []string{
		"ticket", "case", "customer", "agent workload", "knowledge base",
		"kb article", "statistics", "faq", "escalate", "comment",
	}
)

// RulePlanner builds plans by keyword classification. It is deterministic and
// never fails.
type RulePlanner struct {
	strategy contract.Strategy
}

func NewRulePlanner(strategy contract.Strategy) *RulePlanner {
	if strategy != contract.StrategyChainOfThought {
		strategy = contract.StrategyReAct
	}
	return &RulePlanner{strategy: strategy}
}

func (p *RulePlanner) CreatePlan(_ context.Context, query string, memoryContext map[string]any) contract.Plan {
	intent := classifyKeywords(query)
	if p.strategy == contract.StrategyChainOfThought {
		return chainOfThoughtPlan(query, intent)
	}
	return reactPlan(query, intent, len(memoryContext))
}

func classifyKeywords(query string) string {
	q := strings.ToLower(query)
	for _, kw := range helpdeskKeywords {
		if strings.Contains(q, kw) {
			return IntentHelpdeskOps
		}
	}
	for _, kw := range hardwareKeywords {
		if strings.Contains(q, kw) {
			return IntentHardwareSupport
		}
	}
	for _, kw := range freshnessKeywords {
		if strings.Contains(q, kw) {
			return IntentWebResearch
		}
	}
	return IntentGeneral
}

func reactPlan(query, intent string, memoryHits int) contract.Plan {
	return contract.Plan{
		Strategy:         contract.StrategyReAct,
		Intent:           intent,
		CandidateSources: sourcesForIntent(intent),
		ReasoningTrace: []string{
			fmt.Sprintf("Thought: I need to find information about %q", query),
			"Action: Check memory for relevant context",
			fmt.Sprintf("Observation: Found %d relevant items in memory", memoryHits),
		},
		Steps: []string{
			"Analyze query intent",
			"Check memory for existing information",
			"Identify required data sources",
			"Fetch information from sources",
			"Synthesize and rank results",
		},
	}
}

func chainOfThoughtPlan(query, intent string) contract.Plan {
	return contract.Plan{
		Strategy:         contract.StrategyChainOfThought,
		Intent:           intent,
		CandidateSources: sourcesForIntent(intent),
		ReasoningTrace: []string{
			fmt.Sprintf("Let me think step by step about %q", query),
			"First, I should understand what information is being requested",
			"Then, I should check what I already know from memory",
			"Finally, I should determine what additional sources I need",
		},
		Steps: []string{
			"Break down query into components",
			"Map components to available data sources",
			"Execute retrieval in order of importance",
		},
	}
}

// DefaultPlan is the conservative fallback used whenever classification
// fails: ReAct over local sources only.
func DefaultPlan(query string) contract.Plan {
	p := reactPlan(query, IntentGeneral, 0)
	p.CandidateSources = []string{SourceLocal}
	return p
}
