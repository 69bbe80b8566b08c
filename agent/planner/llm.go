package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	"github.com/jtavares/agentic-support-rag/agent/contract"
)

const classifierSystemPrompt = `You classify support queries. Respond with a single JSON object, no prose:
{"task_type": "question|action", "prompt_strategy": "react|chain_of_thought", "domain": "hardware_support|web_research|helpdesk_ops|general", "requires_action": true|false}`

// verdict is the small structured result the classification call returns.
type verdict struct {
	TaskType       string `json:"task_type"`
	PromptStrategy string `json:"prompt_strategy"`
	Domain         string `json:"domain"`
	RequiresAction bool   `json:"requires_action"`
}

// LLMPlanner classifies with one chat completion. Every failure mode
// (transport, timeout, unparseable JSON, unknown vocabulary) fails closed to
// the conservative default plan; classification can never abort a query.
type LLMPlanner struct {
	client  *openaisdk.Client
	model   string
	timeout time.Duration
}

func NewLLMPlanner(client *openaisdk.Client, model string, timeout time.Duration) *LLMPlanner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LLMPlanner{client: client, model: model, timeout: timeout}
}

func (p *LLMPlanner) CreatePlan(ctx context.Context, query string, memoryContext map[string]any) contract.Plan {
	v, err := p.classify(ctx, query)
	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: %v", contract.ErrClassification, err)).
			Str("query", query).
			Msg("classification failed, using conservative plan")
		return DefaultPlan(query)
	}

	intent := v.Domain
	strategy := contract.StrategyReAct
	if v.PromptStrategy == "chain_of_thought" {
		strategy = contract.StrategyChainOfThought
	}

	if strategy == contract.StrategyChainOfThought {
		return chainOfThoughtPlan(query, intent)
	}
	return reactPlan(query, intent, len(memoryContext))
}

func (p *LLMPlanner) classify(ctx context.Context, query string) (verdict, error) {
	if p.client == nil {
		return verdict{}, fmt.Errorf("classifier client is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(p.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(classifierSystemPrompt),
			openaisdk.UserMessage(query),
		},
		Temperature: openaisdk.Float(0),
	})
	if err != nil {
		return verdict{}, fmt.Errorf("classifier call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return verdict{}, fmt.Errorf("classifier returned no choices")
	}

	raw := extractJSONObject(resp.Choices[0].Message.Content)
	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return verdict{}, fmt.Errorf("parse verdict: %w", err)
	}

	switch v.Domain {
	case IntentHardwareSupport, IntentWebResearch, IntentHelpdeskOps, IntentGeneral:
	default:
		return verdict{}, fmt.Errorf("unknown domain %q in verdict", v.Domain)
	}
	return v, nil
}

// extractJSONObject trims fencing or prose around the first top-level JSON
// object. Models wrap JSON in markdown fences often enough to warrant it.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}
