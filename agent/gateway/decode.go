package gateway

import (
	"encoding/json"
	"strings"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	"github.com/jtavares/agentic-support-rag/pkg/mcp"
)

// decodeResult turns a raw tools/call response into one logical ToolResult.
// Each content block's text body may itself be a JSON-encoded record; blocks
// that parse keep the record, blocks that don't fall back to raw text.
// Aggregation joins page_content/content fields with newlines and collects
// url fields in block order.
func decodeResult(tool string, res *mcp.CallResult) contract.ToolResult {
	out := contract.ToolResult{
		Tool:   tool,
		Status: contract.ToolStatusOK,
	}
	if res == nil {
		out.Status = contract.ToolStatusError
		out.Err = "empty tool response"
		return out
	}

	var texts []string
	for _, item := range res.Content {
		block := decodeBlock(item.Text)
		out.Blocks = append(out.Blocks, block)

		if text := blockText(block); text != "" {
			texts = append(texts, text)
		}
		if block.Record != nil {
			if u, ok := block.Record["url"].(string); ok && u != "" {
				out.URLs = append(out.URLs, u)
			}
		}
	}
	out.Text = strings.Join(texts, "\n")

	if res.IsError {
		out.Status = contract.ToolStatusError
		out.Err = out.Text
	}
	return out
}

func decodeBlock(body string) contract.ContentBlock {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var record map[string]any
		if err := json.Unmarshal([]byte(trimmed), &record); err == nil {
			return contract.ContentBlock{Text: body, Record: record}
		}
	}
	return contract.ContentBlock{Text: body}
}

// blockText prefers a record's page_content or content field over the raw
// body; records with neither contribute their raw JSON text.
func blockText(block contract.ContentBlock) string {
	if block.Record != nil {
		if pc, ok := block.Record["page_content"].(string); ok && pc != "" {
			return pc
		}
		if c, ok := block.Record["content"].(string); ok && c != "" {
			return c
		}
	}
	return block.Text
}
