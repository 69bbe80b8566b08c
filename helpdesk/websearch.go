package helpdesk

import (
	"context"
	"fmt"
)

// SearchHit is one web search result, shaped like the upstream search API's
// response items.
type SearchHit struct {
	Content string `json:"content"`
	URL     string `json:"url"`
}

// WebSearcher is the outbound web-search boundary.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

// StubSearcher returns canned results naming the query. It stands in for the
// hosted search API when no key is configured, keeping the tool surface
// identical for the client.
type StubSearcher struct{}

func (StubSearcher) Search(ctx context.Context, query string) ([]SearchHit, error) {
	return []SearchHit{
		{
			Content: fmt.Sprintf("Top community discussion for %q with suggested fixes and workarounds.", query),
			URL:     "https://support.example.com/discussions/1",
		},
		{
			Content: fmt.Sprintf("Official help article covering %q, updated this year.", query),
			URL:     "https://support.example.com/articles/2",
		},
	}, nil
}
