package helpdesk

import (
	"sort"
	"strings"
)

// DocChunk is one passage of the support documentation. The JSON shape
// (page_content plus metadata) matches what the retrieval pipeline that
// produced the source PDF chunks emits, so the gateway-side decoding stays
// identical when the embedding-backed index replaces this one.
type DocChunk struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// DocIndex answers support-documentation lookups by keyword overlap.
// This is a stand-in for the semantic vector index; scoring is deliberately
// crude and the ranking should not be treated as meaningful beyond
// overlap count.
type DocIndex struct {
	chunks []DocChunk
}

// NewDocIndex builds the index over the built-in support passages.
func NewDocIndex() *DocIndex {
	return &DocIndex{chunks: supportDocs()}
}

// Query returns up to limit chunks sharing at least one token with the
// query, most overlapping first.
func (d *DocIndex) Query(query string, limit int) []DocChunk {
	if limit <= 0 {
		limit = 3
	}

	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		chunk DocChunk
		score int
		pos   int
	}
	var hits []scored
	for i, chunk := range d.chunks {
		body := strings.ToLower(chunk.PageContent)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(body, tok) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{chunk: chunk, score: score, pos: i})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]DocChunk, len(hits))
	for i, h := range hits {
		out[i] = h.chunk
	}
	return out
}

func supportDocs() []DocChunk {
	source := func(id int) map[string]any {
		return map[string]any{"source": "technical_support_guide.pdf", "doc_id": id}
	}
	return []DocChunk{
		{
			PageContent: "Force shutdown. If the Mac mini or any Mac desktop does not turn off " +
				"through the menu, press and hold the power button for 10 seconds until the " +
				"status light goes dark. If it still will not power off, unplug the power " +
				"cable, wait 30 seconds, and reconnect it.",
			Metadata: source(1),
		},
		{
			PageContent: "Force restart an unresponsive iPhone. Press and quickly release volume " +
				"up, press and quickly release volume down, then press and hold the side " +
				"button until the logo appears.",
			Metadata: source(2),
		},
		{
			PageContent: "Battery drains quickly. Check battery health in settings, reduce screen " +
				"brightness, and disable background app refresh for apps you rarely use. A " +
				"battery below 80 percent capacity qualifies for service.",
			Metadata: source(3),
		},
		{
			PageContent: "Wi-Fi keeps disconnecting. Forget the network and rejoin it, restart " +
				"the router, and make sure the operating system is current. Interference from " +
				"other 2.4 GHz devices is the most common cause of periodic drops.",
			Metadata: source(4),
		},
		{
			PageContent: "Device runs slowly. Free at least 10 percent of storage, close unused " +
				"apps, and restart once a week. On laptops, check Activity Monitor for " +
				"processes holding memory.",
			Metadata: source(5),
		},
		{
			PageContent: "Screen is frozen. Wait two minutes to rule out a long-running task, " +
				"then force restart. If the freeze repeats in the same app, reinstall that " +
				"app before booking a repair.",
			Metadata: source(6),
		},
	}
}
