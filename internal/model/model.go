package model

// ResearchRequest is the body of POST /api/research/stream.
type ResearchRequest struct {
	Query string `json:"query"`
}

// StreamChunk is the payload of an SSE "chunk" event. Markdown carries the
// complete display state so far (a progress notice or the report-in-progress);
// each chunk replaces whatever the client showed before it, never appends.
type StreamChunk struct {
	Markdown string `json:"markdown"`
}

// StreamMeta is the payload of the SSE "meta" event sent once per stream.
type StreamMeta struct {
	RunID string `json:"run_id"`
}

// SearchPlan is the planner's answer: which web searches to run for a query.
type SearchPlan struct {
	Searches []SearchItem `json:"searches"`
}

// SearchItem is one planned web search. Reason records why the planner thinks
// this query moves the research forward; the summarizer sees it as context.
type SearchItem struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// EmailResult reports the outcome of one report delivery.
type EmailResult struct {
	Status string `json:"status"`           // "success" or "failure"
	Reason string `json:"reason,omitempty"` // transport detail on failure
	ID     string `json:"id,omitempty"`     // provider message id on success
}

const (
	EmailStatusSuccess = "success"
	EmailStatusFailure = "failure"
)
