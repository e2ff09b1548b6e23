// Package retrieval provides context-snippet search for retrieval-augmented
// workflow stages.
package retrieval

import "context"

// Snippet is one piece of background context returned by a search.
type Snippet struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score"`
}

// SearchClient returns the top-k snippets relevant to a query.
type SearchClient interface {
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
}
