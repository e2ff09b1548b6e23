// Package reasoning provides the client contract for the external reasoning
// service (LLM gateway) used by workflow stage nodes.
package reasoning

import "context"

// Request is one completion call. Model selection is per-call so a single
// client serves stages with different model requirements.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Usage reports the token consumption of one completion.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Response is the gateway's answer to one completion request.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Client is the reasoning-service contract. Implementations must honor
// context cancellation so per-step deadlines propagate into the underlying
// HTTP call.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
