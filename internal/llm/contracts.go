// Package llm holds the provider-neutral contracts of the analysis stages:
// token usage accounting, chat results, and the small interfaces the pipeline
// components depend on. The concrete OpenAI implementation lives in llm/openai.
package llm

import "context"

// Usage mirrors the provider's token accounting. Counts come from the API
// response only; nothing is estimated locally.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another call's usage into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ChatResult is one completed chat call: the assistant text plus the usage
// the provider reported for it.
type ChatResult struct {
	Content string
	Model   string
	Usage   Usage
}

// ChatRequest is a single text chat call. Schema, when set, is passed to the
// model as a structured-output constraint and used locally to validate the
// reply.
type ChatRequest struct {
	System string
	User   string
	Schema map[string]any
}

// ChatCompleter produces a JSON reply for a text prompt.
type ChatCompleter interface {
	ChatJSON(ctx context.Context, req ChatRequest) (ChatResult, error)
}

// VisionCompleter answers a prompt about one PNG page image.
type VisionCompleter interface {
	ChatVision(ctx context.Context, prompt string, png []byte) (ChatResult, error)
}

// Embedder maps input strings to embedding vectors, index-aligned.
type Embedder interface {
	Embeddings(ctx context.Context, inputs []string) ([][]float32, Usage, error)
}
