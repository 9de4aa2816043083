package resilience

import (
	"context"

	"github.com/stroyassist/defectbot/internal/llm"
)

// Operation names used as breaker keys. Chat and embeddings trip
// independently: an overloaded chat endpoint must not block page scoring.
const (
	OpChat       = "openai.chat"
	OpVision     = "openai.vision"
	OpEmbeddings = "openai.embeddings"
)

// LLMClient is the full surface of the provider client the pipeline consumes.
type LLMClient interface {
	llm.ChatCompleter
	llm.VisionCompleter
	llm.Embedder
}

// GuardedClient decorates an LLMClient with the executor's retry and breaker
// behavior. It satisfies the same interfaces, so stages stay unaware of it.
type GuardedClient struct {
	inner LLMClient
	exec  *Executor
}

func GuardLLM(inner LLMClient, exec *Executor) *GuardedClient {
	return &GuardedClient{inner: inner, exec: exec}
}

func (g *GuardedClient) ChatJSON(ctx context.Context, req llm.ChatRequest) (llm.ChatResult, error) {
	var res llm.ChatResult
	err := g.exec.Execute(ctx, OpChat, func(ctx context.Context) error {
		var callErr error
		res, callErr = g.inner.ChatJSON(ctx, req)
		return callErr
	})
	return res, err
}

func (g *GuardedClient) ChatVision(ctx context.Context, prompt string, png []byte) (llm.ChatResult, error) {
	var res llm.ChatResult
	err := g.exec.Execute(ctx, OpVision, func(ctx context.Context) error {
		var callErr error
		res, callErr = g.inner.ChatVision(ctx, prompt, png)
		return callErr
	})
	return res, err
}

func (g *GuardedClient) Embeddings(ctx context.Context, inputs []string) ([][]float32, llm.Usage, error) {
	var (
		vectors [][]float32
		usage   llm.Usage
	)
	err := g.exec.Execute(ctx, OpEmbeddings, func(ctx context.Context) error {
		var callErr error
		vectors, usage, callErr = g.inner.Embeddings(ctx, inputs)
		return callErr
	})
	return vectors, usage, err
}
