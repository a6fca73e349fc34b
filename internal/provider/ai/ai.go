// Package ai wraps the model endpoints the application depends on: an
// embedding model, a rerank model and a streaming chat model. All clients
// speak to OpenAI- or Cohere-compatible HTTP APIs, so self-hosted gateways
// work by pointing the base URL at them.
package ai

import "context"

// Embedder turns text into fixed-dimension vectors. One call may embed many
// texts; the result is index-aligned with the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Score is one rerank result: the candidate's input index and its relevance
// to the query (higher is more relevant).
type Score struct {
	Index int
	Score float64
}

// Reranker scores (query, text) pairs with a cross-encoder. The result is
// index-aligned with texts.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]Score, error)
}

// Turn is one prior message of a conversation passed back as model context.
type Turn struct {
	Role    string
	Content string
}

// ChatStreamer streams a model answer token by token. The token channel is
// closed when the stream ends; the error channel delivers at most one
// terminal error. Cancelling ctx stops the stream.
type ChatStreamer interface {
	Stream(ctx context.Context, system string, history []Turn, user string) (<-chan string, <-chan error)
}
