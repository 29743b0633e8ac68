package legalrag

import "context"

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// Optional: if the provided Embedder also implements BatchEmbedder,
// ingestion uses it for significantly better throughput.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// ModelNamer is optionally implemented by an Embedder. A persisted index
// built with a different model is rejected on load.
type ModelNamer interface {
	Model() string
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Chatter generates a completion for a conversation.
type Chatter interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}

// Message is a single chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// ChatOptions tunes a single generation call.
type ChatOptions struct {
	Temperature float32
	MaxTokens   int
	// JSON asks for a JSON object response.
	JSON bool
}
