package legalrag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/legalrag/internal/domain"
)

// Missing capabilities fail without retries.
var (
	errNoEmbedder = fmt.Errorf("legalrag: embedder not configured (use WithEmbedder): %w", domain.ErrProviderRejected)
	errNoChatter  = fmt.Errorf("legalrag: chatter not configured (use WithChatter): %w", domain.ErrProviderRejected)
)

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts) //nolint:wrapcheck // Embed wraps
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) Model() string {
	if n, ok := a.inner.(ModelNamer); ok {
		return n.Model()
	}
	return ""
}

// chatterAdapter wraps public Chatter to satisfy internal domain.Chatter.
type chatterAdapter struct {
	inner Chatter
}

func (a *chatterAdapter) Chat(ctx context.Context, messages []domain.Message, opts domain.ChatOptions) (string, error) {
	msgs := make([]Message, len(messages))
	for i, m := range messages {
		msgs[i] = Message{Role: m.Role, Content: m.Content}
	}
	out, err := a.inner.Chat(ctx, msgs, ChatOptions{Temperature: opts.Temperature, MaxTokens: opts.MaxTokens, JSON: opts.JSON})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return out, nil
}

func (a *chatterAdapter) Model() string {
	if n, ok := a.inner.(ModelNamer); ok {
		return n.Model()
	}
	return ""
}

// noopEmbedder returns an error on every call (used when no embedder is configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errNoEmbedder
}

// noopChatter returns an error on every call (used when no chatter is configured).
type noopChatter struct{}

func (noopChatter) Chat(context.Context, []domain.Message, domain.ChatOptions) (string, error) {
	return "", errNoChatter
}
