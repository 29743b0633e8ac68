package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	calls  []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.calls = append(s.calls, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batch BatchEmbeddingResult
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, _ []string) (BatchEmbeddingResult, error) {
	return s.batch, s.err
}

func TestBatchFallback_CallsEmbedPerText(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, PromptTokens: 2, TotalTokens: 3}}

	res, err := BatchFallback(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.calls) != 2 {
		t.Errorf("expected 2 calls, got %d", len(inner.calls))
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 6 || res.PromptTokens != 4 {
		t.Errorf("unexpected aggregate: %+v", res)
	}
}

func TestBatchFallback_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	inner := &stubEmbedder{err: innerErr}

	_, err := BatchFallback(context.Background(), inner, []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedBatch_PrefersNativeBatch(t *testing.T) {
	inner := &stubBatchEmbedder{batch: BatchEmbeddingResult{Embeddings: [][]float32{{1}, {2}}}}

	res, err := EmbedBatch(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.calls) != 0 {
		t.Errorf("expected no per-text calls, got %d", len(inner.calls))
	}
	if len(res.Embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	inner := &stubBatchEmbedder{batch: BatchEmbeddingResult{Embeddings: [][]float32{{1}}}}

	_, err := EmbedBatch(context.Background(), inner, []string{"a", "b"})
	if !errors.Is(err, ErrProvider) {
		t.Errorf("expected ErrProvider, got %v", err)
	}
}

func TestProviderError_Is(t *testing.T) {
	err := error(&ProviderError{Op: "embed", Attempts: 3, RetryExhausted: true, Err: errors.New("503")})

	if !errors.Is(err, ErrProvider) {
		t.Error("expected ErrProvider match")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("expected ErrRetryExhausted match")
	}

	single := error(&ProviderError{Op: "chat", Err: errors.New("400")})
	if errors.Is(single, ErrRetryExhausted) {
		t.Error("non-exhausted error must not match ErrRetryExhausted")
	}
}

func TestValidationError_NamesField(t *testing.T) {
	err := NewValidationError("doc_id", "is required")

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("expected ValidationError")
	}
	if ve.Field != "doc_id" {
		t.Errorf("field = %q", ve.Field)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("expected ErrValidation match")
	}
	if err.Error() != "validation error: doc_id: is required" {
		t.Errorf("message = %q", err.Error())
	}
}
