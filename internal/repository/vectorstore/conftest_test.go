package vectorstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/search/filter"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
	"github.com/kailas-cloud/legalrag/internal/domain/search/request"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
)

const testDim = 512

// vocabEmbedder is a deterministic bag-of-words embedder. Every distinct
// lowercase token gets its own dimension, so there are no collisions.
type vocabEmbedder struct {
	mu        sync.Mutex
	vocab     map[string]int
	calls     int
	embedded  []string
	failFirst int                       // fail this many calls
	failIf    func(texts []string) bool // fail matching calls
	model     string
}

func newVocabEmbedder() *vocabEmbedder {
	return &vocabEmbedder{vocab: map[string]int{}}
}

var errUnavailable = errors.New("503 service unavailable")

func (e *vocabEmbedder) Model() string { return e.model }

func (e *vocabEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

func (e *vocabEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls <= e.failFirst || (e.failIf != nil && e.failIf(texts)) {
		return domain.BatchEmbeddingResult{}, errUnavailable
	}
	e.embedded = append(e.embedded, texts...)

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDim)
		for _, tok := range tokens(t) {
			d, ok := e.vocab[tok]
			if !ok {
				d = len(e.vocab)
				e.vocab[tok] = d
			}
			v[d]++
		}
		out[i] = v
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func (e *vocabEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// staticCorpus is a Corpus over a fixed slice.
type staticCorpus struct {
	docs []document.Document
	err  error
}

func (c *staticCorpus) Documents(_ context.Context) ([]document.Document, error) {
	return c.docs, c.err
}

func fastRetry() retry.Policy {
	return retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestStore(t *testing.T, e domain.Embedder, opts Options) *Store {
	t.Helper()
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = fastRetry()
	}
	return New(e, opts)
}

func clause(t *testing.T, id, text string, md map[string]string) document.Document {
	t.Helper()
	d, err := document.New(id, document.SourceClausesJSON, document.TypeClause, "Clause "+id, text, md)
	if err != nil {
		t.Fatalf("document.New(%q): %v", id, err)
	}
	return d
}

func statute(t *testing.T, id, text string) document.Document {
	t.Helper()
	d, err := document.New(id, document.SourceStatutes, document.TypeStatute, "Statute "+id, text, nil)
	if err != nil {
		t.Fatalf("document.New(%q): %v", id, err)
	}
	return d
}

func mustAdd(t *testing.T, s *Store, docs ...document.Document) {
	t.Helper()
	n, err := s.AddDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if n != len(docs) {
		t.Fatalf("AddDocuments committed %d, want %d", n, len(docs))
	}
}

func req(t *testing.T, text string, topK int, filters map[string]string, m mode.Mode) request.Request {
	t.Helper()
	f, err := filter.FromMap(filters)
	if err != nil {
		t.Fatalf("filter.FromMap: %v", err)
	}
	r, err := request.New(text, topK, f, m)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return r
}

func mustSearch(t *testing.T, s *Store, r request.Request) []string {
	t.Helper()
	res, err := s.Search(context.Background(), r)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ids := make([]string, len(res))
	for i := range res {
		ids[i] = res[i].ID()
	}
	return ids
}
