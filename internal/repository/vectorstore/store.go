// Package vectorstore keeps legal documents and their embeddings in memory,
// answers filtered similarity queries and persists itself to disk.
//
// Readers never lock: every mutation builds a new state and publishes it with
// an atomic pointer swap, so a search sees either the old or the new state.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
	"github.com/kailas-cloud/legalrag/internal/index"
	"github.com/kailas-cloud/legalrag/internal/metrics"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
)

// Defaults for Options.
const (
	DefaultBatchSize      = 100
	DefaultInflation      = 5
	DefaultMaxEscalations = 3
)

// Corpus is a reproducible source of documents used to rebuild a stale index.
type Corpus interface {
	Documents(ctx context.Context) ([]document.Document, error)
}

// Options configures a Store.
type Options struct {
	// Path is the base path of the persisted index. The sidecar is
	// <Path>.meta.json and names the blob <Path>.<checksum>.index next to it.
	Path           string
	BatchSize      int
	Retry          retry.Policy
	Inflation      int
	MaxEscalations int
	// FilterMode is the default filtering strategy: mode.PostFilter or mode.PreFilter.
	FilterMode mode.Mode
	// Corpus enables rebuilds on load. Optional.
	Corpus Corpus
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Inflation <= 0 {
		o.Inflation = DefaultInflation
	}
	if o.MaxEscalations < 0 {
		o.MaxEscalations = 0
	} else if o.MaxEscalations == 0 {
		o.MaxEscalations = DefaultMaxEscalations
	}
	if o.FilterMode == mode.Default {
		o.FilterMode = mode.PostFilter
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Store is an in-memory vector store safe for concurrent use.
type Store struct {
	embedder domain.Embedder
	opts     Options
	logger   *zap.Logger

	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[state]
}

// New creates an empty store.
func New(embedder domain.Embedder, opts Options) *Store {
	opts = opts.withDefaults()
	s := &Store{embedder: embedder, opts: opts, logger: opts.Logger}
	s.cur.Store(emptyState())
	return s
}

// Len returns the number of live documents.
func (s *Store) Len() int { return s.cur.Load().len() }

// Dimension returns the embedding dimension, 0 while the store is empty.
func (s *Store) Dimension() int { return s.cur.Load().idx.Dim() }

// Get returns the document with its embedding.
func (s *Store) Get(id string) (document.Document, bool) {
	st := s.cur.Load()
	p, ok := st.pos[id]
	if !ok {
		return document.Document{}, false
	}
	return st.document(p), true
}

// ContentHash fingerprints the embedded corpus.
func (s *Store) ContentHash() string { return contentHash(s.cur.Load().docs) }

// Snapshot returns every document with its embedding, in index order.
func (s *Store) Snapshot() []document.Document {
	st := s.cur.Load()
	out := make([]document.Document, st.len())
	for p := range st.docs {
		out[p] = st.document(p)
	}
	return out
}

// pending is a validated document waiting for its vector.
type pending struct {
	doc document.Document
	vec []float32
}

// AddDocuments upserts docs and returns how many were committed.
//
// All documents are validated before anything is embedded or stored. The
// input is deduplicated by doc_id with the last occurrence winning. Each batch
// commits atomically; a batch whose embedding call exhausts its retries is
// reported as a *domain.BatchError and the remaining batches still run.
func (s *Store) AddDocuments(ctx context.Context, docs []document.Document) (int, error) {
	items, err := s.prepare(docs)
	if err != nil {
		return 0, err
	}

	var (
		committed int
		errs      []error
	)
	for b, start := 0, 0; start < len(items); b, start = b+1, start+s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(items))
		batch := items[start:end]

		if err := s.embedBatch(ctx, batch); err != nil {
			errs = append(errs, &domain.BatchError{Batch: b, First: batch[0].doc.ID(), Size: len(batch), Err: err})
			s.logger.Error("Batch embedding failed",
				zap.Int("batch", b),
				zap.Int("size", len(batch)),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if err := s.commit(batch); err != nil {
			errs = append(errs, &domain.BatchError{Batch: b, First: batch[0].doc.ID(), Size: len(batch), Err: err})
			continue
		}
		committed += len(batch)
	}

	metrics.StoreDocuments.Set(float64(s.Len()))
	s.logger.Info("Documents added",
		zap.Int("requested", len(docs)),
		zap.Int("committed", committed),
		zap.Int("failed_batches", len(errs)),
		zap.Int("total", s.Len()),
	)
	return committed, errors.Join(errs...)
}

// prepare validates and deduplicates the input and attaches supplied embeddings.
func (s *Store) prepare(docs []document.Document) ([]pending, error) {
	last := make(map[string]int, len(docs))
	for i := range docs {
		if _, err := revalidate(docs[i]); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		last[docs[i].ID()] = i
	}

	dim := s.Dimension()
	items := make([]pending, 0, len(last))
	for i := range docs {
		if last[docs[i].ID()] != i {
			continue
		}
		d, _ := revalidate(docs[i])
		p := pending{doc: d}
		if v := docs[i].Embedding(); len(v) > 0 {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return nil, fmt.Errorf("document %d: %w", i, dimMismatch(docs[i].ID(), dim, len(v)))
			}
			p.vec = v
		}
		items = append(items, p)
	}
	return items, nil
}

// revalidate runs a document through the constructor so zero values and
// hand-built records get the same checks as ingested ones.
func revalidate(d document.Document) (document.Document, error) {
	return document.New(d.ID(), d.Source(), d.DocType(), d.Title(), d.Text(), d.Metadata()) //nolint:wrapcheck // ValidationError is final
}

// embedBatch fills in missing vectors. Unchanged text reuses the stored vector.
func (s *Store) embedBatch(ctx context.Context, batch []pending) error {
	st := s.cur.Load()
	var (
		idx   []int
		texts []string
	)
	for i := range batch {
		if batch[i].vec != nil {
			continue
		}
		if p, ok := st.pos[batch[i].doc.ID()]; ok && st.docs[p].Text() == batch[i].doc.Text() {
			batch[i].vec = st.idx.Vector(p)
			continue
		}
		idx = append(idx, i)
		texts = append(texts, batch[i].doc.Text())
	}
	if len(texts) == 0 {
		return nil
	}

	res, err := retry.Value(ctx, s.opts.Retry, "embed", func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
		return domain.EmbedBatch(ctx, s.embedder, texts)
	})
	if err != nil {
		return err //nolint:wrapcheck // ProviderError carries op context
	}
	for j, i := range idx {
		batch[i].vec = res.Embeddings[j]
	}
	return nil
}

// commit applies a fully embedded batch under the write lock.
func (s *Store) commit(batch []pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur.Load().clone()
	for _, it := range batch {
		if err := next.upsert(it.doc, it.vec); err != nil {
			if errors.Is(err, index.ErrDimMismatch) {
				return dimMismatch(it.doc.ID(), next.idx.Dim(), len(it.vec))
			}
			return fmt.Errorf("document %q: %w", it.doc.ID(), err)
		}
	}
	s.cur.Store(next)
	return nil
}

// dimMismatch is a validation error that also matches domain.ErrVectorDimMismatch.
func dimMismatch(id string, want, got int) error {
	return fmt.Errorf("%w: %w", &domain.ValidationError{
		Field:  "embedding",
		Reason: fmt.Sprintf("document %q: expected dimension %d, got %d", id, want, got),
	}, domain.ErrVectorDimMismatch)
}

// swap replaces the whole state. Used by Load.
func (s *Store) swap(next *state) {
	s.mu.Lock()
	s.cur.Store(next)
	s.mu.Unlock()
	metrics.StoreDocuments.Set(float64(next.len()))
}
