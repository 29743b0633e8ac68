package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
)

func governingLawDocs(t *testing.T) []document.Document {
	t.Helper()
	return []document.Document{
		clause(t, "A", "governing law shall be the State of California", map[string]string{"jurisdiction": "CA"}),
		clause(t, "B", "governing law shall be the State of Texas", map[string]string{"jurisdiction": "TX"}),
		clause(t, "C", "limitation of liability shall not exceed fees paid", nil),
	}
}

func TestSearch_SelfRetrieval(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{})
	docs := append(governingLawDocs(t),
		statute(t, "ccpa-1798.82", "notify affected residents of a data breach in the most expedient time possible"),
		clause(t, "D", "either party may terminate this agreement upon thirty days written notice", nil),
	)
	mustAdd(t, s, docs...)

	for _, d := range docs {
		res, err := s.Search(context.Background(), req(t, d.Text(), 1, nil, mode.Default))
		if err != nil {
			t.Fatalf("Search(%q): %v", d.ID(), err)
		}
		if len(res) != 1 || res[0].ID() != d.ID() {
			t.Errorf("Search(text of %q) = %v", d.ID(), res)
			continue
		}
		if math.Abs(res[0].Score()-1) > 1e-5 {
			t.Errorf("self similarity of %q = %v, want 1", d.ID(), res[0].Score())
		}
	}
}

func TestSearch_CaliforniaRanksFirst(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{})
	mustAdd(t, s, governingLawDocs(t)...)

	ids := mustSearch(t, s, req(t, "California governing law", 2, nil, mode.Default))
	if len(ids) != 2 || ids[0] != "A" {
		t.Fatalf("got %v, want A first", ids)
	}
	if ids[1] != "B" {
		t.Errorf("got %v, want B second (shares governing law)", ids)
	}
}

func TestSearch_ResultsOrderedByScore(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{})
	mustAdd(t, s, governingLawDocs(t)...)

	res, err := s.Search(context.Background(), req(t, "governing law liability", 3, nil, mode.Default))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	seen := map[string]bool{}
	for i := range res {
		if seen[res[i].ID()] {
			t.Errorf("duplicate %q", res[i].ID())
		}
		seen[res[i].ID()] = true
		if i > 0 && res[i].Score() > res[i-1].Score() {
			t.Errorf("results not descending at %d: %v > %v", i, res[i].Score(), res[i-1].Score())
		}
	}
}

func TestSearch_EmptyStore(t *testing.T) {
	e := newVocabEmbedder()
	s := newTestStore(t, e, Options{})

	res, err := s.Search(context.Background(), req(t, "anything", 5, nil, mode.Default))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 0 {
		t.Errorf("expected empty result, got %d", len(res))
	}
	if e.callCount() != 0 {
		t.Error("empty store must not call the embedder")
	}
}

func tenDocsOneCA(t *testing.T) []document.Document {
	t.Helper()
	docs := make([]document.Document, 0, 10)
	for i := range 9 {
		docs = append(docs, clause(t, fmt.Sprintf("ny-%d", i),
			fmt.Sprintf("confidential information clause variant %d governed by New York law", i),
			map[string]string{"jurisdiction": "NY"}))
	}
	docs = append(docs, clause(t, "ca-0", "non-compete restrictions are void in this state",
		map[string]string{"jurisdiction": "CA"}))
	return docs
}

func TestSearch_FilterNeverPads(t *testing.T) {
	for _, m := range []mode.Mode{mode.PostFilter, mode.PreFilter} {
		t.Run(string(m), func(t *testing.T) {
			s := newTestStore(t, newVocabEmbedder(), Options{})
			mustAdd(t, s, tenDocsOneCA(t)...)

			ids := mustSearch(t, s, req(t, "confidential information clause", 5, map[string]string{"jurisdiction": "CA"}, m))
			if !slices.Equal(ids, []string{"ca-0"}) {
				t.Fatalf("got %v, want exactly [ca-0]", ids)
			}
		})
	}
}

func TestSearch_FilterSoundness(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{})
	docs := tenDocsOneCA(t)
	docs = append(docs,
		statute(t, "stat-1", "breach notification within seventy two hours"),
		statute(t, "stat-2", "confidential information of residents must be protected"),
	)
	mustAdd(t, s, docs...)

	filters := []map[string]string{
		{"jurisdiction": "NY"},
		{"jurisdiction": "CA"},
		{"source": "statutes"},
		{"doc_type": "clause", "jurisdiction": "NY"},
		{"doc_type": "statute", "jurisdiction": "NY"},
		{"risk_level": "high"},
	}
	for _, f := range filters {
		for _, m := range []mode.Mode{mode.PostFilter, mode.PreFilter} {
			res, err := s.Search(context.Background(), req(t, "confidential information", 4, f, m))
			if err != nil {
				t.Fatalf("Search(%v): %v", f, err)
			}
			if len(res) > 4 {
				t.Errorf("Search(%v) returned %d > top_k", f, len(res))
			}
			for i := range res {
				doc := res[i].Document()
				for k, v := range f {
					if got, _ := doc.Field(k); got != v {
						t.Errorf("mode %s filter %v: %q has %s=%q", m, f, res[i].ID(), k, got)
					}
				}
			}
		}
	}
}

func TestSearch_PostFilterEscalation(t *testing.T) {
	build := func(t *testing.T, escalations int) *Store {
		t.Helper()
		s := newTestStore(t, newVocabEmbedder(), Options{Inflation: 1, MaxEscalations: escalations})
		docs := make([]document.Document, 0, 40)
		for i := range 39 {
			docs = append(docs, clause(t, fmt.Sprintf("pay-%02d", i),
				fmt.Sprintf("payment terms net %d days", i), nil))
		}
		docs = append(docs, statute(t, "stat-x", "unrelated breach notice requirement"))
		mustAdd(t, s, docs...)
		return s
	}

	t.Run("finds far match", func(t *testing.T) {
		s := build(t, 10)
		ids := mustSearch(t, s, req(t, "payment terms", 1, map[string]string{"source": "statutes"}, mode.PostFilter))
		if !slices.Equal(ids, []string{"stat-x"}) {
			t.Fatalf("got %v, want [stat-x]", ids)
		}
	})

	t.Run("bounded rounds degrade to shortfall", func(t *testing.T) {
		s := build(t, 1)
		ids := mustSearch(t, s, req(t, "payment terms", 1, map[string]string{"source": "statutes"}, mode.PostFilter))
		if len(ids) != 0 {
			t.Fatalf("got %v, want empty degraded result", ids)
		}
	})

	t.Run("pre-filter is exact", func(t *testing.T) {
		s := build(t, 1)
		ids := mustSearch(t, s, req(t, "payment terms", 1, map[string]string{"source": "statutes"}, mode.PreFilter))
		if !slices.Equal(ids, []string{"stat-x"}) {
			t.Fatalf("got %v, want [stat-x]", ids)
		}
	})
}

func TestAddDocuments_UpsertReplaces(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{})
	mustAdd(t, s, governingLawDocs(t)...)

	updated := clause(t, "C", "indemnification survives termination of this agreement", nil)
	mustAdd(t, s, updated)

	if s.Len() != 3 {
		t.Fatalf("Len() = %d after upsert, want 3", s.Len())
	}
	got, ok := s.Get("C")
	if !ok || got.Text() != updated.Text() {
		t.Fatalf("Get(C) = %q, %v", got.Text(), ok)
	}

	res, err := s.Search(context.Background(), req(t, "indemnification survives termination", 1, nil, mode.Default))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].ID() != "C" {
		t.Fatalf("updated text not searchable: %v", res)
	}
	res, err = s.Search(context.Background(), req(t, "limitation of liability fees paid", 3, nil, mode.Default))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := range res {
		if res[i].ID() == "C" && res[i].Score() > 0.5 {
			t.Errorf("C still scores %v against its old text", res[i].Score())
		}
	}
}

func TestAddDocuments_UnchangedTextReusesEmbedding(t *testing.T) {
	e := newVocabEmbedder()
	s := newTestStore(t, e, Options{})
	docs := governingLawDocs(t)
	mustAdd(t, s, docs...)
	calls := e.callCount()

	relabeled := clause(t, "A", docs[0].Text(), map[string]string{"jurisdiction": "CA", "risk_level": "low"})
	mustAdd(t, s, relabeled)

	if e.callCount() != calls {
		t.Errorf("embedder called %d more times for unchanged text", e.callCount()-calls)
	}
	got, _ := s.Get("A")
	if got.Meta("risk_level") != "low" {
		t.Errorf("metadata not updated: %v", got.Metadata())
	}
}

func TestAddDocuments_DeduplicatesLastWins(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{})
	n, err := s.AddDocuments(context.Background(), []document.Document{
		clause(t, "dup", "first version", nil),
		clause(t, "other", "another clause", nil),
		clause(t, "dup", "second version", nil),
	})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if n != 2 || s.Len() != 2 {
		t.Fatalf("committed %d, Len %d, want 2/2", n, s.Len())
	}
	got, _ := s.Get("dup")
	if got.Text() != "second version" {
		t.Errorf("Get(dup) = %q, want last occurrence", got.Text())
	}
}

func TestAddDocuments_ValidationBeforeMutation(t *testing.T) {
	e := newVocabEmbedder()
	s := newTestStore(t, e, Options{})

	_, err := s.AddDocuments(context.Background(), []document.Document{
		clause(t, "ok", "valid clause text", nil),
		{},
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "doc_id" {
		t.Fatalf("expected ValidationError on doc_id, got %v", err)
	}
	if s.Len() != 0 || e.callCount() != 0 {
		t.Errorf("store mutated or embedder called: Len=%d calls=%d", s.Len(), e.callCount())
	}
}

func TestAddDocuments_DimensionMismatch(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{})
	mustAdd(t, s, governingLawDocs(t)...)

	d := clause(t, "short", "vector of the wrong size", nil)
	_, err := s.AddDocuments(context.Background(), []document.Document{d.WithEmbedding([]float32{1, 2, 3})})
	if !errors.Is(err, domain.ErrValidation) || !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected validation dimension mismatch, got %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestAddDocuments_RetriesTransientFailures(t *testing.T) {
	e := newVocabEmbedder()
	e.failFirst = 2
	s := newTestStore(t, e, Options{})

	d := clause(t, "retry-me", "force majeure excuses performance", nil)
	n, err := s.AddDocuments(context.Background(), []document.Document{d})
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if n != 1 || s.Len() != 1 {
		t.Fatalf("committed %d, Len %d", n, s.Len())
	}
	if e.callCount() != 3 {
		t.Errorf("embedder calls = %d, want 3", e.callCount())
	}
	if _, ok := s.Get("retry-me"); !ok {
		t.Error("document missing after retried batch")
	}
}

func TestAddDocuments_ExhaustedBatchIsReported(t *testing.T) {
	e := newVocabEmbedder()
	e.failIf = func(texts []string) bool {
		return slices.ContainsFunc(texts, func(s string) bool { return strings.Contains(s, "poison") })
	}
	s := newTestStore(t, e, Options{BatchSize: 2})

	n, err := s.AddDocuments(context.Background(), []document.Document{
		clause(t, "a", "assignment requires consent", nil),
		clause(t, "b", "audit rights once per year", nil),
		clause(t, "c", "poison pill provision", nil),
		clause(t, "d", "dispute resolution by arbitration", nil),
		clause(t, "e", "entire agreement clause", nil),
	})
	if n != 3 {
		t.Errorf("committed %d, want 3", n)
	}
	if !errors.Is(err, domain.ErrRetryExhausted) || !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected exhausted provider error, got %v", err)
	}
	var be *domain.BatchError
	if !errors.As(err, &be) || be.Batch != 1 || be.First != "c" || be.Size != 2 {
		t.Fatalf("unexpected batch error: %+v", be)
	}
	for _, id := range []string{"a", "b", "e"} {
		if _, ok := s.Get(id); !ok {
			t.Errorf("%q from a healthy batch is missing", id)
		}
	}
	for _, id := range []string{"c", "d"} {
		if _, ok := s.Get(id); ok {
			t.Errorf("%q from the failed batch was committed", id)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestAddDocuments_RejectedProviderDoesNotRetry(t *testing.T) {
	e := &rejectingEmbedder{}
	s := newTestStore(t, e, Options{})

	_, err := s.AddDocuments(context.Background(), []document.Document{clause(t, "x", "some clause", nil)})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if errors.Is(err, domain.ErrRetryExhausted) {
		t.Error("a rejection is not a retry exhaustion")
	}
	if e.calls != 1 {
		t.Errorf("calls = %d, want 1", e.calls)
	}
}

type rejectingEmbedder struct{ calls int }

func (e *rejectingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	e.calls++
	return domain.EmbeddingResult{}, errors.Join(domain.ErrProvider, domain.ErrProviderRejected)
}

func TestSearch_ProviderErrorSurfaces(t *testing.T) {
	e := newVocabEmbedder()
	s := newTestStore(t, e, Options{})
	mustAdd(t, s, governingLawDocs(t)...)
	e.failIf = func([]string) bool { return true }

	_, err := s.Search(context.Background(), req(t, "governing law", 2, nil, mode.Default))
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || !pe.RetryExhausted || pe.Op != "embed" {
		t.Fatalf("expected exhausted embed ProviderError, got %v", err)
	}
}

func TestStore_ConcurrentSearchDuringWrites(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{BatchSize: 1})
	mustAdd(t, s, governingLawDocs(t)...)

	writes := make([]document.Document, 20)
	for i := range writes {
		writes[i] = clause(t, fmt.Sprintf("w-%d", i), fmt.Sprintf("governing law clause number %d", i), nil)
	}
	q := req(t, "governing law", 5, nil, mode.Default)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, d := range writes {
			_, _ = s.AddDocuments(context.Background(), []document.Document{d})
		}
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				res, err := s.Search(context.Background(), q)
				if err != nil {
					t.Errorf("Search: %v", err)
					return
				}
				if len(res) > 5 {
					t.Errorf("got %d results", len(res))
				}
				st := s.cur.Load()
				if st.idx.Len() != len(st.docs) || len(st.docs) != len(st.pos) {
					t.Errorf("snapshot out of sync: idx=%d docs=%d pos=%d", st.idx.Len(), len(st.docs), len(st.pos))
				}
			}
		}()
	}
	wg.Wait()

	if s.Len() != 23 {
		t.Errorf("Len() = %d, want 23", s.Len())
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestStore(t, newVocabEmbedder(), Options{})
	mustAdd(t, s, governingLawDocs(t)...)

	snap := s.Snapshot()
	if len(snap) != 3 || s.Dimension() != testDim {
		t.Fatalf("Snapshot len %d, dim %d", len(snap), s.Dimension())
	}
	for i := range snap {
		if len(snap[i].Embedding()) != testDim {
			t.Errorf("%q missing embedding", snap[i].ID())
		}
	}
}
