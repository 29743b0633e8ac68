package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/search/filter"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
	"github.com/kailas-cloud/legalrag/internal/domain/search/request"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
	"github.com/kailas-cloud/legalrag/internal/index"
	"github.com/kailas-cloud/legalrag/internal/metrics"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
)

// Search embeds the query text and returns up to TopK matching documents,
// best first. Every result satisfies every filter condition. A filtered
// search may return fewer than TopK results; an empty store returns none.
func (s *Store) Search(ctx context.Context, req request.Request) ([]result.Result, error) {
	st := s.cur.Load()
	if st.len() == 0 {
		return []result.Result{}, nil
	}

	res, err := retry.Value(ctx, s.opts.Retry, "embed", func(ctx context.Context) (domain.EmbeddingResult, error) {
		return s.embedder.Embed(ctx, req.Text())
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // ProviderError carries op context
	}
	return s.searchVector(ctx, st, res.Embedding, req)
}

// SearchVector runs a search with a precomputed query vector.
func (s *Store) SearchVector(ctx context.Context, vec []float32, req request.Request) ([]result.Result, error) {
	st := s.cur.Load()
	if st.len() == 0 {
		return []result.Result{}, nil
	}
	return s.searchVector(ctx, st, vec, req)
}

func (s *Store) searchVector(ctx context.Context, st *state, vec []float32, req request.Request) ([]result.Result, error) {
	m := req.Mode()
	if m == mode.Default {
		m = s.opts.FilterMode
	}
	f := req.Filters()

	start := time.Now()
	var (
		hits []index.Hit
		err  error
	)
	switch {
	case f.IsEmpty():
		hits, err = st.idx.Search(vec, req.TopK())
	case m == mode.PreFilter:
		hits, err = preFilter(st, vec, f, req.TopK())
	default:
		hits, err = s.postFilter(ctx, st, vec, f, req.TopK())
	}
	metrics.SearchDuration.WithLabelValues(string(m)).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, index.ErrDimMismatch) {
			return nil, fmt.Errorf("query embedding: %w", domain.ErrVectorDimMismatch)
		}
		return nil, fmt.Errorf("search index: %w", err)
	}

	if !f.IsEmpty() && len(hits) < req.TopK() {
		metrics.SearchShortfallTotal.Inc()
	}

	out := make([]result.Result, len(hits))
	for i, h := range hits {
		out[i] = result.New(st.docs[h.Pos], float64(h.Score))
	}
	slices.SortStableFunc(out, result.Compare)
	return out, nil
}

// preFilter scans only the matching subset: exact, O(collection size) per query.
func preFilter(st *state, vec []float32, f filter.Expression, topK int) ([]index.Hit, error) {
	var positions []int
	for p := range st.docs {
		if f.Matches(&st.docs[p]) {
			positions = append(positions, p)
		}
	}
	return st.idx.SearchSubset(vec, positions, topK) //nolint:wrapcheck // wrapped by caller
}

// postFilter fetches topK*inflation nearest neighbours, drops non-matching
// ones and doubles the fetch while short, up to MaxEscalations rounds or
// until the whole index has been examined.
func (s *Store) postFilter(
	ctx context.Context, st *state, vec []float32, f filter.Expression, topK int,
) ([]index.Hit, error) {
	n := st.len()
	fetch := min(topK*s.opts.Inflation, n)
	for round := 0; ; round++ {
		candidates, err := st.idx.Search(vec, fetch)
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		hits := make([]index.Hit, 0, topK)
		for _, h := range candidates {
			if f.Matches(&st.docs[h.Pos]) {
				hits = append(hits, h)
				if len(hits) == topK {
					break
				}
			}
		}
		if len(hits) == topK || fetch >= n || round >= s.opts.MaxEscalations {
			return hits, nil
		}
		fetch = min(fetch*2, n)
		metrics.SearchEscalationsTotal.Inc()
		s.logger.Debug("Post-filter short, escalating",
			zap.String("filters", f.String()),
			zap.Int("found", len(hits)),
			zap.Int("fetch", fetch),
		)
		if ctx.Err() != nil {
			return hits, nil
		}
	}
}
