package result

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/legalrag/internal/domain/document"
)

// Result is a single search hit.
type Result struct {
	doc   document.Document
	score float64
}

// New creates a search result.
func New(doc document.Document, score float64) Result {
	return Result{doc: doc, score: score}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.doc.ID() }

// Score returns the cosine similarity (higher is more relevant).
func (r *Result) Score() float64 { return r.score }

// Document returns the matched document.
func (r *Result) Document() document.Document { return r.doc }

// Compare orders by descending score, then ascending doc_id.
func Compare(a, b Result) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	return cmp.Compare(a.doc.ID(), b.doc.ID())
}

// Merge combines result lists, keeps the best score per doc_id and returns them ordered by Compare.
func Merge(lists ...[]Result) []Result {
	best := make(map[string]Result)
	for _, list := range lists {
		for _, r := range list {
			if prev, ok := best[r.ID()]; !ok || r.score > prev.score {
				best[r.ID()] = r
			}
		}
	}
	out := make([]Result, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	slices.SortFunc(out, Compare)
	return out
}

// IDs returns the doc_ids in order.
func IDs(rs []Result) []string {
	ids := make([]string, len(rs))
	for i := range rs {
		ids[i] = rs[i].ID()
	}
	return ids
}
