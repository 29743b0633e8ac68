package result

import "slices"

// RRFK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const RRFK = 60

// FuseRRF merges ranked lists via Reciprocal Rank Fusion:
// score(d) = sum of 1/(RRFK + rank_i(d)) over every list where d appears,
// with ranks starting at 1. Each list must be best first. The returned
// results carry the fused score and are ordered by Compare.
func FuseRRF(lists ...[]Result) []Result {
	scores := make(map[string]float64)
	first := make(map[string]Result)
	for _, list := range lists {
		for rank, r := range list {
			scores[r.ID()] += 1.0 / float64(RRFK+rank+1)
			if _, ok := first[r.ID()]; !ok {
				first[r.ID()] = r
			}
		}
	}

	out := make([]Result, 0, len(first))
	for id, r := range first {
		out = append(out, New(r.doc, scores[id]))
	}
	slices.SortFunc(out, Compare)
	return out
}
