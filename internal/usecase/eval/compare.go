package eval

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/logger"
	"github.com/kailas-cloud/legalrag/internal/usecase/generation"
)

// Bucket is the share of gold documents of one kind that reached the answer context.
type Bucket struct {
	Gold   int
	Hit    int
	Recall float64
}

// Row is one strategy in a comparison.
type Row struct {
	Strategy string
	Cases    int
	Failed   int
	// Recall and MRR are measured over the sources each answer actually used.
	Recall   map[int]float64
	MRR      float64
	Mean     Dimensions
	Variance Dimensions
	// Breakdown is keyed "source=<x>" and "doc_type=<y>"; empty without a Lookup.
	Breakdown map[string]Bucket
}

// Comparison ranks strategies by mean judge total, then MRR.
type Comparison struct {
	RunID string
	Ks    []int
	Rows  []Row
}

// CompareStrategies evaluates every named strategy, or all registered ones
// when strategies is empty.
func (h *Harness) CompareStrategies(ctx context.Context, b *Benchmark, strategies []string) (*Comparison, error) {
	if len(strategies) == 0 {
		strategies = generation.Names()
	}
	for _, s := range strategies {
		if _, err := generation.Get(s); err != nil {
			return nil, err //nolint:wrapcheck // ValidationError is final
		}
	}

	cmpRep := &Comparison{RunID: h.opts.RunID, Ks: h.opts.Ks}
	for _, s := range strategies {
		rep, err := h.EvaluateGeneration(ctx, b, s, h.opts.Runs)
		if err != nil {
			return nil, err
		}
		cmpRep.Rows = append(cmpRep.Rows, h.row(b, rep))
	}

	slices.SortStableFunc(cmpRep.Rows, func(x, y Row) int {
		if c := cmp.Compare(y.Mean.Total, x.Mean.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(y.MRR, x.MRR); c != 0 {
			return c
		}
		return cmp.Compare(x.Strategy, y.Strategy)
	})

	if len(cmpRep.Rows) > 0 {
		best := cmpRep.Rows[0]
		logger.FromContextOr(ctx, h.logger).Info("Strategy comparison finished",
			zap.String("run_id", h.opts.RunID),
			zap.Int("strategies", len(cmpRep.Rows)),
			zap.String("best", best.Strategy),
			zap.Float64("best_mean_total", best.Mean.Total),
		)
	}
	return cmpRep, nil
}

func (h *Harness) row(b *Benchmark, rep *GenerationReport) Row {
	r := Row{
		Strategy:  rep.Strategy,
		Cases:     len(rep.Cases),
		Failed:    len(rep.Failed),
		Recall:    make(map[int]float64, len(h.opts.Ks)),
		Mean:      rep.Mean,
		Variance:  rep.Variance,
		Breakdown: map[string]Bucket{},
	}

	byID := make(map[string]Case, len(b.Cases))
	for _, c := range b.Cases {
		byID[c.ID] = c
	}

	scored := 0
	for _, gc := range rep.Cases {
		c := byID[gc.ID]
		if len(c.GoldIDs) == 0 {
			continue
		}
		scored++
		rc := scoreRetrieval(c, gc.Sources, h.opts.Ks)
		for _, k := range h.opts.Ks {
			r.Recall[k] += rc.Recall[k]
		}
		r.MRR += rc.ReciprocalRank
		h.addBreakdown(r.Breakdown, c.GoldIDs, gc.Sources)
	}
	if scored > 0 {
		for _, k := range h.opts.Ks {
			r.Recall[k] /= float64(scored)
		}
		r.MRR /= float64(scored)
	}
	for k, bk := range r.Breakdown {
		bk.Recall = float64(bk.Hit) / float64(bk.Gold)
		r.Breakdown[k] = bk
	}
	return r
}

func (h *Harness) addBreakdown(out map[string]Bucket, gold, used []string) {
	if h.opts.Lookup == nil {
		return
	}
	for _, id := range gold {
		d, ok := h.opts.Lookup.Get(id)
		if !ok {
			continue
		}
		hit := slices.Contains(used, id)
		for _, key := range []string{"source=" + string(d.Source()), "doc_type=" + string(d.DocType())} {
			bk := out[key]
			bk.Gold++
			if hit {
				bk.Hit++
			}
			out[key] = bk
		}
	}
}
