package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/search/request"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
	"github.com/kailas-cloud/legalrag/internal/logger"
	"github.com/kailas-cloud/legalrag/internal/metrics"
	"github.com/kailas-cloud/legalrag/internal/usecase/pipeline"
)

// Checkpoint phases.
const (
	PhaseRetrieval  = "retrieval"
	PhaseGeneration = "generation"
)

// retrievalStrategy fills the strategy segment of retrieval checkpoint keys.
const retrievalStrategy = "search"

// DefaultKs are the cutoffs reported when none are configured.
var DefaultKs = []int{1, 3, 5}

// Pipeline is the part of the retrieval pipeline under evaluation.
type Pipeline interface {
	Retrieve(ctx context.Context, req pipeline.Request) (*pipeline.Retrieval, error)
	Answer(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Checkpoints stores completed case results.
type Checkpoints interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Lookup resolves gold documents for per-source breakdowns.
type Lookup interface {
	Get(id string) (document.Document, bool)
}

// Options configures a Harness.
type Options struct {
	Ks   []int
	Runs int
	// RunID names the run for checkpointing. A new UUID is used when empty;
	// reusing an id resumes that run.
	RunID       string
	UseRouter   bool
	Checkpoints Checkpoints
	Lookup      Lookup
	Logger      *zap.Logger
}

// Harness runs benchmarks against a pipeline.
type Harness struct {
	pipe   Pipeline
	judge  Judge
	opts   Options
	logger *zap.Logger
}

// New creates a harness. judge may be nil when only retrieval is evaluated.
func New(pipe Pipeline, judge Judge, opts Options) *Harness {
	if len(opts.Ks) == 0 {
		opts.Ks = DefaultKs
	}
	opts.Ks = slices.Sorted(slices.Values(opts.Ks))
	opts.Ks = slices.Compact(opts.Ks)
	if opts.Runs <= 0 {
		opts.Runs = 1
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Harness{pipe: pipe, judge: judge, opts: opts, logger: opts.Logger}
}

// RunID returns the checkpoint namespace of this harness.
func (h *Harness) RunID() string { return h.opts.RunID }

func (h *Harness) maxK() (int, error) {
	k := h.opts.Ks[len(h.opts.Ks)-1]
	if h.opts.Ks[0] <= 0 || k > request.MaxTopK {
		return 0, domain.NewValidationError("ks", "cutoffs must be in 1..%d, got %v", request.MaxTopK, h.opts.Ks)
	}
	return k, nil
}

// RetrievalCase is the outcome of one retrieval case.
type RetrievalCase struct {
	ID             string          `json:"id"`
	Retrieved      []string        `json:"retrieved"`
	Recall         map[int]float64 `json:"recall"`
	ReciprocalRank float64         `json:"reciprocal_rank"`
	// Dropped counts candidates cut by the context budget.
	Dropped int `json:"dropped"`
	// RankedRecall and RankedReciprocalRank score the list before the cut.
	RankedRecall         map[int]float64 `json:"ranked_recall"`
	RankedReciprocalRank float64         `json:"ranked_reciprocal_rank"`
}

// complete reports whether rc was scored at every cutoff in ks.
func (rc *RetrievalCase) complete(ks []int) bool {
	for _, k := range ks {
		if _, ok := rc.Recall[k]; !ok {
			return false
		}
		if _, ok := rc.RankedRecall[k]; !ok {
			return false
		}
	}
	return true
}

// RetrievalReport aggregates a retrieval evaluation.
type RetrievalReport struct {
	RunID  string
	Ks     []int
	Cases  []RetrievalCase
	Recall map[int]float64
	MRR    float64
	// RankedRecall and RankedMRR ignore the context budget.
	RankedRecall map[int]float64
	RankedMRR    float64
	// Dropped totals candidates cut by the context budget.
	Dropped int
	// Skipped lists cases without gold documents.
	Skipped []string
	// Failed maps case ids to the error that stopped them.
	Failed map[string]string
}

// EvaluateRetrieval retrieves max(k) documents once per case and scores
// every cutoff on prefixes of that single list.
func (h *Harness) EvaluateRetrieval(ctx context.Context, b *Benchmark) (*RetrievalReport, error) {
	maxK, err := h.maxK()
	if err != nil {
		return nil, err
	}
	log := logger.FromContextOr(ctx, h.logger).With(zap.String("run_id", h.opts.RunID))
	rep := &RetrievalReport{
		RunID:        h.opts.RunID,
		Ks:           h.opts.Ks,
		Recall:       map[int]float64{},
		RankedRecall: map[int]float64{},
		Failed:       map[string]string{},
	}
	// The key carries every setting that changes the retrieved list.
	strategy := fmt.Sprintf("%s-k%d", retrievalStrategy, maxK)
	if h.opts.UseRouter {
		strategy += "-router"
	}

	for _, c := range b.Cases {
		if len(c.GoldIDs) == 0 {
			rep.Skipped = append(rep.Skipped, c.ID)
			metrics.EvalCasesTotal.WithLabelValues(PhaseRetrieval, "skipped").Inc()
			continue
		}
		key := h.key(PhaseRetrieval, strategy, c.ID)
		var rc RetrievalCase
		complete := func() bool { return rc.complete(h.opts.Ks) }
		err := h.cached(ctx, PhaseRetrieval, key, &rc, complete, func() error {
			ret, err := h.pipe.Retrieve(ctx, pipeline.Request{
				Query: c.Query, TopK: maxK, Filters: c.Filters, UseRouter: h.opts.UseRouter,
			})
			if err != nil {
				return err //nolint:wrapcheck // wrapped below
			}
			rc = scoreRetrieval(c, result.IDs(ret.Results), h.opts.Ks)
			ranked := ret.Ranked
			if ranked == nil {
				ranked = rc.Retrieved
			}
			full := scoreRetrieval(c, ranked, h.opts.Ks)
			rc.Dropped = ret.Dropped
			rc.RankedRecall, rc.RankedReciprocalRank = full.Recall, full.ReciprocalRank
			if ret.Dropped > 0 {
				log.Debug("Context budget cut candidates",
					zap.String("case", c.ID),
					zap.Int("dropped", ret.Dropped),
					zap.Bool("truncated", ret.Truncated),
				)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("retrieval case %s: %w", c.ID, err)
			}
			log.Warn("Retrieval case failed", zap.String("case", c.ID), zap.Error(err))
			rep.Failed[c.ID] = err.Error()
			continue
		}
		rep.Cases = append(rep.Cases, rc)
	}

	for _, rc := range rep.Cases {
		for _, k := range h.opts.Ks {
			rep.Recall[k] += rc.Recall[k]
			rep.RankedRecall[k] += rc.RankedRecall[k]
		}
		rep.MRR += rc.ReciprocalRank
		rep.RankedMRR += rc.RankedReciprocalRank
		rep.Dropped += rc.Dropped
	}
	if n := float64(len(rep.Cases)); n > 0 {
		for _, k := range h.opts.Ks {
			rep.Recall[k] /= n
			rep.RankedRecall[k] /= n
		}
		rep.MRR /= n
		rep.RankedMRR /= n
	}
	log.Info("Retrieval evaluation finished",
		zap.Int("cases", len(rep.Cases)),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("failed", len(rep.Failed)),
		zap.Int("dropped", rep.Dropped),
		zap.Float64("mrr", rep.MRR),
		zap.Float64("ranked_mrr", rep.RankedMRR),
	)
	return rep, nil
}

// Dimensions holds a statistic per judged dimension.
type Dimensions struct {
	RiskAccuracy  float64
	IssueCoverage float64
	Actionability float64
	Grounding     float64
	Total         float64
}

// GenerationCase is every judged run of one case.
type GenerationCase struct {
	ID string `json:"id"`
	// Sources are the doc_ids the first run was grounded on.
	Sources []string `json:"sources"`
	Runs    []Scores `json:"runs"`
}

// GenerationReport aggregates a generation evaluation of one strategy.
type GenerationReport struct {
	RunID    string
	Strategy string
	Runs     int
	Cases    []GenerationCase
	Mean     Dimensions
	// Variance is the population variance over every judged run.
	Variance Dimensions
	Failed   map[string]string
}

// EvaluateGeneration answers every case runs times with the given strategy
// and grades each answer with the judge.
func (h *Harness) EvaluateGeneration(ctx context.Context, b *Benchmark, strategy string, runs int) (*GenerationReport, error) {
	if h.judge == nil {
		return nil, errors.New("generation evaluation needs a judge")
	}
	maxK, err := h.maxK()
	if err != nil {
		return nil, err
	}
	if runs <= 0 {
		runs = h.opts.Runs
	}
	log := logger.FromContextOr(ctx, h.logger).With(
		zap.String("run_id", h.opts.RunID),
		zap.String("strategy", strategy),
	)
	rep := &GenerationReport{RunID: h.opts.RunID, Strategy: strategy, Runs: runs, Failed: map[string]string{}}

	for _, c := range b.Cases {
		key := h.key(PhaseGeneration, strategy, c.ID)
		var gc GenerationCase
		complete := func() bool { return len(gc.Runs) >= runs }
		err := h.cached(ctx, PhaseGeneration, key, &gc, complete, func() error {
			gc = GenerationCase{ID: c.ID}
			for run := range runs {
				start := time.Now()
				res, err := h.pipe.Answer(ctx, pipeline.Request{
					Query: c.Query, TopK: maxK, Filters: c.Filters, Strategy: strategy, UseRouter: h.opts.UseRouter,
				})
				if err != nil {
					return fmt.Errorf("answer: %w", err)
				}
				s, err := h.judge.Score(ctx, c, res.Answer, res.Context)
				if err != nil {
					return fmt.Errorf("judge: %w", err)
				}
				if run == 0 {
					gc.Sources = make([]string, len(res.Sources))
					for i, src := range res.Sources {
						gc.Sources[i] = src.ID
					}
				}
				gc.Runs = append(gc.Runs, s)
				log.Debug("Case judged",
					zap.String("case", c.ID),
					zap.Int("run", run),
					zap.Float64("total", s.Total),
					zap.Duration("duration", time.Since(start)),
				)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("generation case %s: %w", c.ID, err)
			}
			log.Warn("Generation case failed", zap.String("case", c.ID), zap.Error(err))
			rep.Failed[c.ID] = err.Error()
			continue
		}
		rep.Cases = append(rep.Cases, gc)
	}

	var all []Scores
	for _, gc := range rep.Cases {
		all = append(all, gc.Runs[:runs]...)
	}
	rep.Mean, rep.Variance = meanVariance(all)
	log.Info("Generation evaluation finished",
		zap.Int("cases", len(rep.Cases)),
		zap.Int("failed", len(rep.Failed)),
		zap.Float64("mean_total", rep.Mean.Total),
	)
	return rep, nil
}

// cached loads key into v, or runs compute and stores v under key. A stored
// value for which valid reports false is recomputed.
func (h *Harness) cached(
	ctx context.Context, phase, key string, v any, valid func() bool, compute func() error,
) error {
	if cp := h.opts.Checkpoints; cp != nil {
		data, ok, err := cp.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read checkpoint: %w", err)
		}
		if ok {
			if err := json.Unmarshal(data, v); err == nil && (valid == nil || valid()) {
				metrics.EvalCasesTotal.WithLabelValues(phase, "cached").Inc()
				return nil
			}
			h.logger.Warn("Ignoring unusable checkpoint", zap.String("key", key))
		}
	}

	if err := compute(); err != nil {
		metrics.EvalCasesTotal.WithLabelValues(phase, "failed").Inc()
		return err
	}
	metrics.EvalCasesTotal.WithLabelValues(phase, "done").Inc()

	if cp := h.opts.Checkpoints; cp != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode checkpoint: %w", err)
		}
		if err := cp.Put(ctx, key, data); err != nil {
			return fmt.Errorf("write checkpoint: %w", err)
		}
	}
	return nil
}

func (h *Harness) key(phase, strategy, caseID string) string {
	return h.opts.RunID + "/" + phase + "/" + strategy + "/" + caseID
}
