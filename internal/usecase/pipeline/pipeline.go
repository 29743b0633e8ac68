// Package pipeline ties routing, retrieval, context assembly and generation
// into a single call that returns a cited answer or a typed error.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/llmjson"
	"github.com/kailas-cloud/legalrag/internal/domain/routing"
	"github.com/kailas-cloud/legalrag/internal/domain/search/filter"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
	"github.com/kailas-cloud/legalrag/internal/domain/search/request"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
	"github.com/kailas-cloud/legalrag/internal/logger"
	"github.com/kailas-cloud/legalrag/internal/usecase/generation"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
)

// Defaults for Options.
const (
	DefaultContextBudget = 12000
	DefaultTemperature   = 0.2
	DefaultMaxTokens     = 1500
)

// Fusion modes for results of the original and the rewritten query.
const (
	// FusionMax keeps the best similarity per document.
	FusionMax = "max"
	// FusionRRF ranks by Reciprocal Rank Fusion.
	FusionRRF = "rrf"
)

// ReviewPending marks generated output that has not been reviewed by an attorney.
const ReviewPending = "pending_review"

// Disclaimer accompanies every generated answer.
const Disclaimer = "DRAFT for attorney review. Generated from retrieved documents; " +
	"not legal advice and not verified for accuracy or completeness."

// Options configures a Pipeline.
type Options struct {
	// TopK is used when a request leaves it zero.
	TopK int
	// ContextBudget caps the characters of document text sent to generation.
	ContextBudget   int
	Temperature     float32
	MaxTokens       int
	DefaultStrategy string
	// Fusion is FusionMax (default) or FusionRRF.
	Fusion string
	Retry  retry.Policy
	// Model overrides the model name reported in results.
	Model  string
	Logger *zap.Logger
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	store  Searcher
	router Router
	chat   domain.Chatter
	opts   Options
	logger *zap.Logger
}

// New creates a pipeline. router may be nil, in which case routing requests
// fall back to caller filters.
func New(store Searcher, router Router, chat domain.Chatter, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = request.DefaultTopK
	}
	if opts.ContextBudget <= 0 {
		opts.ContextBudget = DefaultContextBudget
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = generation.Default
	}
	if opts.Model == "" {
		if n, ok := chat.(domain.ModelNamer); ok {
			opts.Model = n.Model()
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{store: store, router: router, chat: chat, opts: opts, logger: opts.Logger}
}

// DefaultStrategy is used when a request names none and routing is off.
func (p *Pipeline) DefaultStrategy() string { return p.opts.DefaultStrategy }

// Request is the pipeline boundary input.
type Request struct {
	Query     string
	TopK      int
	Filters   map[string]string
	Strategy  string
	UseRouter bool
}

// Retrieval is the assembled context of a query.
type Retrieval struct {
	// Results are the documents that fit the context budget, best first.
	Results []result.Result
	// Ranked are the ids of every candidate before the budget cut.
	Ranked []string
	// Routing is nil when the router was not used.
	Routing *routing.Decision
	// Dropped counts results cut by the context budget.
	Dropped int
	// Truncated is set when the best document alone exceeded the budget.
	Truncated bool
}

// Source is a cited document.
type Source struct {
	ID        string  `json:"doc_id"`
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	DocType   string  `json:"doc_type"`
	Score     float64 `json:"score"`
	RiskLevel string  `json:"risk_level,omitempty"`
	Citation  string  `json:"citation,omitempty"`
}

// Result is a generated, cited answer.
type Result struct {
	Answer       string            `json:"answer"`
	Analysis     map[string]any    `json:"analysis"`
	Sources      []Source          `json:"sources"`
	Strategy     string            `json:"strategy"`
	Model        string            `json:"model"`
	Routing      *routing.Decision `json:"routing,omitempty"`
	ReviewStatus string            `json:"review_status"`
	Disclaimer   string            `json:"disclaimer"`
	Truncated    bool              `json:"context_truncated"`
	// Context is the document text the answer was generated from.
	Context string `json:"-"`
}

// Retrieve routes (when asked), searches and assembles the context.
func (p *Pipeline) Retrieve(ctx context.Context, req Request) (*Retrieval, error) {
	f, err := filter.FromMap(req.Filters)
	if err != nil {
		return nil, domain.NewValidationError("filters", "%v", err)
	}
	topK := req.TopK
	if topK == 0 {
		topK = p.opts.TopK
	}
	base, err := request.New(req.Query, topK, f, mode.Default)
	if err != nil {
		return nil, err //nolint:wrapcheck // ValidationError is final
	}

	queries := []string{req.Query}
	out := &Retrieval{}
	if req.UseRouter && p.router != nil {
		d := p.router.Route(ctx, req.Query)
		out.Routing = &d
		m := mode.Default
		if d.Strategy == routing.Structured {
			m = mode.PreFilter
		}
		if base, err = request.New(req.Query, topK, d.Filters, m); err != nil {
			return nil, err //nolint:wrapcheck // ValidationError is final
		}
		if d.RewrittenQuery != "" && d.RewrittenQuery != req.Query {
			queries = append(queries, d.RewrittenQuery)
		}
	}

	lists := make([][]result.Result, 0, len(queries))
	for _, q := range queries {
		if len(q) > request.MaxQueryLength {
			continue
		}
		res, err := p.store.Search(ctx, base.WithText(q))
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		lists = append(lists, res)
	}
	var merged []result.Result
	if p.opts.Fusion == FusionRRF && len(lists) > 1 {
		merged = result.FuseRRF(lists...)
	} else {
		merged = result.Merge(lists...)
	}
	if len(merged) > topK {
		merged = merged[:topK]
	}

	out.Ranked = result.IDs(merged)
	out.Results, out.Dropped, out.Truncated = applyBudget(merged, p.opts.ContextBudget)
	return out, nil
}

// Answer runs the full pipeline.
func (p *Pipeline) Answer(ctx context.Context, req Request) (*Result, error) {
	log := logger.FromContextOr(ctx, p.logger)
	start := time.Now()

	name := req.Strategy
	if name != "" {
		if _, err := generation.Get(name); err != nil {
			return nil, err //nolint:wrapcheck // ValidationError is final
		}
	}

	ret, err := p.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = p.defaultStrategy(ret.Routing)
	}
	strategy, err := generation.Get(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // ValidationError is final
	}

	docs := generation.FormatContext(ret.Results)
	msgs := strategy.Build(req.Query, docs)
	raw, err := retry.Value(ctx, p.opts.Retry, "chat", func(ctx context.Context) (string, error) {
		return p.chat.Chat(ctx, msgs, domain.ChatOptions{
			Temperature: p.opts.Temperature,
			MaxTokens:   p.opts.MaxTokens,
			JSON:        strategy.Name != generation.Basic,
		})
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // ProviderError carries op context
	}

	res := &Result{
		Answer:       raw,
		Analysis:     llmjson.ObjectOrRaw(raw),
		Sources:      sources(ret.Results),
		Strategy:     strategy.Name,
		Model:        p.opts.Model,
		Routing:      ret.Routing,
		ReviewStatus: ReviewPending,
		Disclaimer:   Disclaimer,
		Truncated:    ret.Truncated,
		Context:      docs,
	}
	log.Info("Answer generated",
		zap.String("strategy", res.Strategy),
		zap.Int("sources", len(res.Sources)),
		zap.Int("dropped", ret.Dropped),
		zap.Bool("routed", ret.Routing != nil),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// defaultStrategy picks a strategy from the routed query type.
func (p *Pipeline) defaultStrategy(d *routing.Decision) string {
	if d == nil {
		return p.opts.DefaultStrategy
	}
	switch d.QueryType {
	case routing.BreachResponse:
		return generation.BreachResponse
	case routing.ContractReview:
		return generation.FewShot
	default:
		return generation.KnowledgeBaseQA
	}
}

// applyBudget keeps the best-scoring prefix whose texts fit in budget
// characters. When even the best document does not fit, its text is cut.
func applyBudget(results []result.Result, budget int) ([]result.Result, int, bool) {
	used := 0
	for i := range results {
		d := results[i].Document()
		n := len([]rune(d.Text()))
		if used+n <= budget {
			used += n
			continue
		}
		if i == 0 {
			cut := document.Reconstruct(d.ID(), d.Source(), d.DocType(), d.Title(),
				string([]rune(d.Text())[:budget]), d.Metadata(), d.Embedding())
			return []result.Result{result.New(cut, results[0].Score())}, len(results) - 1, true
		}
		return results[:i], len(results) - i, false
	}
	return results, 0, false
}

func sources(results []result.Result) []Source {
	out := make([]Source, len(results))
	for i := range results {
		d := results[i].Document()
		out[i] = Source{
			ID:        d.ID(),
			Title:     d.Title(),
			Source:    string(d.Source()),
			DocType:   string(d.DocType()),
			Score:     results[i].Score(),
			RiskLevel: d.Meta(document.KeyRiskLevel),
			Citation:  d.Meta(document.KeyCitation),
		}
	}
	return out
}
