// Package review checks a whole contract clause by clause against the
// firm's playbook positions.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/llmjson"
	"github.com/kailas-cloud/legalrag/internal/domain/search/filter"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
	"github.com/kailas-cloud/legalrag/internal/domain/search/request"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
	"github.com/kailas-cloud/legalrag/internal/logger"
	"github.com/kailas-cloud/legalrag/internal/metrics"
	"github.com/kailas-cloud/legalrag/internal/usecase/generation"
	"github.com/kailas-cloud/legalrag/internal/usecase/pipeline"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
)

// Defaults for Options.
const (
	DefaultSimilarK    = 3
	DefaultConcurrency = 4
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.1
)

// MaxContractSize bounds the contract text accepted for review.
const MaxContractSize = 1 << 20

// Alignment of a clause with its playbook position.
const (
	AlignPreferred  = "preferred"
	AlignFallback   = "fallback"
	AlignWalkAway   = "walk_away"
	AlignNotCovered = "not_covered"
)

// Options configures a Reviewer.
type Options struct {
	// SimilarK is how many knowledge base clauses accompany each clause.
	SimilarK int
	// Concurrency caps clauses reviewed at once.
	Concurrency int
	MaxTokens   int
	Temperature float32
	Retry       retry.Policy
	Logger      *zap.Logger
}

// Reviewer is safe for concurrent use.
type Reviewer struct {
	store  Searcher
	chat   domain.Chatter
	opts   Options
	logger *zap.Logger
}

// New creates a reviewer.
func New(store Searcher, chat domain.Chatter, opts Options) *Reviewer {
	if opts.SimilarK <= 0 {
		opts.SimilarK = DefaultSimilarK
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reviewer{store: store, chat: chat, opts: opts, logger: opts.Logger}
}

// ClauseReview is the verdict on one clause.
type ClauseReview struct {
	Clause
	PlaybookMatch bool      `json:"playbook_match"`
	Position      *Position `json:"playbook_position,omitempty"`
	Alignment     string    `json:"alignment"`
	RiskLevel     string    `json:"risk_level"`
	// Analysis is the model's JSON reply, or the raw text with parse_error set.
	Analysis map[string]any `json:"analysis"`
	// Similar are the knowledge base clauses shown to the model.
	Similar []string `json:"similar"`
}

// Report is a full contract review.
type Report struct {
	Playbook     string         `json:"playbook"`
	Clauses      []ClauseReview `json:"clause_analyses"`
	Summary      Summary        `json:"summary"`
	ReviewStatus string         `json:"review_status"`
	Disclaimer   string         `json:"disclaimer"`
}

// Review splits the contract into clauses, classifies each one, compares it
// with its playbook position and summarizes the result. A nil playbook uses
// the positions indexed in the store.
//
// Clauses are reviewed concurrently; the first review call that fails
// cancels the rest and is returned.
func (r *Reviewer) Review(ctx context.Context, contract string, playbook Positions) (*Report, error) {
	if strings.TrimSpace(contract) == "" {
		return nil, domain.NewValidationError("contract", "is required")
	}
	if len(contract) > MaxContractSize {
		return nil, domain.NewValidationError("contract", "too long (max %d bytes)", MaxContractSize)
	}
	chunks := Split(contract)
	if len(chunks) == 0 {
		return nil, domain.NewValidationError("contract", "no clause of at least %d characters found", MinChunkLength)
	}
	if playbook == nil {
		playbook = NewIndexPlaybook(r.store)
	}
	log := logger.FromContextOr(ctx, r.logger).With(zap.String("playbook", playbook.Name()))
	start := time.Now()

	reviews := make([]ClauseReview, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, ch := range chunks {
		g.Go(func() error {
			cr, err := r.reviewClause(gctx, log, playbook, ch)
			if err != nil {
				return fmt.Errorf("clause %d (%s): %w", ch.Position, ch.Heading, err)
			}
			reviews[i] = cr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped per clause
	}

	rep := &Report{
		Playbook:     playbook.Name(),
		Clauses:      reviews,
		Summary:      summarize(reviews),
		ReviewStatus: pipeline.ReviewPending,
		Disclaimer:   pipeline.Disclaimer,
	}
	log.Info("Contract reviewed",
		zap.Int("clauses", len(reviews)),
		zap.String("overall_risk", rep.Summary.OverallRisk),
		zap.Int("walk_away", rep.Summary.AlignmentCounts[AlignWalkAway]),
		zap.Duration("duration", time.Since(start)),
	)
	return rep, nil
}

func (r *Reviewer) reviewClause(ctx context.Context, log *zap.Logger, pb Positions, ch Chunk) (ClauseReview, error) {
	c := r.classify(ctx, log, ch)
	pos, err := pb.Position(ctx, c.ClauseType)
	if err != nil {
		return ClauseReview{}, err //nolint:wrapcheck // wrapped by the caller
	}
	similar, err := r.similar(ctx, c)
	if err != nil {
		return ClauseReview{}, err
	}

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: reviewSystem},
		{Role: domain.RoleUser, Content: reviewPrompt(c, pos, generation.FormatContext(similar))},
	}
	raw, err := retry.Value(ctx, r.opts.Retry, "review", func(ctx context.Context) (string, error) {
		return r.chat.Chat(ctx, msgs, domain.ChatOptions{
			Temperature: r.opts.Temperature,
			MaxTokens:   r.opts.MaxTokens,
			JSON:        true,
		})
	})
	if err != nil {
		return ClauseReview{}, err //nolint:wrapcheck // ProviderError carries op context
	}

	cr := ClauseReview{
		Clause:        c,
		PlaybookMatch: pos != nil,
		Position:      pos,
		Analysis:      llmjson.ObjectOrRaw(raw),
		Similar:       result.IDs(similar),
	}
	cr.Alignment, cr.RiskLevel = verdict(cr.Analysis, pos != nil)
	metrics.ReviewClausesTotal.WithLabelValues(cr.Alignment).Inc()
	log.Debug("Clause reviewed",
		zap.Int("position", c.Position),
		zap.String("clause_type", c.ClauseType),
		zap.String("alignment", cr.Alignment),
	)
	return cr, nil
}

// similar finds knowledge base clauses of the same type, or of any type
// when the clause is unclassified or its type has no indexed examples.
func (r *Reviewer) similar(ctx context.Context, c Clause) ([]result.Result, error) {
	query := clip(c.Text, request.MaxQueryLength)
	clauses := filter.MustMatch("doc_type", string(document.TypeClause))

	filters := make([]filter.Expression, 0, 2)
	if c.ClauseType != ClauseOther {
		typed, err := filter.NewExpression(clauses, filter.MustMatch(document.KeyClauseType, c.ClauseType))
		if err != nil {
			return nil, fmt.Errorf("clause filter: %w", err)
		}
		filters = append(filters, typed)
	}
	untyped, err := filter.NewExpression(clauses)
	if err != nil {
		return nil, fmt.Errorf("clause filter: %w", err)
	}
	filters = append(filters, untyped)

	for _, f := range filters {
		req, err := request.New(query, r.opts.SimilarK, f, mode.PreFilter)
		if err != nil {
			return nil, err //nolint:wrapcheck // ValidationError is final
		}
		res, err := r.store.Search(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("similar clauses: %w", err)
		}
		if len(res) > 0 {
			return res, nil
		}
	}
	return nil, nil
}

// verdict reads alignment and risk from the model reply. Unknown or
// unparseable values fall back to not_covered and medium.
func verdict(analysis map[string]any, covered bool) (alignment, risk string) {
	alignment, risk = AlignNotCovered, "medium"
	if analysis["parse_error"] == true {
		return alignment, risk
	}
	if a, _ := analysis["alignment"].(string); covered {
		switch a {
		case AlignPreferred, AlignFallback, AlignWalkAway:
			alignment = a
		}
	}
	lv, _ := analysis["risk_level"].(string)
	switch lv = strings.ToLower(strings.TrimSpace(lv)); lv {
	case "low", "medium", "high":
		risk = lv
	}
	return alignment, risk
}
