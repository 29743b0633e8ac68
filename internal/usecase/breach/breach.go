// Package breach builds a jurisdiction-by-jurisdiction data breach
// notification report from indexed state statutes.
package breach

import (
	"context"
	"encoding/json"
	"fmt"
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
	DefaultTopKPerState = 5
	DefaultConcurrency  = 4
	DefaultMaxTokens    = 1500
	DefaultTemperature  = 0.1
)

// Disclaimer accompanies every breach report.
const Disclaimer = "DRAFT breach response analysis for attorney review. Verify against current statute text " +
	"before relying on it; statutes may have been amended since the corpus was built. Not legal advice."

// Options configures an Analyzer.
type Options struct {
	// TopKPerState is how many statute provisions are retrieved per state.
	TopKPerState int
	// Concurrency caps states analyzed at once.
	Concurrency int
	MaxTokens   int
	Temperature float32
	Retry       retry.Policy
	Logger      *zap.Logger
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	store  Searcher
	chat   domain.Chatter
	opts   Options
	logger *zap.Logger
}

// New creates an analyzer.
func New(store Searcher, chat domain.Chatter, opts Options) *Analyzer {
	if opts.TopKPerState <= 0 {
		opts.TopKPerState = DefaultTopKPerState
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
	return &Analyzer{store: store, chat: chat, opts: opts, logger: opts.Logger}
}

// StateAnalysis is the notification analysis for one jurisdiction.
type StateAnalysis struct {
	Jurisdiction          string   `json:"jurisdiction"`
	NotificationRequired  bool     `json:"notification_required"`
	Rationale             string   `json:"rationale,omitempty"`
	Deadline              string   `json:"deadline,omitempty"`
	NotifyIndividuals     bool     `json:"notify_individuals"`
	NotifyAG              bool     `json:"notify_ag"`
	AGNotificationDetails string   `json:"ag_notification_details,omitempty"`
	NotifyOther           []string `json:"notify_other,omitempty"`
	ContentRequirements   []string `json:"content_requirements,omitempty"`
	SafeHarborApplies     bool     `json:"safe_harbor_applies"`
	SafeHarborDetails     string   `json:"safe_harbor_details,omitempty"`
	SpecialConsiderations []string `json:"special_considerations,omitempty"`
	Confidence            string   `json:"confidence,omitempty"`
	// Statutes are the provisions the analysis was generated from.
	Statutes []string `json:"statutes"`
	// Error is set when no statute data exists for the state.
	Error string `json:"error,omitempty"`
	// RawResponse keeps a reply that did not decode.
	RawResponse string `json:"raw_response,omitempty"`
	ParseError  bool   `json:"parse_error,omitempty"`
}

// Report is a multi-state breach analysis.
type Report struct {
	Params       Params          `json:"breach_params"`
	Summary      Summary         `json:"summary"`
	States       []StateAnalysis `json:"state_analyses"`
	ReviewStatus string          `json:"review_status"`
	Disclaimer   string          `json:"disclaimer"`
}

// Analyze validates params, retrieves each state's statutes through a
// jurisdiction filter and analyzes the states concurrently. A state without
// indexed statutes is reported with Error set, not analyzed.
func (a *Analyzer) Analyze(ctx context.Context, params Params) (*Report, error) {
	p := params.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContextOr(ctx, a.logger).With(zap.Strings("states", p.States))
	start := time.Now()
	query := p.query()

	states := make([]StateAnalysis, len(p.States))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, st := range p.States {
		g.Go(func() error {
			sa, err := a.analyzeState(gctx, log, p, query, st)
			if err != nil {
				return fmt.Errorf("state %s: %w", st, err)
			}
			states[i] = sa
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped per state
	}

	rep := &Report{
		Params:       p,
		Summary:      summarize(p, states),
		States:       states,
		ReviewStatus: pipeline.ReviewPending,
		Disclaimer:   Disclaimer,
	}
	log.Info("Breach report built",
		zap.Int("notifications_required", rep.Summary.NotificationsRequired),
		zap.Strings("unavailable", rep.Summary.Unavailable),
		zap.Duration("duration", time.Since(start)),
	)
	return rep, nil
}

// Statutes retrieves the statute provisions indexed for one state.
func (a *Analyzer) Statutes(ctx context.Context, query, state string) ([]result.Result, error) {
	f, err := filter.NewExpression(
		filter.MustMatch(document.KeyJurisdiction, state),
		filter.MustMatch("source", string(document.SourceStatutes)),
	)
	if err != nil {
		return nil, fmt.Errorf("statute filter: %w", err)
	}
	req, err := request.New(query, a.opts.TopKPerState, f, mode.PreFilter)
	if err != nil {
		return nil, err //nolint:wrapcheck // ValidationError is final
	}
	res, err := a.store.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("statute search: %w", err)
	}
	return res, nil
}

func (a *Analyzer) analyzeState(ctx context.Context, log *zap.Logger, p Params, query, state string) (StateAnalysis, error) {
	statutes, err := a.Statutes(ctx, query, state)
	if err != nil {
		return StateAnalysis{}, err
	}
	if len(statutes) == 0 {
		log.Warn("No statute data for state", zap.String("state", state))
		metrics.BreachJurisdictionsTotal.WithLabelValues("no_statutes").Inc()
		return StateAnalysis{
			Jurisdiction: state,
			Statutes:     []string{},
			Error:        "No breach notification statute data available for " + state,
		}, nil
	}

	incident, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return StateAnalysis{}, fmt.Errorf("encode params: %w", err)
	}
	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: analysisSystem},
		{Role: domain.RoleUser, Content: analysisPrompt(string(incident), generation.FormatContext(statutes), state)},
	}
	raw, err := retry.Value(ctx, a.opts.Retry, "breach", func(ctx context.Context) (string, error) {
		return a.chat.Chat(ctx, msgs, domain.ChatOptions{
			Temperature: a.opts.Temperature,
			MaxTokens:   a.opts.MaxTokens,
			JSON:        true,
		})
	})
	if err != nil {
		return StateAnalysis{}, err //nolint:wrapcheck // ProviderError carries op context
	}

	var sa StateAnalysis
	if err := llmjson.Decode(raw, &sa); err != nil {
		log.Warn("Breach analysis unparseable", zap.String("state", state), zap.Error(err))
		sa = StateAnalysis{RawResponse: raw, ParseError: true}
	}
	sa.Jurisdiction = state
	sa.Statutes = result.IDs(statutes)
	sa.Error = ""
	metrics.BreachJurisdictionsTotal.WithLabelValues("analyzed").Inc()
	return sa, nil
}
