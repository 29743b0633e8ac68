// Package router classifies free-text legal questions into a routing decision.
package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/llmjson"
	"github.com/kailas-cloud/legalrag/internal/domain/routing"
	"github.com/kailas-cloud/legalrag/internal/domain/search/filter"
	"github.com/kailas-cloud/legalrag/internal/logger"
	"github.com/kailas-cloud/legalrag/internal/metrics"
)

// DefaultMaxTokens caps the classification response.
const DefaultMaxTokens = 300

// Router makes one classification call per query and never fails: any
// transport or parse problem degrades to routing.Default with Fallback set.
type Router struct {
	chat      domain.Chatter
	maxTokens int
	logger    *zap.Logger
}

// New creates a router over a chat capability.
func New(chat domain.Chatter, maxTokens int, l *zap.Logger) *Router {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Router{chat: chat, maxTokens: maxTokens, logger: l}
}

// modelDecision is the JSON the classifier is asked to return.
type modelDecision struct {
	QueryType      string         `json:"query_type"`
	Filters        map[string]any `json:"filters"`
	SearchStrategy string         `json:"search_strategy"`
	RewrittenQuery *string        `json:"rewritten_query"`
	Explanation    string         `json:"explanation"`
}

// filterKeys are the fields the classifier may filter on.
var filterKeys = []string{"source", "doc_type", "jurisdiction", "clause_type"}

// Route classifies query.
func (r *Router) Route(ctx context.Context, query string) routing.Decision {
	log := logger.FromContextOr(ctx, r.logger)

	raw, err := r.chat.Chat(ctx, messages(query), domain.ChatOptions{
		Temperature: 0,
		MaxTokens:   r.maxTokens,
		JSON:        true,
	})
	if err != nil {
		return r.fallback(log, fmt.Errorf("classification call: %w", err))
	}

	var md modelDecision
	if err := llmjson.Decode(raw, &md); err != nil {
		return r.fallback(log, fmt.Errorf("parse classification: %w", err))
	}
	d, err := r.decide(log, md)
	if err != nil {
		return r.fallback(log, err)
	}

	metrics.RouterDecisionsTotal.WithLabelValues(string(d.QueryType), "false").Inc()
	log.Debug("Query routed",
		zap.String("query_type", string(d.QueryType)),
		zap.String("strategy", string(d.Strategy)),
		zap.String("filters", d.Filters.String()),
		zap.Bool("rewritten", d.RewrittenQuery != ""),
	)
	return d
}

func (r *Router) decide(log *zap.Logger, md modelDecision) (routing.Decision, error) {
	qt := routing.QueryType(strings.TrimSpace(md.QueryType))
	if !qt.IsValid() {
		return routing.Decision{}, fmt.Errorf("unknown query type %q", md.QueryType)
	}
	defaults, defaultStrategy := routing.Defaults(qt)

	f := modelFilters(log, md.Filters)
	for _, c := range defaults.Must() {
		f = f.With(c)
	}
	if qt == routing.CrossCutting {
		f = f.Without("source")
	}

	strategy, ok := strategyFromModel(md.SearchStrategy)
	if !ok {
		strategy = defaultStrategy
	}

	d := routing.Decision{
		QueryType:   qt,
		Filters:     f,
		Strategy:    strategy,
		Explanation: strings.TrimSpace(md.Explanation),
	}
	if md.RewrittenQuery != nil {
		if q := strings.TrimSpace(*md.RewrittenQuery); !isNull(q) {
			d.RewrittenQuery = q
		}
	}
	return d, nil
}

// modelFilters keeps known keys with usable values. Unknown sources and
// document types are dropped rather than searched for and never found.
func modelFilters(log *zap.Logger, raw map[string]any) filter.Expression {
	var f filter.Expression
	for _, key := range filterKeys {
		v, ok := stringValue(raw[key])
		if !ok {
			continue
		}
		switch key {
		case "source":
			if !document.Source(v).Valid() {
				log.Debug("Dropping unknown source filter", zap.String("value", v))
				continue
			}
		case "doc_type":
			if !document.DocType(v).Valid() {
				log.Debug("Dropping unknown doc_type filter", zap.String("value", v))
				continue
			}
		case "jurisdiction":
			v = strings.ToUpper(v)
		}
		c, err := filter.NewMatch(key, v)
		if err != nil {
			continue
		}
		f = f.With(c)
	}
	return f
}

func stringValue(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, !isNull(s)
}

func isNull(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a":
		return true
	}
	return false
}

func strategyFromModel(s string) (routing.Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "semantic", "vector":
		return routing.Vector, true
	case "filtered", "structured":
		return routing.Structured, true
	case "hybrid":
		return routing.Hybrid, true
	}
	return "", false
}

func (r *Router) fallback(log *zap.Logger, cause error) routing.Decision {
	d := routing.Default()
	d.Fallback = true
	d.Explanation = "classification failed, using unrestricted vector search"
	metrics.RouterDecisionsTotal.WithLabelValues(string(d.QueryType), "true").Inc()

	lvl := log.Warn
	if errors.Is(cause, context.Canceled) {
		lvl = log.Debug
	}
	lvl("Router fell back to default decision", zap.Error(fmt.Errorf("%w: %w", domain.ErrRoutingFallback, cause)))
	return d
}
