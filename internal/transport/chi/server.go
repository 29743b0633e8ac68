package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/routing"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
	"github.com/kailas-cloud/legalrag/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/legalrag/internal/usecase/health"
	"github.com/kailas-cloud/legalrag/internal/usecase/pipeline"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Pipeline is the retrieval pipeline served over HTTP.
type Pipeline interface {
	Retrieve(ctx context.Context, req pipeline.Request) (*pipeline.Retrieval, error)
	Answer(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	DefaultStrategy() string
}

// Server holds the HTTP handlers.
type Server struct {
	pipeline      Pipeline
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(p Pipeline, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline:      p,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Answer handles POST /v1/answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	topK, err := topKParam(req.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.pipeline.Answer(ctx, pipeline.Request{
		Query:     req.Query,
		TopK:      topK,
		Filters:   req.Filters,
		Strategy:  req.Strategy,
		UseRouter: req.UseRouter,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sources := make([]SourceItem, len(res.Sources))
	for i, src := range res.Sources {
		sources[i] = SourceItem(src)
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, AnswerResponse{
		Answer:           res.Answer,
		Analysis:         res.Analysis,
		Sources:          sources,
		Strategy:         res.Strategy,
		Model:            res.Model,
		Routing:          routingToAPI(res.Routing),
		ReviewStatus:     res.ReviewStatus,
		Disclaimer:       res.Disclaimer,
		ContextTruncated: res.Truncated,
	})
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	topK, err := topKParam(req.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.search(w, r, pipeline.Request{
		Query:     req.Query,
		TopK:      topK,
		Filters:   req.Filters,
		UseRouter: req.UseRouter,
	})
}

// SearchQuery handles GET /v1/search?q=&top_k=&use_router=.
func (s *Server) SearchQuery(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &params.Q); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", query, &params.TopK); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter top_k: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "use_router", query, &params.UseRouter); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter use_router: "+err.Error())
		return
	}

	topK, err := topKParam(params.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.search(w, r, pipeline.Request{
		Query:     params.Q,
		TopK:      topK,
		UseRouter: params.UseRouter != nil && *params.UseRouter,
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	ret, err := s.pipeline.Retrieve(ctx, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	items := make([]SearchItem, len(ret.Results))
	for i := range ret.Results {
		items[i] = searchItem(&ret.Results[i])
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Items:            items,
		Total:            len(items),
		Routing:          routingToAPI(ret.Routing),
		ContextTruncated: ret.Truncated,
	})
}

// Strategies handles GET /v1/strategies.
func (s *Server) Strategies(w http.ResponseWriter, _ *http.Request) {
	all := generation.All()
	items := make([]StrategyItem, len(all))
	for i, st := range all {
		items[i] = StrategyItem{Name: st.Name, Description: st.Description}
	}
	writeJSON(w, http.StatusOK, StrategiesResponse{Default: s.pipeline.DefaultStrategy(), Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// setEmbeddingHeaders reports the embedding tokens a request consumed.
func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func routingToAPI(d *routing.Decision) *RoutingInfo {
	if d == nil {
		return nil
	}
	filters := d.Filters.Map()
	if filters == nil {
		filters = map[string]string{}
	}
	return &RoutingInfo{
		QueryType:      string(d.QueryType),
		Filters:        filters,
		Strategy:       string(d.Strategy),
		RewrittenQuery: d.RewrittenQuery,
		Explanation:    d.Explanation,
		Fallback:       d.Fallback,
	}
}

func searchItem(r *result.Result) SearchItem {
	d := r.Document()
	return SearchItem{
		ID:       d.ID(),
		Title:    d.Title(),
		Source:   string(d.Source()),
		DocType:  string(d.DocType()),
		Score:    r.Score(),
		Text:     d.Text(),
		Metadata: d.Metadata(),
	}
}

// topKParam maps an absent top_k to 0 (pipeline default) and rejects
// explicit non-positive values.
func topKParam(p *int) (int, error) {
	if p == nil {
		return 0, nil
	}
	if *p <= 0 {
		return 0, domain.NewValidationError("top_k", "must be positive, got %d", *p)
	}
	return *p, nil
}
