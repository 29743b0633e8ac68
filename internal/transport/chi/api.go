package chi

// ErrorCode is a machine-readable error kind.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeUnknownStrategy  ErrorCode = "unknown_strategy"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeProviderError    ErrorCode = "provider_error"
	CodeIndexCorrupt     ErrorCode = "index_corrupt"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AnswerRequest is the body of POST /v1/answer.
type AnswerRequest struct {
	Query     string            `json:"query"`
	TopK      *int              `json:"top_k,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	Strategy  string            `json:"strategy,omitempty"`
	UseRouter bool              `json:"use_router,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query     string            `json:"query"`
	TopK      *int              `json:"top_k,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	UseRouter bool              `json:"use_router,omitempty"`
}

// SearchParams are the query parameters of GET /v1/search.
type SearchParams struct {
	Q         string
	TopK      *int
	UseRouter *bool
}

// SourceItem is a document an answer was grounded on.
type SourceItem struct {
	ID        string  `json:"doc_id"`
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	DocType   string  `json:"doc_type"`
	Score     float64 `json:"score"`
	RiskLevel string  `json:"risk_level,omitempty"`
	Citation  string  `json:"citation,omitempty"`
}

// RoutingInfo describes how a query was routed.
type RoutingInfo struct {
	QueryType      string            `json:"query_type"`
	Filters        map[string]string `json:"filters"`
	Strategy       string            `json:"search_strategy"`
	RewrittenQuery string            `json:"rewritten_query,omitempty"`
	Explanation    string            `json:"explanation,omitempty"`
	Fallback       bool              `json:"fallback"`
}

// AnswerResponse is a generated answer with its sources.
type AnswerResponse struct {
	Answer           string         `json:"answer"`
	Analysis         map[string]any `json:"analysis"`
	Sources          []SourceItem   `json:"sources"`
	Strategy         string         `json:"strategy"`
	Model            string         `json:"model"`
	Routing          *RoutingInfo   `json:"routing,omitempty"`
	ReviewStatus     string         `json:"review_status"`
	Disclaimer       string         `json:"disclaimer"`
	ContextTruncated bool           `json:"context_truncated"`
}

// SearchItem is one retrieved document.
type SearchItem struct {
	ID       string            `json:"doc_id"`
	Title    string            `json:"title"`
	Source   string            `json:"source"`
	DocType  string            `json:"doc_type"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResponse lists retrieved documents, best first.
type SearchResponse struct {
	Items            []SearchItem `json:"items"`
	Total            int          `json:"total"`
	Routing          *RoutingInfo `json:"routing,omitempty"`
	ContextTruncated bool         `json:"context_truncated"`
}

// StrategyItem describes a prompt strategy.
type StrategyItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StrategiesResponse lists prompt strategies.
type StrategiesResponse struct {
	Default string         `json:"default"`
	Items   []StrategyItem `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
