package request

import (
	"strings"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/search/filter"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 5
	MaxTopK        = 100
)

// Request is a validated similarity query.
type Request struct {
	text    string
	topK    int
	filters filter.Expression
	mode    mode.Mode
}

// New validates search parameters. Failures are *domain.ValidationError.
func New(text string, topK int, filters filter.Expression, m mode.Mode) (Request, error) {
	if strings.TrimSpace(text) == "" {
		return Request{}, domain.NewValidationError("query", "is required")
	}
	if len(text) > MaxQueryLength {
		return Request{}, domain.NewValidationError("query", "too long (max %d chars)", MaxQueryLength)
	}
	if topK <= 0 {
		return Request{}, domain.NewValidationError("top_k", "must be positive, got %d", topK)
	}
	if topK > MaxTopK {
		return Request{}, domain.NewValidationError("top_k", "must be at most %d, got %d", MaxTopK, topK)
	}
	if !m.IsValid() {
		return Request{}, domain.NewValidationError("filter_mode", "invalid filter mode %q", m)
	}
	return Request{text: text, topK: topK, filters: filters, mode: m}, nil
}

// Text returns the query text.
func (r *Request) Text() string { return r.text }

// TopK returns the maximum number of results.
func (r *Request) TopK() int { return r.topK }

// Filters returns the conjunctive filter expression.
func (r *Request) Filters() filter.Expression { return r.filters }

// Mode returns the filter execution mode.
func (r *Request) Mode() mode.Mode { return r.mode }

// WithText returns a copy querying a different text with the same constraints.
func (r *Request) WithText(text string) Request {
	c := *r
	c.text = text
	return c
}
