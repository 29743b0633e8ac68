// Package routing holds the query classification model.
package routing

import (
	"github.com/kailas-cloud/legalrag/internal/domain/search/filter"
)

// QueryType is the classified intent of a query.
type QueryType string

// Query types.
const (
	ContractReview QueryType = "contract_review"
	BreachResponse QueryType = "breach_response"
	GeneralLegal   QueryType = "general_legal"
	CrossCutting   QueryType = "cross_cutting"
)

// IsValid reports whether t is a known query type.
func (t QueryType) IsValid() bool {
	switch t {
	case ContractReview, BreachResponse, GeneralLegal, CrossCutting:
		return true
	}
	return false
}

// Strategy is how the corpus is searched for a routed query.
type Strategy string

// Search strategies.
const (
	// Vector searches the whole index and post-filters.
	Vector Strategy = "vector"
	// Structured scans only the documents matching the filters.
	Structured Strategy = "structured"
	// Hybrid searches with filters and also with the rewritten query.
	Hybrid Strategy = "hybrid"
)

// IsValid reports whether s is a known strategy.
func (s Strategy) IsValid() bool {
	return s == Vector || s == Structured || s == Hybrid
}

// Decision is the router output.
type Decision struct {
	QueryType      QueryType         `json:"query_type"`
	Filters        filter.Expression `json:"filters"`
	Strategy       Strategy          `json:"strategy"`
	RewrittenQuery string            `json:"rewritten_query,omitempty"`
	Explanation    string            `json:"explanation,omitempty"`
	// Fallback is set when classification failed and defaults were used.
	Fallback bool `json:"fallback"`
}

// Default is the fail-open decision: unrestricted vector search.
func Default() Decision {
	return Decision{QueryType: GeneralLegal, Strategy: Vector}
}

// Defaults returns the filters and strategy implied by a query type.
func Defaults(t QueryType) (filter.Expression, Strategy) {
	switch t {
	case ContractReview:
		e, _ := filter.NewExpression(filter.MustMatch("doc_type", "clause"))
		return e, Hybrid
	case BreachResponse:
		e, _ := filter.NewExpression(filter.MustMatch("source", "statutes"))
		return e, Hybrid
	default:
		return filter.Expression{}, Vector
	}
}
