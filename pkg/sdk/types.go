package legalrag

// Document is one retrievable legal text fragment.
//
// Source is one of "clauses_json", "cuad", "common_paper", "statutes",
// "opp115", "open_terms_archive", "legalbench"; DocType one of "clause",
// "statute", "playbook", "privacy_policy", "terms_of_service". Metadata keys
// depend on DocType; risk_level, when set, is low, medium or high.
type Document struct {
	ID       string
	Source   string
	DocType  string
	Title    string
	Text     string
	Metadata map[string]string
}

// SearchResult is a single search hit, best first.
type SearchResult struct {
	Document
	Score float64
}

// Routing is how the router classified a query.
type Routing struct {
	QueryType      string
	SearchStrategy string
	Filters        map[string]string
	RewrittenQuery string
	Explanation    string
	// Fallback is set when classification failed and the default route was used.
	Fallback bool
}

// Source is a document an answer was grounded on.
type Source struct {
	ID        string
	Title     string
	Source    string
	DocType   string
	Score     float64
	RiskLevel string
	Citation  string
}

// Answer is a generated, cited draft. It always carries a review disclaimer
// and a pending review status.
type Answer struct {
	Text string
	// Analysis is the structured reply when the strategy produced JSON.
	Analysis     map[string]any
	Sources      []Source
	Strategy     string
	Model        string
	Routing      *Routing
	ReviewStatus string
	Disclaimer   string
	// Truncated is set when the best document alone exceeded the context budget.
	Truncated bool
}

// StrategyInfo describes a generation strategy.
type StrategyInfo struct {
	Name        string
	Description string
}
