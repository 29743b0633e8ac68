package legalrag

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/kailas-cloud/legalrag/internal/usecase/breach"
	"github.com/kailas-cloud/legalrag/internal/usecase/review"
)

type reviewUseCase interface {
	Review(ctx context.Context, contract string, playbook review.Positions) (*review.Report, error)
}

type breachUseCase interface {
	Analyze(ctx context.Context, params breach.Params) (*breach.Report, error)
}

// PlaybookPosition is a negotiating stance on one clause type.
type PlaybookPosition struct {
	ClauseType  string
	Preferred   string
	Fallback    string
	WalkAway    string
	RiskFactors []string
	Notes       string
	// DocID is set when the position came from an indexed playbook.
	DocID string
}

// ClauseReview is the verdict on one contract clause.
type ClauseReview struct {
	Text       string
	Heading    string
	Position   int
	ClauseType string
	Confidence string
	// Playbook is nil when no position covers the clause type.
	Playbook  *PlaybookPosition
	Alignment string
	RiskLevel string
	// Analysis is the model's reply, or raw_response with parse_error set.
	Analysis map[string]any
	// Similar lists the knowledge base clauses shown to the model.
	Similar []string
}

// CriticalIssue is a clause past its walk-away threshold.
type CriticalIssue struct {
	ClauseType string
	Heading    string
	Position   int
	Reason     string
}

// ReviewSummary aggregates the clause verdicts of a review.
type ReviewSummary struct {
	TotalClauses    int
	AlignmentCounts map[string]int
	RiskLevels      map[string]int
	// OverallRisk is high when any clause is walk_away, medium when
	// fallbacks outnumber preferred clauses and low otherwise.
	OverallRisk    string
	CriticalIssues []CriticalIssue
}

// ContractReview is a clause-by-clause playbook review of a contract.
type ContractReview struct {
	Playbook     string
	Clauses      []ClauseReview
	Summary      ReviewSummary
	ReviewStatus string
	Disclaimer   string
}

// BreachParams describes a data breach incident.
type BreachParams struct {
	DataTypes []string
	// States are two-letter codes; case and duplicates are normalized.
	States []string
	// Encryption defaults to "unknown".
	Encryption    string
	AffectedCount int
	DiscoveryDate string
	Description   string
}

// StateAnalysis is the notification analysis of one state.
type StateAnalysis struct {
	Jurisdiction          string
	NotificationRequired  bool
	Rationale             string
	Deadline              string
	NotifyIndividuals     bool
	NotifyAG              bool
	AGNotificationDetails string
	NotifyOther           []string
	ContentRequirements   []string
	SafeHarborApplies     bool
	SafeHarborDetails     string
	SpecialConsiderations []string
	Confidence            string
	Statutes              []string
	// Error is set when no statutes are indexed for the state.
	Error       string
	RawResponse string
	ParseError  bool
}

// BreachSummary is the cross-state view of a breach report.
type BreachSummary struct {
	TotalJurisdictions    int
	NotificationsRequired int
	AGNotifications       []string
	EarliestDeadline      string
	EarliestDeadlineState string
	SafeHarborApplies     bool
	SafeHarborReason      string
	DataTypes             []string
	EncryptionStatus      string
	Unavailable           []string
}

// BreachReport is a multi-state breach notification analysis.
type BreachReport struct {
	Params       BreachParams
	Summary      BreachSummary
	States       []StateAnalysis
	ReviewStatus string
	Disclaimer   string
}

// ReviewContract splits contract into clauses and reviews each against the
// playbook file at playbookPath (YAML or JSON). An empty path uses the
// playbook documents in the index.
func (c *Client) ReviewContract(ctx context.Context, contract, playbookPath string) (rep *ContractReview, err error) {
	defer c.obs.start("review", "contract_bytes", len(contract))(&err)

	var pb review.Positions
	if playbookPath != "" {
		file, lerr := review.LoadPlaybook(playbookPath)
		if lerr != nil {
			return nil, fmt.Errorf("review: %w", lerr)
		}
		pb = file
	}
	r, err := c.review.Review(ctx, contract, pb)
	if err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}
	return toContractReview(r), nil
}

// AnalyzeBreach reports the notification duties of every affected state
// from the indexed statutes. States without indexed statutes are reported
// with Error set and listed in Summary.Unavailable.
func (c *Client) AnalyzeBreach(ctx context.Context, p BreachParams) (rep *BreachReport, err error) {
	defer c.obs.start("breach", "states", len(p.States))(&err)

	r, err := c.breach.Analyze(ctx, breach.Params(p))
	if err != nil {
		return nil, fmt.Errorf("breach: %w", err)
	}
	states := make([]StateAnalysis, len(r.States))
	for i := range r.States {
		states[i] = StateAnalysis(r.States[i])
	}
	return &BreachReport{
		Params:       BreachParams(r.Params),
		Summary:      BreachSummary(r.Summary),
		States:       states,
		ReviewStatus: r.ReviewStatus,
		Disclaimer:   r.Disclaimer,
	}, nil
}

func toContractReview(r *review.Report) *ContractReview {
	out := &ContractReview{
		Playbook:     r.Playbook,
		Clauses:      make([]ClauseReview, len(r.Clauses)),
		ReviewStatus: r.ReviewStatus,
		Disclaimer:   r.Disclaimer,
		Summary: ReviewSummary{
			TotalClauses:    r.Summary.TotalClauses,
			AlignmentCounts: maps.Clone(r.Summary.AlignmentCounts),
			RiskLevels:      maps.Clone(r.Summary.RiskLevels),
			OverallRisk:     r.Summary.OverallRisk,
			CriticalIssues:  make([]CriticalIssue, len(r.Summary.CriticalIssues)),
		},
	}
	for i, ci := range r.Summary.CriticalIssues {
		out.Summary.CriticalIssues[i] = CriticalIssue(ci)
	}
	for i := range r.Clauses {
		cr := &r.Clauses[i]
		out.Clauses[i] = ClauseReview{
			Text:       cr.Text,
			Heading:    cr.Heading,
			Position:   cr.Chunk.Position,
			ClauseType: cr.ClauseType,
			Confidence: cr.Confidence,
			Alignment:  cr.Alignment,
			RiskLevel:  cr.RiskLevel,
			Analysis:   cr.Analysis,
			Similar:    slices.Clone(cr.Similar),
		}
		if p := cr.Position; p != nil {
			out.Clauses[i].Playbook = &PlaybookPosition{
				ClauseType:  p.ClauseType,
				Preferred:   p.Preferred,
				Fallback:    p.Fallback,
				WalkAway:    p.WalkAway,
				RiskFactors: slices.Clone(p.RiskFactors),
				Notes:       p.Notes,
				DocID:       p.DocID,
			}
		}
	}
	return out
}
