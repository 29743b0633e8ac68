package review

// Summary aggregates the clause verdicts of a review.
type Summary struct {
	TotalClauses    int             `json:"total_clauses"`
	AlignmentCounts map[string]int  `json:"alignment_counts"`
	RiskLevels      map[string]int  `json:"risk_levels"`
	OverallRisk     string          `json:"overall_risk"`
	CriticalIssues  []CriticalIssue `json:"critical_issues"`
}

// CriticalIssue is a clause past a walk-away threshold.
type CriticalIssue struct {
	ClauseType string `json:"clause_type"`
	Heading    string `json:"heading"`
	Position   int    `json:"position"`
	Reason     string `json:"reason"`
}

const walkAwayReason = "Crosses walk-away threshold"

// summarize rates the contract high when any clause is walk-away, medium
// when fallbacks outnumber preferred clauses and low otherwise.
func summarize(reviews []ClauseReview) Summary {
	s := Summary{
		TotalClauses: len(reviews),
		AlignmentCounts: map[string]int{
			AlignPreferred: 0, AlignFallback: 0, AlignWalkAway: 0, AlignNotCovered: 0,
		},
		RiskLevels:     map[string]int{"low": 0, "medium": 0, "high": 0},
		CriticalIssues: []CriticalIssue{},
	}
	for i := range reviews {
		cr := &reviews[i]
		s.AlignmentCounts[cr.Alignment]++
		s.RiskLevels[cr.RiskLevel]++
		if cr.Alignment != AlignWalkAway {
			continue
		}
		reason, _ := cr.Analysis["analysis"].(string)
		if reason == "" {
			reason = walkAwayReason
		}
		s.CriticalIssues = append(s.CriticalIssues, CriticalIssue{
			ClauseType: cr.ClauseType,
			Heading:    cr.Heading,
			Position:   cr.Clause.Position,
			Reason:     reason,
		})
	}

	switch {
	case s.AlignmentCounts[AlignWalkAway] > 0:
		s.OverallRisk = "high"
	case s.AlignmentCounts[AlignFallback] > s.AlignmentCounts[AlignPreferred]:
		s.OverallRisk = "medium"
	default:
		s.OverallRisk = "low"
	}
	return s
}
