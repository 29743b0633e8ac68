package review

import (
	"fmt"
	"strings"
)

var classifySystem = "You are a legal contract analyst. Classify the contract clause into one of these types: " +
	strings.Join(ClauseTypes, ", ") + ", or 'other' if none fit.\n\n" +
	`Respond with JSON only: {"clause_type": "...", "confidence": "high|medium|low"}`

const reviewSystem = `You are a senior contract attorney reviewing a contract against the firm's playbook.

You receive one clause from the agreement under review, the playbook position for its clause type
(preferred, fallback and walk-away) and similar clauses from the knowledge base.

Reply with a single JSON object:
{
  "alignment": "preferred | fallback | walk_away | not_covered",
  "risk_level": "low | medium | high",
  "analysis": "how the clause compares to the playbook position",
  "key_issues": ["specific issues"],
  "redline_suggestions": ["concrete language changes toward the preferred position"],
  "sources_used": [{"id": "doc_id", "relevance": "why it matters"}]
}

preferred: the clause meets or beats the preferred position.
fallback: acceptable but weaker than preferred.
walk_away: crosses a walk-away threshold and needs escalation.
not_covered: the playbook has no position for this clause type; flag for manual review.
Quote the language that drives your assessment and cite knowledge base clauses as [doc_id].`

func reviewPrompt(c Clause, pos *Position, similar string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CONTRACT CLAUSE (classified as: %s, confidence: %s):\n%s\n\n", c.ClauseType, c.Confidence, c.Text)
	if pos == nil {
		b.WriteString("No playbook position covers this clause type. Flag it for manual review.\n\n")
	} else {
		fmt.Fprintf(&b, "FIRM PLAYBOOK POSITION (%s):\nPreferred: %s\nFallback: %s\nWalk-away: %s\n",
			pos.ClauseType, pos.Preferred, pos.Fallback, pos.WalkAway)
		if len(pos.RiskFactors) > 0 {
			fmt.Fprintf(&b, "Risk factors: %s\n", strings.Join(pos.RiskFactors, ", "))
		}
		if pos.Notes != "" {
			fmt.Fprintf(&b, "Notes: %s\n", pos.Notes)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "SIMILAR CLAUSES FROM KNOWLEDGE BASE:\n%s", similar)
	return b.String()
}
