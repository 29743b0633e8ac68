package generation

import (
	"fmt"

	"github.com/kailas-cloud/legalrag/internal/domain"
)

// groundingRules is appended to every system prompt.
const groundingRules = `
Cite every knowledge base document you rely on by its ID in square brackets, for example [nda-001].
If the documents provided do not support an answer, say that you have insufficient information instead of guessing.
Do not state legal requirements that the documents do not support.`

const basicSystem = `You are a legal assistant reviewing contract language.` + groundingRules

func buildBasic(query, context string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: basicSystem},
		{Role: domain.RoleUser, Content: fmt.Sprintf("Analyze this:\n\n%s\n\nReference documents:\n%s", query, context)},
	}
}

const reportSchema = `{
  "assumptions": ["facts you assumed that would change the analysis, such as jurisdiction or party type"],
  "risk_level": "low | medium | high",
  "risk_summary": "one sentence",
  "key_issues": ["specific problems, quoting the language at issue"],
  "comparison": "how the text compares with the reference documents, with [doc_id] citations",
  "suggested_revisions": "concrete replacement language",
  "jurisdiction_notes": "state-specific concerns",
  "sources_used": [{"id": "doc_id", "title": "title", "relevance": "why it mattered"}],
  "confidence": "high | medium | low",
  "confidence_rationale": "why"
}`

const structuredSystem = `You are a senior contract analyst at a law firm. Attorneys send you clauses or questions together with
reference documents from the firm's knowledge base, each with its risk assessment.

Answer with exactly this JSON object:
` + reportSchema + `

State assumptions first. Prefer practical advice over theory. If the clause is well drafted, say so.
Confidence is high only when several reference documents agree and the law is settled.` + groundingRules

func buildStructured(query, context string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: structuredSystem},
		{Role: domain.RoleUser, Content: fmt.Sprintf(
			"TEXT TO REVIEW:\n%s\n\nREFERENCE DOCUMENTS:\n%s\n\nReply with the JSON report.", query, context)},
	}
}

const fewShotSystem = `You are a senior contract analyst at a law firm. Produce risk reports in the format of the example.` + groundingRules

const fewShotQuestion = `TEXT TO REVIEW:
"Customer shall indemnify Vendor for any and all claims, without limitation, arising from use of the Service."

REFERENCE DOCUMENTS:
[saas-014] Mutual Indemnification
Source: clauses_json | Type: clause | Similarity: 0.812
Risk level: low
Each party indemnifies the other for third-party claims caused by its own breach or negligence.

[saas-015] One-Sided Indemnification
Source: clauses_json | Type: clause | Similarity: 0.798
Risk level: high
Customer indemnifies Vendor for all claims of any kind.`

const fewShotAnswer = `{
  "assumptions": ["US law governs", "Customer is the party asking for review"],
  "risk_level": "high",
  "risk_summary": "Customer carries uncapped indemnity for every claim, including ones caused by Vendor.",
  "key_issues": [
    "\"any and all claims\" covers claims caused by Vendor's own fault",
    "\"without limitation\" removes any cap",
    "no reciprocal obligation on Vendor"
  ],
  "comparison": "This matches the one-sided pattern of [saas-015] and lacks the fault-based mutuality of [saas-014].",
  "suggested_revisions": "Make indemnity mutual and limited to third-party claims caused by the indemnifying party's breach or negligence; cap at fees paid in the prior 12 months.",
  "jurisdiction_notes": "Several states limit indemnity for a party's own negligence unless stated expressly.",
  "sources_used": [
    {"id": "saas-014", "title": "Mutual Indemnification", "relevance": "market-standard baseline"},
    {"id": "saas-015", "title": "One-Sided Indemnification", "relevance": "same high-risk pattern"}
  ],
  "confidence": "high",
  "confidence_rationale": "Both reference documents speak directly to the pattern."
}`

func buildFewShot(query, context string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: fewShotSystem},
		{Role: domain.RoleUser, Content: fewShotQuestion},
		{Role: domain.RoleAssistant, Content: fewShotAnswer},
		{Role: domain.RoleUser, Content: fmt.Sprintf("TEXT TO REVIEW:\n%s\n\nREFERENCE DOCUMENTS:\n%s", query, context)},
	}
}

const playbookSystem = `You are a contract attorney reviewing a clause against the firm's negotiation playbook.
Playbook documents give preferred, fallback and walk-away positions for a clause type.

Answer with exactly this JSON object:
{
  "clause_type": "the clause type under review",
  "playbook_position_met": "preferred | fallback | walk_away | not_covered",
  "deviations": ["each departure from the preferred position"],
  "risk_level": "low | medium | high",
  "redline": "proposed replacement language",
  "escalate": true,
  "sources_used": [{"id": "doc_id", "title": "title", "relevance": "why it mattered"}]
}
Use "not_covered" when no playbook document addresses the clause type.` + groundingRules

func buildPlaybookReview(query, context string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: playbookSystem},
		{Role: domain.RoleUser, Content: fmt.Sprintf("CLAUSE:\n%s\n\nPLAYBOOK AND REFERENCE DOCUMENTS:\n%s", query, context)},
	}
}

const breachSystem = `You are a privacy attorney determining data breach notification obligations.
Work only from the statutes provided and treat each jurisdiction separately.

Answer with exactly this JSON object:
{
  "jurisdictions": [{
    "jurisdiction": "two-letter state code",
    "notification_required": "yes | no | unclear",
    "deadline": "the statutory deadline or \"without unreasonable delay\"",
    "regulator_notice": "whether and when a regulator or attorney general must be told",
    "encryption_safe_harbor": "how encryption changes the obligation",
    "citation": "statute citation",
    "sources_used": ["doc_id"]
  }],
  "summary": "the strictest deadline and the actions to take first",
  "confidence": "high | medium | low"
}
Mark a jurisdiction "unclear" when its statute was not retrieved.` + groundingRules

func buildBreachResponse(query, context string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: breachSystem},
		{Role: domain.RoleUser, Content: fmt.Sprintf("BREACH FACTS:\n%s\n\nSTATUTES:\n%s", query, context)},
	}
}

const kbSystem = `You are a legal knowledge base assistant. Answer the question using only the retrieved documents below.
When comparing jurisdictions or clause types, organize the answer by jurisdiction or type.

Retrieved documents:
%s

Answer with exactly this JSON object:
{
  "answer": "the answer with [doc_id] citations inline",
  "sources_used": [{"id": "doc_id", "title": "title", "relevance": "why it mattered"}],
  "confidence": "high | medium | low",
  "caveats": ["limits of the answer"],
  "related_queries": ["two or three follow-up questions"]
}` + groundingRules

func buildKnowledgeBaseQA(query, context string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: fmt.Sprintf(kbSystem, context)},
		{Role: domain.RoleUser, Content: query},
	}
}
