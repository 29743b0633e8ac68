package router

import (
	"fmt"

	"github.com/kailas-cloud/legalrag/internal/domain"
)

const systemPrompt = "You classify questions for a legal knowledge base. Reply with a single JSON object and nothing else."

const classifyPrompt = `The knowledge base holds:
- clause: contract clauses (NDA, employment, SaaS, services) with risk notes; sources clauses_json, cuad, common_paper
- statute: US state data breach notification laws; source statutes
- playbook: the firm's preferred, fallback and walk-away negotiation positions; source common_paper
- privacy_policy, terms_of_service: published policies; sources opp115, open_terms_archive

Question: %q

Return:
{
  "query_type": "contract_review | breach_response | general_legal | cross_cutting",
  "filters": {
    "source": "one source or null",
    "doc_type": "clause | statute | playbook | privacy_policy | terms_of_service | null",
    "jurisdiction": "two-letter US state code or null",
    "clause_type": "clause type or null"
  },
  "search_strategy": "semantic | filtered | hybrid",
  "rewritten_query": "a retrieval-friendly rewrite, or null",
  "explanation": "one sentence"
}

Rules:
- A named state or jurisdiction sets the jurisdiction filter.
- Breach notification questions are breach_response.
- Questions about contract terms or negotiation positions are contract_review.
- Questions spanning several areas are cross_cutting with no source filter.
- semantic is plain similarity search, filtered restricts to exact metadata, hybrid does both.
- Use JSON null, not the string "null", for filters that do not apply.`

func messages(query string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf(classifyPrompt, query)},
	}
}
