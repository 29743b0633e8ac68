package review

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/llmjson"
)

// ClauseOther is assigned when no known type fits or classification fails.
const ClauseOther = "other"

// ClauseTypes is the closed set a chunk is classified into, besides ClauseOther.
var ClauseTypes = []string{
	"limitation_of_liability",
	"indemnification",
	"data_protection",
	"termination",
	"ip_ownership",
	"confidentiality",
	"confidentiality_scope",
	"confidentiality_exclusions",
	"confidentiality_duration",
	"governing_law",
	"warranty",
	"service_levels",
	"insurance",
	"non_solicitation",
	"permitted_disclosures",
	"return_or_destruction",
	"remedies",
	"force_majeure",
	"assignment",
	"notices",
	"entire_agreement",
	"amendments",
}

// Confidence levels of a classification.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// maxClassifyChars bounds the clause text sent for classification.
const maxClassifyChars = 2000

// Clause is a classified chunk.
type Clause struct {
	Chunk
	ClauseType string `json:"clause_type"`
	Confidence string `json:"confidence"`
}

type classification struct {
	ClauseType string `json:"clause_type"`
	Confidence string `json:"confidence"`
}

// classify labels one chunk. It never fails: a provider or parse error
// yields ClauseOther with low confidence.
func (r *Reviewer) classify(ctx context.Context, log *zap.Logger, c Chunk) Clause {
	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: classifySystem},
		{Role: domain.RoleUser, Content: clip(c.Text, maxClassifyChars)},
	}
	out := Clause{Chunk: c, ClauseType: ClauseOther, Confidence: ConfidenceLow}

	raw, err := r.chat.Chat(ctx, msgs, domain.ChatOptions{Temperature: 0, MaxTokens: 200, JSON: true})
	if err != nil {
		log.Warn("Clause classification failed", zap.Int("position", c.Position), zap.Error(err))
		return out
	}
	var got classification
	if err := llmjson.Decode(raw, &got); err != nil {
		log.Warn("Clause classification unparseable", zap.Int("position", c.Position), zap.Error(err))
		return out
	}
	if t := strings.TrimSpace(got.ClauseType); slices.Contains(ClauseTypes, t) {
		out.ClauseType = t
	}
	switch conf := strings.ToLower(strings.TrimSpace(got.Confidence)); conf {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		out.Confidence = conf
	}
	return out
}

// clip cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
