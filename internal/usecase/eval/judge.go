package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/llmjson"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
)

// Score bounds for each judged dimension.
const (
	MinScore = 1
	MaxScore = 5
)

// Scores is one judged answer.
type Scores struct {
	RiskAccuracy  float64 `json:"risk_accuracy"`
	IssueCoverage float64 `json:"issue_coverage"`
	Actionability float64 `json:"actionability"`
	Grounding     float64 `json:"grounding"`
	Total         float64 `json:"total"`
	Notes         string  `json:"notes,omitempty"`
}

// Judge grades a generated answer against a case rubric and the
// document context the answer was generated from.
type Judge interface {
	Score(ctx context.Context, c Case, answer, retrieved string) (Scores, error)
}

// LLMJudge asks a chat model to grade answers.
type LLMJudge struct {
	chat   domain.Chatter
	policy retry.Policy
}

// NewLLMJudge creates a judge. The model is called at temperature 0.
func NewLLMJudge(chat domain.Chatter, policy retry.Policy) *LLMJudge {
	return &LLMJudge{chat: chat, policy: policy}
}

const judgeSystem = `You grade draft legal analyses written for attorneys. ` +
	`Score each dimension from 1 (poor) to 5 (excellent) and reply with a single JSON object:
{"risk_accuracy": n, "issue_coverage": n, "actionability": n, "grounding": n, "notes": "one or two sentences"}

risk_accuracy: the stated risk level matches the expected one.
issue_coverage: every required issue is identified.
actionability: the recommendations are concrete enough to act on.
grounding: every claim is supported by the RETRIEVED CONTEXT and nothing is invented.
Fractional scores are allowed.`

// Score implements Judge. Every dimension must be present in the reply.
// Scores are clamped to [MinScore, MaxScore] and the total is recomputed.
func (j *LLMJudge) Score(ctx context.Context, c Case, answer, retrieved string) (Scores, error) {
	risk := c.Rubric.ExpectedRiskLevel
	if risk == "" {
		risk = "not specified"
	}
	issues := "none listed"
	if len(c.Rubric.MustIdentify) > 0 {
		issues = "- " + strings.Join(c.Rubric.MustIdentify, "\n- ")
	}
	if strings.TrimSpace(retrieved) == "" {
		retrieved = "(no documents were retrieved)"
	}
	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: judgeSystem},
		{Role: domain.RoleUser, Content: fmt.Sprintf(
			"QUERY:\n%s\n\nEXPECTED RISK LEVEL: %s\n\nISSUES THAT MUST BE IDENTIFIED:\n%s\n\n"+
				"RETRIEVED CONTEXT:\n%s\n\nANALYSIS TO GRADE:\n%s",
			c.Query, risk, issues, retrieved, answer)},
	}

	raw, err := retry.Value(ctx, j.policy, "judge", func(ctx context.Context) (string, error) {
		return j.chat.Chat(ctx, msgs, domain.ChatOptions{Temperature: 0, MaxTokens: 400, JSON: true})
	})
	if err != nil {
		return Scores{}, err //nolint:wrapcheck // ProviderError carries op context
	}
	var reply judgeReply
	if err := llmjson.Decode(raw, &reply); err != nil {
		return Scores{}, fmt.Errorf("decode judge reply: %w", err)
	}
	return reply.scores()
}

// judgeReply keeps absent dimensions distinguishable from zero.
type judgeReply struct {
	RiskAccuracy  *float64 `json:"risk_accuracy"`
	IssueCoverage *float64 `json:"issue_coverage"`
	Actionability *float64 `json:"actionability"`
	Grounding     *float64 `json:"grounding"`
	Notes         string   `json:"notes"`
}

func (r judgeReply) scores() (Scores, error) {
	dims := []struct {
		name string
		v    *float64
	}{
		{"risk_accuracy", r.RiskAccuracy},
		{"issue_coverage", r.IssueCoverage},
		{"actionability", r.Actionability},
		{"grounding", r.Grounding},
	}
	var missing []string
	for _, d := range dims {
		if d.v == nil {
			missing = append(missing, d.name)
		}
	}
	if len(missing) > 0 {
		return Scores{}, fmt.Errorf("judge reply missing %s", strings.Join(missing, ", "))
	}
	s := Scores{
		RiskAccuracy:  clamp(*r.RiskAccuracy),
		IssueCoverage: clamp(*r.IssueCoverage),
		Actionability: clamp(*r.Actionability),
		Grounding:     clamp(*r.Grounding),
		Notes:         r.Notes,
	}
	s.Total = s.RiskAccuracy + s.IssueCoverage + s.Actionability + s.Grounding
	return s, nil
}

func clamp(v float64) float64 {
	return min(max(v, MinScore), MaxScore)
}
