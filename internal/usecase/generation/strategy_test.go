package generation

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
)

func TestNames(t *testing.T) {
	want := []string{"basic", "breach_response", "few_shot", "knowledge_base_qa", "playbook_review", "structured"}
	if got := Names(); !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	if _, err := Get(Default); err != nil {
		t.Fatalf("default strategy missing: %v", err)
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := Get("creative")
	if !errors.Is(err, domain.ErrUnknownStrategy) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected unknown strategy validation error, got %v", err)
	}
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "strategy" {
		t.Errorf("expected field strategy, got %+v", ve)
	}
}

func TestStrategies_GroundingContract(t *testing.T) {
	const query = "Is a 90 day notice period for termination reasonable?"
	context := "[term-003] Termination for convenience\nEither party may terminate on 30 days notice."

	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			msgs := s.Build(query, context)
			if len(msgs) < 2 || msgs[0].Role != domain.RoleSystem {
				t.Fatalf("expected a system message first, got %+v", msgs)
			}
			if last := msgs[len(msgs)-1]; last.Role != domain.RoleUser || !strings.Contains(last.Content, query) {
				t.Errorf("last message must be the user query: %+v", last)
			}
			all := joinContent(msgs)
			if !strings.Contains(all, "term-003") {
				t.Error("retrieved context not included")
			}
			if !strings.Contains(msgs[0].Content, "insufficient information") {
				t.Error("system prompt must allow declining")
			}
			if !strings.Contains(msgs[0].Content, "square brackets") {
				t.Error("system prompt must ask for [doc_id] citations")
			}
		})
	}
}

func TestFewShot_HasWorkedExample(t *testing.T) {
	msgs := buildFewShot("q", "ctx")
	if len(msgs) != 4 || msgs[2].Role != domain.RoleAssistant {
		t.Fatalf("unexpected shape: %d messages", len(msgs))
	}
}

func joinContent(msgs []domain.Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

func TestFormatContext(t *testing.T) {
	d, err := document.New("statute-ny", document.SourceStatutes, document.TypeStatute, "N.Y. Gen. Bus. Law 899-aa",
		"Notice must be made in the most expedient time possible.",
		map[string]string{"citation": "N.Y. Gen. Bus. Law § 899-aa", "jurisdiction": "NY", "notes": "Also notify the AG."})
	if err != nil {
		t.Fatal(err)
	}
	out := FormatContext([]result.Result{result.New(d, 0.91234)})

	for _, want := range []string{
		"[statute-ny] N.Y. Gen. Bus. Law 899-aa",
		"Similarity: 0.912",
		"Jurisdiction: NY",
		"Citation: N.Y. Gen. Bus. Law § 899-aa",
		"Attorney notes: Also notify the AG.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatContext missing %q in:\n%s", want, out)
		}
	}
	if got := FormatContext(nil); !strings.Contains(got, "no documents") {
		t.Errorf("empty context = %q", got)
	}
}
