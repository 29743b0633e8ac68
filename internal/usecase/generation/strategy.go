// Package generation holds the closed set of named prompt strategies.
// A strategy is a pure function from a query and its retrieved context to
// the chat messages sent to the generation capability.
package generation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
)

// Strategy names.
const (
	Basic           = "basic"
	Structured      = "structured"
	FewShot         = "few_shot"
	PlaybookReview  = "playbook_review"
	BreachResponse  = "breach_response"
	KnowledgeBaseQA = "knowledge_base_qa"

	Default = FewShot
)

// Builder renders the messages for one generation call.
type Builder func(query, context string) []domain.Message

// Strategy is a registered prompt builder.
type Strategy struct {
	Name        string
	Description string
	Build       Builder
}

var registry = map[string]Strategy{
	Basic: {
		Name:        Basic,
		Description: "Minimal instructions; baseline for comparisons",
		Build:       buildBasic,
	},
	Structured: {
		Name:        Structured,
		Description: "Senior analyst persona with a fixed JSON risk report",
		Build:       buildStructured,
	},
	FewShot: {
		Name:        FewShot,
		Description: "Structured report preceded by one worked example",
		Build:       buildFewShot,
	},
	PlaybookReview: {
		Name:        PlaybookReview,
		Description: "Compares a clause against the firm's playbook positions",
		Build:       buildPlaybookReview,
	},
	BreachResponse: {
		Name:        BreachResponse,
		Description: "Per-jurisdiction breach notification obligations from statutes",
		Build:       buildBreachResponse,
	},
	KnowledgeBaseQA: {
		Name:        KnowledgeBaseQA,
		Description: "Question answering grounded only in retrieved documents",
		Build:       buildKnowledgeBaseQA,
	},
}

// Get returns the named strategy. Unknown names are validation errors that
// also match domain.ErrUnknownStrategy.
func Get(name string) (Strategy, error) {
	s, ok := registry[name]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %w", &domain.ValidationError{
			Field:  "strategy",
			Reason: fmt.Sprintf("%q is not one of %s", name, strings.Join(Names(), ", ")),
		}, domain.ErrUnknownStrategy)
	}
	return s, nil
}

// Names lists registered strategies in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// All returns every registered strategy in name order.
func All() []Strategy {
	names := Names()
	out := make([]Strategy, len(names))
	for i, n := range names {
		out[i] = registry[n]
	}
	return out
}

// FormatContext renders retrieved documents for a prompt. Each block is
// headed by the doc_id in brackets, which is also the citation format.
func FormatContext(results []result.Result) string {
	if len(results) == 0 {
		return "(no documents were retrieved)"
	}
	var b strings.Builder
	for i := range results {
		d := results[i].Document()
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s\n", d.ID(), d.Title())
		fmt.Fprintf(&b, "Source: %s | Type: %s | Similarity: %.3f\n", d.Source(), d.DocType(), results[i].Score())
		if attrs := attributes(&d); attrs != "" {
			b.WriteString(attrs)
			b.WriteString("\n")
		}
		b.WriteString(d.Text())
		b.WriteString("\n")
		if notes := d.Meta(document.KeyNotes); notes != "" {
			fmt.Fprintf(&b, "Attorney notes: %s\n", notes)
		}
	}
	return b.String()
}

var attributeKeys = []struct{ key, label string }{
	{document.KeyClauseType, "Clause type"},
	{document.KeyRiskLevel, "Risk level"},
	{document.KeyPosition, "Position"},
	{document.KeyJurisdiction, "Jurisdiction"},
	{document.KeyCitation, "Citation"},
	{document.KeyEffectiveDate, "Effective"},
	{document.KeyCompany, "Company"},
}

func attributes(d *document.Document) string {
	var parts []string
	for _, a := range attributeKeys {
		if v := d.Meta(a.key); v != "" {
			parts = append(parts, a.label+": "+v)
		}
	}
	return strings.Join(parts, " | ")
}
