package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/search/request"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
	"github.com/kailas-cloud/legalrag/internal/usecase/pipeline"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
)

// stubStore returns every document matching the filters, in insertion order.
type stubStore struct {
	mu   sync.Mutex
	docs []document.Document
	reqs []request.Request
}

func (s *stubStore) Search(_ context.Context, req request.Request) ([]result.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	f := req.Filters()
	var out []result.Result
	for i := range s.docs {
		if f.Matches(&s.docs[i]) {
			out = append(out, result.New(s.docs[i], 0.9-float64(len(out))*0.1))
		}
	}
	return out[:min(len(out), req.TopK())], nil
}

func (s *stubStore) filtersUsed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.reqs))
	for i := range s.reqs {
		out[i] = s.reqs[i].Filters().String()
	}
	return out
}

// contractChatter classifies by keyword and grades by the classified type.
type contractChatter struct {
	mu        sync.Mutex
	reviewErr error
	prompts   []string
}

func (c *contractChatter) Chat(_ context.Context, msgs []domain.Message, _ domain.ChatOptions) (string, error) {
	user := msgs[len(msgs)-1].Content
	if msgs[0].Content == classifySystem {
		switch {
		case strings.Contains(user, "Liability"):
			return `{"clause_type": "limitation_of_liability", "confidence": "high"}`, nil
		case strings.Contains(user, "governed"):
			return `{"clause_type": "governing_law", "confidence": "Medium"}`, nil
		case strings.Contains(user, "Assignment"):
			return `{"clause_type": "novation", "confidence": "high"}`, nil
		}
		return "I am not sure.", nil
	}

	c.mu.Lock()
	c.prompts = append(c.prompts, user)
	c.mu.Unlock()
	if c.reviewErr != nil {
		return "", c.reviewErr
	}
	switch {
	case strings.Contains(user, "classified as: limitation_of_liability"):
		return `{"alignment": "walk_away", "risk_level": "high", "analysis": "A one month cap is below the walk-away floor."}`, nil
	case strings.Contains(user, "classified as: governing_law"):
		return `{"alignment": "preferred", "risk_level": "LOW"}`, nil
	}
	return `{"alignment": "preferred", "risk_level": "low"}`, nil
}

func (c *contractChatter) promptFor(clauseType string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.prompts {
		if strings.Contains(p, "classified as: "+clauseType) {
			return p
		}
	}
	return ""
}

const contract = `MASTER SERVICES AGREEMENT
1. Limitation of Liability. Vendor's aggregate liability is capped at one month of fees.
2. Governing Law. This agreement is governed by the laws of Delaware.
3. Cooperation. The parties shall cooperate in good faith at all times.`

func mkDoc(t *testing.T, id string, src document.Source, dt document.DocType, text string, md map[string]string) document.Document {
	t.Helper()
	d, err := document.New(id, src, dt, "Title "+id, text, md)
	if err != nil {
		t.Fatalf("document.New(%q): %v", id, err)
	}
	return d
}

func corpus(t *testing.T) *stubStore {
	t.Helper()
	return &stubStore{docs: []document.Document{
		mkDoc(t, "cl-general", document.SourceCUAD, document.TypeClause, "The parties agree to notices by email.", nil),
		mkDoc(t, "cl-lol", document.SourceCUAD, document.TypeClause, "Liability is limited to fees paid in the prior twelve months.",
			map[string]string{document.KeyClauseType: "limitation_of_liability"}),
		mkDoc(t, "playbook-msa-limitation_of_liability", document.SourceCommonPaper, document.TypePlaybook,
			"Preferred: Cap at 12 months of fees\nFallback: Cap at 6 months of fees\nWalk-away: Cap below 3 months of fees",
			map[string]string{document.KeyClauseType: "limitation_of_liability", document.KeyNotes: "Escalate to a partner."}),
	}}
}

func newReviewer(s Searcher, c domain.Chatter) *Reviewer {
	return New(s, c, Options{Retry: retry.Policy{Attempts: 1, BaseDelay: time.Millisecond}})
}

func filePlaybook() *Playbook {
	return &Playbook{ID: "msa", Title: "MSA playbook", Positions: []Position{
		{ClauseType: "limitation_of_liability", Preferred: "12 months", Fallback: "6 months", WalkAway: "under 3 months"},
		{ClauseType: "governing_law", Preferred: "New York", Fallback: "Delaware", WalkAway: "non-US law"},
	}}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		headings []string
	}{
		{"numbered sections", "1. Term. This agreement lasts two years.\n2. Fees. Fees are due within thirty days.", []string{"1", "2"}},
		{"nested numbering", "1.1 Scope of services is described in Exhibit A.\n1.2 Changes require a written order.", []string{"1.1", "1.2"}},
		{"articles", "ARTICLE I Definitions used throughout this agreement.\nARTICLE II Obligations of each party hereto.", []string{"ARTICLE I", "ARTICLE II"}},
		{"no markers", "   the whole agreement is a single paragraph of text   ", []string{""}},
		{"short fragments dropped", "1. Term.\n2. Fees. Fees are due within thirty days.", []string{"2"}},
		{"too short overall", "hello", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text)
			if len(chunks) != len(tt.headings) {
				t.Fatalf("chunks = %+v, want %d", chunks, len(tt.headings))
			}
			for i, c := range chunks {
				if c.Position != i || c.Heading != tt.headings[i] {
					t.Errorf("chunk %d = position %d heading %q, want %d %q", i, c.Position, c.Heading, i, tt.headings[i])
				}
				if c.Text != strings.TrimSpace(c.Text) || len(c.Text) < MinChunkLength {
					t.Errorf("chunk %d text %q", i, c.Text)
				}
			}
		})
	}
}

func TestReview_FilePlaybook(t *testing.T) {
	store := corpus(t)
	chat := &contractChatter{}
	rep, err := newReviewer(store, chat).Review(context.Background(), contract, filePlaybook())
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(rep.Clauses) != 3 {
		t.Fatalf("clauses = %d, want 3", len(rep.Clauses))
	}

	want := []struct {
		clauseType, confidence, alignment, risk string
		match                                   bool
	}{
		{"limitation_of_liability", ConfidenceHigh, AlignWalkAway, "high", true},
		{"governing_law", ConfidenceMedium, AlignPreferred, "low", true},
		{ClauseOther, ConfidenceLow, AlignNotCovered, "low", false},
	}
	for i, w := range want {
		cr := rep.Clauses[i]
		if cr.ClauseType != w.clauseType || cr.Confidence != w.confidence || cr.Alignment != w.alignment ||
			cr.RiskLevel != w.risk || cr.PlaybookMatch != w.match {
			t.Errorf("clause %d = %s/%s/%s/%s match %v, want %+v",
				i, cr.ClauseType, cr.Confidence, cr.Alignment, cr.RiskLevel, cr.PlaybookMatch, w)
		}
	}
	if got := rep.Clauses[0].Similar; len(got) != 1 || got[0] != "cl-lol" {
		t.Errorf("similar for liability = %v, want the typed clause", got)
	}
	if got := rep.Clauses[2].Similar; len(got) != 2 {
		t.Errorf("similar for unclassified = %v, want every clause", got)
	}

	s := rep.Summary
	if s.OverallRisk != "high" || s.AlignmentCounts[AlignWalkAway] != 1 || s.AlignmentCounts[AlignNotCovered] != 1 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.CriticalIssues) != 1 || !strings.Contains(s.CriticalIssues[0].Reason, "walk-away floor") {
		t.Errorf("critical issues = %+v", s.CriticalIssues)
	}
	if rep.Playbook != "MSA playbook" || rep.ReviewStatus != pipeline.ReviewPending || rep.Disclaimer == "" {
		t.Errorf("report header = %q %q", rep.Playbook, rep.ReviewStatus)
	}

	prompt := chat.promptFor("limitation_of_liability")
	for _, part := range []string{"Walk-away: under 3 months", "[cl-lol]", "one month of fees"} {
		if !strings.Contains(prompt, part) {
			t.Errorf("review prompt missing %q", part)
		}
	}
	if !strings.Contains(chat.promptFor(ClauseOther), "No playbook position") {
		t.Error("uncovered clause prompt does not flag manual review")
	}
}

func TestReview_IndexPlaybook(t *testing.T) {
	store := corpus(t)
	chat := &contractChatter{}
	rep, err := newReviewer(store, chat).Review(context.Background(), contract, nil)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}

	lol := rep.Clauses[0]
	if lol.Position == nil || lol.Position.DocID != "playbook-msa-limitation_of_liability" {
		t.Fatalf("liability position = %+v", lol.Position)
	}
	if lol.Position.WalkAway != "Cap below 3 months of fees" || lol.Position.Notes != "Escalate to a partner." {
		t.Errorf("parsed position = %+v", lol.Position)
	}
	if gl := rep.Clauses[1]; gl.PlaybookMatch || gl.Alignment != AlignNotCovered {
		t.Errorf("governing law without indexed position = match %v alignment %s", gl.PlaybookMatch, gl.Alignment)
	}

	var playbookLookups int
	for _, f := range store.filtersUsed() {
		if strings.Contains(f, "doc_type=playbook") {
			playbookLookups++
			if !strings.Contains(f, "clause_type=") {
				t.Errorf("playbook lookup without clause_type filter: %s", f)
			}
		}
	}
	if playbookLookups != 2 {
		t.Errorf("playbook lookups = %d, want one per classified clause", playbookLookups)
	}
}

func TestReview_InvalidContract(t *testing.T) {
	chat := &contractChatter{}
	r := newReviewer(corpus(t), chat)
	for _, text := range []string{"", "   ", "too short", strings.Repeat("x", MaxContractSize+1)} {
		if _, err := r.Review(context.Background(), text, filePlaybook()); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Review(%d bytes) err = %v, want validation error", len(text), err)
		}
	}
	if len(chat.prompts) != 0 {
		t.Errorf("invalid contracts reached the model %d times", len(chat.prompts))
	}
}

func TestReview_ProviderFailureFailsReview(t *testing.T) {
	chat := &contractChatter{reviewErr: errors.New("upstream 503")}
	_, err := newReviewer(corpus(t), chat).Review(context.Background(), contract, filePlaybook())
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}

func TestReview_UnparseableReviewIsKept(t *testing.T) {
	chat := &rawChatter{}
	rep, err := newReviewer(corpus(t), chat).Review(context.Background(), contract, filePlaybook())
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	for _, cr := range rep.Clauses {
		if cr.Analysis["parse_error"] != true || cr.Alignment != AlignNotCovered || cr.RiskLevel != "medium" {
			t.Errorf("clause %d = %s/%s %v", cr.Clause.Position, cr.Alignment, cr.RiskLevel, cr.Analysis)
		}
	}
	if rep.Summary.OverallRisk != "low" {
		t.Errorf("overall risk = %s", rep.Summary.OverallRisk)
	}
}

type rawChatter struct{}

func (rawChatter) Chat(context.Context, []domain.Message, domain.ChatOptions) (string, error) {
	return "This clause looks fine to me.", nil
}

func TestSummarize_OverallRisk(t *testing.T) {
	mk := func(alignments ...string) []ClauseReview {
		out := make([]ClauseReview, len(alignments))
		for i, a := range alignments {
			out[i] = ClauseReview{Alignment: a, RiskLevel: "low"}
		}
		return out
	}
	tests := []struct {
		alignments []string
		want       string
	}{
		{[]string{AlignPreferred, AlignFallback, AlignWalkAway}, "high"},
		{[]string{AlignPreferred, AlignFallback, AlignFallback}, "medium"},
		{[]string{AlignPreferred, AlignFallback, AlignNotCovered}, "low"},
		{nil, "low"},
	}
	for _, tt := range tests {
		if got := summarize(mk(tt.alignments...)); got.OverallRisk != tt.want || got.TotalClauses != len(tt.alignments) {
			t.Errorf("summarize(%v) = %s/%d, want %s", tt.alignments, got.OverallRisk, got.TotalClauses, tt.want)
		}
	}
	if s := summarize(mk(AlignWalkAway)); s.CriticalIssues[0].Reason != walkAwayReason {
		t.Errorf("default reason = %q", s.CriticalIssues[0].Reason)
	}
}

func TestLoadPlaybook(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	jsonPath := write("msa.json", `{"playbook_id": "msa", "name": "MSA", "clauses": [`+
		`{"clause_type": "indemnification", "preferred_position": "mutual", "fallback_position": "capped", `+
		`"walk_away": "uncapped one-way", "risk_factors": ["IP claims"], "notes": "n"}]}`)
	pb, err := LoadPlaybook(jsonPath)
	if err != nil {
		t.Fatalf("LoadPlaybook(json): %v", err)
	}
	pos, _ := pb.Position(context.Background(), "indemnification")
	if pb.Name() != "MSA" || pos == nil || pos.WalkAway != "uncapped one-way" || pos.RiskFactors[0] != "IP claims" {
		t.Errorf("json playbook = %+v, position %+v", pb, pos)
	}
	if miss, _ := pb.Position(context.Background(), "notices"); miss != nil {
		t.Errorf("uncovered type = %+v", miss)
	}

	yamlPath := write("nda.yaml", "playbook_id: nda\nclauses:\n  - clause_type: confidentiality\n    preferred_position: three years\n")
	if pb, err := LoadPlaybook(yamlPath); err != nil || pb.Name() != "nda" {
		t.Errorf("LoadPlaybook(yaml) = %+v, %v", pb, err)
	}

	for _, body := range []string{"playbook_id: empty\n", "clauses:\n  - preferred_position: x\n"} {
		if _, err := LoadPlaybook(write("bad.yaml", body)); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("LoadPlaybook(%q) err = %v", body, err)
		}
	}
	if _, err := LoadPlaybook(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestParseStances(t *testing.T) {
	pos := parseStances("Preferred: mutual cap\nFallback: 2x fees\nWalk-away: uncapped")
	if pos.Preferred != "mutual cap" || pos.Fallback != "2x fees" || pos.WalkAway != "uncapped" {
		t.Errorf("labelled = %+v", pos)
	}
	if pos := parseStances("Always require a mutual cap."); pos.Preferred != "Always require a mutual cap." {
		t.Errorf("unlabelled = %+v", pos)
	}
}

func TestClip(t *testing.T) {
	if got := clip("héllo", 2); got != "h" {
		t.Errorf("clip inside a rune = %q, want %q", got, "h")
	}
	if got := clip("hello", 10); got != "hello" {
		t.Errorf("clip short = %q", got)
	}
}
