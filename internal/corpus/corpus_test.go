package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/legalrag/internal/domain/document"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFiles_Documents(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "clauses", "nda.jsonl"),
		`{"doc_id":"nda-001","source":"clauses_json","doc_type":"clause","title":"Mutual NDA","text":"Each party shall keep confidential information secret.","metadata":{"risk_level":"low","jurisdiction":"CA"}}
`+"\n"+
			`{"doc_id":"nda-002","source":"clauses_json","doc_type":"clause","title":"One-way NDA","text":"Recipient shall not disclose.","metadata":{"risk_level":"extreme"}}
`)
	write(t, filepath.Join(dir, "statutes", "ca.json"),
		`[{"doc_id":"statute-ca","source":"statutes","doc_type":"statute","title":"Cal. Civ. Code 1798.82","text":"Notify residents without unreasonable delay.","metadata":{"citation":"Cal. Civ. Code 1798.82"}}]`)
	write(t, filepath.Join(dir, "notes.txt"), "ignored")

	docs, err := NewFiles(filepath.Join(dir, "**", "*.{jsonl,json}"), nil).Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2 (one invalid record skipped)", len(docs))
	}
	if docs[0].ID() != "nda-001" || docs[1].ID() != "statute-ca" {
		t.Errorf("unexpected order: %q, %q", docs[0].ID(), docs[1].ID())
	}
	if docs[0].Meta(document.KeyJurisdiction) != "CA" || docs[1].Source() != document.SourceStatutes {
		t.Errorf("fields not mapped: %+v / %+v", docs[0].Metadata(), docs[1].Source())
	}
}

func TestFiles_MalformedJSONFails(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "bad.jsonl"), "{\"doc_id\":\n")

	_, err := NewFiles(filepath.Join(dir, "*.jsonl"), nil).Documents(context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFiles_NoMatches(t *testing.T) {
	_, err := NewFiles(filepath.Join(t.TempDir(), "*.jsonl"), nil).Documents(context.Background())
	if !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestFromDocument(t *testing.T) {
	d, err := document.New("pb-1", document.SourceCommonPaper, document.TypePlaybook, "Liability cap",
		"Cap at 12 months of fees.", map[string]string{"position": "preferred"})
	if err != nil {
		t.Fatal(err)
	}
	r := FromDocument(d)
	back, err := r.Document()
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if back.ID() != "pb-1" || back.Meta("position") != "preferred" || back.DocType() != document.TypePlaybook {
		t.Errorf("round trip lost fields: %+v", r)
	}
}
