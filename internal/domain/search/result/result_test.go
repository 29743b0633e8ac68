package result

import (
	"slices"
	"testing"

	"github.com/kailas-cloud/legalrag/internal/domain/document"
)

func doc(id string) document.Document {
	return document.Reconstruct(id, document.SourceCUAD, document.TypeClause, id, "text "+id, nil, nil)
}

func TestNew(t *testing.T) {
	r := New(doc("c-1"), 0.95)

	if r.ID() != "c-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Score() != 0.95 {
		t.Errorf("Score() = %f", r.Score())
	}
	d := r.Document()
	if d.Title() != "c-1" {
		t.Errorf("Document().Title() = %q", d.Title())
	}
}

func TestMerge_DedupesAndOrders(t *testing.T) {
	a := []Result{New(doc("a"), 0.9), New(doc("b"), 0.5)}
	b := []Result{New(doc("b"), 0.7), New(doc("c"), 0.7)}

	got := Merge(a, b)

	want := []string{"a", "b", "c"}
	if !slices.Equal(IDs(got), want) {
		t.Fatalf("IDs = %v, want %v", IDs(got), want)
	}
	if got[1].Score() != 0.7 {
		t.Errorf("b should keep its best score, got %f", got[1].Score())
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(); len(got) != 0 {
		t.Errorf("expected empty, got %v", IDs(got))
	}
}
