package filter

import (
	"encoding/json"
	"strings"
	"testing"
)

type record map[string]string

func (r record) Field(name string) (string, bool) {
	v, ok := r[name]
	return v, ok
}

func TestNewMatch_Validation(t *testing.T) {
	if _, err := NewMatch("", "CA"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewMatch("jurisdiction", ""); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestNewExpression_TooMany(t *testing.T) {
	conds := make([]Condition, MaxConditions+1)
	for i := range conds {
		conds[i] = MustMatch("k"+strings.Repeat("x", i), "v")
	}
	if _, err := NewExpression(conds...); err == nil {
		t.Fatal("expected error for too many conditions")
	}
}

func TestExpression_ZeroMatchesEverything(t *testing.T) {
	var e Expression
	if !e.IsEmpty() {
		t.Error("zero value should be empty")
	}
	if !e.Matches(record{}) {
		t.Error("empty expression should match any record")
	}
}

func TestExpression_Matches(t *testing.T) {
	e, err := FromMap(map[string]string{"source": "statutes", "jurisdiction": "CA"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		r    record
		want bool
	}{
		{"all match", record{"source": "statutes", "jurisdiction": "CA", "citation": "x"}, true},
		{"one differs", record{"source": "statutes", "jurisdiction": "TX"}, false},
		{"missing field", record{"source": "statutes"}, false},
		{"case sensitive", record{"source": "statutes", "jurisdiction": "ca"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Matches(tt.r); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpression_WithReplacesKey(t *testing.T) {
	e, _ := NewExpression(MustMatch("source", "cuad"), MustMatch("doc_type", "clause"))
	e = e.With(MustMatch("source", "statutes"))

	if len(e.Must()) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(e.Must()))
	}
	if v, _ := e.Get("source"); v != "statutes" {
		t.Errorf("source = %q", v)
	}
	if e.String() != "doc_type=clause&source=statutes" {
		t.Errorf("String() = %q", e.String())
	}
}

func TestExpression_Without(t *testing.T) {
	e, _ := FromMap(map[string]string{"source": "statutes", "jurisdiction": "CA"})
	e = e.Without("source")

	if _, ok := e.Get("source"); ok {
		t.Error("source should be removed")
	}
	if m := e.Map(); len(m) != 1 || m["jurisdiction"] != "CA" {
		t.Errorf("Map() = %v", m)
	}
}

func TestFromMap_RejectsEmptyValue(t *testing.T) {
	if _, err := FromMap(map[string]string{"jurisdiction": ""}); err == nil {
		t.Fatal("expected error for empty value")
	}
}

func TestExpression_MarshalJSON(t *testing.T) {
	e, err := FromMap(map[string]string{"jurisdiction": "CA", "source": "statutes"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(struct {
		Filters Expression `json:"filters"`
	}{e})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"filters":{"jurisdiction":"CA","source":"statutes"}}`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	b, _ = json.Marshal(Expression{})
	if string(b) != "{}" {
		t.Errorf("empty expression = %s", b)
	}
}
