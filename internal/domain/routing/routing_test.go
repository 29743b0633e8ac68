package routing

import "testing"

func TestDefault(t *testing.T) {
	d := Default()
	if d.QueryType != GeneralLegal || d.Strategy != Vector || !d.Filters.IsEmpty() {
		t.Errorf("unexpected default decision: %+v", d)
	}
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		qt       QueryType
		filters  string
		strategy Strategy
	}{
		{ContractReview, "doc_type=clause", Hybrid},
		{BreachResponse, "source=statutes", Hybrid},
		{GeneralLegal, "", Vector},
		{CrossCutting, "", Vector},
	}
	for _, tt := range tests {
		t.Run(string(tt.qt), func(t *testing.T) {
			f, s := Defaults(tt.qt)
			if f.String() != tt.filters {
				t.Errorf("filters = %q, want %q", f.String(), tt.filters)
			}
			if s != tt.strategy {
				t.Errorf("strategy = %q, want %q", s, tt.strategy)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	if QueryType("tax_advice").IsValid() {
		t.Error("unknown query type must be invalid")
	}
	if !Structured.IsValid() || Strategy("semantic").IsValid() {
		t.Error("strategy validity mismatch")
	}
}
