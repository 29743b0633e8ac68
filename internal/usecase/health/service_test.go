package health

import (
	"context"
	"errors"
	"testing"
)

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck(t *testing.T) {
	down := errors.New("conn refused")
	tests := []struct {
		name      string
		index     error
		embedding error
		cache     error
		want      Status
	}{
		{name: "all healthy", want: Healthy},
		{name: "optional cache down", cache: down, want: Degraded},
		{name: "embedding down", embedding: down, want: Unhealthy},
		{name: "index and cache down", index: down, cache: down, want: Unhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New().
				WithRequired("index", &mockChecker{err: tt.index}).
				WithRequired("embedding", &mockChecker{err: tt.embedding}).
				WithOptional("cache", &mockChecker{err: tt.cache})
			r := svc.Check(context.Background())

			if r.Status != tt.want {
				t.Errorf("status %q, want %q", r.Status, tt.want)
			}
			for name, err := range map[string]error{"index": tt.index, "embedding": tt.embedding, "cache": tt.cache} {
				want := CheckOK
				if err != nil {
					want = CheckError
				}
				if r.Checks[name] != want {
					t.Errorf("%s: got %q, want %q", name, r.Checks[name], want)
				}
			}
		})
	}
}

func TestCheck_NilOptionalIgnored(t *testing.T) {
	r := New().WithOptional("cache", nil).Check(context.Background())
	if r.Status != Healthy || len(r.Checks) != 0 {
		t.Errorf("report = %+v", r)
	}
}

func TestCheckerFunc(t *testing.T) {
	called := false
	r := New().WithRequired("index", CheckerFunc(func(context.Context) error {
		called = true
		return nil
	})).Check(context.Background())
	if !called || r.Checks["index"] != CheckOK {
		t.Errorf("checker func not used: %+v", r)
	}
}
