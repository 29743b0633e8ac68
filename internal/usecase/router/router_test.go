package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/routing"
)

type stubChatter struct {
	reply    string
	err      error
	calls    int
	lastOpts domain.ChatOptions
	lastMsgs []domain.Message
}

func (s *stubChatter) Chat(_ context.Context, msgs []domain.Message, opts domain.ChatOptions) (string, error) {
	s.calls++
	s.lastMsgs = msgs
	s.lastOpts = opts
	return s.reply, s.err
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		wantType     routing.QueryType
		wantFilters  string
		wantStrategy routing.Strategy
		wantRewrite  string
	}{
		{
			name: "breach response forces statutes",
			reply: `{"query_type":"breach_response","filters":{"source":"clauses_json","doc_type":null,"jurisdiction":"ca"},
				"search_strategy":"hybrid","rewritten_query":"California breach notification deadline","explanation":"breach"}`,
			wantType:     routing.BreachResponse,
			wantFilters:  "jurisdiction=CA&source=statutes",
			wantStrategy: routing.Hybrid,
			wantRewrite:  "California breach notification deadline",
		},
		{
			name:         "contract review adds clause doc type",
			reply:        `{"query_type":"contract_review","filters":{"clause_type":"non-compete","jurisdiction":"null"},"search_strategy":"filtered","rewritten_query":null}`,
			wantType:     routing.ContractReview,
			wantFilters:  "clause_type=non-compete&doc_type=clause",
			wantStrategy: routing.Structured,
		},
		{
			name:         "cross cutting drops source",
			reply:        "```json\n{\"query_type\":\"cross_cutting\",\"filters\":{\"source\":\"statutes\",\"jurisdiction\":\"NY\"},\"search_strategy\":\"semantic\"}\n```",
			wantType:     routing.CrossCutting,
			wantFilters:  "jurisdiction=NY",
			wantStrategy: routing.Vector,
		},
		{
			name:         "unknown strategy uses type default",
			reply:        `Here you go: {"query_type":"general_legal","filters":{},"search_strategy":"magic","rewritten_query":"  "}`,
			wantType:     routing.GeneralLegal,
			wantFilters:  "",
			wantStrategy: routing.Vector,
		},
		{
			name:         "unknown source value dropped",
			reply:        `{"query_type":"general_legal","filters":{"source":"westlaw","doc_type":"statute"},"search_strategy":"hybrid"}`,
			wantType:     routing.GeneralLegal,
			wantFilters:  "doc_type=statute",
			wantStrategy: routing.Hybrid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &stubChatter{reply: tt.reply}
			d := New(chat, 0, nil).Route(context.Background(), "question")

			if d.Fallback {
				t.Fatalf("unexpected fallback: %+v", d)
			}
			if d.QueryType != tt.wantType {
				t.Errorf("QueryType = %q, want %q", d.QueryType, tt.wantType)
			}
			if got := d.Filters.String(); got != tt.wantFilters {
				t.Errorf("Filters = %q, want %q", got, tt.wantFilters)
			}
			if d.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %q, want %q", d.Strategy, tt.wantStrategy)
			}
			if d.RewrittenQuery != tt.wantRewrite {
				t.Errorf("RewrittenQuery = %q, want %q", d.RewrittenQuery, tt.wantRewrite)
			}
		})
	}
}

func TestRoute_FailOpen(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "provider error", err: errors.Join(domain.ErrProvider, domain.ErrRateLimited)},
		{name: "not json", reply: "I think this is about contracts."},
		{name: "unknown query type", reply: `{"query_type":"tax_advice","filters":{}}`},
		{name: "missing query type", reply: `{"filters":{"source":"statutes"}}`},
		{name: "cancelled", err: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &stubChatter{reply: tt.reply, err: tt.err}
			d := New(chat, 0, nil).Route(context.Background(), "question")

			if !d.Fallback {
				t.Fatal("expected fallback decision")
			}
			if d.QueryType != routing.GeneralLegal || d.Strategy != routing.Vector || !d.Filters.IsEmpty() {
				t.Errorf("fallback is not the unrestricted default: %+v", d)
			}
			if chat.calls != 1 {
				t.Errorf("calls = %d, want exactly one provider call", chat.calls)
			}
		})
	}
}

func TestRoute_CallShape(t *testing.T) {
	chat := &stubChatter{reply: `{"query_type":"general_legal"}`}
	New(chat, 0, nil).Route(context.Background(), "Is a 5-year worldwide non-compete enforceable?")

	if chat.lastOpts.Temperature != 0 || !chat.lastOpts.JSON || chat.lastOpts.MaxTokens != DefaultMaxTokens {
		t.Errorf("unexpected options: %+v", chat.lastOpts)
	}
	if len(chat.lastMsgs) != 2 || chat.lastMsgs[0].Role != domain.RoleSystem {
		t.Fatalf("unexpected messages: %+v", chat.lastMsgs)
	}
	if !strings.Contains(chat.lastMsgs[1].Content, "5-year worldwide non-compete") {
		t.Error("query missing from prompt")
	}
}
