package pipeline

import (
	"context"

	"github.com/kailas-cloud/legalrag/internal/domain/routing"
	"github.com/kailas-cloud/legalrag/internal/domain/search/request"
	"github.com/kailas-cloud/legalrag/internal/domain/search/result"
)

// Searcher runs similarity queries against the vector store.
type Searcher interface {
	Search(ctx context.Context, req request.Request) ([]result.Result, error)
}

// Router classifies queries. It never fails.
type Router interface {
	Route(ctx context.Context, query string) routing.Decision
}
