package legalrag

import (
	"context"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/corpus"
	"github.com/kailas-cloud/legalrag/internal/domain"
	domdoc "github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/routing"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
	"github.com/kailas-cloud/legalrag/internal/repository/vectorstore"
	"github.com/kailas-cloud/legalrag/internal/usecase/breach"
	"github.com/kailas-cloud/legalrag/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/legalrag/internal/usecase/health"
	"github.com/kailas-cloud/legalrag/internal/usecase/pipeline"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
	"github.com/kailas-cloud/legalrag/internal/usecase/review"
	"github.com/kailas-cloud/legalrag/internal/usecase/router"
)

// Internal interfaces for substitution in tests.
type storeUseCase interface {
	AddDocuments(ctx context.Context, docs []domdoc.Document) (int, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Len() int
	Get(id string) (domdoc.Document, bool)
}

type pipelineUseCase interface {
	Retrieve(ctx context.Context, req pipeline.Request) (*pipeline.Retrieval, error)
	Answer(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	DefaultStrategy() string
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the legalrag SDK entry point. It is safe for concurrent use;
// searches run against a consistent snapshot while ingestion is in progress.
type Client struct {
	store  storeUseCase
	pipe   pipelineUseCase
	health healthUseCase
	review reviewUseCase
	breach breachUseCase
	obs    *observer
}

// New creates a Client with an empty index. Call Load to restore a persisted one.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	switch cfg.filterMode {
	case "", FilterPost, FilterPre:
	default:
		return nil, fmt.Errorf("legalrag: unknown filter mode %q", cfg.filterMode)
	}
	if cfg.strategy != "" {
		if _, err := generation.Get(cfg.strategy); err != nil {
			return nil, fmt.Errorf("legalrag: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(cfg, obs), nil
}

func wireClient(cfg *clientConfig, obs *observer) *Client {
	// Embedder/chatter: noop if not set (errors on use)
	var emb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}
	var chat domain.Chatter = noopChatter{}
	if cfg.chatter != nil {
		chat = &chatterAdapter{inner: cfg.chatter}
	}

	policy := retry.Policy{Attempts: cfg.attempts, BaseDelay: cfg.baseDelay}
	storeOpts := vectorstore.Options{
		Path:       cfg.indexPath,
		BatchSize:  cfg.batchSize,
		Retry:      policy,
		FilterMode: mode.Mode(cfg.filterMode),
	}
	if cfg.corpusPattern != "" {
		storeOpts.Corpus = corpus.NewFiles(cfg.corpusPattern, zap.NewNop())
	}
	store := vectorstore.New(emb, storeOpts)

	pipe := pipeline.New(store, router.New(chat, 0, nil), chat, pipeline.Options{
		TopK:            cfg.topK,
		ContextBudget:   cfg.contextBudget,
		DefaultStrategy: cfg.strategy,
		Retry:           policy,
	})

	health := healthuc.New().
		WithRequired("index", healthuc.CheckerFunc(func(context.Context) error {
			if store.Len() == 0 {
				return errEmptyIndex
			}
			return nil
		}))
	if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
		health.WithOptional("embedding", hc)
	}
	if hc, ok := cfg.chatter.(domain.HealthChecker); ok {
		health.WithOptional("chat", hc)
	}

	return &Client{
		store:  store,
		pipe:   pipe,
		health: health,
		review: review.New(store, chat, review.Options{Retry: policy}),
		breach: breach.New(store, chat, breach.Options{Retry: policy}),
		obs:    obs,
	}
}

// Ingest validates and embeds docs and upserts them by ID. A document with an
// existing ID replaces it. Invalid input fails before anything is embedded.
// Batches whose embedding failed are reported in err; the rest are committed
// and counted in n.
func (c *Client) Ingest(ctx context.Context, docs []Document) (n int, err error) {
	defer c.obs.start("ingest", "documents", len(docs))(&err)

	in := make([]domdoc.Document, len(docs))
	for i, d := range docs {
		in[i], err = domdoc.New(d.ID, domdoc.Source(d.Source), domdoc.DocType(d.DocType), d.Title, d.Text, d.Metadata)
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
	}
	n, err = c.store.AddDocuments(ctx, in)
	if err != nil {
		return n, fmt.Errorf("ingest: %w", err)
	}
	return n, nil
}

// Len returns the number of indexed documents.
func (c *Client) Len() int { return c.store.Len() }

// Get returns an indexed document by ID.
func (c *Client) Get(id string) (Document, bool) {
	d, ok := c.store.Get(id)
	if !ok {
		return Document{}, false
	}
	return toDocument(&d), true
}

// Save persists the index to the configured path.
func (c *Client) Save(ctx context.Context) (err error) {
	defer c.obs.start("save")(&err)
	if err = c.store.Save(ctx); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Load restores the persisted index. With a corpus configured, a missing,
// stale or corrupt index is rebuilt from it; otherwise corruption is
// reported as ErrIndexCorruption.
func (c *Client) Load(ctx context.Context) (err error) {
	defer c.obs.start("load")(&err)
	if err = c.store.Load(ctx); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// Search returns up to TopK documents for query, best first. Every result
// matches every filter; a filtered search may return fewer results.
func (c *Client) Search(ctx context.Context, query string, opts ...CallOption) (res []SearchResult, err error) {
	defer c.obs.start("search")(&err)

	ret, err := c.pipe.Retrieve(ctx, request(query, opts))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	res = make([]SearchResult, len(ret.Results))
	for i := range ret.Results {
		d := ret.Results[i].Document()
		res[i] = SearchResult{Document: toDocument(&d), Score: ret.Results[i].Score()}
	}
	return res, nil
}

// Answer retrieves context for query and generates a cited draft answer.
func (c *Client) Answer(ctx context.Context, query string, opts ...CallOption) (ans *Answer, err error) {
	defer c.obs.start("answer")(&err)

	r, err := c.pipe.Answer(ctx, request(query, opts))
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	sources := make([]Source, len(r.Sources))
	for i, s := range r.Sources {
		sources[i] = Source(s)
	}
	return &Answer{
		Text:         r.Answer,
		Analysis:     r.Analysis,
		Sources:      sources,
		Strategy:     r.Strategy,
		Model:        r.Model,
		Routing:      toRouting(r.Routing),
		ReviewStatus: r.ReviewStatus,
		Disclaimer:   r.Disclaimer,
		Truncated:    r.Truncated,
	}, nil
}

// Strategies lists the generation strategies and the default.
func (c *Client) Strategies() ([]StrategyInfo, string) {
	all := generation.All()
	out := make([]StrategyInfo, len(all))
	for i, s := range all {
		out[i] = StrategyInfo{Name: s.Name, Description: s.Description}
	}
	return out, c.pipe.DefaultStrategy()
}

func request(query string, opts []CallOption) pipeline.Request {
	var cc callConfig
	for _, o := range opts {
		o(&cc)
	}
	return pipeline.Request{
		Query:     query,
		TopK:      cc.topK,
		Filters:   cc.filters,
		Strategy:  cc.strategy,
		UseRouter: cc.useRouter,
	}
}

func toDocument(d *domdoc.Document) Document {
	return Document{
		ID:       d.ID(),
		Source:   string(d.Source()),
		DocType:  string(d.DocType()),
		Title:    d.Title(),
		Text:     d.Text(),
		Metadata: maps.Clone(d.Metadata()),
	}
}

func toRouting(d *routing.Decision) *Routing {
	if d == nil {
		return nil
	}
	return &Routing{
		QueryType:      string(d.QueryType),
		SearchStrategy: string(d.Strategy),
		Filters:        d.Filters.Map(),
		RewrittenQuery: d.RewrittenQuery,
		Explanation:    d.Explanation,
		Fallback:       d.Fallback,
	}
}
