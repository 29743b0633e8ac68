package legalrag

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// FilterMode selects how metadata filters are applied.
type FilterMode string

// Filter mode constants.
const (
	// FilterPost over-fetches nearest neighbours and drops non-matching ones.
	FilterPost FilterMode = "post"
	// FilterPre scans only matching documents; exact but linear in their number.
	FilterPre FilterMode = "pre"
)

type clientConfig struct {
	embedder Embedder
	chatter  Chatter

	indexPath     string
	corpusPattern string
	filterMode    FilterMode
	batchSize     int
	topK          int
	contextBudget int
	strategy      string
	attempts      int
	baseDelay     time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedder sets the text embedding provider. Required for ingestion and search.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithChatter sets the generation provider. Required for Answer and the router.
func WithChatter(ch Chatter) Option {
	return optionFunc(func(c *clientConfig) {
		c.chatter = ch
	})
}

// WithIndexPath sets the base path of the persisted index
// (<path>.meta.json plus the checksum-named blob it points at). Required
// for Save and Load.
func WithIndexPath(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexPath = path
	})
}

// WithCorpus sets a doublestar glob over JSONL corpus files. Load rebuilds
// the index from it when the persisted one is missing, stale or corrupt.
func WithCorpus(pattern string) Option {
	return optionFunc(func(c *clientConfig) {
		c.corpusPattern = pattern
	})
}

// WithFilterMode sets the default filtering strategy. Default: FilterPost.
func WithFilterMode(m FilterMode) Option {
	return optionFunc(func(c *clientConfig) {
		c.filterMode = m
	})
}

// WithBatchSize sets the number of documents per embedding call. Default: 100.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithDefaultTopK sets the result count when a call leaves it unset. Default: 5.
func WithDefaultTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithContextBudget caps the characters of document text sent to generation.
// Default: 12000.
func WithContextBudget(chars int) Option {
	return optionFunc(func(c *clientConfig) {
		c.contextBudget = chars
	})
}

// WithDefaultStrategy sets the generation strategy used when neither the
// call nor the router picks one. Default: "few_shot".
func WithDefaultStrategy(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.strategy = name
	})
}

// WithRetry sets the attempts and first backoff delay for provider calls.
// Defaults: 3 attempts, 1s.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.attempts = attempts
		c.baseDelay = baseDelay
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// CallOption tunes a single Search or Answer call.
type CallOption func(*callConfig)

type callConfig struct {
	topK      int
	filters   map[string]string
	strategy  string
	useRouter bool
}

// TopK sets the number of documents to retrieve.
func TopK(k int) CallOption {
	return func(c *callConfig) { c.topK = k }
}

// Filter restricts results to documents whose field equals value.
// Repeated filters are ANDed.
func Filter(field, value string) CallOption {
	return func(c *callConfig) {
		if c.filters == nil {
			c.filters = map[string]string{}
		}
		c.filters[field] = value
	}
}

// Strategy selects the generation strategy for Answer.
func Strategy(name string) CallOption {
	return func(c *callConfig) { c.strategy = name }
}

// UseRouter classifies the query first; the route's filters replace any given ones.
func UseRouter() CallOption {
	return func(c *callConfig) { c.useRouter = true }
}
