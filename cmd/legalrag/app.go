package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/config"
	"github.com/kailas-cloud/legalrag/internal/corpus"
	dbRedis "github.com/kailas-cloud/legalrag/internal/db/redis"
	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
	logpkg "github.com/kailas-cloud/legalrag/internal/logger"
	"github.com/kailas-cloud/legalrag/internal/metrics"
	"github.com/kailas-cloud/legalrag/internal/repository/checkpoint"
	"github.com/kailas-cloud/legalrag/internal/repository/embcache"
	"github.com/kailas-cloud/legalrag/internal/repository/vectorstore"
	openaiTransport "github.com/kailas-cloud/legalrag/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/legalrag/internal/usecase/embedding"
	"github.com/kailas-cloud/legalrag/internal/usecase/breach"
	"github.com/kailas-cloud/legalrag/internal/usecase/eval"
	"github.com/kailas-cloud/legalrag/internal/usecase/pipeline"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
	"github.com/kailas-cloud/legalrag/internal/usecase/review"
	"github.com/kailas-cloud/legalrag/internal/usecase/router"
	"github.com/kailas-cloud/legalrag/internal/version"
)

// app is the composition root shared by every command.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger

	kv       *dbRedis.Store // nil without a cache
	embedder *embeddinguc.InstrumentedEmbedder
	chat     *embeddinguc.InstrumentedChatter
	corpus   *corpus.Files // nil without a corpus pattern
	store    *vectorstore.Store
	retry    retry.Policy
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "config file (default config/$ENV.yaml)")
}

func newApp(ctx context.Context, flags commonFlags, command string) (*app, error) {
	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger = logger.With(zap.String("command", command))

	build := version.Get()
	logger.Info("Starting legalrag",
		zap.String("version", build.Version),
		zap.String("commit", build.Commit),
		zap.String("env", env),
		zap.String("embedding_model", cfg.Provider.EmbeddingModel),
		zap.String("chat_model", cfg.Provider.ChatModel),
		zap.String("index_path", cfg.Store.Path),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRAGMetrics()

	a := &app{
		env:    env,
		cfg:    cfg,
		logger: logger,
		retry: retry.Policy{
			Attempts:  cfg.Store.Attempts,
			BaseDelay: time.Duration(cfg.Store.BaseDelayMs) * time.Millisecond,
			MaxDelay:  time.Duration(cfg.Store.MaxDelayMs) * time.Millisecond,
		},
	}

	if cfg.Cache.Enabled() {
		kv, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		if err := kv.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			kv.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		a.kv = kv
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	a.embedder = a.buildEmbedder()
	a.chat = a.buildChatter()

	if cfg.Corpus.Pattern != "" {
		a.corpus = corpus.NewFiles(cfg.Corpus.Pattern, logger.Named("corpus"))
	}
	opts := vectorstore.Options{
		Path:           cfg.Store.Path,
		BatchSize:      cfg.Store.BatchSize,
		Retry:          a.retry,
		Inflation:      cfg.Store.Inflation,
		MaxEscalations: cfg.Store.MaxEscalations,
		FilterMode:     mode.Mode(cfg.Store.FilterMode),
		Logger:         logger.Named("store"),
	}
	if a.corpus != nil {
		opts.Corpus = a.corpus
	}
	a.store = vectorstore.New(a.embedder, opts)
	return a, nil
}

func (a *app) close() {
	if a.kv != nil {
		a.kv.Close()
	}
	_ = a.logger.Sync()
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func (a *app) buildEmbedder() *embeddinguc.InstrumentedEmbedder {
	p := a.cfg.Provider
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     p.APIKey,
		BaseURL:    p.BaseURL,
		Model:      p.EmbeddingModel,
		Dimensions: p.Dimensions,
		Provider:   p.Name,
		Timeout:    time.Duration(p.TimeoutSec) * time.Second,
		Logger:     a.logger,
	})

	var embedder domain.Embedder = base
	if a.kv != nil {
		embedder = embcache.New(base, a.kv, p.EmbeddingModel,
			time.Duration(a.cfg.Cache.TTLSec)*time.Second, metrics.EmbeddingCacheTotal, a.logger)
	}
	return embeddinguc.NewInstrumentedEmbedder(embedder, p.Name, p.EmbeddingModel, a.logger)
}

func (a *app) buildChatter() *embeddinguc.InstrumentedChatter {
	p := a.cfg.Provider
	base := openaiTransport.NewChatter(&openaiTransport.Config{
		APIKey:   p.APIKey,
		BaseURL:  p.BaseURL,
		Model:    p.ChatModel,
		Provider: p.Name,
		Timeout:  time.Duration(p.TimeoutSec) * time.Second,
		Logger:   a.logger,
	})
	return embeddinguc.NewInstrumentedChatter(base, p.Name, p.ChatModel, a.logger)
}

// loadIndex loads the persisted index, building it from the corpus when
// one is configured and the index is missing, stale or corrupt.
func (a *app) loadIndex(ctx context.Context) error {
	if err := a.store.Load(ctx); err != nil {
		if errors.Is(err, domain.ErrIndexCorruption) {
			return fmt.Errorf("%w (configure corpus.pattern to rebuild automatically)", err)
		}
		return fmt.Errorf("load index: %w", err)
	}
	return nil
}

func (a *app) pipeline() *pipeline.Pipeline {
	pc := a.cfg.Pipeline
	return pipeline.New(a.store, router.New(a.chat, pc.RouterMaxTokens, a.logger.Named("router")), a.chat,
		pipeline.Options{
			TopK:            pc.TopK,
			ContextBudget:   pc.ContextBudget,
			Temperature:     pc.Temperature,
			MaxTokens:       pc.MaxTokens,
			DefaultStrategy: pc.DefaultStrategy,
			Fusion:          pc.Fusion,
			Retry:           a.retry,
			Logger:          a.logger.Named("pipeline"),
		})
}

func (a *app) reviewer() *review.Reviewer {
	return review.New(a.store, a.chat, review.Options{Retry: a.retry, Logger: a.logger.Named("review")})
}

func (a *app) breachAnalyzer() *breach.Analyzer {
	return breach.New(a.store, a.chat, breach.Options{Retry: a.retry, Logger: a.logger.Named("breach")})
}

// checkpoints returns the configured eval checkpoint store, or nil for "none".
func (a *app) checkpoints() eval.Checkpoints {
	switch a.cfg.Eval.CheckpointDriver {
	case "valkey":
		return checkpoint.NewKVStore(a.kv)
	case "file":
		return checkpoint.NewFileStore(a.cfg.Eval.CheckpointDir)
	default:
		return nil
	}
}
