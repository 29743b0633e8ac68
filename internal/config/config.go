package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the legalrag configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Provider ProviderConfig `yaml:"provider"`
	Store    StoreConfig    `yaml:"store"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Cache    CacheConfig    `yaml:"cache"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Eval     EvalConfig     `yaml:"eval"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
}

// ProviderConfig holds the OpenAI-compatible embedding and chat provider.
type ProviderConfig struct {
	Name           string `yaml:"name"` // metrics label
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	Dimensions     int    `yaml:"dimensions"` // 0 keeps the model default
	TimeoutSec     int    `yaml:"timeout_sec"`
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	Path           string `yaml:"path"`
	BatchSize      int    `yaml:"batch_size"`
	Attempts       int    `yaml:"attempts"`
	BaseDelayMs    int    `yaml:"base_delay_ms"`
	MaxDelayMs     int    `yaml:"max_delay_ms"`
	Inflation      int    `yaml:"inflation"`
	MaxEscalations int    `yaml:"max_escalations"`
	FilterMode     string `yaml:"filter_mode"` // post, pre
}

// CorpusConfig locates the reproducible corpus.
type CorpusConfig struct {
	Pattern string `yaml:"pattern"` // doublestar glob, e.g. data/corpus/**/*.jsonl
}

// CacheConfig holds the optional Valkey/Redis connection. No addrs disables it.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a cache is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// PipelineConfig holds retrieval and generation settings.
type PipelineConfig struct {
	TopK            int     `yaml:"top_k"`
	Temperature     float32 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	ContextBudget   int     `yaml:"context_budget"`
	DefaultStrategy string  `yaml:"default_strategy"`
	Fusion          string  `yaml:"fusion"` // max, rrf
	RouterMaxTokens int     `yaml:"router_max_tokens"`
}

// EvalConfig holds evaluation harness settings.
type EvalConfig struct {
	Benchmark        string `yaml:"benchmark"`
	Ks               []int  `yaml:"ks"`
	Runs             int    `yaml:"runs"`
	CheckpointDriver string `yaml:"checkpoint_driver"` // file, valkey, none
	CheckpointDir    string `yaml:"checkpoint_dir"`
}

// QdrantConfig holds the export target.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	BatchSize  int    `yaml:"batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 110
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Provider.Name == "" {
		c.Provider.Name = "openai"
	}
	if c.Provider.EmbeddingModel == "" {
		c.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Provider.ChatModel == "" {
		c.Provider.ChatModel = "gpt-4o-mini"
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = 60
	}

	if c.Store.Path == "" {
		c.Store.Path = "data/index/legal"
	}
	if c.Store.BatchSize <= 0 {
		c.Store.BatchSize = 100
	}
	if c.Store.Attempts <= 0 {
		c.Store.Attempts = 3
	}
	if c.Store.BaseDelayMs <= 0 {
		c.Store.BaseDelayMs = 1000
	}
	if c.Store.MaxDelayMs <= 0 {
		c.Store.MaxDelayMs = 30000
	}
	if c.Store.Inflation <= 0 {
		c.Store.Inflation = 5
	}
	if c.Store.MaxEscalations <= 0 {
		c.Store.MaxEscalations = 3
	}
	if c.Store.FilterMode == "" {
		c.Store.FilterMode = "post"
	}

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 30 * 24 * 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.Pipeline.TopK <= 0 {
		c.Pipeline.TopK = 5
	}
	if c.Pipeline.Temperature == 0 {
		c.Pipeline.Temperature = 0.2
	}
	if c.Pipeline.MaxTokens <= 0 {
		c.Pipeline.MaxTokens = 1500
	}
	if c.Pipeline.ContextBudget <= 0 {
		c.Pipeline.ContextBudget = 12000
	}
	if c.Pipeline.DefaultStrategy == "" {
		c.Pipeline.DefaultStrategy = "few_shot"
	}
	if c.Pipeline.Fusion == "" {
		c.Pipeline.Fusion = "max"
	}
	if c.Pipeline.RouterMaxTokens <= 0 {
		c.Pipeline.RouterMaxTokens = 300
	}

	if len(c.Eval.Ks) == 0 {
		c.Eval.Ks = []int{1, 3, 5}
	}
	if c.Eval.Runs <= 0 {
		c.Eval.Runs = 1
	}
	if c.Eval.CheckpointDriver == "" {
		c.Eval.CheckpointDriver = "file"
	}
	if c.Eval.CheckpointDir == "" {
		c.Eval.CheckpointDir = "data/eval/checkpoints"
	}

	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "legal_documents"
	}
	if c.Qdrant.BatchSize <= 0 {
		c.Qdrant.BatchSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider.api_key is required"))
	}
	if c.Provider.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("provider.dimensions must not be negative, got %d", c.Provider.Dimensions))
	}
	switch c.Store.FilterMode {
	case "post", "pre":
	default:
		errs = append(errs, fmt.Errorf("store.filter_mode must be \"post\" or \"pre\", got %q", c.Store.FilterMode))
	}
	if c.Pipeline.Temperature < 0 || c.Pipeline.Temperature > 2 {
		errs = append(errs, fmt.Errorf("pipeline.temperature must be between 0 and 2, got %v", c.Pipeline.Temperature))
	}
	switch c.Pipeline.Fusion {
	case "max", "rrf":
	default:
		errs = append(errs, fmt.Errorf("pipeline.fusion must be \"max\" or \"rrf\", got %q", c.Pipeline.Fusion))
	}
	for _, k := range c.Eval.Ks {
		if k <= 0 || k > 100 {
			errs = append(errs, fmt.Errorf("eval.ks must be between 1 and 100, got %d", k))
		}
	}
	switch c.Eval.CheckpointDriver {
	case "file", "none":
	case "valkey":
		if !c.Cache.Enabled() {
			errs = append(errs, errors.New("eval.checkpoint_driver \"valkey\" requires cache.addrs"))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"eval.checkpoint_driver must be \"file\", \"valkey\" or \"none\", got %q", c.Eval.CheckpointDriver))
	}
	return errors.Join(errs...)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
