package config

import (
	"strings"
	"testing"
)

func TestParse_DefaultsAndEnvExpansion(t *testing.T) {
	t.Setenv("LEGALRAG_TEST_KEY", "sk-test")
	cfg, err := Parse([]byte(`
provider:
  api_key: ${LEGALRAG_TEST_KEY}
  base_url: ${LEGALRAG_TEST_UNSET:-https://api.example.com/v1}
store:
  filter_mode: pre
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Provider.APIKey != "sk-test" || cfg.Provider.BaseURL != "https://api.example.com/v1" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Store.FilterMode != "pre" || cfg.Store.BatchSize != 100 || cfg.Store.Inflation != 5 || cfg.Store.MaxEscalations != 3 {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Pipeline.ContextBudget != 12000 || cfg.Pipeline.Temperature != 0.2 || cfg.Pipeline.DefaultStrategy != "few_shot" {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.HTTP.Port != 8080 || cfg.Eval.CheckpointDriver != "file" || len(cfg.Eval.Ks) != 3 {
		t.Errorf("http %+v eval %+v", cfg.HTTP, cfg.Eval)
	}
	if cfg.Cache.Enabled() {
		t.Error("cache enabled without addrs")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{Provider: ProviderConfig{APIKey: "k"}}
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }, "provider.api_key is required"},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"bad filter mode", func(c *Config) { c.Store.FilterMode = "hnsw" }, "store.filter_mode"},
		{"bad temperature", func(c *Config) { c.Pipeline.Temperature = 3 }, "pipeline.temperature"},
		{"bad fusion", func(c *Config) { c.Pipeline.Fusion = "sum" }, "pipeline.fusion"},
		{"bad k", func(c *Config) { c.Eval.Ks = []int{1, 0} }, "eval.ks"},
		{"valkey checkpoints without cache", func(c *Config) { c.Eval.CheckpointDriver = "valkey" }, "requires cache.addrs"},
		{"unknown checkpoint driver", func(c *Config) { c.Eval.CheckpointDriver = "s3" }, "eval.checkpoint_driver"},
		{"valkey checkpoints with cache", func(c *Config) {
			c.Eval.CheckpointDriver = "valkey"
			c.Cache.Addrs = []string{"localhost:6379"}
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	c := Config{}
	c.ApplyDefaults()
	c.Store.FilterMode = "x"
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "api_key") || !strings.Contains(err.Error(), "filter_mode") {
		t.Fatalf("error = %v", err)
	}
}
