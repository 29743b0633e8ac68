// Package eval measures retrieval quality (Recall@k, MRR) and scores
// generated answers with a judge, per strategy, with resumable runs.
package eval

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/legalrag/internal/domain"
)

// Rubric is what a good answer to a case must contain.
type Rubric struct {
	ExpectedRiskLevel string   `yaml:"expected_risk_level"`
	MustIdentify      []string `yaml:"must_identify"`
}

// Case is one benchmark query with its gold documents.
type Case struct {
	ID      string            `yaml:"id"`
	Query   string            `yaml:"query"`
	GoldIDs []string          `yaml:"gold_ids"`
	Filters map[string]string `yaml:"filters"`
	Rubric  Rubric            `yaml:"rubric"`
}

// Benchmark is a named list of cases.
type Benchmark struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// LoadBenchmark reads a YAML benchmark file.
func LoadBenchmark(path string) (*Benchmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benchmark: %w", err)
	}
	return ParseBenchmark(data)
}

// ParseBenchmark decodes and validates a YAML benchmark. Unknown fields are rejected.
func ParseBenchmark(data []byte) (*Benchmark, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var b Benchmark
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("parse benchmark: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks case ids and queries.
func (b *Benchmark) Validate() error {
	if len(b.Cases) == 0 {
		return domain.NewValidationError("cases", "benchmark has no cases")
	}
	seen := make(map[string]bool, len(b.Cases))
	for i, c := range b.Cases {
		switch {
		case c.ID == "":
			return domain.NewValidationError("id", "case %d has no id", i)
		case seen[c.ID]:
			return domain.NewValidationError("id", "duplicate case id %q", c.ID)
		case strings.TrimSpace(c.Query) == "":
			return domain.NewValidationError("query", "case %q has no query", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}
