package review

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/domain/search/filter"
	"github.com/kailas-cloud/legalrag/internal/domain/search/mode"
	"github.com/kailas-cloud/legalrag/internal/domain/search/request"
)

// Position is the firm's negotiating stance on one clause type.
type Position struct {
	ClauseType  string   `yaml:"clause_type" json:"clause_type"`
	Preferred   string   `yaml:"preferred_position" json:"preferred_position"`
	Fallback    string   `yaml:"fallback_position" json:"fallback_position"`
	WalkAway    string   `yaml:"walk_away" json:"walk_away"`
	RiskFactors []string `yaml:"risk_factors" json:"risk_factors,omitempty"`
	Notes       string   `yaml:"notes" json:"notes,omitempty"`
	// DocID is set when the position came from the index.
	DocID string `yaml:"-" json:"doc_id,omitempty"`
}

// Positions resolves the playbook position for a clause type.
// A nil position means the playbook does not cover the type.
type Positions interface {
	Name() string
	Position(ctx context.Context, clauseType string) (*Position, error)
}

// Playbook is a playbook file. JSON files parse as YAML.
type Playbook struct {
	ID        string     `yaml:"playbook_id"`
	Title     string     `yaml:"name"`
	Positions []Position `yaml:"clauses"`
}

// LoadPlaybook reads a playbook from a YAML or JSON file.
func LoadPlaybook(path string) (*Playbook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}
	var pb Playbook
	if err := yaml.Unmarshal(raw, &pb); err != nil {
		return nil, fmt.Errorf("parse playbook %s: %w", path, err)
	}
	if len(pb.Positions) == 0 {
		return nil, domain.NewValidationError("playbook", "%s has no clause positions", path)
	}
	for i, p := range pb.Positions {
		if strings.TrimSpace(p.ClauseType) == "" {
			return nil, domain.NewValidationError("playbook", "position %d has no clause_type", i)
		}
	}
	return &pb, nil
}

// Name implements Positions.
func (p *Playbook) Name() string {
	if p.Title != "" {
		return p.Title
	}
	return p.ID
}

// Position implements Positions. The first entry for a clause type wins.
func (p *Playbook) Position(_ context.Context, clauseType string) (*Position, error) {
	for i := range p.Positions {
		if p.Positions[i].ClauseType == clauseType {
			pos := p.Positions[i]
			return &pos, nil
		}
	}
	return nil, nil //nolint:nilnil // not covered
}

// IndexPlaybook looks positions up among indexed playbook documents, which
// carry their clause type in metadata and the three stances in their text.
type IndexPlaybook struct {
	store Searcher
}

// NewIndexPlaybook creates a playbook backed by the vector store.
func NewIndexPlaybook(store Searcher) *IndexPlaybook {
	return &IndexPlaybook{store: store}
}

// Name implements Positions.
func (p *IndexPlaybook) Name() string { return "indexed playbooks" }

// Position implements Positions.
func (p *IndexPlaybook) Position(ctx context.Context, clauseType string) (*Position, error) {
	if clauseType == "" || clauseType == ClauseOther {
		return nil, nil //nolint:nilnil // not covered
	}
	f, err := filter.NewExpression(
		filter.MustMatch("doc_type", string(document.TypePlaybook)),
		filter.MustMatch(document.KeyClauseType, clauseType),
	)
	if err != nil {
		return nil, fmt.Errorf("playbook filter: %w", err)
	}
	req, err := request.New(strings.ReplaceAll(clauseType, "_", " ")+" playbook position", 1, f, mode.PreFilter)
	if err != nil {
		return nil, err //nolint:wrapcheck // ValidationError is final
	}
	res, err := p.store.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("playbook search: %w", err)
	}
	if len(res) == 0 {
		return nil, nil //nolint:nilnil // not covered
	}
	d := res[0].Document()
	pos := parseStances(d.Text())
	pos.ClauseType = clauseType
	pos.Notes = d.Meta(document.KeyNotes)
	pos.DocID = d.ID()
	return &pos, nil
}

// parseStances reads "Preferred:", "Fallback:" and "Walk-away:" lines.
// Text without those labels becomes the preferred position.
func parseStances(text string) Position {
	var pos Position
	for line := range strings.SplitSeq(text, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "preferred":
			pos.Preferred = value
		case "fallback":
			pos.Fallback = value
		case "walk-away", "walk away", "walk_away":
			pos.WalkAway = value
		}
	}
	if pos.Preferred == "" && pos.Fallback == "" && pos.WalkAway == "" {
		pos.Preferred = strings.TrimSpace(text)
	}
	return pos
}
