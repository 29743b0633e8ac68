package breach

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/legalrag/internal/domain"
)

// Encryption statuses. Anything else is passed to the model verbatim.
const (
	EncryptionUnknown     = "unknown"
	EncryptionEncrypted   = "encrypted"
	EncryptionUnencrypted = "unencrypted"
)

var stateCode = regexp.MustCompile(`^[A-Z]{2}$`)

// Params describes an incident.
type Params struct {
	DataTypes     []string `json:"data_types_compromised" yaml:"data_types_compromised"`
	States        []string `json:"affected_states" yaml:"affected_states"`
	Encryption    string   `json:"encryption_status,omitempty" yaml:"encryption_status"`
	AffectedCount int      `json:"number_of_affected_individuals,omitempty" yaml:"number_of_affected_individuals"`
	DiscoveryDate string   `json:"discovery_date,omitempty" yaml:"discovery_date"`
	Description   string   `json:"description,omitempty" yaml:"description"`
}

// Normalize trims data types, upper-cases and deduplicates states, and
// fills a missing encryption status.
func (p Params) Normalize() Params {
	out := p
	out.DataTypes = nil
	for _, t := range p.DataTypes {
		if t = strings.TrimSpace(t); t != "" {
			out.DataTypes = append(out.DataTypes, t)
		}
	}
	out.States = nil
	seen := make(map[string]bool, len(p.States))
	for _, s := range p.States {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out.States = append(out.States, s)
	}
	if out.Encryption = strings.TrimSpace(p.Encryption); out.Encryption == "" {
		out.Encryption = EncryptionUnknown
	}
	return out
}

// Validate reports every problem with normalized params as joined
// *domain.ValidationError values.
func (p Params) Validate() error {
	var errs []error
	if len(p.DataTypes) == 0 {
		errs = append(errs, domain.NewValidationError("data_types_compromised", "cannot be empty"))
	}
	if len(p.States) == 0 {
		errs = append(errs, domain.NewValidationError("affected_states", "cannot be empty"))
	}
	for _, s := range p.States {
		if !stateCode.MatchString(s) {
			errs = append(errs, domain.NewValidationError("affected_states", "%q is not a two-letter state code", s))
		}
	}
	if p.AffectedCount < 0 {
		errs = append(errs, domain.NewValidationError("number_of_affected_individuals", "must not be negative"))
	}
	return errors.Join(errs...)
}

// query describes the incident for statute retrieval.
func (p Params) query() string {
	affected := "unknown"
	if p.AffectedCount > 0 {
		affected = fmt.Sprint(p.AffectedCount)
	}
	return fmt.Sprintf(
		"Data breach notification requirements for breach involving %s. Encryption status: %s. Number of affected individuals: %s.",
		strings.Join(p.DataTypes, ", "), p.Encryption, affected)
}
