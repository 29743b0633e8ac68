package filter

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MaxConditions is the maximum number of conditions per expression.
const MaxConditions = 32

// Fielder resolves a named field of a filterable record.
type Fielder interface {
	Field(name string) (string, bool)
}

// Expression is a conjunction of exact-match conditions. The zero value matches everything.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates a filter Expression.
// Later conditions on the same key replace earlier ones.
func NewExpression(must ...Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	var e Expression
	for _, c := range must {
		e = e.With(c)
	}
	return e, nil
}

// FromMap builds an expression from field→value pairs.
func FromMap(m map[string]string) (Expression, error) {
	conds := make([]Condition, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		c, err := NewMatch(k, m[k])
		if err != nil {
			return Expression{}, err
		}
		conds = append(conds, c)
	}
	return NewExpression(conds...)
}

// Must returns the conditions, sorted by key.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Get returns the expected value for key.
func (e Expression) Get(key string) (string, bool) {
	for _, c := range e.must {
		if c.key == key {
			return c.match, true
		}
	}
	return "", false
}

// With returns a copy with c added, replacing any condition on the same key.
func (e Expression) With(c Condition) Expression {
	out := make([]Condition, 0, len(e.must)+1)
	for _, x := range e.must {
		if x.key != c.key {
			out = append(out, x)
		}
	}
	out = append(out, c)
	slices.SortFunc(out, func(a, b Condition) int { return strings.Compare(a.key, b.key) })
	return Expression{must: out}
}

// Without returns a copy without the condition on key.
func (e Expression) Without(key string) Expression {
	out := make([]Condition, 0, len(e.must))
	for _, x := range e.must {
		if x.key != key {
			out = append(out, x)
		}
	}
	return Expression{must: out}
}

// Matches reports whether r satisfies every condition.
// A missing field never matches.
func (e Expression) Matches(r Fielder) bool {
	for _, c := range e.must {
		v, ok := r.Field(c.key)
		if !ok || v != c.match {
			return false
		}
	}
	return true
}

// Map returns the conditions as field→value pairs.
func (e Expression) Map() map[string]string {
	if len(e.must) == 0 {
		return nil
	}
	m := make(map[string]string, len(e.must))
	for _, c := range e.must {
		m[c.key] = c.match
	}
	return m
}

// MarshalJSON encodes the expression as a field→value object.
func (e Expression) MarshalJSON() ([]byte, error) {
	m := e.Map()
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m) //nolint:wrapcheck // map of strings cannot fail
}

// String renders the expression as key=value pairs joined by "&".
func (e Expression) String() string {
	parts := make([]string, len(e.must))
	for i, c := range e.must {
		parts[i] = c.key + "=" + c.match
	}
	return strings.Join(parts, "&")
}

// Condition is a single exact-match clause.
type Condition struct {
	key   string
	match string
}

// NewMatch creates an exact match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// MustMatch is NewMatch for compile-time constants. It panics on invalid input.
func MustMatch(key, match string) Condition {
	c, err := NewMatch(key, match)
	if err != nil {
		panic(err)
	}
	return c
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }
