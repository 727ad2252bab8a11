// Package field implements the encryption algorithm router: a static table
// mapping searchable field names to the encryption algorithm classes and
// query bounds the backing search store registered for them.
package field

import (
	"fmt"

	"github.com/kailas-cloud/cipherdex/internal/domain"
)

// Class is the encryption algorithm class registered for a field. It
// determines which query operator the search store can evaluate over the
// ciphertext.
type Class string

// Algorithm class values.
const (
	// Equality supports exact-match lookups.
	Equality Class = "equality"
	// Prefix supports starts-with lookups (preview algorithm).
	Prefix Class = "prefix"
	// Substring supports contains lookups (preview algorithm).
	Substring Class = "substring"
	// Unindexed is encrypted storage with no query capability.
	Unindexed Class = "unindexed"
)

// IsValid checks if the class is one of the supported values.
func (c Class) IsValid() bool {
	return c == Equality || c == Prefix || c == Substring || c == Unindexed
}

// Queryable reports whether the class supports any query operator.
func (c Class) Queryable() bool {
	return c == Equality || c == Prefix || c == Substring
}

// Spec describes the encryption registration of a single field.
type Spec struct {
	Name           string
	Classes        []Class
	MinQueryLength int // prefix/substring only, 0 = no bound
	MaxQueryLength int // prefix/substring only, 0 = no bound
	MaxLength      int // maximum stored value length, 0 = no bound
}

// Supports reports whether the spec registered the given class.
func (s Spec) Supports(c Class) bool {
	for _, registered := range s.Classes {
		if registered == c {
			return true
		}
	}
	return false
}

// Table is the immutable field spec registry. It holds no mutable state and
// is safe to share across all concurrent callers without locking.
type Table struct {
	specs map[string]Spec
}

// NewTable validates the spec set and builds a table.
//
// Validation enforces the backing store's combination rule: a field carries
// at most two classes, and Substring never co-occurs with any other class.
func NewTable(specs []Spec) (*Table, error) {
	m := make(map[string]Spec, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("field spec with empty name")
		}
		if _, dup := m[s.Name]; dup {
			return nil, fmt.Errorf("duplicate field spec %q", s.Name)
		}
		if len(s.Classes) == 0 {
			return nil, fmt.Errorf("field %q has no algorithm class", s.Name)
		}
		if len(s.Classes) > 2 {
			return nil, fmt.Errorf("field %q has %d algorithm classes, max 2", s.Name, len(s.Classes))
		}
		for _, c := range s.Classes {
			if !c.IsValid() {
				return nil, fmt.Errorf("field %q has unknown algorithm class %q", s.Name, c)
			}
		}
		if s.Supports(Substring) && len(s.Classes) > 1 {
			return nil, fmt.Errorf("field %q combines substring with another class", s.Name)
		}
		if s.MinQueryLength > 0 && s.MaxQueryLength > 0 && s.MinQueryLength > s.MaxQueryLength {
			return nil, fmt.Errorf("field %q min query length %d exceeds max %d",
				s.Name, s.MinQueryLength, s.MaxQueryLength)
		}
		m[s.Name] = s
	}
	return &Table{specs: m}, nil
}

// Resolve returns the spec for a field name.
func (t *Table) Resolve(name string) (Spec, error) {
	s, ok := t.specs[name]
	if !ok {
		return Spec{}, domain.NewUnknownField(name)
	}
	return s, nil
}

// Validate checks a query against the field's registration before any
// network call: the query kind must be among the field's classes and the
// value must satisfy the preview length bounds.
func (t *Table) Validate(name string, kind Class, value string) error {
	s, err := t.Resolve(name)
	if err != nil {
		return err
	}
	if !kind.Queryable() {
		return fmt.Errorf("%w: %q is not a query operator", domain.ErrInvalidQuery, kind)
	}
	if !s.Supports(kind) {
		return fmt.Errorf("%w: field %q does not support %s queries",
			domain.ErrInvalidQuery, name, kind)
	}
	if value == "" {
		return fmt.Errorf("%w: empty query value", domain.ErrInvalidQuery)
	}
	if kind == Prefix || kind == Substring {
		if s.MinQueryLength > 0 && len(value) < s.MinQueryLength {
			return fmt.Errorf("%w: %s query for %q shorter than %d chars",
				domain.ErrInvalidQuery, kind, name, s.MinQueryLength)
		}
		if s.MaxQueryLength > 0 && len(value) > s.MaxQueryLength {
			return fmt.Errorf("%w: %s query for %q longer than %d chars",
				domain.ErrInvalidQuery, kind, name, s.MaxQueryLength)
		}
	}
	if s.MaxLength > 0 && len(value) > s.MaxLength {
		return fmt.Errorf("%w: query value for %q longer than field max %d",
			domain.ErrInvalidQuery, name, s.MaxLength)
	}
	return nil
}

// Names returns the registered field names.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.specs))
	for name := range t.specs {
		names = append(names, name)
	}
	return names
}

// Specs returns all registered specs.
func (t *Table) Specs() []Spec {
	specs := make([]Spec, 0, len(t.specs))
	for _, s := range t.specs {
		specs = append(specs, s)
	}
	return specs
}

// Default returns the table the demo dataset is registered with. Bounds
// mirror the search store's preview limits: substring queries between 2 and
// 10 chars over values up to 60 chars, prefix queries up to 50 chars over
// values up to 100 chars.
func Default() *Table {
	t, err := NewTable([]Spec{
		{Name: "full_name", Classes: []Class{Substring}, MinQueryLength: 2, MaxQueryLength: 10, MaxLength: 60},
		{Name: "email", Classes: []Class{Prefix}, MinQueryLength: 1, MaxQueryLength: 50, MaxLength: 100},
		{Name: "phone", Classes: []Class{Equality}},
		{Name: "category", Classes: []Class{Equality}},
		{Name: "status", Classes: []Class{Equality}},
	})
	if err != nil {
		panic("default field table: " + err.Error())
	}
	return t
}
