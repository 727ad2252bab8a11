// Package request holds the validated search query aggregate.
package request

import (
	"fmt"

	"github.com/kailas-cloud/cipherdex/internal/domain/field"
	"github.com/kailas-cloud/cipherdex/internal/domain/search/mode"
)

// Result limits.
const (
	DefaultLimit = 100
	MaxLimit     = 10000
)

// Request is a validated search query. Field-level validation against the
// encryption spec table happens later in the orchestrator; this constructor
// only normalizes the request shape.
type Request struct {
	fieldName  string
	value      string
	kind       field.Class
	searchMode mode.Mode
	limit      int
}

// New validates and normalizes search parameters.
// Defaults: kind=equality, mode=hybrid, limit=100.
func New(fieldName, value string, kind field.Class, m mode.Mode, limit int) (Request, error) {
	if fieldName == "" {
		return Request{}, fmt.Errorf("field is required")
	}
	if value == "" {
		return Request{}, fmt.Errorf("value is required")
	}
	if kind == "" {
		kind = field.Equality
	}
	if !kind.IsValid() {
		return Request{}, fmt.Errorf("invalid query kind: %q", kind)
	}
	if m == "" {
		m = mode.Hybrid
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Request{
		fieldName:  fieldName,
		value:      value,
		kind:       kind,
		searchMode: m,
		limit:      limit,
	}, nil
}

// Field returns the searchable field name.
func (r *Request) Field() string { return r.fieldName }

// Value returns the plaintext query value.
func (r *Request) Value() string { return r.value }

// Kind returns the query operator class.
func (r *Request) Kind() field.Class { return r.kind }

// Mode returns the operating mode.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Limit returns the maximum result count.
func (r *Request) Limit() int { return r.limit }
