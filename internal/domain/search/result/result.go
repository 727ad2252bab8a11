// Package result holds the assembled outcome of one search request.
package result

import (
	"time"

	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
)

// Entry is a single hit. Record is nil when only the identifier is known
// (record store degraded mid-request).
type Entry struct {
	ID     string
	Record *customer.Record
}

// Stages records elapsed time per request stage. Fetch covers the record
// store fetch in hybrid mode and the store-side decryption in
// search-store-only mode.
type Stages struct {
	Search time.Duration
	Fetch  time.Duration
	Total  time.Duration
}

// Result is an ordered sequence of hits. Ordering follows whatever the
// search store returned; the orchestrator never re-sorts.
type Result struct {
	Entries  []Entry
	Partial  bool
	Warnings []string
	Stages   Stages
}

// AddWarning marks the result partial and appends a caller-visible warning.
func (r *Result) AddWarning(msg string) {
	r.Partial = true
	r.Warnings = append(r.Warnings, msg)
}

// IDs returns the entry identifiers in store order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		ids[i] = e.ID
	}
	return ids
}
