// Package ingest holds the per-record outcomes and batch summary of an
// ingestion run.
package ingest

// Status is the two-store outcome of a single generated record.
type Status string

// Record outcome values.
const (
	// StatusCommitted means both stores accepted the record.
	StatusCommitted Status = "committed"
	// StatusRolledBack means the record store rejected the record and the
	// search store entry was compensated away.
	StatusRolledBack Status = "rolled_back"
	// StatusFailed means the search store rejected the record before the
	// record store was ever written.
	StatusFailed Status = "failed"
)

// Outcome is the result of processing one record.
type Outcome struct {
	id     string
	status Status
	err    error
}

// NewCommitted creates a committed outcome.
func NewCommitted(id string) Outcome { return Outcome{id: id, status: StatusCommitted} }

// NewRolledBack creates a rolled-back outcome.
func NewRolledBack(id string, err error) Outcome {
	return Outcome{id: id, status: StatusRolledBack, err: err}
}

// NewFailed creates a failed outcome.
func NewFailed(id string, err error) Outcome {
	return Outcome{id: id, status: StatusFailed, err: err}
}

// ID returns the record identifier.
func (o Outcome) ID() string { return o.id }

// Status returns the two-store outcome.
func (o Outcome) Status() Status { return o.status }

// Err returns the error that decided the outcome, if any.
func (o Outcome) Err() error { return o.err }

// Summary aggregates an ingestion run. SearchStoreCount and
// RecordStoreCount are counted independently in each store after the run,
// and StoresAgree is computed from them rather than the in-memory tally.
type Summary struct {
	Generated        int      `json:"generated"`
	Committed        int      `json:"committed"`
	RolledBack       int      `json:"rolled_back"`
	Failed           int      `json:"failed"`
	SearchStoreCount int      `json:"search_store_count"`
	RecordStoreCount int      `json:"record_store_count"`
	StoresAgree      bool     `json:"stores_agree"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Tally folds an outcome into the summary counters.
func (s *Summary) Tally(o Outcome) {
	switch o.Status() {
	case StatusCommitted:
		s.Committed++
	case StatusRolledBack:
		s.RolledBack++
	case StatusFailed:
		s.Failed++
	}
}
