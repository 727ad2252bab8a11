package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all dependencies are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual dependency check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing check.
	CheckError CheckResult = "error"
)

// Report aggregates dependency checks and store record counts.
type Report struct {
	Status           Status                 `json:"status"`
	Checks           map[string]CheckResult `json:"checks"`
	SearchStoreCount int64                  `json:"search_store_count"`
	RecordStoreCount int64                  `json:"record_store_count"`
}

// Service coordinates dependency health checks.
type Service struct {
	search  Store
	records Store
	virtual Pinger
}

// New creates a Service. virtual can be nil when the virtualization layer
// is not configured.
func New(search, records Store, virtual Pinger) *Service {
	return &Service{search: search, records: records, virtual: virtual}
}

// Check pings every dependency and reads store record counts. Count
// failures degrade the corresponding check but never fail the request.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	report := Report{Checks: checks}

	if err := s.search.Ping(ctx); err != nil {
		checks["search_store"] = CheckError
	} else {
		checks["search_store"] = CheckOK
		if n, err := s.search.Count(ctx); err == nil {
			report.SearchStoreCount = n
		}
	}

	if err := s.records.Ping(ctx); err != nil {
		checks["record_store"] = CheckError
	} else {
		checks["record_store"] = CheckOK
		if n, err := s.records.Count(ctx); err == nil {
			report.RecordStoreCount = n
		}
	}

	if s.virtual != nil {
		if err := s.virtual.Ping(ctx); err != nil {
			checks["virtualization"] = CheckError
		} else {
			checks["virtualization"] = CheckOK
		}
	}

	report.Status = Healthy
	for _, v := range checks {
		if v == CheckError {
			report.Status = Degraded
			break
		}
	}
	return report
}
