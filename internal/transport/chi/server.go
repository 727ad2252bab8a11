// Package chi implements the HTTP API over the chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cipherdex/internal/domain"
	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
	"github.com/kailas-cloud/cipherdex/internal/domain/field"
	"github.com/kailas-cloud/cipherdex/internal/domain/search/mode"
	"github.com/kailas-cloud/cipherdex/internal/domain/search/request"
	"github.com/kailas-cloud/cipherdex/internal/domain/search/result"
	"github.com/kailas-cloud/cipherdex/internal/license"
	"github.com/kailas-cloud/cipherdex/internal/metrics"
	healthuc "github.com/kailas-cloud/cipherdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cipherdex/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/cipherdex/internal/usecase/search"
	virtualuc "github.com/kailas-cloud/cipherdex/internal/usecase/virtual"
)

// Error response codes.
const (
	codeBadRequest         = "bad_request"
	codeValidationFailed   = "validation_failed"
	codeUnknownField       = "unknown_field"
	codeNotFound           = "not_found"
	codeDuplicateRecord    = "duplicate_record"
	codeThrottled          = "throttled"
	codeSearchUnavailable  = "search_store_unavailable"
	codeRecordUnavailable  = "record_store_unavailable"
	codeVirtualUnavailable = "virtualization_unavailable"
	codeInternalError      = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchHit is one search result entry. Record is omitted when only the
// identifier is known.
type SearchHit struct {
	ID     string           `json:"customer_id"`
	Record *customer.Record `json:"record,omitempty"`
}

// StageTimings reports per-stage latency in milliseconds.
type StageTimings struct {
	SearchMs float64 `json:"search_ms"`
	FetchMs  float64 `json:"fetch_ms"`
	TotalMs  float64 `json:"total_ms"`
}

// SearchResponse is the search endpoint payload.
type SearchResponse struct {
	Mode     string       `json:"mode"`
	Count    int          `json:"count"`
	Results  []SearchHit  `json:"results"`
	Partial  bool         `json:"partial"`
	Warnings []string     `json:"warnings,omitempty"`
	Stages   StageTimings `json:"stages"`
}

// IngestRequest is the ingest endpoint request body.
type IngestRequest struct {
	Count int `json:"count"`
}

// RecordFetcher fetches a single full record by id.
type RecordFetcher interface {
	Fetch(ctx context.Context, id string) (*customer.Record, error)
}

// BatchGenerator produces synthetic customer batches.
type BatchGenerator interface {
	Batch(count int) []customer.Record
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	search        *searchuc.Service
	ingest        *ingestuc.Service
	virtual       *virtualuc.Service
	health        *healthuc.Service
	records       RecordFetcher
	generator     BatchGenerator
	defaultCount  int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. virtual can be nil when the
// virtualization layer is not configured.
func NewServer(
	search *searchuc.Service,
	ingest *ingestuc.Service,
	virtual *virtualuc.Service,
	health *healthuc.Service,
	records RecordFetcher,
	generator BatchGenerator,
	defaultCount int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:       search,
		ingest:       ingest,
		virtual:      virtual,
		health:       health,
		records:      records,
		generator:    generator,
		defaultCount: defaultCount,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnknownField, http.StatusBadRequest, codeUnknownField),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrDuplicateRecord, http.StatusConflict, codeDuplicateRecord),
		sentinelHandler(domain.ErrWouldThrottle, http.StatusTooManyRequests, codeThrottled),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusServiceUnavailable, codeSearchUnavailable),
		sentinelHandler(domain.ErrRecordStoreUnavailable, http.StatusServiceUnavailable, codeRecordUnavailable),
		sentinelHandler(domain.ErrVirtualUnavailable, http.StatusBadGateway, codeVirtualUnavailable),
	}
	return s
}

// Mount attaches all routes to the router.
func (s *Server) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/customers/search", s.SearchCustomers)
		r.Get("/customers/{id}", s.GetCustomer)
		r.Post("/ingest", s.Ingest)
		r.Get("/virtual/search", s.VirtualSearch)
		r.Get("/license/stats", s.LicenseStats)
		r.Post("/license/reset", s.LicenseReset)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchCustomers handles GET /api/v1/customers/search.
func (s *Server) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	req, err := request.New(
		q.Get("field"),
		q.Get("value"),
		field.Class(strings.ToLower(q.Get("kind"))),
		mode.Mode(strings.ToLower(q.Get("mode"))),
		limit,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	res, err := s.search.Search(r.Context(), &req)
	modeLabel := string(req.Mode())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(modeLabel, "error").Inc()
		s.handleDomainError(w, err)
		return
	}

	observeStages(modeLabel, res.Stages)
	outcome := "ok"
	if res.Partial {
		outcome = "partial"
	}
	metrics.SearchRequestsTotal.WithLabelValues(modeLabel, outcome).Inc()

	writeJSON(w, http.StatusOK, searchToResponse(modeLabel, res))
}

// GetCustomer handles GET /api/v1/customers/{id}.
func (s *Server) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "customer id is required")
		return
	}

	rec, err := s.records.Fetch(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Ingest handles POST /api/v1/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	req := IngestRequest{Count: s.defaultCount}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.Count <= 0 {
		req.Count = s.defaultCount
	}

	records := s.generator.Batch(req.Count)
	summary, err := s.ingest.Run(r.Context(), records)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	metrics.IngestRecordsTotal.WithLabelValues("committed").Add(float64(summary.Committed))
	metrics.IngestRecordsTotal.WithLabelValues("rolled_back").Add(float64(summary.RolledBack))
	metrics.IngestRecordsTotal.WithLabelValues("failed").Add(float64(summary.Failed))
	if !summary.StoresAgree {
		metrics.IngestMismatchesTotal.Inc()
	}

	writeJSON(w, http.StatusOK, summary)
}

// VirtualSearch handles GET /api/v1/virtual/search. Every query string
// parameter except view and limit is passed to the view as a filter.
func (s *Server) VirtualSearch(w http.ResponseWriter, r *http.Request) {
	if s.virtual == nil {
		writeError(w, http.StatusServiceUnavailable, codeVirtualUnavailable, "virtualization layer is not configured")
		return
	}

	q := r.URL.Query()
	view := q.Get("view")
	if view == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "view is required")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	filters := make(map[string]string)
	for k, vs := range q {
		if k == "view" || k == "limit" || len(vs) == 0 {
			continue
		}
		filters[k] = vs[0]
	}

	resp, err := s.virtual.Query(r.Context(), view, filters, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// LicenseStats handles GET /api/v1/license/stats.
func (s *Server) LicenseStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.licenseSnapshot())
}

// LicenseReset handles POST /api/v1/license/reset.
func (s *Server) LicenseReset(w http.ResponseWriter, r *http.Request) {
	if s.virtual == nil {
		writeError(w, http.StatusServiceUnavailable, codeVirtualUnavailable, "virtualization layer is not configured")
		return
	}
	s.virtual.ResetStats()
	s.logger.Info("license gate counters reset")
	writeJSON(w, http.StatusOK, s.licenseSnapshot())
}

func (s *Server) licenseSnapshot() license.Snapshot {
	if s.virtual == nil {
		return license.Snapshot{}
	}
	return s.virtual.Stats()
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func searchToResponse(modeLabel string, res *result.Result) SearchResponse {
	hits := make([]SearchHit, len(res.Entries))
	for i, e := range res.Entries {
		hits[i] = SearchHit{ID: e.ID, Record: e.Record}
	}
	return SearchResponse{
		Mode:     modeLabel,
		Count:    len(hits),
		Results:  hits,
		Partial:  res.Partial,
		Warnings: res.Warnings,
		Stages: StageTimings{
			SearchMs: durationMs(res.Stages.Search),
			FetchMs:  durationMs(res.Stages.Fetch),
			TotalMs:  durationMs(res.Stages.Total),
		},
	}
}

func observeStages(modeLabel string, st result.Stages) {
	metrics.SearchStageDuration.WithLabelValues(modeLabel, "search").Observe(st.Search.Seconds())
	metrics.SearchStageDuration.WithLabelValues(modeLabel, "fetch").Observe(st.Fetch.Seconds())
	metrics.SearchStageDuration.WithLabelValues(modeLabel, "total").Observe(st.Total.Seconds())
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnknownField,
		domain.ErrInvalidQuery,
		domain.ErrNotFound,
		domain.ErrDuplicateRecord,
		domain.ErrWouldThrottle,
		domain.ErrSearchUnavailable,
		domain.ErrRecordStoreUnavailable,
		domain.ErrVirtualUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
