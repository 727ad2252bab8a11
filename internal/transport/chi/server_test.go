package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cipherdex/internal/domain"
	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
	"github.com/kailas-cloud/cipherdex/internal/domain/field"
	domingest "github.com/kailas-cloud/cipherdex/internal/domain/ingest"
	"github.com/kailas-cloud/cipherdex/internal/license"
	virtualstore "github.com/kailas-cloud/cipherdex/internal/repository/virtual"
	healthuc "github.com/kailas-cloud/cipherdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cipherdex/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/cipherdex/internal/usecase/search"
	virtualuc "github.com/kailas-cloud/cipherdex/internal/usecase/virtual"
)

type stubSearchRepo struct {
	ids     []string
	records []customer.Record
	err     error
}

func (s *stubSearchRepo) FindIDs(_ context.Context, _ string, _ field.Class, _ string, _ int) ([]string, error) {
	return s.ids, s.err
}

func (s *stubSearchRepo) Records(_ context.Context, ids []string) ([]customer.Record, error) {
	return s.records, s.err
}

type stubRecordRepo struct {
	records []customer.Record
}

func (s *stubRecordRepo) FetchMany(_ context.Context, _ []string) ([]customer.Record, error) {
	return s.records, nil
}

type stubFetcher struct {
	rec *customer.Record
	err error
}

func (s *stubFetcher) Fetch(_ context.Context, _ string) (*customer.Record, error) {
	return s.rec, s.err
}

// stubWriter accepts everything. Shared by the search and record store
// sides of the ingest service.
type stubWriter struct {
	inserted int
}

func (s *stubWriter) Insert(_ context.Context, _ *customer.Record) error { s.inserted++; return nil }
func (s *stubWriter) Delete(_ context.Context, _ string) error           { return nil }

func (s *stubWriter) CountExisting(_ context.Context, ids []string) (int, error) {
	return len(ids), nil
}

type stubGenerator struct {
	lastCount int
}

func (s *stubGenerator) Batch(count int) []customer.Record {
	s.lastCount = count
	recs := make([]customer.Record, count)
	for i := range recs {
		recs[i] = customer.Record{ID: "c-" + strconv.Itoa(i)}
	}
	return recs
}

type stubQuerier struct {
	rs  *virtualstore.ResultSet
	err error
}

func (s *stubQuerier) Query(_ context.Context, _ string, _ map[string]string, _ int) (*virtualstore.ResultSet, error) {
	return s.rs, s.err
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

type stubHealthStore struct {
	pingErr error
	count   int64
}

func (s *stubHealthStore) Ping(_ context.Context) error           { return s.pingErr }
func (s *stubHealthStore) Count(_ context.Context) (int64, error) { return s.count, nil }

type serverFixture struct {
	search    *stubSearchRepo
	records   *stubRecordRepo
	fetcher   *stubFetcher
	generator *stubGenerator
	querier   *stubQuerier
	gate      *license.Gate
	router    chi.Router
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		search:    &stubSearchRepo{},
		records:   &stubRecordRepo{},
		fetcher:   &stubFetcher{},
		generator: &stubGenerator{},
		querier:   &stubQuerier{},
		gate:      license.New(3),
	}

	logger := zap.NewNop()
	searchSvc := searchuc.New(field.Default(), f.search, f.records)
	ingestSvc := ingestuc.New(&stubWriter{}, &stubWriter{}, ingestuc.Options{BatchSize: 100}, logger)
	virtualSvc := virtualuc.New(f.querier, f.gate, logger)
	healthSvc := healthuc.New(&stubHealthStore{count: 5}, &stubHealthStore{count: 5}, &stubPinger{})

	srv := NewServer(searchSvc, ingestSvc, virtualSvc, healthSvc, f.fetcher, f.generator, 10000, logger)
	f.router = chi.NewRouter()
	srv.Mount(f.router)
	return f
}

func doRequest(f *serverFixture, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		// Passing nil yields ContentLength 0 on this toolchain; http.NoBody
		// only does so from Go 1.25 onward.
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestSearchCustomers_Hybrid(t *testing.T) {
	f := newTestServer(t)
	f.search.ids = []string{"c-1", "c-2"}
	f.records.records = []customer.Record{
		{ID: "c-1", FullName: "Maria Gonzalez"},
		{ID: "c-2", FullName: "James Chen"},
	}

	rr := doRequest(f, "GET", "/api/v1/customers/search?field=email&value=maria@example.com", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mode != "hybrid" {
		t.Errorf("mode: got %s, want hybrid", resp.Mode)
	}
	if resp.Count != 2 || len(resp.Results) != 2 {
		t.Fatalf("count: got %d (%d results), want 2", resp.Count, len(resp.Results))
	}
	if resp.Results[0].Record == nil || resp.Results[0].Record.FullName != "Maria Gonzalez" {
		t.Errorf("first hit record not populated: %+v", resp.Results[0])
	}
	if resp.Partial {
		t.Error("complete result marked partial")
	}
}

func TestSearchCustomers_UnknownField(t *testing.T) {
	f := newTestServer(t)

	rr := doRequest(f, "GET", "/api/v1/customers/search?field=ssn&value=123", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if resp := decodeError(t, rr); resp.Code != codeUnknownField {
		t.Errorf("code: got %s, want %s", resp.Code, codeUnknownField)
	}
}

func TestSearchCustomers_MissingValue(t *testing.T) {
	f := newTestServer(t)

	rr := doRequest(f, "GET", "/api/v1/customers/search?field=email", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if resp := decodeError(t, rr); resp.Code != codeValidationFailed {
		t.Errorf("code: got %s, want %s", resp.Code, codeValidationFailed)
	}
}

func TestSearchCustomers_BadLimit(t *testing.T) {
	f := newTestServer(t)

	rr := doRequest(f, "GET", "/api/v1/customers/search?field=email&value=x@y.com&limit=ten", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSearchCustomers_StoreUnavailable(t *testing.T) {
	f := newTestServer(t)
	f.search.err = domain.ErrSearchUnavailable

	rr := doRequest(f, "GET", "/api/v1/customers/search?field=email&value=x@y.com", "")

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if resp := decodeError(t, rr); resp.Code != codeSearchUnavailable {
		t.Errorf("code: got %s, want %s", resp.Code, codeSearchUnavailable)
	}
}

func TestGetCustomer(t *testing.T) {
	f := newTestServer(t)
	f.fetcher.rec = &customer.Record{ID: "c-42", FullName: "Maria Gonzalez"}

	rr := doRequest(f, "GET", "/api/v1/customers/c-42", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	var rec customer.Record
	if err := json.NewDecoder(rr.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID != "c-42" || rec.FullName != "Maria Gonzalez" {
		t.Errorf("record: got %+v", rec)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	f := newTestServer(t)
	f.fetcher.err = domain.ErrNotFound

	rr := doRequest(f, "GET", "/api/v1/customers/absent", "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if resp := decodeError(t, rr); resp.Code != codeNotFound {
		t.Errorf("code: got %s, want %s", resp.Code, codeNotFound)
	}
}

func TestIngest_DefaultCount(t *testing.T) {
	f := newTestServer(t)

	rr := doRequest(f, "POST", "/api/v1/ingest", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	if f.generator.lastCount != 10000 {
		t.Errorf("generated count: got %d, want 10000", f.generator.lastCount)
	}
	var summary domingest.Summary
	if err := json.NewDecoder(rr.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Committed != 10000 {
		t.Errorf("committed: got %d, want 10000", summary.Committed)
	}
	if !summary.StoresAgree {
		t.Error("stores should agree")
	}
}

func TestIngest_ExplicitCount(t *testing.T) {
	f := newTestServer(t)

	rr := doRequest(f, "POST", "/api/v1/ingest", `{"count": 25}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if f.generator.lastCount != 25 {
		t.Errorf("generated count: got %d, want 25", f.generator.lastCount)
	}
}

func TestIngest_InvalidBody(t *testing.T) {
	f := newTestServer(t)

	rr := doRequest(f, "POST", "/api/v1/ingest", `{"count": "ten"}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestVirtualSearch(t *testing.T) {
	f := newTestServer(t)
	f.querier.rs = &virtualstore.ResultSet{
		View: "customers",
		Rows: []map[string]any{{"customer_id": "c-1"}},
	}

	rr := doRequest(f, "GET", "/api/v1/virtual/search?view=customers&tier=gold", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp virtualuc.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.View != "customers" || resp.RowCount != 1 {
		t.Errorf("response: got %+v", resp)
	}
	if resp.LicenseWarning {
		t.Error("untruncated result flagged")
	}
}

func TestVirtualSearch_MissingView(t *testing.T) {
	f := newTestServer(t)

	rr := doRequest(f, "GET", "/api/v1/virtual/search", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestVirtualSearch_Unavailable(t *testing.T) {
	f := newTestServer(t)
	f.querier.err = domain.ErrVirtualUnavailable

	rr := doRequest(f, "GET", "/api/v1/virtual/search?view=customers", "")

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadGateway)
	}
	if resp := decodeError(t, rr); resp.Code != codeVirtualUnavailable {
		t.Errorf("code: got %s, want %s", resp.Code, codeVirtualUnavailable)
	}
}

func TestVirtualSearch_NotConfigured(t *testing.T) {
	logger := zap.NewNop()
	srv := NewServer(
		searchuc.New(field.Default(), &stubSearchRepo{}, &stubRecordRepo{}),
		ingestuc.New(&stubWriter{}, &stubWriter{}, ingestuc.Options{}, logger),
		nil,
		healthuc.New(&stubHealthStore{}, &stubHealthStore{}, nil),
		&stubFetcher{},
		&stubGenerator{},
		100,
		logger,
	)
	r := chi.NewRouter()
	srv.Mount(r)

	req := httptest.NewRequest("GET", "/api/v1/virtual/search?view=customers", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestLicenseStatsAndReset(t *testing.T) {
	f := newTestServer(t)
	f.querier.rs = &virtualstore.ResultSet{View: "customers"}

	doRequest(f, "GET", "/api/v1/virtual/search?view=customers", "")

	rr := doRequest(f, "GET", "/api/v1/license/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status: got %d, want %d", rr.Code, http.StatusOK)
	}
	var snap license.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalAcquired != 1 {
		t.Errorf("total acquired: got %d, want 1", snap.TotalAcquired)
	}

	rr = doRequest(f, "POST", "/api/v1/license/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalAcquired != 0 {
		t.Errorf("total acquired after reset: got %d, want 0", snap.TotalAcquired)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newTestServer(t)

	rr := doRequest(f, "GET", "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	var report healthuc.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != healthuc.Healthy {
		t.Errorf("status: got %s, want %s", report.Status, healthuc.Healthy)
	}
}

func TestHealthEndpoint_Degraded(t *testing.T) {
	logger := zap.NewNop()
	srv := NewServer(
		searchuc.New(field.Default(), &stubSearchRepo{}, &stubRecordRepo{}),
		ingestuc.New(&stubWriter{}, &stubWriter{}, ingestuc.Options{}, logger),
		nil,
		healthuc.New(&stubHealthStore{pingErr: errors.New("connection refused")}, &stubHealthStore{}, nil),
		&stubFetcher{},
		&stubGenerator{},
		100,
		logger,
	)
	r := chi.NewRouter()
	srv.Mount(r)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
