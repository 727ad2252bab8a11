package virtual

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/cipherdex/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:  srv.URL,
		Username: "svc",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestQuery(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass
		json.NewEncoder(w).Encode(map[string]any{
			"name": "customers",
			"elements": []map[string]any{
				{"customer_id": "c-1", "status": "active"},
				{"customer_id": "c-2", "status": "active"},
			},
		})
	}))

	rs, err := c.Query(context.Background(), "customers", map[string]string{"status": "active"}, 100)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if gotPath != "/views/customers" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "svc:secret" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if got := gotQuery["status"]; len(got) != 1 || got[0] != "active" {
		t.Fatalf("status filter = %v", got)
	}
	if got := gotQuery["$limit"]; len(got) != 1 || got[0] != "100" {
		t.Fatalf("$limit = %v", got)
	}
	if rs.View != "customers" || len(rs.Rows) != 2 {
		t.Fatalf("result = %+v", rs)
	}
	if rs.Truncated {
		t.Fatal("2 rows under a limit of 100 marked truncated")
	}
}

func TestQueryClampsLimit(t *testing.T) {
	var gotLimit string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("$limit")
		json.NewEncoder(w).Encode(map[string]any{"name": "customers", "elements": []map[string]any{}})
	}))

	if _, err := c.Query(context.Background(), "customers", nil, MaxRowsPerQuery*5); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if gotLimit != "10000" {
		t.Fatalf("$limit = %q, want clamped 10000", gotLimit)
	}
}

func TestQueryTruncation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows := make([]map[string]any, 5)
		for i := range rows {
			rows[i] = map[string]any{"customer_id": i}
		}
		json.NewEncoder(w).Encode(map[string]any{"name": "customers", "elements": rows})
	}))

	rs, err := c.Query(context.Background(), "customers", nil, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !rs.Truncated {
		t.Fatal("row count at the limit must set Truncated")
	}
}

func TestQueryServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "license pool exhausted", http.StatusServiceUnavailable)
	}))

	_, err := c.Query(context.Background(), "customers", nil, 10)
	if !errors.Is(err, domain.ErrVirtualUnavailable) {
		t.Fatalf("err = %v, want ErrVirtualUnavailable", err)
	}
}

func TestQueryEmptyView(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Query(context.Background(), "", nil, 10)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestPing(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if gotPath != "/health" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
