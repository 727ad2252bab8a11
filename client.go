// Package cipherdex provides a thin Go client for the cipherdex REST API.
package cipherdex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to a cipherdex API server.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// New creates a client for the API server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("cipherdex: base URL is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cipherdex: %s (%d %s)", e.Message, e.StatusCode, e.Code)
}

// Address mirrors the customer address payload.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// Preferences mirrors the customer preferences payload.
type Preferences struct {
	Newsletter bool `json:"newsletter"`
	SMS        bool `json:"sms"`
}

// Customer is one customer record as served by the API.
type Customer struct {
	ID               string      `json:"customer_id"`
	FullName         string      `json:"full_name"`
	Email            string      `json:"email"`
	Phone            string      `json:"phone"`
	Address          Address     `json:"address"`
	Preferences      Preferences `json:"preferences"`
	Tier             string      `json:"tier"`
	Category         string      `json:"category"`
	Status           string      `json:"status"`
	LoyaltyPoints    *int        `json:"loyalty_points"`
	LifetimeValue    *float64    `json:"lifetime_value"`
	LastPurchaseDate *string     `json:"last_purchase_date"`
}

// IngestSummary reports the outcome of one ingestion run.
type IngestSummary struct {
	Generated        int      `json:"generated"`
	Committed        int      `json:"committed"`
	RolledBack       int      `json:"rolled_back"`
	Failed           int      `json:"failed"`
	SearchStoreCount int      `json:"search_store_count"`
	RecordStoreCount int      `json:"record_store_count"`
	StoresAgree      bool     `json:"stores_agree"`
	Warnings         []string `json:"warnings,omitempty"`
}

// LicenseStats reports the concurrency license gate counters.
type LicenseStats struct {
	Ceiling         int    `json:"max_allowed_concurrent"`
	Current         int    `json:"current_requests"`
	Peak            int    `json:"max_concurrent_reached"`
	TotalAcquired   uint64 `json:"total_requests"`
	TotalThrottled  uint64 `json:"throttled_requests"`
	TotalViolations uint64 `json:"license_violations"`
}

// VirtualResult is one served view query.
type VirtualResult struct {
	View           string           `json:"view"`
	Rows           []map[string]any `json:"rows"`
	RowCount       int              `json:"row_count"`
	LicenseWarning bool             `json:"license_warning"`
}

// HealthReport is the server's dependency health summary.
type HealthReport struct {
	Status           string            `json:"status"`
	Checks           map[string]string `json:"checks"`
	SearchStoreCount int64             `json:"search_store_count"`
	RecordStoreCount int64             `json:"record_store_count"`
}

// Customer fetches one full record by id.
func (c *Client) Customer(ctx context.Context, id string) (*Customer, error) {
	if id == "" {
		return nil, errors.New("cipherdex: customer id is required")
	}
	var rec Customer
	if err := c.do(ctx, http.MethodGet, "/api/v1/customers/"+url.PathEscape(id), nil, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Ingest generates and loads count synthetic records. A count of zero
// uses the server default.
func (c *Client) Ingest(ctx context.Context, count int) (*IngestSummary, error) {
	body := map[string]int{"count": count}
	var summary IngestSummary
	if err := c.do(ctx, http.MethodPost, "/api/v1/ingest", nil, body, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// VirtualSearch queries a view through the virtualization layer.
func (c *Client) VirtualSearch(ctx context.Context, view string, filters map[string]string, limit int) (*VirtualResult, error) {
	if view == "" {
		return nil, errors.New("cipherdex: view is required")
	}
	q := url.Values{}
	q.Set("view", view)
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	for k, v := range filters {
		q.Set(k, v)
	}
	var res VirtualResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/virtual/search", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LicenseStats fetches the current license gate counters.
func (c *Client) LicenseStats(ctx context.Context) (*LicenseStats, error) {
	var stats LicenseStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/license/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ResetLicenseStats clears the license gate counters and returns the
// post-reset snapshot.
func (c *Client) ResetLicenseStats(ctx context.Context) (*LicenseStats, error) {
	var stats LicenseStats
	if err := c.do(ctx, http.MethodPost, "/api/v1/license/reset", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health fetches the server's dependency health report.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var report HealthReport
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &report)
	// A degraded server answers 503 with the same report body.
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && report.Status != "" {
		return &report, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cipherdex: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("cipherdex: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("cipherdex: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cipherdex: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// Decode the success shape too so callers like Health can
		// inspect a 503 body.
		if out != nil {
			_ = json.Unmarshal(data, out)
		}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cipherdex: decode response: %w", err)
	}
	return nil
}
