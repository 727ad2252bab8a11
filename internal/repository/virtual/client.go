// Package virtual is the REST client for the data-virtualization service.
// The service fronts the record store behind a view catalog and enforces a
// concurrency-capped license, so callers must hold a gate permit before
// issuing any request.
package virtual

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kailas-cloud/cipherdex/internal/domain"
)

// MaxRowsPerQuery is the hard row cap the service enforces per request.
const MaxRowsPerQuery = 10000

// DefaultTimeout bounds a single virtualization request.
const DefaultTimeout = 30 * time.Second

// Config holds connection parameters for the virtualization service.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client issues view queries against the virtualization REST API.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	password string
}

// New creates a client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("virtualization base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("virtualization base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

// NewWithHTTPClient wraps an existing HTTP client. Used by tests.
func NewWithHTTPClient(cfg Config, hc *http.Client) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	c.http = hc
	return c, nil
}

// ResultSet is one page of view rows.
type ResultSet struct {
	View string
	Rows []map[string]any

	// Truncated is set when the service returned exactly the row cap,
	// meaning more rows likely exist but the license tier cut them off.
	Truncated bool
}

// envelope is the service's response wrapper.
type envelope struct {
	Name     string           `json:"name"`
	Elements []map[string]any `json:"elements"`
}

// Query runs a filtered view query. Filters become query string parameters
// verbatim; limit is clamped to MaxRowsPerQuery.
func (c *Client) Query(ctx context.Context, view string, filters map[string]string, limit int) (*ResultSet, error) {
	if view == "" {
		return nil, fmt.Errorf("%w: empty view name", domain.ErrInvalidQuery)
	}
	if limit <= 0 || limit > MaxRowsPerQuery {
		limit = MaxRowsPerQuery
	}

	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	q.Set("$limit", strconv.Itoa(limit))

	endpoint := c.baseURL + "/views/" + url.PathEscape(view) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVirtualUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: view %q returned status %d",
			domain.ErrVirtualUnavailable, view, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode view %q response: %w",
			domain.ErrVirtualUnavailable, view, err)
	}

	return &ResultSet{
		View:      env.Name,
		Rows:      env.Elements,
		Truncated: len(env.Elements) >= limit,
	}, nil
}

// Ping checks that the service answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrVirtualUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", domain.ErrVirtualUnavailable, resp.StatusCode)
	}
	return nil
}
