package cipherdex

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// Query kinds.
const (
	KindEquality  = "equality"
	KindPrefix    = "prefix"
	KindSubstring = "substring"
)

// Search modes.
const (
	ModeHybrid          = "hybrid"
	ModeSearchStoreOnly = "search_store_only"
)

// SearchOptions configures a search query. Zero values fall back to the
// server defaults (equality, hybrid, limit 100).
type SearchOptions struct {
	Kind  string
	Mode  string
	Limit int
}

// SearchHit is one search result entry. Record is nil when the server
// could only resolve the identifier.
type SearchHit struct {
	ID     string    `json:"customer_id"`
	Record *Customer `json:"record,omitempty"`
}

// StageTimings reports per-stage server latency in milliseconds.
type StageTimings struct {
	SearchMs float64 `json:"search_ms"`
	FetchMs  float64 `json:"fetch_ms"`
	TotalMs  float64 `json:"total_ms"`
}

// SearchResult is the assembled outcome of one search query.
type SearchResult struct {
	Mode     string       `json:"mode"`
	Count    int          `json:"count"`
	Results  []SearchHit  `json:"results"`
	Partial  bool         `json:"partial"`
	Warnings []string     `json:"warnings,omitempty"`
	Stages   StageTimings `json:"stages"`
}

// Search queries the encrypted search index for field=value matches.
func (c *Client) Search(ctx context.Context, field, value string, opts *SearchOptions) (*SearchResult, error) {
	if field == "" {
		return nil, errors.New("cipherdex: field is required")
	}
	if value == "" {
		return nil, errors.New("cipherdex: value is required")
	}
	if opts == nil {
		opts = &SearchOptions{}
	}

	q := url.Values{}
	q.Set("field", field)
	q.Set("value", value)
	if opts.Kind != "" {
		q.Set("kind", opts.Kind)
	}
	if opts.Mode != "" {
		q.Set("mode", opts.Mode)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	var res SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/customers/search", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
