// Package virtual serves view queries against the virtualization layer,
// admitting every request through the concurrency license gate.
package virtual

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cipherdex/internal/license"
	virtualstore "github.com/kailas-cloud/cipherdex/internal/repository/virtual"
)

// Querier defines the virtualization client contract.
type Querier interface {
	Query(ctx context.Context, view string, filters map[string]string, limit int) (*virtualstore.ResultSet, error)
}

// Response is one served view query.
type Response struct {
	View           string           `json:"view"`
	Rows           []map[string]any `json:"rows"`
	RowCount       int              `json:"row_count"`
	LicenseWarning bool             `json:"license_warning"`
}

// Service fronts the virtualization client with license admission. The
// gate is shared process-wide; holding a permit for the full duration of
// the downstream call is what keeps the license ceiling honest.
type Service struct {
	client Querier
	gate   *license.Gate
	logger *zap.Logger
}

// New creates a virtualization query service.
func New(client Querier, gate *license.Gate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, gate: gate, logger: logger}
}

// Query acquires a license slot, runs the view query and releases the
// slot. Waiting for a slot counts as a throttle event in the gate stats.
func (s *Service) Query(ctx context.Context, view string, filters map[string]string, limit int) (*Response, error) {
	permit, err := s.gate.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("license admission: %w", err)
	}
	defer permit.Release()

	rs, err := s.client.Query(ctx, view, filters, limit)
	if err != nil {
		return nil, err
	}

	if rs.Truncated {
		s.logger.Warn("view query hit the license row cap",
			zap.String("view", view), zap.Int("rows", len(rs.Rows)))
	}

	return &Response{
		View:           rs.View,
		Rows:           rs.Rows,
		RowCount:       len(rs.Rows),
		LicenseWarning: rs.Truncated,
	}, nil
}

// Stats returns the current license gate counters.
func (s *Service) Stats() license.Snapshot { return s.gate.Stats() }

// ResetStats clears the gate counters. In-flight requests keep their
// slots.
func (s *Service) ResetStats() { s.gate.Reset() }
