// Package license implements the admission gate in front of the
// virtualization service, whose license caps simultaneous requests.
package license

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/cipherdex/internal/domain"
)

// DefaultCeiling matches the virtualization service's express license.
const DefaultCeiling = 3

// Snapshot is a consistent view of the gate counters.
type Snapshot struct {
	Ceiling         int    `json:"max_allowed_concurrent"`
	Current         int    `json:"current_requests"`
	Peak            int    `json:"max_concurrent_reached"`
	TotalAcquired   uint64 `json:"total_requests"`
	TotalThrottled  uint64 `json:"throttled_requests"`
	TotalViolations uint64 `json:"license_violations"`
}

// Gate is a counting admission gate with a fixed ceiling. A throttle event
// is recorded whenever a caller had to wait or was rejected; a violation is
// recorded only if more permits are ever held than the ceiling allows,
// which indicates a bug in the gate itself.
//
// Initialized once at process start and shared by reference; counters are
// reset only by explicit operator action.
type Gate struct {
	ceiling int
	sem     *semaphore.Weighted

	mu              sync.Mutex
	current         int
	peak            int
	totalAcquired   uint64
	totalThrottled  uint64
	totalViolations uint64
}

// New creates a gate with the given ceiling. Ceiling values below 1 fall
// back to DefaultCeiling.
func New(ceiling int) *Gate {
	if ceiling < 1 {
		ceiling = DefaultCeiling
	}
	return &Gate{
		ceiling: ceiling,
		sem:     semaphore.NewWeighted(int64(ceiling)),
	}
}

// Permit is a held admission slot. Release it exactly once.
type Permit struct {
	gate     *Gate
	released bool
	mu       sync.Mutex
}

// Acquire blocks until a slot is available or ctx is done. Having to wait
// counts as a throttle event.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	if !g.sem.TryAcquire(1) {
		g.mu.Lock()
		g.totalThrottled++
		g.mu.Unlock()

		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrWouldThrottle, err)
		}
	}
	return g.admit(), nil
}

// TryAcquire takes a slot without waiting. A full gate counts as a throttle
// event and returns ErrWouldThrottle.
func (g *Gate) TryAcquire() (*Permit, error) {
	if !g.sem.TryAcquire(1) {
		g.mu.Lock()
		g.totalThrottled++
		g.mu.Unlock()
		return nil, domain.ErrWouldThrottle
	}
	return g.admit(), nil
}

func (g *Gate) admit() *Permit {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.current++
	g.totalAcquired++
	if g.current > g.peak {
		g.peak = g.current
	}
	if g.current > g.ceiling {
		// Structurally impossible while the semaphore is honored.
		g.totalViolations++
	}
	return &Permit{gate: g}
}

// Release returns the permit's slot. Releasing twice is a programming
// error and fails fast.
func (p *Permit) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		panic(domain.ErrGateViolation.Error() + ": permit released twice")
	}
	p.released = true
	p.mu.Unlock()

	g := p.gate
	g.mu.Lock()
	g.current--
	g.mu.Unlock()
	g.sem.Release(1)
}

// Stats returns a snapshot of the gate counters.
func (g *Gate) Stats() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Ceiling:         g.ceiling,
		Current:         g.current,
		Peak:            g.peak,
		TotalAcquired:   g.totalAcquired,
		TotalThrottled:  g.totalThrottled,
		TotalViolations: g.totalViolations,
	}
}

// Reset clears the cumulative counters. In-flight permits keep their slots;
// only the statistics restart.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.peak = g.current
	g.totalAcquired = 0
	g.totalThrottled = 0
	g.totalViolations = 0
}
