package health

import "context"

// Pinger checks one dependency's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter reports a store's total record count.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Store is a countable, pingable dependency.
type Store interface {
	Pinger
	Counter
}
