package search

import (
	"context"

	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
	"github.com/kailas-cloud/cipherdex/internal/domain/field"
)

// SearchRepository defines the encrypted search store contract.
type SearchRepository interface {
	FindIDs(ctx context.Context, fieldName string, kind field.Class, value string, limit int) ([]string, error)
	Records(ctx context.Context, ids []string) ([]customer.Record, error)
}

// RecordRepository defines the record store contract for full-record fetches.
type RecordRepository interface {
	FetchMany(ctx context.Context, ids []string) ([]customer.Record, error)
}

// Router validates a query against the field encryption registrations
// before any store is contacted.
type Router interface {
	Validate(fieldName string, kind field.Class, value string) error
}
