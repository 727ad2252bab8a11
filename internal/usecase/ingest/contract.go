package ingest

import (
	"context"

	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
)

// SearchWriter defines the search store contract for ingestion.
type SearchWriter interface {
	Insert(ctx context.Context, rec *customer.Record) error
	Delete(ctx context.Context, id string) error
	CountExisting(ctx context.Context, ids []string) (int, error)
}

// RecordWriter defines the record store contract for ingestion.
type RecordWriter interface {
	Insert(ctx context.Context, rec *customer.Record) error
	Delete(ctx context.Context, id string) error
	CountExisting(ctx context.Context, ids []string) (int, error)
}
