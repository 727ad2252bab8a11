// Package recordstore adapts the fully-encrypted system-of-record store.
// Every record is sealed client-side before it reaches the backend; the
// backend only ever sees the id and an opaque blob.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cipherdex/internal/crypto"
	"github.com/kailas-cloud/cipherdex/internal/db"
	"github.com/kailas-cloud/cipherdex/internal/domain"
	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
)

// store is the consumer interface for record store operations (ISP).
type store interface {
	Ping(ctx context.Context) error
	Put(ctx context.Context, id string, payload []byte) error
	GetBatch(ctx context.Context, ids []string) (map[string][]byte, error)
	Delete(ctx context.Context, id string) error
	CountExisting(ctx context.Context, ids []string) (int, error)
	Count(ctx context.Context) (int64, error)
}

// Repo implements the RecordStore adapter contract.
type Repo struct {
	store store
	codec *crypto.Codec
}

// New creates a record store repository.
func New(s store, codec *crypto.Codec) *Repo {
	return &Repo{store: s, codec: codec}
}

// Fetch returns the full record for one id, or domain.ErrNotFound.
func (r *Repo) Fetch(ctx context.Context, id string) (*customer.Record, error) {
	records, err := r.FetchMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	rec := records[0]
	return &rec, nil
}

// FetchMany returns the full records for the given ids. Absent ids are
// omitted from the result, not errors; the orchestrator decides whether a
// gap is a partial-result condition.
func (r *Repo) FetchMany(ctx context.Context, ids []string) ([]customer.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	blobs, err := r.store.GetBatch(ctx, ids)
	if err != nil {
		return nil, unavailable(err)
	}

	records := make([]customer.Record, 0, len(blobs))
	for _, id := range ids {
		blob, ok := blobs[id]
		if !ok {
			continue
		}
		rec, err := r.open(id, blob)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Insert seals and stores a record under its id.
func (r *Repo) Insert(ctx context.Context, rec *customer.Record) error {
	plain, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}
	sealed, err := r.codec.EncryptPayload(plain)
	if err != nil {
		return fmt.Errorf("encrypt record %s: %w", rec.ID, err)
	}

	if err := r.store.Put(ctx, rec.ID, sealed); err != nil {
		if errors.Is(err, db.ErrKeyExists) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateRecord, rec.ID)
		}
		return unavailable(err)
	}
	return nil
}

// Delete removes a record. Deleting an absent id is a no-op success.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping checks backend connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// Count returns the store's total record count.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.Count(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// CountExisting returns how many of the given ids are present.
func (r *Repo) CountExisting(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.store.CountExisting(ctx, ids)
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (r *Repo) open(id string, blob []byte) (customer.Record, error) {
	plain, err := r.codec.DecryptPayload(blob)
	if err != nil {
		return customer.Record{}, fmt.Errorf("decrypt record %s: %w", id, err)
	}
	var rec customer.Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return customer.Record{}, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return rec, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrRecordStoreUnavailable, err)
}
