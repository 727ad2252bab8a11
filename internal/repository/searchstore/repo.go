// Package searchstore adapts the encrypted, query-capable store. Values are
// indexed as deterministic tokens per registered algorithm class; the full
// searchable projection is kept alongside as an encrypted blob for
// decrypt-on-read mode.
package searchstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/cipherdex/internal/crypto"
	"github.com/kailas-cloud/cipherdex/internal/domain"
	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
	"github.com/kailas-cloud/cipherdex/internal/domain/field"
)

// DefaultKeyPrefix namespaces all search store keys.
const DefaultKeyPrefix = "cipherdex:"

// store is the consumer interface for search store operations (ISP).
type store interface {
	Ping(ctx context.Context) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SMIsMember(ctx context.Context, key string, members []string) ([]bool, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo implements the SearchStore adapter contract.
type Repo struct {
	store  store
	codec  *crypto.Codec
	table  *field.Table
	prefix string
}

// New creates a search store repository.
func New(s store, codec *crypto.Codec, table *field.Table) *Repo {
	return &Repo{store: s, codec: codec, table: table, prefix: DefaultKeyPrefix}
}

// WithKeyPrefix overrides the key namespace.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

// FindIDs resolves a query to the identifier set indexed under its token.
// No match is an empty slice, not an error.
func (r *Repo) FindIDs(ctx context.Context, fieldName string, kind field.Class, value string, limit int) ([]string, error) {
	token := r.queryToken(fieldName, kind, value)

	ids, err := r.store.SMembers(ctx, r.tokenKey(token))
	if err != nil {
		return nil, unavailable(err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Records decrypts the stored searchable projections for the given ids.
// Record-store-exclusive fields stay nil.
func (r *Repo) Records(ctx context.Context, ids []string) ([]customer.Record, error) {
	records := make([]customer.Record, 0, len(ids))
	for _, id := range ids {
		doc, err := r.store.HGetAll(ctx, r.docKey(id))
		if err != nil {
			return nil, unavailable(err)
		}
		blob, ok := doc["payload"]
		if !ok {
			// Index entry without a document: surface the id only.
			records = append(records, customer.Record{ID: id})
			continue
		}
		rec, err := r.decodePayload(id, blob)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Insert indexes and stores a record's searchable projection.
func (r *Repo) Insert(ctx context.Context, rec *customer.Record) error {
	docKey := r.docKey(rec.ID)

	exists, err := r.store.Exists(ctx, docKey)
	if err != nil {
		return unavailable(err)
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateRecord, rec.ID)
	}

	tokens, err := r.indexTokens(rec)
	if err != nil {
		return err
	}

	tokenKeys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		key := r.tokenKey(token)
		if err := r.store.SAdd(ctx, key, rec.ID); err != nil {
			r.unwindInsert(ctx, rec.ID, tokenKeys)
			return unavailable(err)
		}
		tokenKeys = append(tokenKeys, key)
	}

	// Remember which token sets reference the id so delete can unwind them.
	if err := r.store.SAdd(ctx, r.refKey(rec.ID), tokenKeys...); err != nil {
		r.unwindInsert(ctx, rec.ID, tokenKeys)
		return unavailable(err)
	}

	blob, err := r.encodePayload(rec)
	if err != nil {
		r.unwindInsert(ctx, rec.ID, tokenKeys)
		return err
	}
	if err := r.store.HSet(ctx, docKey, map[string]string{"payload": blob}); err != nil {
		r.unwindInsert(ctx, rec.ID, tokenKeys)
		return unavailable(err)
	}

	if err := r.store.SAdd(ctx, r.idsKey(), rec.ID); err != nil {
		r.unwindInsert(ctx, rec.ID, tokenKeys)
		return unavailable(err)
	}
	return nil
}

// unwindInsert removes whatever a failed Insert managed to write, so a
// record reported as never written cannot stay searchable. Best effort: it
// runs even when the caller's deadline already expired, and it cannot rely
// on the ref set, which may not have been written at the failure point.
func (r *Repo) unwindInsert(ctx context.Context, id string, tokenKeys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range tokenKeys {
		_ = r.store.SRem(ctx, key, id)
	}
	_ = r.store.Del(ctx, r.refKey(id), r.docKey(id))
	_ = r.store.SRem(ctx, r.idsKey(), id)
}

// Delete removes a record and all its index entries. Deleting an absent id
// is a no-op success, which is what the ingestion rollback relies on.
func (r *Repo) Delete(ctx context.Context, id string) error {
	refKey := r.refKey(id)

	tokenKeys, err := r.store.SMembers(ctx, refKey)
	if err != nil {
		return unavailable(err)
	}
	for _, key := range tokenKeys {
		if err := r.store.SRem(ctx, key, id); err != nil {
			return unavailable(err)
		}
	}

	if err := r.store.Del(ctx, refKey, r.docKey(id)); err != nil {
		return unavailable(err)
	}
	if err := r.store.SRem(ctx, r.idsKey(), id); err != nil {
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

// Count returns the total number of indexed records.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.SCard(ctx, r.idsKey())
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
	flags, err := r.store.SMIsMember(ctx, r.idsKey(), ids)
	if err != nil {
		return 0, unavailable(err)
	}
	n := 0
	for _, present := range flags {
		if present {
			n++
		}
	}
	return n, nil
}

// indexTokens computes every token the record must be indexed under,
// per the field's registered classes and preview bounds.
func (r *Repo) indexTokens(rec *customer.Record) ([]string, error) {
	var tokens []string
	for name, value := range rec.SearchProjection() {
		spec, err := r.table.Resolve(name)
		if err != nil {
			return nil, err
		}
		if spec.MaxLength > 0 && len(value) > spec.MaxLength {
			return nil, fmt.Errorf("%w: field %q value exceeds max length %d",
				domain.ErrInvalidQuery, name, spec.MaxLength)
		}
		for _, class := range spec.Classes {
			switch class {
			case field.Equality:
				tokens = append(tokens, r.codec.EqualityToken(name, value))
			case field.Prefix:
				tokens = append(tokens, r.codec.PrefixTokens(name, value, spec.MinQueryLength, spec.MaxQueryLength)...)
			case field.Substring:
				tokens = append(tokens, r.codec.SubstringTokens(name, value, spec.MinQueryLength, spec.MaxQueryLength)...)
			case field.Unindexed:
				// stored in the payload blob only
			}
		}
	}
	return tokens, nil
}

func (r *Repo) encodePayload(rec *customer.Record) (string, error) {
	copied := *rec
	copied.StripRecordStoreFields()

	plain, err := json.Marshal(&copied)
	if err != nil {
		return "", fmt.Errorf("marshal projection %s: %w", rec.ID, err)
	}
	sealed, err := r.codec.EncryptPayload(plain)
	if err != nil {
		return "", fmt.Errorf("encrypt projection %s: %w", rec.ID, err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (r *Repo) decodePayload(id, blob string) (customer.Record, error) {
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return customer.Record{}, fmt.Errorf("decode projection %s: %w", id, err)
	}
	plain, err := r.codec.DecryptPayload(sealed)
	if err != nil {
		return customer.Record{}, fmt.Errorf("decrypt projection %s: %w", id, err)
	}
	var rec customer.Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return customer.Record{}, fmt.Errorf("unmarshal projection %s: %w", id, err)
	}
	return rec, nil
}

// queryToken hashes the query the same way a stored fragment of the given
// class was hashed at insert time. Prefix and substring index entries are
// tokens of value fragments, so every query kind reduces to one lookup.
func (r *Repo) queryToken(fieldName string, _ field.Class, value string) string {
	return r.codec.EqualityToken(fieldName, value)
}

func (r *Repo) docKey(id string) string    { return r.prefix + "doc:" + id }
func (r *Repo) tokenKey(tok string) string { return r.prefix + "tok:" + tok }
func (r *Repo) refKey(id string) string    { return r.prefix + "ref:" + id }
func (r *Repo) idsKey() string             { return r.prefix + "ids" }

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
}
