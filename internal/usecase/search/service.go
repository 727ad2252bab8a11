package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/cipherdex/internal/domain"
	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
	"github.com/kailas-cloud/cipherdex/internal/domain/search/mode"
	"github.com/kailas-cloud/cipherdex/internal/domain/search/request"
	"github.com/kailas-cloud/cipherdex/internal/domain/search/result"
)

// Service orchestrates customer search across hybrid and search-store-only
// modes.
type Service struct {
	router  Router
	search  SearchRepository
	records RecordRepository
}

// New creates a search service.
func New(router Router, search SearchRepository, records RecordRepository) *Service {
	return &Service{router: router, search: search, records: records}
}

// Search executes one search request. The query is validated against the
// field's encryption registration before any store is contacted; an empty
// identifier set short-circuits without touching the record store.
func (s *Service) Search(ctx context.Context, req *request.Request) (*result.Result, error) {
	start := time.Now()

	if err := s.router.Validate(req.Field(), req.Kind(), req.Value()); err != nil {
		return nil, err
	}

	res := &result.Result{}

	searchStart := time.Now()
	ids, err := s.search.FindIDs(ctx, req.Field(), req.Kind(), req.Value(), req.Limit())
	if err != nil {
		return nil, fmt.Errorf("find ids: %w", err)
	}
	res.Stages.Search = time.Since(searchStart)

	if len(ids) == 0 {
		res.Stages.Total = time.Since(start)
		return res, nil
	}

	fetchStart := time.Now()
	switch req.Mode() {
	case mode.Hybrid:
		err = s.assembleHybrid(ctx, ids, res)
	case mode.SearchStoreOnly:
		err = s.assembleStoreOnly(ctx, ids, res)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode())
	}
	if err != nil {
		return nil, err
	}
	res.Stages.Fetch = time.Since(fetchStart)
	res.Stages.Total = time.Since(start)
	return res, nil
}

// assembleHybrid fetches full records for the matched ids. A degraded
// record store downgrades the response to identifiers only instead of
// failing the whole request.
func (s *Service) assembleHybrid(ctx context.Context, ids []string, res *result.Result) error {
	records, err := s.records.FetchMany(ctx, ids)
	if err != nil {
		if errors.Is(err, domain.ErrRecordStoreUnavailable) {
			for _, id := range ids {
				res.Entries = append(res.Entries, result.Entry{ID: id})
			}
			res.AddWarning("record store unavailable, returning identifiers only")
			return nil
		}
		return fmt.Errorf("fetch records: %w", err)
	}

	byID := make(map[string]*customer.Record, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}

	missing := 0
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			missing++
			res.Entries = append(res.Entries, result.Entry{ID: id})
			continue
		}
		res.Entries = append(res.Entries, result.Entry{ID: id, Record: rec})
	}
	if missing > 0 {
		res.AddWarning(fmt.Sprintf("%d of %d matches missing from record store", missing, len(ids)))
	}
	return nil
}

// assembleStoreOnly decrypts the searchable projections out of the search
// store. Record-store-exclusive fields stay nil.
func (s *Service) assembleStoreOnly(ctx context.Context, ids []string, res *result.Result) error {
	records, err := s.search.Records(ctx, ids)
	if err != nil {
		return fmt.Errorf("decrypt projections: %w", err)
	}
	for i := range records {
		res.Entries = append(res.Entries, result.Entry{ID: records[i].ID, Record: &records[i]})
	}
	return nil
}
