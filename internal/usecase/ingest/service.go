package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
	domingest "github.com/kailas-cloud/cipherdex/internal/domain/ingest"
)

// DefaultBatchSize is the sub-batch size between consistency checks.
const DefaultBatchSize = 100

// Options tune an ingestion run.
type Options struct {
	// BatchSize is the number of records between consistency checks.
	BatchSize int
	// PerRecordTimeout bounds the two-store write of one record. Zero
	// means no per-record deadline.
	PerRecordTimeout time.Duration
	// HaltOnMismatch stops the run at the first sub-batch whose store
	// counts disagree. Off by default: mismatches are reported as
	// warnings and the run continues.
	HaltOnMismatch bool
}

// Service coordinates dual-store ingestion. The search store is written
// first; a record store failure triggers a compensating delete so that no
// record is ever searchable without being fetchable.
type Service struct {
	search  SearchWriter
	records RecordWriter
	opts    Options
	logger  *zap.Logger
}

// New creates an ingestion service.
func New(search SearchWriter, records RecordWriter, opts Options, logger *zap.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{search: search, records: records, opts: opts, logger: logger}
}

// Run ingests the given records and reports per-run totals. Store counts
// in the summary are measured independently in each store after the run,
// never taken from the in-memory tally.
func (s *Service) Run(ctx context.Context, records []customer.Record) (*domingest.Summary, error) {
	summary := &domingest.Summary{Generated: len(records)}
	var committed []string

	for start := 0; start < len(records); start += s.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		end := min(start+s.opts.BatchSize, len(records))
		batchCommitted := make([]string, 0, end-start)

		for i := start; i < end; i++ {
			outcome := s.processOne(ctx, &records[i])
			summary.Tally(outcome)

			switch outcome.Status() {
			case domingest.StatusCommitted:
				batchCommitted = append(batchCommitted, outcome.ID())
			case domingest.StatusRolledBack:
				s.logger.Warn("record store rejected record, search store entry compensated",
					zap.String("id", outcome.ID()), zap.Error(outcome.Err()))
				if errors.Is(outcome.Err(), errCompensationFailed) {
					summary.Warnings = append(summary.Warnings,
						fmt.Sprintf("compensating delete failed for %s, search store may hold an orphan", outcome.ID()))
				}
			case domingest.StatusFailed:
				s.logger.Warn("search store rejected record",
					zap.String("id", outcome.ID()), zap.Error(outcome.Err()))
				if errors.Is(outcome.Err(), errCompensationFailed) {
					summary.Warnings = append(summary.Warnings,
						fmt.Sprintf("compensating delete failed for %s, search store may hold an orphan", outcome.ID()))
				}
			}
		}

		committed = append(committed, batchCommitted...)

		agree, err := s.validateBatch(ctx, batchCommitted)
		if err != nil {
			return summary, fmt.Errorf("validate batch: %w", err)
		}
		if !agree {
			msg := fmt.Sprintf("store counts disagree after records %d-%d", start+1, end)
			summary.Warnings = append(summary.Warnings, msg)
			s.logger.Error("consistency check failed", zap.Int("batch_start", start+1), zap.Int("batch_end", end))
			if s.opts.HaltOnMismatch {
				summary.Warnings = append(summary.Warnings, "run halted on mismatch")
				break
			}
		}
	}

	if err := s.finalCounts(ctx, committed, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

var errCompensationFailed = errors.New("compensating delete failed")

// processOne writes one record to both stores. The compensating delete
// runs outside the per-record deadline: an expired deadline must not leave
// a searchable orphan behind.
func (s *Service) processOne(ctx context.Context, rec *customer.Record) domingest.Outcome {
	writeCtx := ctx
	if s.opts.PerRecordTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, s.opts.PerRecordTimeout)
		defer cancel()
	}

	if err := s.search.Insert(writeCtx, rec); err != nil {
		// The adapter may have written index entries before failing.
		// Delete is idempotent, so a clean failure costs one no-op.
		if derr := s.search.Delete(context.WithoutCancel(ctx), rec.ID); derr != nil {
			return domingest.NewFailed(rec.ID,
				errors.Join(err, fmt.Errorf("%w: %w", errCompensationFailed, derr)))
		}
		return domingest.NewFailed(rec.ID, err)
	}

	if err := s.records.Insert(writeCtx, rec); err != nil {
		if derr := s.search.Delete(context.WithoutCancel(ctx), rec.ID); derr != nil {
			return domingest.NewRolledBack(rec.ID,
				errors.Join(err, fmt.Errorf("%w: %w", errCompensationFailed, derr)))
		}
		return domingest.NewRolledBack(rec.ID, err)
	}
	return domingest.NewCommitted(rec.ID)
}

// validateBatch counts the batch's committed ids in both stores in
// parallel and reports whether the stores agree.
func (s *Service) validateBatch(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	searchCount, recordCount, err := s.countBoth(ctx, ids)
	if err != nil {
		return false, err
	}
	return searchCount == len(ids) && recordCount == len(ids), nil
}

// finalCounts fills the summary with independent per-store counts over
// every committed id of the run.
func (s *Service) finalCounts(ctx context.Context, committed []string, summary *domingest.Summary) error {
	if len(committed) == 0 {
		summary.StoresAgree = true
		return nil
	}
	searchCount, recordCount, err := s.countBoth(ctx, committed)
	if err != nil {
		return fmt.Errorf("final count: %w", err)
	}
	summary.SearchStoreCount = searchCount
	summary.RecordStoreCount = recordCount
	summary.StoresAgree = searchCount == recordCount && searchCount == len(committed)
	return nil
}

func (s *Service) countBoth(ctx context.Context, ids []string) (searchCount, recordCount int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var cerr error
		searchCount, cerr = s.search.CountExisting(gctx, ids)
		return cerr
	})
	g.Go(func() error {
		var cerr error
		recordCount, cerr = s.records.CountExisting(gctx, ids)
		return cerr
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return searchCount, recordCount, nil
}
