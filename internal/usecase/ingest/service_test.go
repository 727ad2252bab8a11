package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/cipherdex/internal/domain/customer"
	"github.com/kailas-cloud/cipherdex/internal/generator"
)

// mockStore serves as both store contracts in tests.
type mockStore struct {
	mu           sync.Mutex
	items        map[string]struct{}
	insertErrFor map[string]error
	deleteErrFor map[string]error
	countDelta   int
	deleteCalls  int
}

func newMockStore() *mockStore {
	return &mockStore{
		items:        make(map[string]struct{}),
		insertErrFor: make(map[string]error),
		deleteErrFor: make(map[string]error),
	}
}

func (m *mockStore) Insert(_ context.Context, rec *customer.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertErrFor[rec.ID]; err != nil {
		return err
	}
	m.items[rec.ID] = struct{}{}
	return nil
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if err := m.deleteErrFor[id]; err != nil {
		return err
	}
	delete(m.items, id)
	return nil
}

func (m *mockStore) CountExisting(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			n++
		}
	}
	n -= m.countDelta
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (m *mockStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok
}

func batch(n int) []customer.Record {
	return generator.NewSeeded(99).Batch(n)
}

func TestRunAllCommitted(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	svc := New(search, records, Options{}, nil)

	recs := batch(5)
	summary, err := svc.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Generated != 5 || summary.Committed != 5 || summary.RolledBack != 0 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.SearchStoreCount != 5 || summary.RecordStoreCount != 5 || !summary.StoresAgree {
		t.Fatalf("counts = %d/%d agree=%v", summary.SearchStoreCount, summary.RecordStoreCount, summary.StoresAgree)
	}
}

func TestRecordStoreFailureRollsBack(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	recs := batch(4)
	records.insertErrFor[recs[1].ID] = errors.New("write rejected")
	svc := New(search, records, Options{}, nil)

	summary, err := svc.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Committed != 3 || summary.RolledBack != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if search.has(recs[1].ID) {
		t.Fatal("rolled-back record still searchable")
	}
	if !summary.StoresAgree || summary.SearchStoreCount != 3 || summary.RecordStoreCount != 3 {
		t.Fatalf("counts = %d/%d agree=%v", summary.SearchStoreCount, summary.RecordStoreCount, summary.StoresAgree)
	}
}

func TestSearchStoreFailureSkipsRecordStore(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	recs := batch(3)
	search.insertErrFor[recs[0].ID] = errors.New("index rejected")
	svc := New(search, records, Options{}, nil)

	summary, err := svc.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Committed != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if records.has(recs[0].ID) {
		t.Fatal("record store written despite search store failure")
	}
}

func TestSearchStoreFailureCompensates(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	recs := batch(3)
	search.insertErrFor[recs[0].ID] = errors.New("index rejected")
	svc := New(search, records, Options{}, nil)

	summary, err := svc.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	// A failed insert may have left partial index entries behind, so the
	// coordinator must issue a delete for the failed record and no others.
	search.mu.Lock()
	calls := search.deleteCalls
	search.mu.Unlock()
	if calls != 1 {
		t.Fatalf("search delete calls = %d, want 1", calls)
	}
}

func TestFailedInsertCompensationFailureWarns(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	recs := batch(2)
	search.insertErrFor[recs[0].ID] = errors.New("index rejected")
	search.deleteErrFor[recs[0].ID] = errors.New("connection lost")
	svc := New(search, records, Options{}, nil)

	summary, err := svc.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Committed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "may hold an orphan") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no orphan warning in %v", summary.Warnings)
	}
}

func TestCompensationFailureWarns(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	recs := batch(2)
	records.insertErrFor[recs[0].ID] = errors.New("write rejected")
	search.deleteErrFor[recs[0].ID] = errors.New("connection lost")
	svc := New(search, records, Options{}, nil)

	summary, err := svc.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RolledBack != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "compensating delete failed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no orphan warning in %v", summary.Warnings)
	}
}

func TestMismatchWarnsAndContinues(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	search.countDelta = 1 // every count comes back one short
	svc := New(search, records, Options{BatchSize: 2}, nil)

	recs := batch(4)
	summary, err := svc.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Committed != 4 {
		t.Fatalf("run did not continue past mismatch: %+v", summary)
	}
	if summary.StoresAgree {
		t.Fatal("stores reported as agreeing despite short counts")
	}
	if len(summary.Warnings) == 0 {
		t.Fatal("mismatch produced no warnings")
	}
}

func TestHaltOnMismatch(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	search.countDelta = 1
	svc := New(search, records, Options{BatchSize: 2, HaltOnMismatch: true}, nil)

	recs := batch(6)
	summary, err := svc.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Committed != 2 {
		t.Fatalf("committed = %d, want halt after the first sub-batch", summary.Committed)
	}
	if records.has(recs[4].ID) {
		t.Fatal("records written after halt")
	}
}

func TestContextCancelStopsRun(t *testing.T) {
	search, records := newMockStore(), newMockStore()
	svc := New(search, records, Options{BatchSize: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.Run(ctx, batch(10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if summary.Committed != 0 {
		t.Fatalf("committed = %d after immediate cancel", summary.Committed)
	}
}
