package health

import (
	"context"
	"errors"
	"testing"
)

type mockStore struct {
	pingErr  error
	count    int64
	countErr error
}

func (m *mockStore) Ping(context.Context) error           { return m.pingErr }
func (m *mockStore) Count(context.Context) (int64, error) { return m.count, m.countErr }

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

func TestCheckAllHealthy(t *testing.T) {
	svc := New(&mockStore{count: 120}, &mockStore{count: 118}, &mockPinger{})

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("status = %s", report.Status)
	}
	for name, result := range report.Checks {
		if result != CheckOK {
			t.Fatalf("check %s = %s", name, result)
		}
	}
	if report.SearchStoreCount != 120 || report.RecordStoreCount != 118 {
		t.Fatalf("counts = %d/%d", report.SearchStoreCount, report.RecordStoreCount)
	}
}

func TestCheckDegraded(t *testing.T) {
	svc := New(&mockStore{pingErr: errors.New("refused")}, &mockStore{}, nil)

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Fatalf("status = %s", report.Status)
	}
	if report.Checks["search_store"] != CheckError {
		t.Fatalf("search check = %s", report.Checks["search_store"])
	}
	if report.Checks["record_store"] != CheckOK {
		t.Fatalf("record check = %s", report.Checks["record_store"])
	}
	if _, ok := report.Checks["virtualization"]; ok {
		t.Fatal("nil virtual pinger must not be checked")
	}
}

func TestCheckCountFailureKeepsStatus(t *testing.T) {
	svc := New(&mockStore{countErr: errors.New("slow")}, &mockStore{count: 5}, nil)

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("status = %s, count failure must not degrade", report.Status)
	}
	if report.SearchStoreCount != 0 {
		t.Fatalf("search count = %d", report.SearchStoreCount)
	}
}
