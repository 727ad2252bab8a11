package generator

import (
	"strings"
	"testing"
)

func TestBatchShape(t *testing.T) {
	records := NewSeeded(1).Batch(10)
	if len(records) != 10 {
		t.Fatalf("got %d records, want 10", len(records))
	}

	seen := make(map[string]struct{})
	for _, rec := range records {
		if rec.ID == "" {
			t.Fatal("empty id")
		}
		if _, dup := seen[rec.ID]; dup {
			t.Fatalf("duplicate id %s", rec.ID)
		}
		seen[rec.ID] = struct{}{}

		if rec.FullName == "" || !strings.Contains(rec.FullName, " ") {
			t.Fatalf("malformed full name %q", rec.FullName)
		}
		if !strings.HasSuffix(rec.Email, "@example.com") {
			t.Fatalf("malformed email %q", rec.Email)
		}
		if !strings.HasPrefix(rec.Phone, "+1-555-") || len(rec.Phone) != 11 {
			t.Fatalf("malformed phone %q", rec.Phone)
		}
		if rec.LoyaltyPoints == nil || *rec.LoyaltyPoints < 0 || *rec.LoyaltyPoints > 1000 {
			t.Fatalf("loyalty points out of range: %v", rec.LoyaltyPoints)
		}
		if rec.LifetimeValue == nil || *rec.LifetimeValue < 100 || *rec.LifetimeValue > 10000 {
			t.Fatalf("lifetime value out of range: %v", rec.LifetimeValue)
		}
		if rec.LastPurchaseDate == nil || *rec.LastPurchaseDate == "" {
			t.Fatal("missing last purchase date")
		}
	}
}

func TestLargeBatchEmailsUnique(t *testing.T) {
	records := NewSeeded(7).Batch(200)
	emails := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := emails[rec.Email]; dup {
			t.Fatalf("duplicate email %s in large batch", rec.Email)
		}
		emails[rec.Email] = struct{}{}
	}
}

func TestSeededReproducible(t *testing.T) {
	a := NewSeeded(42).Batch(5)
	b := NewSeeded(42).Batch(5)
	for i := range a {
		if a[i].FullName != b[i].FullName || a[i].Phone != b[i].Phone {
			t.Fatalf("batch diverged at %d: %q vs %q", i, a[i].FullName, b[i].FullName)
		}
	}
}
