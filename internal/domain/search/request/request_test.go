package request

import (
	"testing"

	"github.com/kailas-cloud/cipherdex/internal/domain/field"
	"github.com/kailas-cloud/cipherdex/internal/domain/search/mode"
)

func TestNew_Defaults(t *testing.T) {
	r, err := New("phone", "+1-555-0101", "", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Kind() != field.Equality {
		t.Errorf("Kind() = %q, want equality", r.Kind())
	}
	if r.Mode() != mode.Hybrid {
		t.Errorf("Mode() = %q, want hybrid", r.Mode())
	}
	if r.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", r.Limit(), DefaultLimit)
	}
}

func TestNew_LimitClamp(t *testing.T) {
	r, err := New("phone", "x", field.Equality, mode.Hybrid, MaxLimit+1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Limit() != MaxLimit {
		t.Errorf("Limit() = %d, want %d", r.Limit(), MaxLimit)
	}
}

func TestNew_Invalid(t *testing.T) {
	cases := []struct {
		name      string
		field     string
		value     string
		kind      field.Class
		m         mode.Mode
	}{
		{"empty field", "", "v", field.Equality, mode.Hybrid},
		{"empty value", "phone", "", field.Equality, mode.Hybrid},
		{"bad kind", "phone", "v", "suffix", mode.Hybrid},
		{"bad mode", "phone", "v", field.Equality, "denodo"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.field, tt.value, tt.kind, tt.m, 10); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
