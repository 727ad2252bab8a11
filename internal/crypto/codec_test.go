package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	c, err := NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodec_ShortKey(t *testing.T) {
	if _, err := NewCodec([]byte("short")); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestNewCodecFromBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 48))
	if _, err := NewCodecFromBase64(encoded + "\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewCodecFromBase64("not-base64!!!"); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
}

func TestEqualityToken_DeterministicAndCaseInsensitive(t *testing.T) {
	c := testCodec(t)

	a := c.EqualityToken("phone", "+1-555-0101")
	b := c.EqualityToken("phone", "+1-555-0101")
	if a != b {
		t.Error("token not deterministic")
	}

	if c.EqualityToken("status", "Active") != c.EqualityToken("status", "active") {
		t.Error("token should be case-insensitive")
	}

	if c.EqualityToken("status", "active") == c.EqualityToken("category", "active") {
		t.Error("token must be bound to the field name")
	}
}

func TestPrefixTokens(t *testing.T) {
	c := testCodec(t)

	tokens := c.PrefixTokens("email", "john", 1, 50)
	if len(tokens) != 4 {
		t.Fatalf("expected 4 prefix tokens, got %d", len(tokens))
	}

	// A prefix query computes one token; it must be among the stored ones.
	query := c.PrefixTokens("email", "joh", 3, 3)
	if len(query) != 1 {
		t.Fatalf("expected 1 query token, got %d", len(query))
	}
	found := false
	for _, tok := range tokens {
		if tok == query[0] {
			found = true
		}
	}
	if !found {
		t.Error("query token not found among stored prefix tokens")
	}
}

func TestSubstringTokens(t *testing.T) {
	c := testCodec(t)

	stored := c.SubstringTokens("full_name", "John Smith", 2, 10)
	query := c.SubstringTokens("full_name", "mit", 3, 3)
	if len(query) != 1 {
		t.Fatalf("expected 1 query token, got %d", len(query))
	}

	found := false
	for _, tok := range stored {
		if tok == query[0] {
			found = true
		}
	}
	if !found {
		t.Error("substring query token not found among stored tokens")
	}

	// Repeated windows dedupe: "aaaa" has one distinct 2-window.
	if got := len(c.SubstringTokens("f", "aaaa", 2, 2)); got != 1 {
		t.Errorf("expected 1 deduped token, got %d", got)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	c := testCodec(t)

	plaintext := []byte(`{"customer_id":"abc","full_name":"John Smith"}`)
	blob, err := c.EncryptPayload(plaintext)
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	if bytes.Contains(blob, []byte("John")) {
		t.Error("payload not encrypted")
	}

	got, err := c.DecryptPayload(blob)
	if err != nil {
		t.Fatalf("DecryptPayload: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestDecryptPayload_Tampered(t *testing.T) {
	c := testCodec(t)

	blob, err := c.EncryptPayload([]byte("secret"))
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	blob[len(blob)-1] ^= 0xFF

	if _, err := c.DecryptPayload(blob); !errors.Is(err, ErrInvalidBlob) {
		t.Fatalf("expected ErrInvalidBlob, got %v", err)
	}

	if _, err := c.DecryptPayload([]byte{1, 2}); !errors.Is(err, ErrInvalidBlob) {
		t.Fatalf("expected ErrInvalidBlob for short blob, got %v", err)
	}
}
