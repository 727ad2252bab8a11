// Package crypto implements the opaque encryption capabilities the two
// backing stores expose: deterministic tokens for the queryable algorithm
// classes and authenticated payload encryption for records at rest. The
// adapters treat these as store-supplied primitives; nothing outside the
// repository layer touches ciphertext.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// MinMasterKeyLen is the minimum accepted master key length in bytes.
const MinMasterKeyLen = 32

// ErrInvalidBlob signals a payload blob that cannot be authenticated.
var ErrInvalidBlob = errors.New("crypto: invalid payload blob")

// Codec derives a token MAC key and a payload AEAD from one master key.
// Tokens are deterministic so the search store can index them; payloads are
// random-nonce AES-256-GCM over an lz4-compressed plaintext.
type Codec struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewCodec creates a codec from a raw master key.
func NewCodec(masterKey []byte) (*Codec, error) {
	if len(masterKey) < MinMasterKeyLen {
		return nil, fmt.Errorf("master key too short: %d bytes, need %d", len(masterKey), MinMasterKeyLen)
	}

	payloadKey := deriveKey(masterKey, "payload")
	block, err := aes.NewCipher(payloadKey)
	if err != nil {
		return nil, fmt.Errorf("payload cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("payload aead: %w", err)
	}

	return &Codec{
		aead:   aead,
		macKey: deriveKey(masterKey, "token"),
	}, nil
}

// NewCodecFromBase64 creates a codec from a base64-encoded master key, the
// format the key file and configuration carry it in.
func NewCodecFromBase64(encoded string) (*Codec, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	return NewCodec(raw)
}

func deriveKey(master []byte, purpose string) []byte {
	h := hmac.New(sha256.New, master)
	h.Write([]byte("cipherdex/" + purpose))
	return h.Sum(nil)
}

// EqualityToken returns the deterministic index token for an exact-match
// lookup. Matching is case-insensitive, mirroring the store registration.
func (c *Codec) EqualityToken(fieldName, value string) string {
	return c.token(fieldName, strings.ToLower(value))
}

// PrefixTokens returns the index tokens for every queryable prefix of the
// value, bounded by [minLen, maxLen] (0 bounds default to 1 and the value
// length).
func (c *Codec) PrefixTokens(fieldName, value string, minLen, maxLen int) []string {
	norm := strings.ToLower(value)
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen <= 0 || maxLen > len(norm) {
		maxLen = len(norm)
	}

	var tokens []string
	for n := minLen; n <= maxLen; n++ {
		tokens = append(tokens, c.token(fieldName, norm[:n]))
	}
	return tokens
}

// SubstringTokens returns the index tokens for every queryable substring
// window of the value, bounded by [minLen, maxLen]. Duplicate windows
// produce one token.
func (c *Codec) SubstringTokens(fieldName, value string, minLen, maxLen int) []string {
	norm := strings.ToLower(value)
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen <= 0 || maxLen > len(norm) {
		maxLen = len(norm)
	}

	seen := make(map[string]struct{})
	var tokens []string
	for n := minLen; n <= maxLen; n++ {
		for i := 0; i+n <= len(norm); i++ {
			window := norm[i : i+n]
			if _, dup := seen[window]; dup {
				continue
			}
			seen[window] = struct{}{}
			tokens = append(tokens, c.token(fieldName, window))
		}
	}
	return tokens
}

func (c *Codec) token(fieldName, norm string) string {
	h := hmac.New(sha256.New, c.macKey)
	h.Write([]byte(fieldName))
	h.Write([]byte{0})
	h.Write([]byte(norm))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// EncryptPayload compresses and seals a record payload. The output is
// nonce || ciphertext.
func (c *Codec) EncryptPayload(plaintext []byte) ([]byte, error) {
	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	if _, err := zw.Write(plaintext); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("payload nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, compressed.Bytes(), nil), nil
}

// DecryptPayload opens and decompresses a record payload.
func (c *Codec) DecryptPayload(blob []byte) ([]byte, error) {
	if len(blob) < c.aead.NonceSize() {
		return nil, ErrInvalidBlob
	}
	nonce, ciphertext := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]

	compressed, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidBlob
	}

	plaintext, err := io.ReadAll(lz4.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return plaintext, nil
}
