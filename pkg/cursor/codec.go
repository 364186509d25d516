// Package cursor implements opaque, tamper-evident pagination cursors.
//
// A cursor wraps a keyset boundary value (a fully-qualified name) in
// authenticated encryption so clients can round-trip it but never
// inspect or forge it. Any modification of a token is detected at
// decode time and surfaced as an invalid-cursor error, never as a
// silently wrong boundary.
package cursor

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/opencatalog/catalog.core/pkg/apperror"
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

// Codec encrypts and decrypts pagination boundary values with a
// process-wide symmetric key. It is stateless and safe for concurrent use.
type Codec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewCodec creates a codec from a 32-byte key. The key may be given
// raw or hex-encoded (64 hex characters).
func NewCodec(key string) (*Codec, error) {
	raw := []byte(key)
	if len(key) == hex.EncodedLen(KeySize) {
		if decoded, err := hex.DecodeString(key); err == nil {
			raw = decoded
		}
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("cursor key must be %d bytes, got %d", KeySize, len(raw))
	}

	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("create cursor cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode encrypts a boundary value into an opaque URL-safe token.
// A random nonce is prepended, so encoding the same boundary twice
// yields different tokens; both decode to the same value.
func (c *Codec) Encode(boundary string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate cursor nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(boundary), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode authenticates and decrypts a token back into its boundary
// value. Tampered, truncated, or otherwise malformed tokens fail with
// apperror.ErrInvalidCursor.
func (c *Codec) Decode(token string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", apperror.ErrInvalidCursor.WithInternal(err)
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return "", apperror.ErrInvalidCursor
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperror.ErrInvalidCursor.WithInternal(err)
	}
	return string(plaintext), nil
}
