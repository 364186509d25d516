package cursor

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/catalog.core/pkg/apperror"
)

const testKey = "0123456789abcdef0123456789abcdef" // 32 raw bytes

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testKey)
	require.NoError(t, err)
	return c
}

func TestNewCodec(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"raw 32-byte key", testKey, false},
		{"hex-encoded key", strings.Repeat("ab", 32), false},
		{"too short", "short", true},
		{"too long", testKey + "x", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	boundaries := []string{
		"s3-primary:/reports/2024",
		"mysql.sales.orders",
		"",
		strings.Repeat("long-fqn-segment.", 100),
		"unicode-ünïcødé:/päth",
	}

	for _, boundary := range boundaries {
		token, err := c.Encode(boundary)
		require.NoError(t, err)
		assert.NotEqual(t, boundary, token)

		decoded, err := c.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, boundary, decoded)
	}
}

func TestCodecEncodeIsNondeterministic(t *testing.T) {
	c := newTestCodec(t)

	t1, err := c.Encode("s3-primary:/a")
	require.NoError(t, err)
	t2, err := c.Encode("s3-primary:/a")
	require.NoError(t, err)

	// Random nonce means distinct tokens for the same boundary.
	assert.NotEqual(t, t1, t2)

	d1, err := c.Decode(t1)
	require.NoError(t, err)
	d2, err := c.Decode(t2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestCodecDecodeTampered(t *testing.T) {
	c := newTestCodec(t)

	token, err := c.Encode("s3-primary:/reports")
	require.NoError(t, err)

	// Flip one byte of the sealed payload.
	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	_, err = c.Decode(tampered)
	require.Error(t, err)
	appErr, ok := err.(*apperror.Error)
	require.True(t, ok, "expected *apperror.Error, got %T", err)
	assert.Equal(t, apperror.ErrInvalidCursor.Code, appErr.Code)
}

func TestCodecDecodeMalformed(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"empty", ""},
		{"too short for nonce", base64.RawURLEncoding.EncodeToString([]byte("tiny"))},
		{"random garbage", base64.RawURLEncoding.EncodeToString([]byte(strings.Repeat("x", 64)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.token)
			require.Error(t, err)
			appErr, ok := err.(*apperror.Error)
			require.True(t, ok, "expected *apperror.Error, got %T", err)
			assert.Equal(t, "invalid_cursor", appErr.Code)
		})
	}
}

func TestCodecDecodeWrongKey(t *testing.T) {
	c1 := newTestCodec(t)
	c2, err := NewCodec("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	token, err := c1.Encode("mysql.sales.orders")
	require.NoError(t, err)

	// Cursors are not stable across key changes.
	_, err = c2.Decode(token)
	assert.Error(t, err)
}
