package security

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, fill byte) *[keySize]byte {
	t.Helper()
	key, err := ParseKey(base64.StdEncoding.EncodeToString([]byte(strings.Repeat(string(fill), keySize))))
	require.NoError(t, err)
	return key
}

func TestRoundTrip(t *testing.T) {
	key := testKey(t, 'k')
	sealed, err := EncryptWithKey(key, "smtp-password")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "smtp-password")

	plain, err := DecryptWithKey(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "smtp-password", plain)

	again, err := EncryptWithKey(key, "smtp-password")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per call")
}

func TestDecryptRejectsTampering(t *testing.T) {
	key := testKey(t, 'k')
	sealed, err := EncryptWithKey(key, "secret")
	require.NoError(t, err)

	_, err = DecryptWithKey(testKey(t, 'x'), sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = DecryptWithKey(key, "not base64!")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = DecryptWithKey(key, base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestParseKey(t *testing.T) {
	_, err := ParseKey("c2hvcnQ=")
	assert.Error(t, err)
	_, err = ParseKey("%%%")
	assert.Error(t, err)
}

func TestMissingKey(t *testing.T) {
	t.Setenv("SECRETS_KEY", "")

	_, err := EncryptString("hello")
	assert.ErrorIs(t, err, ErrNoKey)
	_, err = DecryptString("c2VhbGVk")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestConfiguredKeyRoundTrip(t *testing.T) {
	t.Setenv("SECRETS_KEY", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("z", keySize))))
	sealed, err := EncryptString("hello")
	require.NoError(t, err)
	plain, err := DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", plain)
}
