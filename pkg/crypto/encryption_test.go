package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	sealed, err := enc.EncryptToString("sk-test-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "sk-test-123")

	plain, err := enc.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", plain)
}

func TestEncryptor_Errors(t *testing.T) {
	_, err := NewEncryptor("short")
	assert.ErrorIs(t, err, ErrKeyLength)

	enc, err := NewEncryptor(testKey)
	require.NoError(t, err)

	_, err = enc.DecryptString("not base64!")
	assert.Error(t, err)

	_, err = enc.Decrypt([]byte{1, 2})
	assert.Error(t, err)

	other, err := NewEncryptor("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	sealed, err := other.EncryptToString("secret")
	require.NoError(t, err)
	_, err = enc.DecryptString(sealed)
	assert.Error(t, err, "wrong key must not decrypt")
}
