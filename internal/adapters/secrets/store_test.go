package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/crypto"
	"finsight/pkg/errors"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestStore_DecryptAPIKey(t *testing.T) {
	enc, err := crypto.NewEncryptor(testKey)
	require.NoError(t, err)
	sealed, err := enc.EncryptToString("sk-test-123")
	require.NoError(t, err)

	store := NewStore(enc, map[string]string{" OpenAI ": sealed})
	assert.True(t, store.Has("openai"))

	key, err := store.DecryptAPIKey(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", key)
}

func TestStore_Errors(t *testing.T) {
	enc, err := crypto.NewEncryptor(testKey)
	require.NoError(t, err)

	store := NewStore(enc, map[string]string{"gemini": "not-base64!"})

	_, err = store.DecryptAPIKey(context.Background(), "openai")
	assert.ErrorIs(t, err, errors.ErrSecretStorage)

	_, err = store.DecryptAPIKey(context.Background(), "gemini")
	assert.ErrorIs(t, err, errors.ErrSecretStorage)

	_, err = NewStore(nil, nil).DecryptAPIKey(context.Background(), "openai")
	assert.ErrorIs(t, err, errors.ErrSecretStorage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.DecryptAPIKey(ctx, "gemini")
	assert.ErrorIs(t, err, errors.ErrCancelled)
}

func TestStore_Put(t *testing.T) {
	enc, err := crypto.NewEncryptor(testKey)
	require.NoError(t, err)
	store := NewStore(enc, nil)

	require.NoError(t, store.Put("Gemini", "g-key"))
	key, err := store.DecryptAPIKey(context.Background(), "gemini")
	require.NoError(t, err)
	assert.Equal(t, "g-key", key)

	assert.ErrorIs(t, NewStore(nil, nil).Put("x", "y"), errors.ErrSecretStorage)
}
