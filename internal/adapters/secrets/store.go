package secrets

import (
	"context"
	"strings"
	"sync"

	"finsight/pkg/crypto"
	"finsight/pkg/errors"
)

// Store holds sealed provider API keys and opens them on demand.
// Plaintext keys are never cached.
type Store struct {
	mu        sync.RWMutex
	encryptor *crypto.Encryptor
	sealed    map[string]string
}

// NewStore creates a store over base64 AES-GCM sealed keys indexed by provider id.
// A nil encryptor yields a store that fails every lookup with ErrSecretStorage.
func NewStore(encryptor *crypto.Encryptor, sealed map[string]string) *Store {
	keys := make(map[string]string, len(sealed))
	for id, v := range sealed {
		keys[strings.ToLower(strings.TrimSpace(id))] = strings.TrimSpace(v)
	}
	return &Store{encryptor: encryptor, sealed: keys}
}

// Put seals and stores a key for a provider
func (s *Store) Put(providerID, apiKey string) error {
	if s.encryptor == nil {
		return errors.Wrap(errors.ErrSecretStorage, "encryption key not configured")
	}
	enc, err := s.encryptor.EncryptToString(apiKey)
	if err != nil {
		return errors.Wrapf(errors.ErrSecretStorage, "seal key for %s: %v", providerID, err)
	}
	s.mu.Lock()
	s.sealed[strings.ToLower(providerID)] = enc
	s.mu.Unlock()
	return nil
}

// Has reports whether a sealed key exists for the provider
func (s *Store) Has(providerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sealed[strings.ToLower(providerID)]
	return ok
}

// DecryptAPIKey opens the key for a provider
func (s *Store) DecryptAPIKey(ctx context.Context, providerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(errors.ErrCancelled, err.Error())
	}
	if s.encryptor == nil {
		return "", errors.Wrap(errors.ErrSecretStorage, "encryption key not configured")
	}

	s.mu.RLock()
	enc, ok := s.sealed[strings.ToLower(providerID)]
	s.mu.RUnlock()
	if !ok || enc == "" {
		return "", errors.Wrapf(errors.ErrSecretStorage, "no key stored for provider %s", providerID)
	}

	key, err := s.encryptor.DecryptString(enc)
	if err != nil {
		// the underlying error never contains key material
		return "", errors.Wrapf(errors.ErrSecretStorage, "decrypt key for %s: %v", providerID, err)
	}
	return key, nil
}
