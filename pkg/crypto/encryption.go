package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// ErrKeyLength is returned when the master key is not 32 bytes
var ErrKeyLength = errors.New("encryption key must be exactly 32 bytes for AES-256")

// Encryptor handles AES-256-GCM encryption of provider API keys
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates a new encryptor with a 32-byte key
func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, ErrKeyLength
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encryptor{aead: gcm}, nil
}

// Encrypt seals plaintext and prepends the random nonce
func (e *Encryptor) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a nonce-prefixed ciphertext
func (e *Encryptor) Decrypt(ciphertext []byte) (string, error) {
	size := e.aead.NonceSize()
	if len(ciphertext) < size {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := e.aead.Open(nil, ciphertext[:size], ciphertext[size:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptToString encrypts and base64-encodes, the form stored in configuration
func (e *Encryptor) EncryptToString(plaintext string) (string, error) {
	sealed, err := e.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString decodes base64 and decrypts
func (e *Encryptor) DecryptString(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return e.Decrypt(raw)
}
