// Package crypto holds the two encryption paths of the gateway: RSA
// encryption of outbound fields under the provider's public key, and
// AES-256-GCM sealing of values the gateway writes to shared caches.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"monoova-gateway/internal/common/errors"
)

// sealSalt is static so every replica derives the same key from the same passphrase
var sealSalt = []byte("monoova-gateway-cache-seal")

// ConfigEncryptor seals and opens byte values with AES-256-GCM.
//
// The 32-byte key is derived from a passphrase with PBKDF2-SHA256, so any
// non-empty passphrase length is accepted. Each Seal uses a fresh random
// nonce which is prepended to the ciphertext.
//
// The encryptor is safe for concurrent use by multiple goroutines.
type ConfigEncryptor struct {
	aead cipher.AEAD
}

// NewConfigEncryptor creates an encryptor from passphrase
func NewConfigEncryptor(passphrase string) (*ConfigEncryptor, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), sealSalt, 10000, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &ConfigEncryptor{aead: gcm}, nil
}

// Seal encrypts plaintext and returns nonce || ciphertext
func (e *ConfigEncryptor) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.InternalError("failed to create nonce", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. Tampered or foreign data fails authentication.
func (e *ConfigEncryptor) Open(sealed []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.ValidationError("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.InternalError("failed to decrypt", err)
	}
	return plaintext, nil
}
