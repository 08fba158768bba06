package crypto

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	// Register the hash implementations selectable for OAEP.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/keys"
	"monoova-gateway/internal/models"
)

// Padding is the RSA encryption padding scheme
type Padding string

const (
	PaddingPKCS1v15 Padding = "pkcs1"
	PaddingOAEP     Padding = "oaep"
)

// ParsePadding maps a configuration value to a Padding, defaulting to PKCS#1 v1.5
func ParsePadding(s string) (Padding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pkcs1", "pkcs1v15":
		return PaddingPKCS1v15, nil
	case "oaep":
		return PaddingOAEP, nil
	}
	return "", errors.ConfigError(fmt.Sprintf("unknown encryption padding %q", s))
}

// ParseHash maps a configuration value to the OAEP hash, defaulting to SHA-256
func ParseHash(s string) (crypto.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sha256", "sha-256":
		return crypto.SHA256, nil
	case "sha1", "sha-1":
		return crypto.SHA1, nil
	case "sha512", "sha-512":
		return crypto.SHA512, nil
	}
	return 0, errors.ConfigError(fmt.Sprintf("unknown OAEP hash %q", s))
}

// KeySource returns normalized key material
type KeySource interface {
	Get(ctx context.Context, env models.Environment, kind models.KeyKind) (*keys.Handle, error)
}

// FieldEncryptor encrypts outbound plaintext fields with the provider's public key.
// One padding scheme is used for every call.
type FieldEncryptor struct {
	keys    KeySource
	padding Padding
	hash    crypto.Hash
}

// NewFieldEncryptor creates an encryptor. hash is only used with PaddingOAEP.
func NewFieldEncryptor(source KeySource, padding Padding, hash crypto.Hash) *FieldEncryptor {
	if padding == "" {
		padding = PaddingPKCS1v15
	}
	if hash == 0 {
		hash = crypto.SHA256
	}
	return &FieldEncryptor{keys: source, padding: padding, hash: hash}
}

// Padding returns the configured padding scheme
func (e *FieldEncryptor) Padding() Padding {
	return e.padding
}

// Encrypt returns base64(RSA-encrypt(plaintext)) under env's encryption public key
func (e *FieldEncryptor) Encrypt(ctx context.Context, plaintext string, env models.Environment) (string, error) {
	pub, err := e.publicKey(ctx, env)
	if err != nil {
		return "", err
	}
	return e.encrypt(pub, plaintext)
}

// EncryptFields encrypts every value in fields with a single key lookup.
// Either every field is encrypted or an error is returned.
func (e *FieldEncryptor) EncryptFields(ctx context.Context, fields map[string]string, env models.Environment) (map[string]string, error) {
	pub, err := e.publicKey(ctx, env)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(fields))
	for name, plaintext := range fields {
		ciphertext, err := e.encrypt(pub, plaintext)
		if err != nil {
			return nil, fmt.Errorf("encrypting field %s: %w", name, err)
		}
		out[name] = ciphertext
	}
	return out, nil
}

func (e *FieldEncryptor) publicKey(ctx context.Context, env models.Environment) (*rsa.PublicKey, error) {
	handle, err := e.keys.Get(ctx, env, models.EncryptionPublicKey)
	if err != nil {
		return nil, errors.EncryptionKeyUnavailable(err).WithContext("environment", env.String())
	}
	return handle.PublicKey, nil
}

func (e *FieldEncryptor) encrypt(pub *rsa.PublicKey, plaintext string) (string, error) {
	var (
		ciphertext []byte
		err        error
	)

	switch e.padding {
	case PaddingOAEP:
		if !e.hash.Available() {
			return "", errors.ConfigError(fmt.Sprintf("OAEP hash %v is not available", e.hash))
		}
		ciphertext, err = rsa.EncryptOAEP(e.hash.New(), rand.Reader, pub, []byte(plaintext), nil)
	default:
		ciphertext, err = rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(plaintext))
	}
	if err != nil {
		// rsa.ErrMessageTooLong is the only failure a valid key produces.
		return "", errors.ValidationError("plaintext cannot be encrypted").
			WithContext("padding", string(e.padding)).
			WithContext("error", err.Error())
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
