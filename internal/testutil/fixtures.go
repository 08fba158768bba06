// Package testutil holds fixtures shared by package tests: RSA key pairs,
// self-signed certificates in every wire encoding, and a stand-in provider.
package testutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"math/big"
	"sync"
	"testing"
	"time"
)

// KeyFixture is a key pair plus a self-signed certificate for its public half
type KeyFixture struct {
	Private *rsa.PrivateKey
	CertDER []byte
}

var (
	sharedOnce sync.Once
	shared     *KeyFixture
)

// SharedKey returns a process-wide fixture. Generating RSA keys is slow, so
// tests that only need a valid pair should use this.
func SharedKey(t testing.TB) *KeyFixture {
	t.Helper()
	sharedOnce.Do(func() {
		shared = NewKeyFixture(t)
	})
	return shared
}

// NewKeyFixture generates a fresh 2048-bit key and certificate
func NewKeyFixture(t testing.TB) *KeyFixture {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "webhook-signing.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}

	return &KeyFixture{Private: priv, CertDER: der}
}

// CertPEM is the certificate as PEM text
func (k *KeyFixture) CertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: k.CertDER})
}

// CertHex is the certificate DER as hex text
func (k *KeyFixture) CertHex() []byte {
	return []byte(hex.EncodeToString(k.CertDER))
}

// SPKIDER is the public key as SubjectPublicKeyInfo DER
func (k *KeyFixture) SPKIDER() []byte {
	der, _ := x509.MarshalPKIXPublicKey(&k.Private.PublicKey)
	return der
}

// SPKIPEM is the public key as "PUBLIC KEY" PEM text
func (k *KeyFixture) SPKIPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: k.SPKIDER()})
}

// SPKIHex is the SPKI DER as hex text
func (k *KeyFixture) SPKIHex() []byte {
	return []byte(hex.EncodeToString(k.SPKIDER()))
}

// PKCS1DER is the public key as PKCS#1 DER
func (k *KeyFixture) PKCS1DER() []byte {
	return x509.MarshalPKCS1PublicKey(&k.Private.PublicKey)
}

// PKCS1PEM is the public key as "RSA PUBLIC KEY" PEM text
func (k *KeyFixture) PKCS1PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: k.PKCS1DER()})
}

// Sign returns the raw RSA-SHA256 PKCS#1 v1.5 signature over body
func (k *KeyFixture) Sign(t testing.TB, body []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.Private, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("signing body: %v", err)
	}
	return sig
}

// SignBase64 returns the signature over body as standard base64
func (k *KeyFixture) SignBase64(t testing.TB, body []byte) string {
	return base64.StdEncoding.EncodeToString(k.Sign(t, body))
}

// SignHex returns the signature over body as lower-case hex
func (k *KeyFixture) SignHex(t testing.TB, body []byte) string {
	return hex.EncodeToString(k.Sign(t, body))
}
