package keys

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

// Encoding is the wire form key material arrived in
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingPEM
	EncodingDER
	EncodingHex
)

func (e Encoding) String() string {
	switch e {
	case EncodingPEM:
		return "pem"
	case EncodingDER:
		return "der"
	case EncodingHex:
		return "hex"
	default:
		return "unknown"
	}
}

var pemDelimiter = []byte("-----BEGIN")

// DetectEncoding classifies raw key material. Text starting with a PEM
// delimiter is PEM, pure even-length hex is hex-encoded DER, and any other
// non-empty input is taken as binary DER.
func DetectEncoding(raw []byte) Encoding {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return EncodingUnknown
	case bytes.HasPrefix(trimmed, pemDelimiter):
		return EncodingPEM
	case IsEvenHex(trimmed):
		return EncodingHex
	default:
		return EncodingDER
	}
}

// IsEvenHex reports whether b is non-empty, of even length and only hex digits
func IsEvenHex(b []byte) bool {
	if len(b) == 0 || len(b)%2 != 0 {
		return false
	}
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ToDER returns the DER bytes carried by raw and the detected encoding
func ToDER(raw []byte) ([]byte, Encoding, error) {
	enc := DetectEncoding(raw)
	trimmed := bytes.TrimSpace(raw)

	switch enc {
	case EncodingPEM:
		block, _ := pem.Decode(trimmed)
		if block == nil {
			return nil, enc, fmt.Errorf("pem block could not be decoded")
		}
		return block.Bytes, enc, nil
	case EncodingHex:
		der, err := hex.DecodeString(string(trimmed))
		if err != nil {
			return nil, enc, fmt.Errorf("hex decode: %w", err)
		}
		return der, enc, nil
	case EncodingDER:
		return raw, enc, nil
	default:
		return nil, enc, fmt.Errorf("empty key material")
	}
}

// rewrapPEM treats text as a PEM body whose armour was stripped in transit
func rewrapPEM(text []byte, blockType string) ([]byte, bool) {
	body := bytes.Join(bytes.Fields(text), nil)
	if len(body) == 0 {
		return nil, false
	}
	if _, err := base64.StdEncoding.DecodeString(string(body)); err != nil {
		return nil, false
	}

	var buf bytes.Buffer
	buf.WriteString("-----BEGIN " + blockType + "-----\n")
	for len(body) > 64 {
		buf.Write(body[:64])
		buf.WriteByte('\n')
		body = body[64:]
	}
	buf.Write(body)
	buf.WriteString("\n-----END " + blockType + "-----\n")

	block, _ := pem.Decode(buf.Bytes())
	if block == nil {
		return nil, false
	}
	return block.Bytes, true
}

// ParseCertificatePublicKey extracts the RSA public key from a certificate
// in PEM, DER or hex form. When the first parse fails the bytes are
// re-wrapped as PEM and tried once more.
func ParseCertificatePublicKey(raw []byte) (*rsa.PublicKey, Encoding, error) {
	der, enc, err := ToDER(raw)
	if err == nil {
		var cert *x509.Certificate
		if cert, err = x509.ParseCertificate(der); err == nil {
			key, keyErr := rsaKey(cert.PublicKey)
			return key, enc, keyErr
		}
	}

	if rewrapped, ok := rewrapPEM(raw, "CERTIFICATE"); ok {
		if cert, certErr := x509.ParseCertificate(rewrapped); certErr == nil {
			key, keyErr := rsaKey(cert.PublicKey)
			return key, EncodingPEM, keyErr
		}
	}

	return nil, enc, fmt.Errorf("certificate: %w", err)
}

// ParsePublicKey extracts an RSA public key from SPKI or PKCS#1 DER in any
// supported encoding. SPKI is tried first. A certificate is accepted as a last resort.
func ParsePublicKey(raw []byte) (*rsa.PublicKey, Encoding, error) {
	der, enc, err := ToDER(raw)
	if err != nil {
		if rewrapped, ok := rewrapPEM(raw, "PUBLIC KEY"); ok {
			der, enc, err = rewrapped, EncodingPEM, nil
		} else {
			return nil, enc, fmt.Errorf("public key: %w", err)
		}
	}

	key, err := parseKeyDER(der)
	if err == nil {
		return key, enc, nil
	}

	if enc == EncodingDER {
		if rewrapped, ok := rewrapPEM(raw, "PUBLIC KEY"); ok {
			if key, rewrapErr := parseKeyDER(rewrapped); rewrapErr == nil {
				return key, EncodingPEM, nil
			}
		}
	}

	return nil, enc, fmt.Errorf("public key: %w", err)
}

func parseKeyDER(der []byte) (*rsa.PublicKey, error) {
	spkiKey, spkiErr := x509.ParsePKIXPublicKey(der)
	if spkiErr == nil {
		return rsaKey(spkiKey)
	}

	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key, nil
	}

	if cert, err := x509.ParseCertificate(der); err == nil {
		return rsaKey(cert.PublicKey)
	}

	return nil, fmt.Errorf("not SPKI, PKCS#1 or a certificate: %w", spkiErr)
}

func rsaKey(pub interface{}) (*rsa.PublicKey, error) {
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}
	return key, nil
}
