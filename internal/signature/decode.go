package signature

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"monoova-gateway/internal/keys"
)

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeSignature decodes header text to signature bytes. Pure even-length
// hex is hex; anything else must be base64, padded or not, standard or URL alphabet.
func DecodeSignature(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty signature")
	}

	if keys.IsEvenHex([]byte(text)) {
		return hex.DecodeString(text)
	}

	for _, enc := range base64Encodings {
		if sig, err := enc.DecodeString(text); err == nil && len(sig) > 0 {
			return sig, nil
		}
	}
	return nil, fmt.Errorf("signature is neither hex nor base64")
}
