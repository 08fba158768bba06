package signature

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSignature_RoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 4, 16, 255, 256, 512} {
		sig := make([]byte, size)
		_, err := rand.Read(sig)
		require.NoError(t, err)

		got, err := DecodeSignature(hex.EncodeToString(sig))
		require.NoError(t, err)
		assert.Equal(t, sig, got, "hex size %d", size)

		got, err = DecodeSignature(base64.StdEncoding.EncodeToString(sig))
		require.NoError(t, err)
		assert.Equal(t, sig, got, "base64 size %d", size)
	}
}

func TestDecodeSignature(t *testing.T) {
	got, err := DecodeSignature("  DEADBEEF \n")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, got)

	// Odd-length hex digits fall through to base64.
	got, err = DecodeSignature("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x69, 0xb7}, got)

	for _, bad := range []string{"", "   ", "not base64!", "%%%"} {
		_, err := DecodeSignature(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.HeaderAliases, 10)
	assert.Equal(t, "verification-signature", cfg.HeaderAliases[0])
	assert.Equal(t, DefaultMaxSkew, cfg.MaxSkew)

	custom := Config{HeaderAliases: []string{" X-Sig ", "x-sig", ""}}
	custom.SetDefaults()
	assert.Equal(t, []string{"x-sig"}, custom.HeaderAliases)
	assert.Equal(t, DefaultTimestampHeaders, custom.TimestampHeaders)

	invalid := Config{HeaderAliases: []string{"bad:name"}, MaxSkew: 1}
	assert.Error(t, invalid.Validate())
}
