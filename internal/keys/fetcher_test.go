package keys

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monoova-gateway/internal/common/cache"
	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/models"
	"monoova-gateway/internal/testutil"
)

func newTestFetcher(t *testing.T, source RawSource, singleFlight bool) *Fetcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SingleFlight = singleFlight
	return NewFetcher(source, cache.NewLocalCache(time.Hour, time.Hour), cfg)
}

func TestFetcher_GetCachesRawBytes(t *testing.T) {
	fx := testutil.SharedKey(t)
	cfg := DefaultConfig()
	source := testutil.NewStaticSource(map[string][]byte{
		cfg.CertificatePath: fx.CertDER,
		cfg.PublicKeyPath:   fx.SPKIPEM(),
	})
	f := newTestFetcher(t, source, true)
	ctx := context.Background()

	cert, err := f.Get(ctx, models.Sandbox, models.WebhookSigningCertificate)
	require.NoError(t, err)
	assert.Equal(t, EncodingDER, cert.Encoding)
	assert.Equal(t, models.Sandbox, cert.Env)
	assert.True(t, fx.Private.PublicKey.Equal(cert.PublicKey))

	again, err := f.Get(ctx, models.Sandbox, models.WebhookSigningCertificate)
	require.NoError(t, err)
	assert.Equal(t, cert.Fingerprint, again.Fingerprint)
	assert.Equal(t, 1, source.Calls())

	raw, found := f.cache.Get(ctx, "keys:sandbox:webhook-signing-certificate")
	assert.True(t, found)
	assert.Contains(t, string(raw), "fetched_at_ms")

	pub, err := f.Get(ctx, models.Sandbox, models.EncryptionPublicKey)
	require.NoError(t, err)
	assert.Equal(t, EncodingPEM, pub.Encoding)
	assert.Equal(t, 2, source.Calls())

	// Environments are separate cache partitions.
	_, err = f.Get(ctx, models.Live, models.WebhookSigningCertificate)
	require.NoError(t, err)
	assert.Equal(t, 3, source.Calls())
}

func TestFetcher_ExpiredEntryIsRefetched(t *testing.T) {
	fx := testutil.SharedKey(t)
	source := testutil.NewStaticSource(map[string][]byte{DefaultConfig().CertificatePath: fx.CertPEM()})
	f := newTestFetcher(t, source, true)
	ctx := context.Background()

	now := time.Now()
	f.now = func() time.Time { return now }

	_, err := f.Get(ctx, models.Live, models.WebhookSigningCertificate)
	require.NoError(t, err)

	now = now.Add(29 * time.Minute)
	_, err = f.Get(ctx, models.Live, models.WebhookSigningCertificate)
	require.NoError(t, err)
	assert.Equal(t, 1, source.Calls())

	now = now.Add(time.Minute)
	handle, err := f.Get(ctx, models.Live, models.WebhookSigningCertificate)
	require.NoError(t, err)
	assert.Equal(t, 2, source.Calls())
	assert.Equal(t, now, handle.FetchedAt)
}

func TestFetcher_EncodingsNormalizeToSameKey(t *testing.T) {
	fx := testutil.SharedKey(t)
	path := DefaultConfig().PublicKeyPath

	var fingerprints []string
	for _, raw := range [][]byte{fx.SPKIPEM(), fx.SPKIDER(), fx.SPKIHex()} {
		f := newTestFetcher(t, testutil.NewStaticSource(map[string][]byte{path: raw}), true)
		handle, err := f.Get(context.Background(), models.Sandbox, models.EncryptionPublicKey)
		require.NoError(t, err)
		fingerprints = append(fingerprints, handle.Fingerprint)
	}

	assert.Equal(t, fingerprints[0], fingerprints[1])
	assert.Equal(t, fingerprints[0], fingerprints[2])
}

func TestFetcher_Errors(t *testing.T) {
	path := DefaultConfig().CertificatePath

	t.Run("fetch failure propagates", func(t *testing.T) {
		source := testutil.NewStaticSource(map[string][]byte{})
		source.Err = errors.FetchFailed("certificate", 503)
		f := newTestFetcher(t, source, true)

		_, err := f.Get(context.Background(), models.Sandbox, models.WebhookSigningCertificate)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeFetchFailed))
	})

	t.Run("unparsable material is not cached", func(t *testing.T) {
		source := testutil.NewStaticSource(map[string][]byte{path: []byte("garbage")})
		f := newTestFetcher(t, source, true)
		ctx := context.Background()

		_, err := f.Get(ctx, models.Sandbox, models.WebhookSigningCertificate)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeKeyParseFailed))

		_, err = f.Get(ctx, models.Sandbox, models.WebhookSigningCertificate)
		require.Error(t, err)
		assert.Equal(t, 2, source.Calls())
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := newTestFetcher(t, testutil.NewStaticSource(nil), true)
		_, err := f.Get(context.Background(), models.Sandbox, models.KeyKind("signing-key"))
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	})
}

func TestFetcher_Invalidate(t *testing.T) {
	fx := testutil.SharedKey(t)
	path := DefaultConfig().CertificatePath
	source := testutil.NewStaticSource(map[string][]byte{path: fx.CertDER})
	f := newTestFetcher(t, source, true)
	ctx := context.Background()

	_, err := f.Get(ctx, models.Sandbox, models.WebhookSigningCertificate)
	require.NoError(t, err)

	rotated := testutil.NewKeyFixture(t)
	source.Set(path, rotated.CertDER)
	require.NoError(t, f.Invalidate(ctx, models.Sandbox, models.WebhookSigningCertificate))

	handle, err := f.Get(ctx, models.Sandbox, models.WebhookSigningCertificate)
	require.NoError(t, err)
	assert.True(t, rotated.Private.PublicKey.Equal(handle.PublicKey))
	assert.Equal(t, 2, source.Calls())
}

func concurrentColdGets(t *testing.T, singleFlight bool) int {
	fx := testutil.SharedKey(t)
	source := testutil.NewStaticSource(map[string][]byte{DefaultConfig().CertificatePath: fx.CertDER})
	source.Gate = make(chan struct{})
	f := newTestFetcher(t, source, singleFlight)

	const callers = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	errs := make(chan error, callers)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_, err := f.Get(context.Background(), models.Sandbox, models.WebhookSigningCertificate)
			errs <- err
		}()
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(source.Gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	return source.Calls()
}

func TestFetcher_SingleFlightCollapsesColdFetches(t *testing.T) {
	assert.Equal(t, 1, concurrentColdGets(t, true))
}

func TestFetcher_WithoutSingleFlightEachCallerFetches(t *testing.T) {
	assert.Greater(t, concurrentColdGets(t, false), 1)
}

func TestFetcher_CallerCancellation(t *testing.T) {
	fx := testutil.SharedKey(t)
	source := testutil.NewStaticSource(map[string][]byte{DefaultConfig().CertificatePath: fx.CertDER})
	source.Gate = make(chan struct{})
	f := newTestFetcher(t, source, true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx, models.Sandbox, models.WebhookSigningCertificate)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(source.Gate)
}
