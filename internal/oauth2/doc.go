// Package oauth2 issues and caches the provider's client-credentials bearer tokens.
//
// # Lifecycle
//
// Each environment moves through Empty, Valid(expiry) and Expired, where
// Expired behaves exactly like Empty. A cached token is served only while
//
//	now + 15s < expiresAt
//
// and is otherwise refreshed synchronously before the caller gets it. A
// freshly issued token is stored with
//
//	expiresAt = now + max(60s, expires_in*1000ms - 60s)
//
// so nothing is cached for less than a minute and every token keeps a one
// minute safety margin. expires_in defaults to 1800 seconds.
//
// # Concurrency
//
// Concurrent callers that miss the cache share one token request when
// single-flight is enabled. When the cache is shared between replicas a
// Locker can be supplied so only one replica refreshes at a time; the
// others re-read the cache once the lock is released.
//
// # Storage
//
// Tokens are stored through the common cache under oauth2:token:<env>. A
// Sealer, when configured, encrypts the stored JSON so bearer tokens never
// sit in Redis in the clear.
//
// Failures are never retried here. A non-2xx token response is
// TOKEN_FETCH_FAILED and a body without access_token or token is
// TOKEN_RESPONSE_MALFORMED.
package oauth2
