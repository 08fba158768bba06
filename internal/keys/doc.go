// Package keys fetches the provider's webhook signing certificate and
// encryption public key, normalizes whatever encoding they arrive in to an
// *rsa.PublicKey, and caches the raw bytes per environment and kind.
//
// Decoding lives in decode.go and works on static bytes alone. The Fetcher
// adds the network source, the cache and single-flight de-duplication.
//
// Cache entries are keyed "keys:<environment>:<kind>" and hold the raw bytes
// together with the fetch time. An entry is served only while
// now - fetchedAt < TTL; anything older is refetched.
package keys
