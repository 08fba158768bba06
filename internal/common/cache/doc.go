// Package cache is the key/value store behind key material and bearer
// tokens. It is constructed once at startup and injected into the
// components that need it.
//
// Three backends are provided:
//
//   - LocalCache: per-process memory via github.com/patrickmn/go-cache
//   - RedisCache: shared storage via github.com/go-redis/redis/v8
//   - TwoTierCache: LocalCache in front of RedisCache, L1 entries capped at five minutes
//
// Values are opaque byte slices so a round trip through Redis returns
// exactly what was stored. Callers encode their own records.
//
// Usage:
//
//	c, err := cache.New(cache.Config{Type: cache.TypeLocal, TTL: 30 * time.Minute})
//	_ = c.Set(ctx, "keys:sandbox:webhook-signing-certificate", der, 30*time.Minute)
//	raw, found := c.Get(ctx, "keys:sandbox:webhook-signing-certificate")
package cache
