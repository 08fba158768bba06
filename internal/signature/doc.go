// Package signature verifies inbound provider webhooks.
//
// A webhook is authentic when an RSA-SHA256 PKCS#1 v1.5 signature over the
// exact raw request body verifies against the public key of the provider's
// current webhook-signing certificate. Verification runs in a fixed order:
//
//  1. Find the signature in the first non-empty header of the ordered alias list.
//  2. Decode it as hex (pure even-length hex) or base64.
//  3. If a numeric timestamp header is present, reject skew over MaxSkew.
//  4. Fetch the signing certificate.
//  5. Verify the signature over the raw body.
//
// Verify never returns an error. Every failure becomes a Rejected Outcome
// with a code and a reason, and callers answer a bare 401. Reasons are
// logged, never sent back to the sender.
//
// The timestamp check is best effort: a missing or non-numeric timestamp
// skips it. Timestamps are epoch milliseconds.
//
// # Header aliases
//
// The provider has renamed its signature header several times. The accepted
// names live in DefaultHeaderAliases in priority order and can be replaced
// through Config:
//
//	verifier := signature.NewVerifier(fetcher, signature.Config{
//	    HeaderAliases: []string{"verification-signature", "x-signature"},
//	})
//
// # Raw bodies
//
// The body must be captured before anything parses it. Middleware does this,
// verifies, and stores the raw bytes on the request context for the handler:
//
//	router.Handle("/webhooks/{env}", signature.Middleware(verifier, models.ResolveEnvironment)(handler))
package signature
