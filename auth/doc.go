// Package auth manages one OAuth session against the Meetwire platform.
//
// A Session owns the current access/refresh token pair for a single
// authenticated partner session. It builds authorization URLs, exchanges
// authorization codes, refreshes and revokes tokens, and answers identity
// queries (introspection, user info, consent, passwordless login).
//
// The held TokenSet is replaced wholesale on every successful exchange or
// refresh; no reader ever observes a half-updated set. Concurrent refresh
// calls are coalesced into a single network call.
//
// Tokens are opaque: validity is checked via Introspect, not by decoding.
// The one exception is the OpenID Connect ID token, whose claims can be
// read locally with TokenSet.IDTokenClaims for display purposes.
//
// Nothing in this package retries or persists. Retry policy lives in the
// client package; token storage is the caller's responsibility.
package auth
