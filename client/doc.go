// Package client executes requests against the Meetwire API with
// authentication and transient-failure resilience.
//
// A Client wraps one base URL, an Authenticator, and a RetryPolicy. Each
// logical call (Get, Post, Put, Patch, Delete) builds the request, lets
// the authenticator attach credentials, dispatches with a timeout, and
// classifies the outcome:
//
//   - 2xx: the decoded body is returned.
//   - 429: retried with backoff, honoring a Retry-After header (integer
//     seconds or HTTP date) when the server sends one.
//   - other 4xx: failed immediately, never retried. Retrying a client
//     mistake wastes time and can break idempotency expectations for
//     writes.
//   - 5xx and transport errors: retried with exponential backoff.
//
// Terminal failures surface as *APIError (the server answered) or
// *RequestError (it never did). Endpoint facades call the generic verbs
// and carry no retry logic of their own.
package client
