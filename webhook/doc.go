// Package webhook authenticates and dispatches inbound Meetwire webhook
// deliveries.
//
// Deliveries arrive as raw JSON bytes plus a signature header of the form
// "sha256=<hex digest>", an HMAC-SHA256 over the exact body bytes computed
// with the shared webhook secret. Nothing in a delivery is trusted before
// the signature checks out.
//
// # Usage
//
// Verify and decode a single delivery:
//
//	env, err := webhook.Parse(body, r.Header.Get(webhook.SignatureHeader), secret)
//
// Or register typed handlers and let the dispatcher route:
//
//	d := webhook.NewDispatcher(secret)
//	d.On(webhook.EventMeetingCreated, func(ctx context.Context, env *webhook.Envelope) error {
//	    m := env.Data.(*webhook.MeetingCreated)
//	    ...
//	})
//	err := d.Handle(ctx, body, signature)
//
// For net/http servers, Middleware verifies the request and attaches the
// parsed envelope to the request context before the next handler runs.
//
// Deliveries are at-least-once. The package does not deduplicate on
// EventID; consumers that need exactly-once semantics must track event ids
// themselves.
package webhook
