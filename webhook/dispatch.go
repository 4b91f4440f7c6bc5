package webhook

import (
	"context"
	"log/slog"

	"github.com/meetwire/meetwire-go/internal/logging"
)

// Handler processes one verified webhook envelope. A non-nil error aborts
// the remaining dispatch for that delivery and propagates to the caller of
// Handle.
type Handler func(ctx context.Context, env *Envelope) error

// Dispatcher routes verified deliveries to handlers registered per event
// type, with an optional catch-all that sees every delivery first.
//
// Handlers for one delivery run sequentially in registration order. There
// is no isolation between them: a failing handler stops dispatch.
// Concurrent Handle calls for different deliveries are independent.
type Dispatcher struct {
	secret   string
	handlers map[string][]Handler
	catchAll []Handler
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used for dispatch diagnostics.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a Dispatcher verifying deliveries with secret.
func NewDispatcher(secret string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		secret:   secret,
		handlers: make(map[string][]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// On registers a handler for one event type. Handlers run in registration
// order.
func (d *Dispatcher) On(eventType string, h Handler) *Dispatcher {
	d.handlers[eventType] = append(d.handlers[eventType], h)
	return d
}

// OnAny registers a catch-all handler invoked for every delivery, before
// any type-specific handlers.
func (d *Dispatcher) OnAny(h Handler) *Dispatcher {
	d.catchAll = append(d.catchAll, h)
	return d
}

// Handle verifies, parses, and dispatches one delivery. Verification and
// parse failures propagate unchanged; they are terminal for the delivery
// and never retried here (redelivery is the sender's job).
func (d *Dispatcher) Handle(ctx context.Context, payload []byte, signature string) error {
	env, err := Parse(payload, signature, d.secret)
	if err != nil {
		return err
	}
	return d.Dispatch(ctx, env)
}

// Dispatch routes an already parsed envelope. Most callers want Handle;
// Dispatch exists for transports that verified the delivery upstream, such
// as the HTTP middleware.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) error {
	d.logger.Debug("dispatching webhook delivery",
		"event_type", env.EventType,
		"event_id", env.EventID)

	for _, h := range d.catchAll {
		if err := h(ctx, env); err != nil {
			d.logger.Warn("webhook handler failed",
				"event_type", env.EventType,
				"event_id", env.EventID,
				logging.Err(err))
			return err
		}
	}
	for _, h := range d.handlers[env.EventType] {
		if err := h(ctx, env); err != nil {
			d.logger.Warn("webhook handler failed",
				"event_type", env.EventType,
				"event_id", env.EventID,
				logging.Err(err))
			return err
		}
	}
	return nil
}
