package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/meetwire/meetwire-go/internal/logging"
)

// envelopeContextKey is the context key the middleware stores the parsed
// envelope under.
type envelopeContextKey struct{}

// EnvelopeFromContext returns the envelope the middleware attached to the
// request context.
func EnvelopeFromContext(ctx context.Context) (*Envelope, bool) {
	env, ok := ctx.Value(envelopeContextKey{}).(*Envelope)
	return env, ok
}

func contextWithEnvelope(ctx context.Context, env *Envelope) context.Context {
	return context.WithValue(ctx, envelopeContextKey{}, env)
}

// rejection is the JSON body returned when a delivery is refused.
type rejection struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MiddlewareOption configures the verification middleware.
type MiddlewareOption func(*middleware)

// WithLogger sets the logger used for rejected deliveries.
func WithLogger(logger *slog.Logger) MiddlewareOption {
	return func(m *middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithInsecureSkipVerification disables signature verification.
//
// This exists solely for local development against tools that cannot sign
// payloads. It must be opted into explicitly and must never be enabled in
// production: unverified deliveries are attacker-controlled input.
func WithInsecureSkipVerification() MiddlewareOption {
	return func(m *middleware) {
		m.skipVerification = true
	}
}

// WithMaxBodyBytes limits how much of the request body is read.
// The default is 1 MiB.
func WithMaxBodyBytes(n int64) MiddlewareOption {
	return func(m *middleware) {
		if n > 0 {
			m.maxBodyBytes = n
		}
	}
}

type middleware struct {
	secret           string
	skipVerification bool
	maxBodyBytes     int64
	logger           *slog.Logger
}

// defaultMaxBodyBytes bounds webhook bodies; Meetwire payloads are small.
const defaultMaxBodyBytes = 1 << 20

// Middleware returns net/http middleware that verifies and parses webhook
// deliveries before the next handler runs.
//
// On success the envelope is attached to the request context and the chain
// continues. On any verification or parse failure the chain is
// short-circuited with a 401 (or 400 for authentic-but-malformed bodies)
// carrying an {error, message} JSON body. Failures are never swallowed.
func Middleware(secret string, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &middleware{
		secret:       secret,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodyBytes))
			if err != nil {
				m.reject(w, http.StatusBadRequest, "read_failed", "could not read request body", err)
				return
			}

			env, err := m.parse(body, r.Header.Get(SignatureHeader))
			if err != nil {
				status, code := classify(err)
				m.reject(w, status, code, err.Error(), err)
				return
			}

			ctx := contextWithEnvelope(r.Context(), env)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *middleware) parse(body []byte, signature string) (*Envelope, error) {
	if !m.skipVerification {
		return Parse(body, signature, m.secret)
	}

	// Development escape hatch: trust the body without verifying.
	m.logger.Warn("webhook signature verification skipped; never use this in production")
	return Parse(body, Sign(m.secret, body), m.secret)
}

// classify maps pipeline errors to an HTTP status and a stable error code.
func classify(err error) (status int, code string) {
	var formatErr *FormatError
	var decodeErr *DecodeError
	var validationErr *ValidationError

	switch {
	case errors.Is(err, ErrMissingSignature):
		return http.StatusUnauthorized, "missing_signature"
	case errors.Is(err, ErrSignatureMismatch):
		return http.StatusUnauthorized, "signature_mismatch"
	case errors.As(err, &formatErr):
		return http.StatusUnauthorized, "invalid_signature_format"
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest, "decode_failed"
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "invalid_envelope"
	default:
		return http.StatusUnauthorized, "verification_failed"
	}
}

func (m *middleware) reject(w http.ResponseWriter, status int, code, message string, err error) {
	m.logger.Warn("rejected webhook delivery",
		"code", code,
		"status", status,
		logging.Err(err))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rejection{Error: code, Message: message})
}
