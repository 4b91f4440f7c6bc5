package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/meetwire/meetwire-go/internal/instrumentation"
	"github.com/meetwire/meetwire-go/internal/logging"
	"github.com/meetwire/meetwire-go/webhook"
)

const (
	// DefaultAddr is the default listen address for the webhook receiver.
	DefaultAddr = ":8080"

	// DefaultWebhookPath is the path deliveries are posted to.
	DefaultWebhookPath = "/webhooks/meetwire"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 60 * time.Second
)

// Config holds the webhook receiver settings.
type Config struct {
	// Addr is the listen address (default ":8080").
	Addr string

	// WebhookPath is where deliveries are posted (default
	// "/webhooks/meetwire").
	WebhookPath string

	// WebhookSecret is the shared signing secret. Required.
	WebhookSecret string

	// Provider supplies metrics and tracing. Optional.
	Provider *instrumentation.Provider

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Server is the webhook receiver. Deliveries pass through the signature
// middleware, then the parsed envelope is handed to the dispatcher.
type Server struct {
	config     Config
	dispatcher *webhook.Dispatcher
	health     *HealthChecker
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a Server around a configured dispatcher.
func New(config Config, dispatcher *webhook.Dispatcher) (*Server, error) {
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.WebhookPath == "" {
		config.WebhookPath = DefaultWebhookPath
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	metrics := &instrumentation.Metrics{}
	if config.Provider != nil {
		metrics = config.Provider.Metrics()
	}

	return &Server{
		config:     config,
		dispatcher: dispatcher,
		health:     NewHealthChecker(),
		metrics:    metrics,
		logger:     config.Logger,
	}, nil
}

// Health exposes the health checker, for tests and for the serve command
// to flip readiness during startup.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Handler builds the full request mux: probes plus the webhook endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.RegisterHealthEndpoints(mux)

	verify := webhook.Middleware(s.config.WebhookSecret, webhook.WithLogger(s.logger))
	mux.Handle("POST "+s.config.WebhookPath, s.observeRejections(verify(http.HandlerFunc(s.handleDelivery))))

	return mux
}

// handleDelivery runs after the middleware verified and parsed the
// delivery. The envelope is taken from the request context.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	env, ok := webhook.EnvelopeFromContext(r.Context())
	if !ok {
		// Middleware misconfiguration; never expected in the wired mux.
		http.Error(w, "missing envelope", http.StatusInternalServerError)
		return
	}

	ctx, span := instrumentation.StartWebhookSpan(r.Context(), env.EventType, env.EventID)
	defer span.End()

	start := time.Now()
	if err := s.dispatcher.Dispatch(ctx, env); err != nil {
		instrumentation.SetSpanError(span, err)
		s.logger.Error("webhook handler failed",
			logging.KeyEventType, env.EventType,
			logging.KeyEventID, env.EventID,
			logging.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	instrumentation.SetSpanSuccess(span)
	s.metrics.RecordWebhookEvent(ctx, env.EventType, time.Since(start))
	w.WriteHeader(http.StatusNoContent)
}

// observeRejections counts deliveries the middleware turned away.
func (s *Server) observeRejections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		switch rec.status {
		case http.StatusUnauthorized:
			s.metrics.RecordWebhookRejection(r.Context(), "signature")
		case http.StatusBadRequest:
			s.metrics.RecordWebhookRejection(r.Context(), "payload")
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Start listens and serves until Shutdown is called or the listener
// fails. It blocks.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	s.logger.Info("starting webhook receiver",
		"addr", s.config.Addr,
		"path", s.config.WebhookPath)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight deliveries and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down webhook receiver")
	return s.httpServer.Shutdown(ctx)
}
