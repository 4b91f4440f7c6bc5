package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meetwire/meetwire-go/internal/instrumentation"
	"github.com/meetwire/meetwire-go/internal/logging"
	"github.com/meetwire/meetwire-go/internal/server"
	"github.com/meetwire/meetwire-go/webhook"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode      bool
		addr           string
		webhookPath    string
		webhookSecret  string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook receiver",
		Long: `Start an HTTP server that receives Meetwire webhook deliveries.

Every delivery is verified against the shared signing secret before the
payload is parsed and dispatched. Rejected deliveries are answered with
401 (signature problems) or 400 (malformed payloads).

The signing secret is required:
  --webhook-secret flag OR MEETWIRE_WEBHOOK_SECRET env var

Prometheus metrics are served on a dedicated port (default :9090).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if webhookSecret == "" {
				webhookSecret = os.Getenv("MEETWIRE_WEBHOOK_SECRET")
			}
			if webhookSecret == "" {
				return fmt.Errorf("webhook secret is required: set --webhook-secret or MEETWIRE_WEBHOOK_SECRET")
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			if !cmd.Flags().Changed("metrics-addr") {
				if envAddr := os.Getenv("METRICS_ADDR"); envAddr != "" {
					metricsConfig.Addr = envAddr
				}
			}
			if !cmd.Flags().Changed("metrics-enabled") {
				if os.Getenv("METRICS_ENABLED") == "false" {
					metricsConfig.Enabled = false
				}
			}

			return runServe(debugMode, addr, webhookPath, webhookSecret, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "HTTP listen address for the webhook receiver")
	cmd.Flags().StringVar(&webhookPath, "webhook-path", server.DefaultWebhookPath, "Path deliveries are posted to")
	cmd.Flags().StringVar(&webhookSecret, "webhook-secret", "", "Shared webhook signing secret. Can also use MEETWIRE_WEBHOOK_SECRET env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(debugMode bool, addr, webhookPath, webhookSecret string, metricsConfig MetricsConfig) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:     metricsConfig.Addr,
			Provider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	srv, err := server.New(server.Config{
		Addr:          addr,
		WebhookPath:   webhookPath,
		WebhookSecret: webhookSecret,
		Provider:      provider,
		Logger:        logger,
	}, newLoggingDispatcher(webhookSecret, logger))
	if err != nil {
		return fmt.Errorf("failed to create webhook receiver: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down webhook receiver: %w", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("webhook receiver stopped with error: %w", err)
		}
	}

	return nil
}

// newLoggingDispatcher builds the default dispatcher: it logs every
// delivery. Integrations embed the server package directly when they need
// real handlers.
func newLoggingDispatcher(secret string, logger *slog.Logger) *webhook.Dispatcher {
	return webhook.NewDispatcher(secret, webhook.WithDispatcherLogger(logger)).
		OnAny(func(_ context.Context, env *webhook.Envelope) error {
			logger.Info("webhook delivery received",
				logging.KeyEventType, env.EventType,
				logging.KeyEventID, env.EventID,
				"timestamp", env.Timestamp)
			return nil
		})
}
