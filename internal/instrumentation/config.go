package instrumentation

import (
	"fmt"
	"os"
	"strconv"
)

// Exporter types.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Config holds the OpenTelemetry instrumentation settings.
type Config struct {
	// ServiceName identifies this service in exported telemetry
	// (default: meetwire).
	ServiceName string

	// ServiceVersion is the running build version.
	ServiceVersion string

	// ServiceInstanceID distinguishes replicas; defaults to the hostname.
	ServiceInstanceID string

	// Enabled toggles all instrumentation. When false the provider hands
	// out no-op recorders.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp, stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout, none.
	TracingExporter string

	// OTLPEndpoint is the collector address without a protocol prefix,
	// e.g. "localhost:4318". Required for the otlp exporters.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP export. Local development only.
	OTLPInsecure bool

	// TraceSamplingRate is the head sampling ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	// PrometheusEndpoint is the metrics scrape path (default: /metrics).
	PrometheusEndpoint string
}

// DefaultConfig builds a Config from environment variables.
func DefaultConfig() Config {
	return Config{
		ServiceName:        envOrDefault("OTEL_SERVICE_NAME", "meetwire"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  envOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:            envBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    envOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    envOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       envBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  envFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint: envOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
	}
}

// Validate reports configuration errors before the provider starts.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
		if c.MetricsExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	}

	return nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func envFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
