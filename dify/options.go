package dify

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/petal-labs/dify/core"
)

// DefaultBaseURL is the default Dify service API base URL.
const DefaultBaseURL = "https://api.dify.ai/v1"

// Config holds configuration for the Dify client.
type Config struct {
	// BaseURL is the API base URL. Defaults to https://api.dify.ai/v1.
	// A trailing slash is ignored.
	BaseURL string

	// HTTPClient is the HTTP client to use. Defaults to a client owning a
	// private transport.
	HTTPClient *http.Client

	// HTTPTracing wraps the transport with otelhttp so each attempt gets an
	// HTTP client span under the call span.
	HTTPTracing bool

	// Timeout is the per-call timeout. Defaults to 100s.
	Timeout time.Duration

	// Headers contains optional extra headers to include in requests.
	Headers http.Header

	Logger         logrus.FieldLogger
	Telemetry      core.TelemetryHook
	TracerProvider trace.TracerProvider

	// Retry enables retries of GET calls (and POST calls with RetryPOST).
	Retry *core.RetryConfig
	// CircuitBreaker enables one breaker per endpoint group.
	CircuitBreaker *core.CircuitBreakerConfig
	// RetryPOST applies Retry and CircuitBreaker to POST calls as well.
	RetryPOST bool

	// RateLimit throttles outgoing requests per second when positive.
	RateLimit rate.Limit
	RateBurst int
}

// Option configures the Dify client.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithHTTPTracing instruments the HTTP transport with OpenTelemetry.
func WithHTTPTracing() Option {
	return func(c *Config) {
		c.HTTPTracing = true
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHeader adds an extra header to include in requests.
func WithHeader(key, value string) Option {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(http.Header)
		}
		c.Headers.Set(key, value)
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithTelemetry sets the metrics sink.
func WithTelemetry(h core.TelemetryHook) Option {
	return func(c *Config) {
		c.Telemetry = h
	}
}

// WithTracerProvider records a span per call on tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

// WithRetry enables retry with exponential backoff.
func WithRetry(cfg core.RetryConfig) Option {
	return func(c *Config) {
		c.Retry = &cfg
	}
}

// WithCircuitBreaker enables circuit breaking per endpoint group.
func WithCircuitBreaker(cfg core.CircuitBreakerConfig) Option {
	return func(c *Config) {
		c.CircuitBreaker = &cfg
	}
}

// WithRetryablePOST applies the resilience options to POST calls.
func WithRetryablePOST() Option {
	return func(c *Config) {
		c.RetryPOST = true
	}
}

// WithRateLimit caps outgoing requests at limit per second.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Config) {
		c.RateLimit = limit
		c.RateBurst = burst
	}
}
