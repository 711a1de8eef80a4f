package dify

import (
	"errors"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/petal-labs/dify/core"
)

// Environment variables read by NewFromEnv.
const (
	APIKeyEnvVar  = "DIFY_API_KEY"
	BaseURLEnvVar = "DIFY_BASE_URL"
)

// ErrAPIKeyNotFound is returned when the API key environment variable is not set.
var ErrAPIKeyNotFound = errors.New("dify: DIFY_API_KEY environment variable not set")

// Client is a client for the Dify service API. Each field groups the
// operations of one resource; all of them share one core.Client, so one
// transport and one set of circuit breakers.
// Client is safe for concurrent use.
type Client struct {
	core *core.Client

	Chat          *ChatService
	Completion    *CompletionService
	Workflows     *WorkflowService
	Files         *FileService
	Conversations *ConversationService
	Messages      *MessageService
	Audio         *AudioService
	App           *AppService
	Annotations   *AnnotationService
	Feedbacks     *FeedbackService
}

// New creates a client authenticating with the given app API key.
func New(apiKey string, opts ...Option) *Client {
	cfg := Config{
		BaseURL: DefaultBaseURL,
		Timeout: core.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithCore(core.NewClient(cfg.BaseURL, apiKey, coreOptions(cfg)...))
}

// NewFromEnv creates a client from DIFY_API_KEY and, when set, DIFY_BASE_URL.
// Options are applied after the environment.
func NewFromEnv(opts ...Option) (*Client, error) {
	apiKey := os.Getenv(APIKeyEnvVar)
	if apiKey == "" {
		return nil, ErrAPIKeyNotFound
	}
	if base := os.Getenv(BaseURLEnvVar); base != "" {
		opts = append([]Option{WithBaseURL(base)}, opts...)
	}
	return New(apiKey, opts...), nil
}

// NewWithCore builds the resource services over an existing executor.
func NewWithCore(c *core.Client) *Client {
	return &Client{
		core:          c,
		Chat:          &ChatService{c: c},
		Completion:    &CompletionService{c: c},
		Workflows:     &WorkflowService{c: c},
		Files:         &FileService{c: c},
		Conversations: &ConversationService{c: c},
		Messages:      &MessageService{c: c},
		Audio:         &AudioService{c: c},
		App:           &AppService{c: c},
		Annotations:   &AnnotationService{c: c},
		Feedbacks:     &FeedbackService{c: c},
	}
}

// Core returns the shared request executor.
func (c *Client) Core() *core.Client {
	return c.core
}

// Close releases the transport. It is safe to call more than once.
func (c *Client) Close() error {
	return c.core.Close()
}

func coreOptions(cfg Config) []core.ClientOption {
	opts := []core.ClientOption{
		core.WithTimeout(cfg.Timeout),
		core.WithLogger(cfg.Logger),
		core.WithTelemetry(cfg.Telemetry),
		core.WithTracerProvider(cfg.TracerProvider),
	}

	httpClient := cfg.HTTPClient
	if cfg.HTTPTracing {
		base := http.DefaultTransport.(*http.Transport).Clone()
		var rt http.RoundTripper = base
		if httpClient != nil && httpClient.Transport != nil {
			rt = httpClient.Transport
		}
		var tracing []otelhttp.Option
		if cfg.TracerProvider != nil {
			tracing = append(tracing, otelhttp.WithTracerProvider(cfg.TracerProvider))
		}
		wrapped := &http.Client{Transport: otelhttp.NewTransport(rt, tracing...)}
		if httpClient != nil {
			wrapped.CheckRedirect = httpClient.CheckRedirect
			wrapped.Jar = httpClient.Jar
		}
		httpClient = wrapped
	}
	if httpClient != nil {
		opts = append(opts, core.WithHTTPClient(httpClient))
	}

	for key, values := range cfg.Headers {
		for _, v := range values {
			opts = append(opts, core.WithHeader(key, v))
		}
	}
	if cfg.Retry != nil {
		opts = append(opts, core.WithRetryPolicy(core.NewRetryPolicy(*cfg.Retry)))
	}
	if cfg.CircuitBreaker != nil {
		opts = append(opts, core.WithCircuitBreaker(*cfg.CircuitBreaker))
	}
	if cfg.RetryPOST {
		opts = append(opts, core.WithRetryablePOST())
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, core.WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	return opts
}
