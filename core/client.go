package core

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/petal-labs/dify/internal/json"
)

// DefaultTimeout bounds a unary call, or the wait for stream headers.
const DefaultTimeout = 100 * time.Second

const tracerName = "github.com/petal-labs/dify/core"

// Doer issues HTTP requests. *http.Client satisfies it.
// Implementations must be safe for concurrent use.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client executes requests against the service API. It owns one transport for
// its lifetime and the circuit breaker state of every endpoint group.
// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    Secret
	http      Doer
	headers   http.Header
	timeout   time.Duration
	logger    logrus.FieldLogger
	telemetry TelemetryHook
	tracer    trace.Tracer
	retry     RetryPolicy
	limiter   *rate.Limiter
	retryPOST bool

	breakerConfig *CircuitBreakerConfig
	breakers      *breakerSet

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	closeOnce sync.Once
	closed    atomic.Bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a Client for baseURL authenticating with apiKey.
// Resilience is off unless WithRetryPolicy or WithCircuitBreaker is given.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    NewSecret(apiKey),
		http:      &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		timeout:   DefaultTimeout,
		logger:    discard,
		telemetry: NoopTelemetryHook{},
		tracer:    noop.NewTracerProvider().Tracer(tracerName),
		sleep:     sleepContext,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breakerConfig != nil {
		c.breakers = newBreakerSet(*c.breakerConfig, c.onCircuitChange)
	}
	return c
}

// WithHTTPClient sets the transport. The client calls CloseIdleConnections on
// it, when available, from Close.
func WithHTTPClient(d Doer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithTimeout sets the default per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger. Calls are logged at debug level, retries and
// breaker transitions at warn level.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTelemetry sets the telemetry hook for the client.
func WithTelemetry(h TelemetryHook) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.telemetry = h
		}
	}
}

// WithTracerProvider records one span per call on tp.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName, trace.WithInstrumentationVersion(Version))
		}
	}
}

// WithRetryPolicy enables retries for retriable calls.
func WithRetryPolicy(r RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = r
	}
}

// WithCircuitBreaker enables one circuit breaker per endpoint group for
// retriable calls.
func WithCircuitBreaker(cfg CircuitBreakerConfig) ClientOption {
	return func(c *Client) {
		c.breakerConfig = &cfg
	}
}

// WithRetryablePOST applies the resilience policy to every POST call, not
// only to those marked Retriable.
func WithRetryablePOST() ClientOption {
	return func(c *Client) {
		c.retryPOST = true
	}
}

// WithRateLimit throttles outgoing attempts to limit per second with burst.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithHeader adds an extra header to every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(http.Header)
		}
		c.headers.Set(key, value)
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Logger returns the configured logger.
func (c *Client) Logger() logrus.FieldLogger {
	return c.logger
}

// CircuitState reports the breaker state of group. It returns CircuitClosed
// when breakers are disabled or the group has not been used.
func (c *Client) CircuitState(group string) CircuitState {
	if c.breakers == nil {
		return CircuitClosed
	}
	return c.breakers.get(group).State()
}

// Close releases the transport's idle connections and drops breaker state.
// It is idempotent; calls made after Close fail with ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if ci, ok := c.http.(interface{ CloseIdleConnections() }); ok {
			ci.CloseIdleConnections()
		}
		if c.breakers != nil {
			c.breakers.reset()
		}
	})
	return nil
}

// Execute dispatches req and decodes a JSON response into out. An empty or
// null body is a KindDecode error.
func (c *Client) Execute(ctx context.Context, req *Request, out any) error {
	return c.execute(ctx, req, out)
}

// ExecuteNoBody dispatches req and discards any response body.
func (c *Client) ExecuteNoBody(ctx context.Context, req *Request) error {
	return c.execute(ctx, req, nil)
}

// Do executes req and returns the decoded response.
func Do[T any](ctx context.Context, c *Client, req *Request) (*T, error) {
	var out T
	if err := c.Execute(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) execute(ctx context.Context, req *Request, out any) (err error) {
	ctx, cl := c.begin(ctx, req)
	defer func() { cl.end(err) }()

	if d := c.timeoutFor(req); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	resp, err := c.dispatch(ctx, req, cl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cl.tag(NewTransportError(causeOf(ctx, err)))
	}
	if out == nil {
		return nil
	}
	return cl.tag(decodeBody(body, out))
}

func decodeBody(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return NewDecodeError(body, nil)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return NewDecodeError(body, err)
	}
	return nil
}

// dispatch runs the attempt loop and returns a live 2xx response.
func (c *Client) dispatch(ctx context.Context, req *Request, cl *call) (*http.Response, error) {
	if c.closed.Load() {
		return nil, cl.tag(&Error{Kind: KindValidation, Message: "client is closed", Err: ErrClientClosed})
	}

	p, err := encodePayload(req)
	if err != nil {
		return nil, cl.tag(err)
	}

	resilient := c.isResilient(req)
	var cb *CircuitBreaker
	if resilient && c.breakers != nil {
		cb = c.breakers.get(req.group())
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, req, p, cl, cb)
		if err == nil {
			return resp, nil
		}
		err = cl.tag(err)
		if !resilient || c.retry == nil {
			return nil, err
		}

		delay, ok := c.retry.NextDelay(attempt, err)
		if !ok {
			return nil, err
		}

		c.telemetry.OnRetry(RetryEvent{
			Method:  req.Method,
			Path:    req.Path,
			Attempt: attempt + 1,
			Delay:   delay,
			Err:     err,
		})
		c.logger.WithFields(logrus.Fields{
			"method":     req.Method,
			"path":       req.Path,
			"request_id": cl.requestID,
			"retry":      attempt + 1,
			"delay":      delay,
		}).WithError(err).Warn("dify request failed, retrying")

		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, cl.tag(NewTransportError(causeOf(ctx, serr)))
		}
	}
}

func (c *Client) attempt(ctx context.Context, req *Request, p *payload, cl *call, cb *CircuitBreaker) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewTransportError(causeOf(ctx, err))
		}
	}
	if cb != nil {
		if err := cb.Allow(); err != nil {
			return nil, err
		}
	}

	cl.attempts++
	resp, err := c.roundTrip(ctx, req, p, cl.requestID)

	if cb != nil {
		cb.done(outcomeOf(ctx, err))
	}
	if resp != nil {
		cl.status = resp.StatusCode
	} else if code := StatusCode(err); code != 0 {
		cl.status = code
	}
	return resp, err
}

func outcomeOf(ctx context.Context, err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case ctx.Err() != nil:
		return outcomeIgnored
	case IsRetryable(err):
		return outcomeFailure
	default:
		// The service answered; a 4xx says nothing about its health.
		return outcomeSuccess
	}
}

func (c *Client) roundTrip(ctx context.Context, req *Request, p *payload, requestID string) (*http.Response, error) {
	u := c.baseURL + req.Path
	if q := req.Query.Encode(); q != "" {
		u += "?" + q
	}

	var body io.Reader
	if p != nil {
		body = p.reader()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "invalid request", Err: err}
	}

	httpReq.Header.Set("Authorization", c.apiKey.Bearer())
	httpReq.Header.Set("User-Agent", "dify-go/"+Version)
	httpReq.Header.Set("X-Request-Id", requestID)
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	if p != nil {
		httpReq.Header.Set("Content-Type", p.contentType)
	}
	for key, values := range c.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, NewTransportError(causeOf(ctx, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NormalizeStatus(resp)
	}
	return resp, nil
}

func (c *Client) isResilient(req *Request) bool {
	if c.retry == nil && c.breakers == nil {
		return false
	}
	return req.Retriable || isRetriableMethod(req.Method) ||
		(c.retryPOST && req.Method == http.MethodPost)
}

func (c *Client) timeoutFor(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return c.timeout
}

func (c *Client) onCircuitChange(e CircuitEvent) {
	c.telemetry.OnCircuitStateChange(e)
	c.logger.WithFields(logrus.Fields{
		"group": e.Group,
		"from":  e.From.String(),
		"to":    e.To.String(),
	}).Warn("circuit breaker state changed")
}

// causeOf prefers the context's cause once the context is done, so that
// cancellation and deadlines surface as context errors.
func causeOf(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return err
}

// call is the instrumentation scope of one logical call, across retries.
type call struct {
	c         *Client
	req       *Request
	requestID string
	start     time.Time
	span      trace.Span
	attempts  int
	status    int
	once      sync.Once
}

func (c *Client) begin(ctx context.Context, req *Request) (context.Context, *call) {
	cl := &call{
		c:         c,
		req:       req,
		requestID: c.newID(),
		start:     time.Now(),
	}

	ctx, cl.span = c.tracer.Start(ctx, req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("dify.request_id", cl.requestID),
			attribute.Int64("dify.timeout_ms", c.timeoutFor(req).Milliseconds()),
		),
	)

	c.telemetry.OnRequestStart(RequestStartEvent{
		Method:    req.Method,
		Path:      req.Path,
		RequestID: cl.requestID,
		Start:     cl.start,
	})
	return ctx, cl
}

// tag stamps the call's request id on err.
func (cl *call) tag(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok && e.RequestID == "" {
		e.RequestID = cl.requestID
	}
	return err
}

// end closes the span and reports the end event. Only the first call counts.
func (cl *call) end(err error) {
	cl.once.Do(func() {
		end := time.Now()
		c := cl.c

		cl.span.SetAttributes(
			attribute.Int("http.response.status_code", cl.status),
			attribute.Int("dify.attempts", cl.attempts),
		)
		if err != nil {
			cl.span.RecordError(err)
			cl.span.SetStatus(codes.Error, KindOf(err).String())
		} else {
			cl.span.SetStatus(codes.Ok, "")
		}
		cl.span.End()

		c.telemetry.OnRequestEnd(RequestEndEvent{
			Method:     cl.req.Method,
			Path:       cl.req.Path,
			RequestID:  cl.requestID,
			StatusCode: cl.status,
			Attempts:   cl.attempts,
			Start:      cl.start,
			End:        end,
			Err:        err,
		})

		entry := c.logger.WithFields(logrus.Fields{
			"method":     cl.req.Method,
			"path":       cl.req.Path,
			"request_id": cl.requestID,
			"status":     cl.status,
			"attempts":   cl.attempts,
			"duration":   end.Sub(cl.start),
		})
		if err != nil {
			entry.WithError(err).Debug("dify request failed")
		} else {
			entry.Debug("dify request completed")
		}
	})
}
