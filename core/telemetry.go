package core

import "time"

// TelemetryHook receives request lifecycle notifications. Implementations back
// counters, histograms and gauges (see contrib/prommetrics) and must be safe
// for concurrent use.
//
// Every OnRequestStart is paired with exactly one OnRequestEnd, including on
// cancellation and for streams, where the end event fires when the stream is
// exhausted or closed.
//
// # Security
//
// Events carry operational metadata only. API keys, query text, answers and
// response bodies are never included.
type TelemetryHook interface {
	// OnRequestStart is called before the first dispatch attempt.
	OnRequestStart(e RequestStartEvent)

	// OnRequestEnd is called once the call has finished.
	OnRequestEnd(e RequestEndEvent)

	// OnRetry is called before each retry sleep.
	OnRetry(e RetryEvent)

	// OnCircuitStateChange is called on every breaker transition.
	OnCircuitStateChange(e CircuitEvent)

	// OnStreamStart is called once when a streaming response starts.
	OnStreamStart(operation string)

	// OnStreamChunk is called for each event yielded by a stream.
	OnStreamChunk(operation string)

	// OnStreamLineDropped is called for each data line that failed to decode.
	OnStreamLineDropped(operation string)
}

// RequestStartEvent describes a call about to be dispatched.
type RequestStartEvent struct {
	Method    string
	Path      string
	RequestID string
	Start     time.Time
}

// RequestEndEvent describes a finished call.
type RequestEndEvent struct {
	Method     string
	Path       string
	RequestID  string
	StatusCode int // 0 when no response was received
	Attempts   int
	Start      time.Time
	End        time.Time
	Err        error
}

// Duration returns the elapsed time for the call.
func (e RequestEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// ErrorKind returns the error kind label, or "" on success.
func (e RequestEndEvent) ErrorKind() string {
	if e.Err == nil {
		return ""
	}
	return KindOf(e.Err).String()
}

// RetryEvent describes a scheduled retry.
type RetryEvent struct {
	Method  string
	Path    string
	Attempt int // 1-indexed retry number
	Delay   time.Duration
	Err     error
}

// CircuitEvent describes a breaker transition.
type CircuitEvent struct {
	Group string
	From  CircuitState
	To    CircuitState
}

// NoopTelemetryHook ignores every event. It is the client default and can be
// embedded by hooks that only care about some events.
type NoopTelemetryHook struct{}

func (NoopTelemetryHook) OnRequestStart(RequestStartEvent)  {}
func (NoopTelemetryHook) OnRequestEnd(RequestEndEvent)      {}
func (NoopTelemetryHook) OnRetry(RetryEvent)                {}
func (NoopTelemetryHook) OnCircuitStateChange(CircuitEvent) {}
func (NoopTelemetryHook) OnStreamStart(string)              {}
func (NoopTelemetryHook) OnStreamChunk(string)              {}
func (NoopTelemetryHook) OnStreamLineDropped(string)        {}

// Compile-time check that NoopTelemetryHook implements TelemetryHook.
var _ TelemetryHook = NoopTelemetryHook{}
