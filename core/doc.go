// Package core provides the request executor shared by every Dify endpoint.
//
// The core package owns transport, error normalization, server-sent event
// decoding, retries, circuit breaking and instrumentation. The dify package
// builds one [Client] and hands it to each resource service.
//
// # Client
//
// [Client] dispatches a [Request] and decodes the JSON response:
//
//	c := core.NewClient("https://api.dify.ai/v1", apiKey,
//	    core.WithTelemetry(myTelemetryHook),
//	    core.WithRetryPolicy(core.DefaultRetryPolicy()),
//	)
//	info, err := core.Do[AppInfo](ctx, c, &core.Request{
//	    Method: http.MethodGet,
//	    Path:   "/info",
//	})
//
// Each call derives a context bounded by [Request.Timeout] or the client
// timeout (100s by default) and sends a fresh X-Request-Id.
//
// # Streaming
//
// [OpenStream] turns a text/event-stream response into a pull-based [Stream]:
//
//	stream, err := core.OpenStream[Event](ctx, c, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    handle(stream.Current())
//	}
//	return stream.Err()
//
// The client timeout only bounds the wait for response headers of a stream.
// A non-2xx status is returned from OpenStream and no stream is created.
//
// # Error Handling
//
// Every failure is an [*Error] with one of four kinds:
//   - [KindTransport]: no response (network, timeout, cancellation, open circuit)
//   - [KindStatus]: a status outside 200-299, with the raw body kept
//   - [KindDecode]: a 2xx body that could not be decoded, or was empty
//   - [KindValidation]: an invalid argument caught before dispatch
//
// Sentinels classify errors with errors.Is:
//
//	if errors.Is(err, core.ErrRateLimited) {
//	    // Back off
//	}
//
// # Resilience
//
// Retries ([WithRetryPolicy]) and circuit breakers ([WithCircuitBreaker]) are
// off by default. When enabled they apply to GET and HEAD calls, to calls with
// [Request.Retriable] set, and to every POST with [WithRetryablePOST]. Only
// transport faults, 429 and 5xx responses are retried or count against a
// breaker. Breakers are kept per endpoint group, the first path segment.
//
// # Telemetry
//
// Implement [TelemetryHook] to observe the call lifecycle, or embed
// [NoopTelemetryHook] and override what you need. [WithTracerProvider] adds one
// OpenTelemetry client span per call.
//
// # Thread Safety
//
// [Client] is safe for concurrent use. A [Stream] must be consumed by one
// goroutine; Close may be called from any goroutine.
package core
