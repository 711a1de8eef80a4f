package core

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petal-labs/dify/internal/json"
)

// Stream is a pull-based sequence of events decoded from a server-sent events
// response. It is bound to one response and is exhausted after one pass.
//
//	for stream.Next() {
//	    ev := stream.Current()
//	    ...
//	}
//	if err := stream.Err(); err != nil {
//	    ...
//	}
//
// Only lines starting with "data:" are decoded. Blank lines, comments and
// other SSE fields are skipped, and a data line that fails to decode is
// dropped without ending the stream.
//
// Next and Current must be called from one goroutine. Close may be called from
// any goroutine and unblocks a pending Next.
type Stream[T any] struct {
	ctx       context.Context
	body      io.ReadCloser
	reader    *bufio.Reader
	operation string
	hook      TelemetryHook
	logger    logrus.FieldLogger

	current T
	eof     bool

	once      sync.Once
	done      atomic.Bool
	stopWatch func() bool
	finish    func(error)

	mu  sync.Mutex
	err error
}

func newStream[T any](ctx context.Context, body io.ReadCloser, operation string, hook TelemetryHook, logger logrus.FieldLogger, finish func(error)) *Stream[T] {
	s := &Stream[T]{
		ctx:       ctx,
		body:      body,
		reader:    bufio.NewReader(body),
		operation: operation,
		hook:      hook,
		logger:    logger,
		finish:    finish,
	}
	hook.OnStreamStart(operation)
	// Cancellation closes the body so a blocked read returns promptly.
	s.stopWatch = context.AfterFunc(ctx, func() {
		s.stop(NewTransportError(context.Cause(ctx)))
	})
	return s
}

// Next advances to the next event. It returns false when the response ends,
// the context is cancelled, the stream is closed, or a read fails.
func (s *Stream[T]) Next() bool {
	for {
		if s.done.Load() {
			return false
		}
		if s.eof {
			s.stop(nil)
			return false
		}
		if s.ctx.Err() != nil {
			s.stop(NewTransportError(context.Cause(s.ctx)))
			return false
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			switch {
			case s.done.Load():
				return false
			case s.ctx.Err() != nil:
				// The partial line is discarded.
				s.stop(NewTransportError(context.Cause(s.ctx)))
				return false
			case !errors.Is(err, io.EOF):
				s.stop(NewTransportError(err))
				return false
			}
			// A final line without a trailing newline is still decoded.
			s.eof = true
		}

		ev, ok := s.decode(line)
		if !ok {
			continue
		}
		s.current = ev
		s.hook.OnStreamChunk(s.operation)
		return true
	}
}

// Current returns the event read by the last successful Next.
func (s *Stream[T]) Current() T {
	return s.current
}

// Err returns the error that ended the stream, or nil after a clean end or
// Close.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the response. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	s.stop(nil)
	return nil
}

// All returns an iterator over the remaining events. A terminal error is
// yielded last with a zero event. The stream is closed when iteration stops.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.current, nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

func (s *Stream[T]) decode(line string) (T, bool) {
	var ev T
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return ev, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" || payload == "null" {
		return ev, false
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.hook.OnStreamLineDropped(s.operation)
		s.logger.WithField("operation", s.operation).WithError(err).Debug("dropping undecodable stream line")
		var zero T
		return zero, false
	}
	return ev, true
}

func (s *Stream[T]) stop(err error) {
	s.once.Do(func() {
		s.done.Store(true)
		s.stopWatch()
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		_ = s.body.Close()
		s.finish(err)
	})
}

// OpenStream dispatches req and decodes the response as server-sent events.
// A non-2xx response is returned as an error and no stream is created.
//
// The client timeout bounds only the wait for response headers; Request.Timeout,
// when set, bounds the whole stream.
func OpenStream[T any](ctx context.Context, c *Client, req *Request) (*Stream[T], error) {
	resp, sctx, finish, err := c.open(ctx, req)
	if err != nil {
		return nil, err
	}
	return newStream[T](sctx, resp.Body, req.operation(), c.telemetry, c.logger, finish), nil
}

// RawResponse is a successful response whose body is streamed to the caller,
// such as synthesized audio.
type RawResponse struct {
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// OpenRaw dispatches req and returns the undecoded response body. The caller
// must close Body; the call is reported finished at that point.
func (c *Client) OpenRaw(ctx context.Context, req *Request) (*RawResponse, error) {
	resp, _, finish, err := c.open(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RawResponse{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Body:          &rawBody{rc: resp.Body, finish: finish},
	}, nil
}

type rawBody struct {
	rc      io.ReadCloser
	finish  func(error)
	readErr error
	once    sync.Once
}

func (b *rawBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		b.readErr = err
	}
	return n, err
}

func (b *rawBody) Close() error {
	err := b.rc.Close()
	b.once.Do(func() {
		if b.readErr != nil {
			b.finish(NewTransportError(b.readErr))
			return
		}
		b.finish(nil)
	})
	return err
}

// open dispatches req and hands back the live 2xx response together with the
// context bounding it and the finish func that must be called exactly once.
func (c *Client) open(ctx context.Context, req *Request) (*http.Response, context.Context, func(error), error) {
	ctx, cl := c.begin(ctx, req)

	callCtx, cancel := context.WithCancelCause(ctx)
	cancelTimeout := context.CancelFunc(func() {})
	if req.Timeout > 0 {
		callCtx, cancelTimeout = context.WithTimeout(callCtx, req.Timeout)
	}
	var headerTimer *time.Timer
	if req.Timeout <= 0 && c.timeout > 0 {
		headerTimer = time.AfterFunc(c.timeout, func() {
			cancel(context.DeadlineExceeded)
		})
	}

	finish := func(err error) {
		if headerTimer != nil {
			headerTimer.Stop()
		}
		cancelTimeout()
		cancel(nil)
		cl.end(cl.tag(err))
	}

	resp, err := c.dispatch(callCtx, req, cl)
	if headerTimer != nil && !headerTimer.Stop() && err == nil {
		// The header deadline fired after the response arrived; callCtx is
		// already cancelled so the body would fail on first read.
		resp.Body.Close()
		err = cl.tag(NewTransportError(context.DeadlineExceeded))
	}
	if err != nil {
		finish(err)
		return nil, nil, nil, err
	}
	return resp, callCtx, finish, nil
}
