package core

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorKind classifies an Error. The set is closed: callers can switch over it
// exhaustively.
type ErrorKind int

const (
	// KindTransport is an I/O failure before any HTTP response existed
	// (DNS, connection refused, timeout before headers, mid-stream disconnect).
	KindTransport ErrorKind = iota + 1
	// KindStatus is a response with a status outside 200-299.
	KindStatus
	// KindDecode is a successful response whose body could not be decoded.
	KindDecode
	// KindValidation is an invalid argument detected before any network call.
	KindValidation
)

// String returns the kind name used in logs and metric labels.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the client on any failure.
type Error struct {
	Kind ErrorKind

	// StatusCode is always set for KindStatus.
	StatusCode int
	// Reason is the HTTP reason phrase for StatusCode.
	Reason string
	// Body is the raw response body, kept for debugging.
	Body string

	// Code and APIMessage are extracted from the service error envelope
	// ({"code": "...", "message": "...", "status": 400}) when present.
	Code       string
	APIMessage string

	// RequestID is the X-Request-Id sent with the failed call.
	RequestID string

	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil && e.Kind != KindStatus {
		return fmt.Sprintf("dify: %s: %v", e.Message, e.Err)
	}
	return "dify: " + e.Message
}

// Unwrap exposes the classification sentinel and the underlying cause so that
// both errors.Is(err, ErrNotFound) and errors.Is(err, context.Canceled) work.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindTransport:
		return ErrNetwork
	case KindStatus:
		return SentinelForStatus(e.StatusCode)
	case KindDecode:
		return ErrDecode
	case KindValidation:
		return ErrValidation
	default:
		return nil
	}
}

// Sentinel errors for classification with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrBadRequest   = errors.New("bad request")
	ErrServer       = errors.New("server error")
	ErrNetwork      = errors.New("network error")
	ErrDecode       = errors.New("decode error")
	ErrValidation   = errors.New("invalid argument")
	ErrCircuitOpen  = errors.New("circuit open")
	ErrClientClosed = errors.New("client closed")
)

// SentinelForStatus maps an HTTP status code to a sentinel error.
func SentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrServer
	default:
		return ErrBadRequest
	}
}

// NewValidationError reports an invalid caller argument.
func NewValidationError(format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewTransportError wraps a failure that happened before a response existed.
func NewTransportError(err error) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: "transport failure",
		Err:     err,
	}
}

// NewDecodeError reports a body that could not be decoded.
func NewDecodeError(body []byte, err error) *Error {
	msg := "Response deserialization failed"
	if err == nil {
		msg = "Response deserialization returned null"
	}
	return &Error{
		Kind:    KindDecode,
		Body:    string(body),
		Message: msg,
		Err:     err,
	}
}

// NewStatusError builds a KindStatus error from a status code and raw body.
// The message has the form "<status> (<reason>). Response body: <body>".
func NewStatusError(status int, body string) *Error {
	reason := http.StatusText(status)
	e := &Error{
		Kind:       KindStatus,
		StatusCode: status,
		Reason:     reason,
		Body:       body,
	}
	if reason != "" {
		e.Message = fmt.Sprintf("%d (%s). Response body: %s", status, reason, body)
	} else {
		e.Message = fmt.Sprintf("%d. Response body: %s", status, body)
	}
	if gjson.Valid(body) {
		env := gjson.GetMany(body, "code", "message")
		e.Code = env[0].String()
		e.APIMessage = env[1].String()
	}
	return e
}

// NormalizeStatus converts a non-2xx response into an Error. It reads and
// closes the body; a failed read keeps whatever was read and records the read
// error as the cause.
func NormalizeStatus(resp *http.Response) *Error {
	defer resp.Body.Close()
	raw, readErr := io.ReadAll(resp.Body)
	e := NewStatusError(resp.StatusCode, string(raw))
	e.Err = readErr
	return e
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or 0 when err carries no *Error.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return 0
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if e, ok := AsError(err); ok {
		return e.StatusCode
	}
	return 0
}
