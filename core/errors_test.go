package core

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestStatusErrorMessage(t *testing.T) {
	err := NewStatusError(404, `{"code":"not_found","message":"Conversation Not Exists.","status":404}`)

	want := `404 (Not Found). Response body: {"code":"not_found","message":"Conversation Not Exists.","status":404}`
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
	if err.Error() != "dify: "+want {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Code != "not_found" {
		t.Errorf("Code = %q, want not_found", err.Code)
	}
	if err.APIMessage != "Conversation Not Exists." {
		t.Errorf("APIMessage = %q", err.APIMessage)
	}
	if err.Reason != "Not Found" {
		t.Errorf("Reason = %q", err.Reason)
	}
}

func TestStatusErrorNonJSONBody(t *testing.T) {
	err := NewStatusError(502, "<html>bad gateway</html>")
	if err.Code != "" || err.APIMessage != "" {
		t.Errorf("envelope fields = %q/%q, want empty", err.Code, err.APIMessage)
	}
	if !strings.HasSuffix(err.Message, "Response body: <html>bad gateway</html>") {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestStatusErrorUnknownReason(t *testing.T) {
	err := NewStatusError(599, "x")
	if err.Message != "599. Response body: x" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNormalizeStatusKeepsRawBody(t *testing.T) {
	body := "  {\"message\":\"bad\"}\n"
	resp := &http.Response{
		StatusCode: 400,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
	err := NormalizeStatus(resp)
	if err.Body != body {
		t.Errorf("Body = %q, want %q", err.Body, body)
	}
	if err.Kind != KindStatus || err.StatusCode != 400 {
		t.Errorf("Kind/Status = %v/%d", err.Kind, err.StatusCode)
	}
	if err.Err != nil {
		t.Errorf("Err = %v, want nil", err.Err)
	}
}

func TestSentinelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{404, ErrNotFound},
		{429, ErrRateLimited},
		{400, ErrBadRequest},
		{409, ErrBadRequest},
		{500, ErrServer},
		{503, ErrServer},
	}
	for _, tt := range tests {
		err := NewStatusError(tt.status, "")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: errors.Is(%v) = false", tt.status, tt.want)
		}
	}
}

func TestErrorKindsUnwrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     ErrorKind
	}{
		{"transport", NewTransportError(io.ErrUnexpectedEOF), ErrNetwork, KindTransport},
		{"decode", NewDecodeError(nil, nil), ErrDecode, KindDecode},
		{"validation", NewValidationError("user is required"), ErrValidation, KindValidation},
		{"status", NewStatusError(500, ""), ErrServer, KindStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v) = false", tt.sentinel)
			}
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestTransportErrorKeepsCause(t *testing.T) {
	err := NewTransportError(context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("errors.Is(context.Canceled) = false")
	}
	if err.Error() != "dify: transport failure: context canceled" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestDecodeErrorNullMessage(t *testing.T) {
	err := NewDecodeError([]byte("null"), nil)
	if err.Message != "Response deserialization returned null" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestAsErrorThroughWrapping(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), NewStatusError(429, ""))
	e, ok := AsError(wrapped)
	if !ok {
		t.Fatal("AsError() ok = false")
	}
	if e.StatusCode != 429 {
		t.Errorf("StatusCode = %d", e.StatusCode)
	}
	if StatusCode(wrapped) != 429 {
		t.Errorf("StatusCode() = %d", StatusCode(wrapped))
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("KindOf(plain) != 0")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := map[ErrorKind]string{
		KindTransport:  "transport",
		KindStatus:     "status",
		KindDecode:     "decode",
		KindValidation: "validation",
		ErrorKind(0):   "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}
