package dify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petal-labs/dify/core"
)

func TestNewDefaults(t *testing.T) {
	c := New("key")
	defer c.Close()
	if c.Core().BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL() = %q", c.Core().BaseURL())
	}
	if c.Chat == nil || c.Completion == nil || c.Workflows == nil || c.Files == nil ||
		c.Conversations == nil || c.Messages == nil || c.Audio == nil || c.App == nil ||
		c.Annotations == nil || c.Feedbacks == nil {
		t.Error("a service is nil")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(APIKeyEnvVar, "")
	if _, err := NewFromEnv(); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("NewFromEnv() err = %v, want ErrAPIKeyNotFound", err)
	}

	t.Setenv(APIKeyEnvVar, "env-key")
	t.Setenv(BaseURLEnvVar, "https://dify.internal/v1/")
	c, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	defer c.Close()
	if c.Core().BaseURL() != "https://dify.internal/v1" {
		t.Errorf("BaseURL() = %q", c.Core().BaseURL())
	}

	c2, _ := NewFromEnv(WithBaseURL("https://override/v1"))
	defer c2.Close()
	if c2.Core().BaseURL() != "https://override/v1" {
		t.Errorf("option did not override env: %q", c2.Core().BaseURL())
	}
}

func TestWithRetryRetriesGET(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"name":"app"}`)
	}, WithRetry(core.RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}))

	info, err := c.App.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.Name != "app" || calls.Load() != 3 {
		t.Errorf("name = %q, calls = %d", info.Name, calls.Load())
	}
}

func TestWithRetryLeavesChatPOSTAlone(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithRetry(core.RetryConfig{BaseDelay: time.Millisecond}))

	_, err := c.Chat.Send(context.Background(), &ChatRequest{Query: "hi", User: "u1"})
	if !errors.Is(err, core.ErrServer) {
		t.Errorf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestWithRetryablePOST(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithRetry(core.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}), WithRetryablePOST())

	c.Chat.Send(context.Background(), &ChatRequest{Query: "hi", User: "u1"})
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWithCircuitBreakerFailsFast(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithCircuitBreaker(core.CircuitBreakerConfig{FailureThreshold: 2, OpenDuration: time.Hour}))

	ctx := context.Background()
	c.App.Info(ctx)
	c.App.Info(ctx)
	_, err := c.App.Info(ctx)
	if !errors.Is(err, core.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if c.Core().CircuitState("info") != core.CircuitOpen {
		t.Errorf("CircuitState() = %v", c.Core().CircuitState("info"))
	}
}

func TestWithHeaderAndHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Tenant") != "acme" {
			t.Errorf("X-Tenant = %q", r.Header.Get("X-Tenant"))
		}
		io.WriteString(w, `{"title":"t"}`)
	}))
	defer server.Close()

	c := New("k",
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithHTTPTracing(),
		WithHeader("X-Tenant", "acme"),
	)
	defer c.Close()
	if _, err := c.App.Site(context.Background()); err != nil {
		t.Errorf("Site() error = %v", err)
	}
}

func TestCloseRejectsCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})
	c.Close()
	if _, err := c.App.Info(context.Background()); !errors.Is(err, core.ErrClientClosed) {
		t.Errorf("err = %v, want ErrClientClosed", err)
	}
}
