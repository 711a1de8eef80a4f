package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

func TestDefaultRetryPolicyDelays(t *testing.T) {
	policy := DefaultRetryPolicy()
	err := NewStatusError(503, "")

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for attempt, w := range want {
		got, ok := policy.NextDelay(attempt, err)
		if !ok {
			t.Fatalf("NextDelay(%d) ok = false", attempt)
		}
		if got != w {
			t.Errorf("NextDelay(%d) = %v, want %v", attempt, got, w)
		}
	}
	if _, ok := policy.NextDelay(3, err); ok {
		t.Error("NextDelay(3) ok = true, want false after MaxRetries")
	}
}

func TestRetryPolicyMaxDelay(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second})
	got, ok := policy.NextDelay(5, NewTransportError(io.EOF))
	if !ok || got != 5*time.Second {
		t.Errorf("NextDelay(5) = %v, %v; want 5s, true", got, ok)
	}
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{BaseDelay: 100 * time.Millisecond, Jitter: 0.5})
	for i := 0; i < 50; i++ {
		got, ok := policy.NextDelay(0, NewTransportError(io.EOF))
		if !ok {
			t.Fatal("NextDelay() ok = false")
		}
		if got < 100*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("NextDelay() = %v, want within [100ms, 300ms]", got)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", NewTransportError(io.ErrUnexpectedEOF), true},
		{"500", NewStatusError(500, ""), true},
		{"503", NewStatusError(503, ""), true},
		{"429", NewStatusError(429, ""), true},
		{"400", NewStatusError(400, ""), false},
		{"401", NewStatusError(401, ""), false},
		{"404", NewStatusError(404, ""), false},
		{"decode", NewDecodeError(nil, nil), false},
		{"validation", NewValidationError("bad"), false},
		{"canceled", NewTransportError(context.Canceled), false},
		{"deadline", NewTransportError(context.DeadlineExceeded), false},
		{"circuit open", &Error{Kind: KindTransport, Err: ErrCircuitOpen}, false},
		{"client closed", &Error{Kind: KindValidation, Err: ErrClientClosed}, false},
		{"plain", errors.New("boom"), false},
		{"wrapped 502", fmt.Errorf("call: %w", NewStatusError(502, "")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepContext() did not return promptly on cancel")
	}
}
