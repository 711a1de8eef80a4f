package core

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation.
	CircuitOpen                         // Failing, reject calls.
	CircuitHalfOpen                     // One trial call allowed.
)

// String returns the string representation of a CircuitState.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive qualifying failures before opening (default: 5).
	OpenDuration     time.Duration // Cool-down before a trial call (default: 30s).
}

// DefaultCircuitBreakerConfig returns the default breaker settings.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
	}
}

// outcome is what a finished attempt reports to its breaker.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailure
	// outcomeIgnored releases a half-open trial without judging the service,
	// e.g. when the caller cancelled.
	outcomeIgnored
)

// CircuitBreaker guards one endpoint group. It is safe for concurrent use.
type CircuitBreaker struct {
	group  string
	config CircuitBreakerConfig
	now    func() time.Time
	notify func(CircuitEvent)

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	trial    bool // a half-open trial call is in flight
}

// NewCircuitBreaker creates a closed breaker for group.
func NewCircuitBreaker(group string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenDuration <= 0 {
		config.OpenDuration = 30 * time.Second
	}
	return &CircuitBreaker{
		group:  group,
		config: config,
		now:    time.Now,
		notify: func(CircuitEvent) {},
	}
}

// State returns the current state, applying the open to half-open transition
// view without admitting a call.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.coolDownElapsed() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Allow admits a call or returns a KindTransport error wrapping ErrCircuitOpen.
// A nil return obliges the caller to report the attempt with done.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.coolDownElapsed() {
		cb.transition(CircuitHalfOpen)
	}

	switch cb.state {
	case CircuitOpen:
		return cb.openError()
	case CircuitHalfOpen:
		if cb.trial {
			return cb.openError()
		}
		cb.trial = true
	}
	return nil
}

func (cb *CircuitBreaker) done(o outcome) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		switch o {
		case outcomeSuccess:
			cb.failures = 0
		case outcomeFailure:
			cb.failures++
			if cb.failures >= cb.config.FailureThreshold {
				cb.openedAt = cb.now()
				cb.transition(CircuitOpen)
			}
		}
	case CircuitHalfOpen:
		cb.trial = false
		switch o {
		case outcomeSuccess:
			cb.failures = 0
			cb.transition(CircuitClosed)
		case outcomeFailure:
			cb.openedAt = cb.now()
			cb.transition(CircuitOpen)
		}
	case CircuitOpen:
		// A call admitted before the circuit opened finished late.
	}
}

// coolDownElapsed must be called with mu held.
func (cb *CircuitBreaker) coolDownElapsed() bool {
	return cb.now().Sub(cb.openedAt) >= cb.config.OpenDuration
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.notify(CircuitEvent{Group: cb.group, From: from, To: to})
}

func (cb *CircuitBreaker) openError() error {
	return &Error{
		Kind:    KindTransport,
		Message: fmt.Sprintf("circuit open for %q", cb.group),
		Err:     ErrCircuitOpen,
	}
}

// breakerSet holds one breaker per endpoint group for a client.
type breakerSet struct {
	config CircuitBreakerConfig
	now    func() time.Time
	notify func(CircuitEvent)

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func newBreakerSet(config CircuitBreakerConfig, notify func(CircuitEvent)) *breakerSet {
	return &breakerSet{
		config:   config,
		now:      time.Now,
		notify:   notify,
		breakers: make(map[string]*CircuitBreaker),
	}
}

func (s *breakerSet) get(group string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[group]
	if !ok {
		cb = NewCircuitBreaker(group, s.config)
		cb.now = s.now
		cb.notify = s.notify
		s.breakers[group] = cb
	}
	return cb
}

func (s *breakerSet) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakers = make(map[string]*CircuitBreaker)
}
