package clients

import (
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota

	// StateOpen rejects requests until the open timeout has passed.
	StateOpen

	// StateHalfOpen lets a limited number of probe requests through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// HalfOpenLimit bounds concurrent probes and is also the number of
	// successful probes needed to close the circuit again.
	HalfOpenLimit int
}

// CircuitBreaker stops calls to a collector that keeps failing.
//
//	closed    -> open       after MaxFailures consecutive failures
//	open      -> half-open  once Timeout has elapsed
//	half-open -> closed     after HalfOpenLimit successes
//	half-open -> open       on any failure
type CircuitBreaker struct {
	mu        sync.Mutex
	cfg       CircuitBreakerConfig
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time

	onStateChange func(from, to State)
	now           func() time.Time
}

// NewCircuitBreaker returns a closed circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.HalfOpenLimit < 1 {
		cfg.HalfOpenLimit = 1
	}

	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers fn to be called after every transition. fn runs
// on the goroutine that caused the transition, outside the breaker's lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.onStateChange = fn
}

// Allow reports whether a request may be sent. Every allowed request must
// be followed by RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	var notify func()
	allowed := false

	switch cb.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.cfg.Timeout {
			notify = cb.setState(StateHalfOpen)
			cb.probes = 1
			allowed = true
		}
	case StateHalfOpen:
		if cb.probes < cb.cfg.HalfOpenLimit {
			cb.probes++
			allowed = true
		}
	}
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}

	return allowed
}

// RecordSuccess records a request that reached the collector.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	var notify func()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probes--
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenLimit {
			notify = cb.setState(StateClosed)
		}
	}
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// RecordFailure records a request that failed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	var notify func()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			notify = cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.probes--
		notify = cb.setState(StateOpen)
	}
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// setState must be called with mu held. It returns the pending callback
// invocation, if any, to be run after unlocking.
func (cb *CircuitBreaker) setState(to State) func() {
	from := cb.state
	if from == to {
		return nil
	}

	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
		cb.probes = 0
	}

	fn := cb.onStateChange
	if fn == nil {
		return nil
	}

	return func() { fn(from, to) }
}
