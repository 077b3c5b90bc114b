package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned without calling the protected function while the
// breaker rejects requests.
var ErrOpen = errors.New("circuit breaker open")

type State int

const (
	StateClosed State = iota
	StateOpen
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

type Config struct {
	FailureThreshold    int           // consecutive failures that open the breaker
	SuccessThreshold    int           // half-open successes that close it again
	OpenTimeout         time.Duration // time spent open before probing
	MaxRequestsHalfOpen int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		OpenTimeout:         15 * time.Second,
		MaxRequestsHalfOpen: 1,
	}
}

type Stats struct {
	State            State
	Failures         int
	Successes        int
	HalfOpenInFlight int
	Rejected         int64
	LastFailure      time.Time
	ChangedAt        time.Time
}

type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	succ     int
	inFlight int
	rejected int64
	lastFail time.Time
	changed  time.Time
	onChange func(from, to State)
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxRequestsHalfOpen < 1 {
		cfg.MaxRequestsHalfOpen = 1
	}
	cb := &CircuitBreaker{cfg: cfg, now: time.Now}
	cb.changed = cb.now()
	return cb
}

// OnStateChange registers a callback run synchronously after each
// transition, outside the breaker lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

// Execute runs fn if the breaker allows it and records the outcome.
// Context cancellation is not counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}
	cb.record(err == nil)
	if err != nil {
		return fmt.Errorf("circuit breaker: %w", err)
	}
	return nil
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	var notify func()
	defer func() {
		cb.mu.Unlock()
		if notify != nil {
			notify()
		}
	}()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.changed) < cb.cfg.OpenTimeout {
			cb.rejected++
			return ErrOpen
		}
		notify = cb.transition(StateHalfOpen)
		cb.inFlight++
		return nil
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.MaxRequestsHalfOpen {
			cb.rejected++
			return ErrOpen
		}
		cb.inFlight++
	}
	return nil
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	var notify func()
	defer func() {
		cb.mu.Unlock()
		if notify != nil {
			notify()
		}
	}()

	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}

	if ok {
		cb.failures = 0
		cb.succ++
		if cb.state == StateHalfOpen && cb.succ >= cb.cfg.SuccessThreshold {
			notify = cb.transition(StateClosed)
		}
		return
	}

	cb.succ = 0
	cb.failures++
	cb.lastFail = cb.now()
	switch cb.state {
	case StateHalfOpen:
		notify = cb.transition(StateOpen)
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			notify = cb.transition(StateOpen)
		}
	}
}

// transition must be called with mu held. It returns the callback to run
// once the lock is released.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	if from == to {
		return nil
	}
	cb.state = to
	cb.changed = cb.now()
	cb.failures = 0
	cb.succ = 0
	cb.inFlight = 0

	if fn := cb.onChange; fn != nil {
		return func() { fn(from, to) }
	}
	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:            cb.state,
		Failures:         cb.failures,
		Successes:        cb.succ,
		HalfOpenInFlight: cb.inFlight,
		Rejected:         cb.rejected,
		LastFailure:      cb.lastFail,
		ChangedAt:        cb.changed,
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	notify := cb.transition(StateClosed)
	cb.mu.Unlock()
	if notify != nil {
		notify()
	}
}
