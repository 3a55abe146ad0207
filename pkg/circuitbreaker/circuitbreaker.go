// Package circuitbreaker keeps request latency bounded when the Redis read
// cache stops answering. While the breaker is open, cache calls fail fast
// and callers read from the database instead.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
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

// ErrCircuitOpen is returned without calling the operation while the breaker
// is open, or while the single half-open trial call is in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings configures a breaker.
type Settings struct {
	Name string

	// FailureThreshold consecutive failures open a closed breaker.
	FailureThreshold int

	// CoolDown is how long the breaker stays open before it lets one trial
	// call through.
	CoolDown time.Duration

	// OnStateChange is called with the lock held; it must not call back
	// into the breaker.
	OnStateChange func(name string, from, to State)
}

// Option adjusts Settings.
type Option func(*Settings)

func WithFailureThreshold(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.FailureThreshold = n
		}
	}
}

func WithCoolDown(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.CoolDown = d
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *Settings) {
		s.OnStateChange = fn
	}
}

// CircuitBreaker counts consecutive failures of the calls it wraps.
type CircuitBreaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// New returns a closed breaker. Defaults: 5 failures, 30s cool-down.
func New(name string, opts ...Option) *CircuitBreaker {
	s := Settings{Name: name, FailureThreshold: 5, CoolDown: 30 * time.Second}
	for _, opt := range opts {
		opt(&s)
	}
	return &CircuitBreaker{settings: s}
}

// CacheBreaker opens after three failures in a row and retries the cache
// after 15 seconds. A cache outage only costs a database read, so it opens
// early.
func CacheBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("redis-cache",
		WithFailureThreshold(3),
		WithCoolDown(15*time.Second),
		WithOnStateChange(onStateChange),
	)
}

// Execute calls fn unless the breaker is open. Any non-nil error from fn
// counts as a failure; callers return nil for outcomes that are not.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) < cb.settings.CoolDown {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.trial = true
		return nil
	default:
		if cb.trial {
			return ErrCircuitOpen
		}
		cb.trial = true
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.open()
	case cb.state == StateClosed && cb.failures >= cb.settings.FailureThreshold:
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = time.Now()
	cb.setState(StateOpen)
}

func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.trial = false
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}

// State returns the current position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Name() string { return cb.settings.Name }
