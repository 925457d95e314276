// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package breaker stops calling a failing message handler for a while and
// answers 503 in its place.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration.
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before a trial call.
	ResetTimeout time.Duration
	// SuccessThreshold is the number of half-open successes that close it again.
	SuccessThreshold int
	// OnStateChange is called synchronously, outside the lock, on every transition.
	OnStateChange func(from, to State)
}

// CircuitBreaker counts failures of guarded calls.
type CircuitBreaker struct {
	mu        sync.Mutex
	config    Config
	state     State
	failures  int
	successes int
	changed   time.Time
	now       func() time.Time
}

// New creates a closed circuit breaker.
func New(config Config) *CircuitBreaker {
	return newBreaker(config, time.Now)
}

func newBreaker(config Config, now func() time.Time) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	return &CircuitBreaker{
		config:  config,
		state:   StateClosed,
		changed: now(),
		now:     now,
	}
}

// Call executes fn if the circuit allows it and records its outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.Record(err == nil)
	return err
}

// Allow reports whether a call may proceed. An open circuit whose reset
// timeout elapsed moves to half-open and lets the call through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return nil
	}
	if cb.now().Sub(cb.changed) < cb.config.ResetTimeout {
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	notify := cb.setStateLocked(StateHalfOpen)
	cb.mu.Unlock()
	notify()
	return nil
}

// Record registers the outcome of a call let through by Allow.
func (cb *CircuitBreaker) Record(ok bool) {
	cb.mu.Lock()
	notify := func() {}
	switch {
	case ok && cb.state == StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			notify = cb.setStateLocked(StateClosed)
		}
	case ok:
		cb.failures = 0
	case cb.state == StateHalfOpen:
		notify = cb.setStateLocked(StateOpen)
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.config.MaxFailures {
			notify = cb.setStateLocked(StateOpen)
		}
	}
	cb.mu.Unlock()
	notify()
}

func (cb *CircuitBreaker) setStateLocked(to State) func() {
	from := cb.state
	if from == to {
		return func() {}
	}
	cb.state = to
	cb.changed = cb.now()
	cb.failures = 0
	cb.successes = 0

	fn := cb.config.OnStateChange
	if fn == nil {
		return func() {}
	}
	return func() { fn(from, to) }
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() (state State, failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failures, cb.successes
}
