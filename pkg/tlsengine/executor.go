// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tlsengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrExecutorClosed is returned by Run after Shutdown.
var ErrExecutorClosed = errors.New("executor is shut down")

type job struct {
	fn   func()
	done chan error
}

// Executor runs delegated handshake tasks on one background worker shared
// by every session. Tasks from different sessions interleave freely; the
// tasks of one Run call execute in order.
type Executor struct {
	logger *slog.Logger
	jobs   chan job
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewExecutor starts the worker. queue bounds how many tasks may wait.
func NewExecutor(queue int, logger *slog.Logger) *Executor {
	if queue <= 0 {
		queue = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		logger: logger,
		jobs:   make(chan job, queue),
		done:   make(chan struct{}),
	}
	go e.work()
	return e
}

// Run submits tasks one by one and waits for each to finish.
func (e *Executor) Run(ctx context.Context, tasks ...func()) error {
	for _, fn := range tasks {
		j := job{fn: fn, done: make(chan error, 1)}

		e.mu.RLock()
		if e.closed {
			e.mu.RUnlock()
			return ErrExecutorClosed
		}
		select {
		case e.jobs <- j:
		case <-ctx.Done():
			e.mu.RUnlock()
			return ctx.Err()
		}
		e.mu.RUnlock()

		select {
		case err := <-j.done:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.jobs)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) work() {
	defer close(e.done)
	for j := range e.jobs {
		j.done <- e.exec(j.fn)
	}
}

func (e *Executor) exec(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("delegated task panicked", slog.Any("panic", r))
			err = fmt.Errorf("delegated task panicked: %v", r)
		}
	}()
	fn()
	return nil
}
