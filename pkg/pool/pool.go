// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package pool keeps idle message assemblers for reuse across messages and
// connections.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/absmach/mhttp/pkg/message"
	"github.com/absmach/mhttp/pkg/metrics"
)

var (
	// ErrPoolClosed is returned when the pool is closed.
	ErrPoolClosed = errors.New("assembler pool is closed")
	// ErrPoolExhausted is returned when no assemblers are available.
	ErrPoolExhausted = errors.New("assembler pool exhausted")
)

// Config holds assembler pool configuration.
type Config struct {
	// MaxIdle is the maximum number of idle assemblers kept.
	MaxIdle int
	// MaxActive is the maximum number of assemblers handed out at once.
	// If 0, there is no limit.
	MaxActive int
	// WaitTimeout is the maximum time to wait when the pool is exhausted.
	// If 0, Get fails immediately.
	WaitTimeout time.Duration
	// Options are applied to every new assembler.
	Options []message.Option
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Pool hands out assemblers and takes them back reset.
type Pool struct {
	mu       sync.Mutex
	idle     []*message.Assembler
	active   int
	config   Config
	closed   bool
	waitChan chan struct{}
}

// New creates a new assembler pool.
func New(config Config) *Pool {
	if config.MaxIdle <= 0 {
		config.MaxIdle = 10
	}
	return &Pool{
		config:   config,
		waitChan: make(chan struct{}, 1),
	}
}

// Get retrieves an idle assembler or creates a new one.
func (p *Pool) Get(ctx context.Context) (*message.Assembler, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		a := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.active++
		p.reportLocked()
		p.mu.Unlock()
		return a, nil
	}

	if p.config.MaxActive > 0 && p.active >= p.config.MaxActive {
		p.mu.Unlock()

		if p.config.WaitTimeout > 0 {
			timer := time.NewTimer(p.config.WaitTimeout)
			defer timer.Stop()

			select {
			case <-p.waitChan:
				return p.Get(ctx)
			case <-timer.C:
				return nil, ErrPoolExhausted
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, ErrPoolExhausted
	}

	p.active++
	p.reportLocked()
	p.mu.Unlock()
	return message.NewAssembler(p.config.Options...), nil
}

// Put resets a and returns it to the pool.
func (p *Pool) Put(a *message.Assembler) {
	if a == nil {
		return
	}
	a.Reset()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.active--
	if !p.closed && len(p.idle) < p.config.MaxIdle {
		p.idle = append(p.idle, a)
	}
	p.reportLocked()

	// Notify waiting goroutines
	select {
	case p.waitChan <- struct{}{}:
	default:
	}
}

// Close drops all idle assemblers. Assemblers still out are discarded when
// they are put back.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.idle = nil
	p.reportLocked()
	return nil
}

// Stats returns pool statistics.
func (p *Pool) Stats() (idle, active int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle), p.active
}

func (p *Pool) reportLocked() {
	p.config.Metrics.SetAssemblers(len(p.idle), p.active)
}
