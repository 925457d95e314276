// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit gates new connections per remote host with token
// buckets, so a single peer cannot monopolize handshake work.
package ratelimit

import (
	"errors"
	"net"
	"sync"
	"time"
)

// ErrRateLimitExceeded is returned when a host has no tokens left.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// TokenBucket implements the token bucket algorithm.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a full bucket holding at most capacity tokens and
// regaining refillRate tokens per second.
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow takes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
}

// full reports whether the bucket has refilled completely.
func (tb *TokenBucket) full() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens >= tb.capacity
}

// Config holds the admission limiter settings.
type Config struct {
	// Capacity is the burst of connections allowed per host.
	Capacity float64
	// RefillRate is the sustained connections per second allowed per host.
	RefillRate float64
	// MaxHosts bounds the number of tracked hosts. Hosts beyond it are refused.
	MaxHosts int
	// CleanupInterval is how often buckets that refilled completely are dropped.
	CleanupInterval time.Duration
}

// Limiter manages one bucket per remote host.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*TokenBucket
	config  Config
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewLimiter creates a limiter and starts its cleanup loop.
func NewLimiter(cfg Config) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = 5
	}
	if cfg.MaxHosts <= 0 {
		cfg.MaxHosts = 10000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	l := &Limiter{
		buckets: make(map[string]*TokenBucket),
		config:  cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow admits one connection from addr, a host or host:port.
func (l *Limiter) Allow(addr string) bool {
	host := hostOf(addr)

	l.mu.Lock()
	tb, ok := l.buckets[host]
	if !ok {
		if len(l.buckets) >= l.config.MaxHosts {
			l.mu.Unlock()
			return false
		}
		tb = newTokenBucket(l.config.Capacity, l.config.RefillRate, l.now)
		l.buckets[host] = tb
	}
	l.mu.Unlock()

	return tb.Allow()
}

// Hosts returns the number of tracked hosts.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close stops the cleanup loop.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup drops buckets that are full again; recreating them is equivalent.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for host, tb := range l.buckets {
		if tb.full() {
			delete(l.buckets, host)
		}
	}
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
