// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucket(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	tb := newTokenBucket(2, 1, c.now)

	steps := []struct {
		advance time.Duration
		want    bool
	}{
		{want: true},
		{want: true},
		{want: false},
		{advance: 500 * time.Millisecond, want: false},
		{advance: 500 * time.Millisecond, want: true},
		{advance: 10 * time.Second, want: true},
		{want: true},
		{want: false},
	}
	for i, s := range steps {
		c.advance(s.advance)
		if got := tb.Allow(); got != s.want {
			t.Fatalf("step %d: Allow() = %v, want %v", i, got, s.want)
		}
	}
}

func newTestLimiter(cfg Config, c *clock) *Limiter {
	l := NewLimiter(cfg)
	l.now = c.now
	return l
}

func TestLimiter_PerHost(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := newTestLimiter(Config{Capacity: 1, RefillRate: 1}, c)
	defer l.Close()

	if !l.Allow("10.0.0.1:1000") {
		t.Fatal("first connection refused")
	}
	if l.Allow("10.0.0.1:2000") {
		t.Error("second connection from the same host admitted")
	}
	if !l.Allow("10.0.0.2:1000") {
		t.Error("connection from another host refused")
	}
	if !l.Allow("[::1]:80") || l.Hosts() != 3 {
		t.Errorf("Hosts() = %d, want 3", l.Hosts())
	}
}

func TestLimiter_MaxHosts(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := newTestLimiter(Config{Capacity: 5, RefillRate: 1, MaxHosts: 1}, c)
	defer l.Close()

	if !l.Allow("a") {
		t.Fatal("first host refused")
	}
	if l.Allow("b") {
		t.Error("host beyond MaxHosts admitted")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := newTestLimiter(Config{Capacity: 2, RefillRate: 1}, c)
	defer l.Close()

	l.Allow("a")
	l.Allow("b")
	l.Allow("b")
	c.advance(time.Second)
	l.cleanup()
	if l.Hosts() != 1 {
		t.Fatalf("Hosts() = %d after one second, want 1", l.Hosts())
	}
	c.advance(time.Second)
	l.cleanup()
	if l.Hosts() != 0 {
		t.Errorf("Hosts() = %d after refill, want 0", l.Hosts())
	}
}
