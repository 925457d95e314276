// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gotls

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

var errPipeClosed = errors.New("gotls: pipe closed")

// errWouldBlock is returned by reads once the handshake is over and no
// ciphertext is buffered. crypto/tls does not latch temporary errors, so the
// next read after more ciphertext arrives succeeds.
var errWouldBlock net.Error = wouldBlock{}

type wouldBlock struct{}

func (wouldBlock) Error() string   { return "gotls: no buffered ciphertext" }
func (wouldBlock) Timeout() bool   { return true }
func (wouldBlock) Temporary() bool { return true }

// pipe is the net.Conn handed to crypto/tls. Inbound ciphertext is pushed in
// by Unwrap and outbound ciphertext is pulled out by Wrap. It also carries
// the handshake state shared with the engine, all guarded by mu.
type pipe struct {
	mu   sync.Mutex
	cond *sync.Cond

	in  []byte
	out []byte

	// blocking reads park the handshake goroutine until ciphertext arrives.
	blocking bool
	// waiting is set while the handshake goroutine is parked in Read.
	waiting bool
	eof     bool
	closed  bool

	hsDone bool
	hsErr  error
}

func newPipe() *pipe {
	p := &pipe{blocking: true}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.in) == 0 {
		if p.eof || p.closed {
			p.waiting = false
			return 0, io.EOF
		}
		if !p.blocking {
			return 0, errWouldBlock
		}
		p.waiting = true
		p.cond.Broadcast()
		p.cond.Wait()
	}
	p.waiting = false
	n := copy(b, p.in)
	p.in = p.in[n:]
	return n, nil
}

func (p *pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errPipeClosed
	}
	p.out = append(p.out, b...)
	p.cond.Broadcast()
	return len(b), nil
}

func (p *pipe) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// push appends inbound ciphertext.
func (p *pipe) push(b []byte) {
	if len(b) == 0 {
		return
	}
	p.mu.Lock()
	p.in = append(p.in, b...)
	p.cond.Broadcast()
	p.mu.Unlock()
}

// finish records the handshake outcome and switches reads to non-blocking.
func (p *pipe) finish(err error) {
	p.mu.Lock()
	p.hsDone = true
	p.hsErr = err
	p.blocking = false
	p.cond.Broadcast()
	p.mu.Unlock()
}

// settledLocked reports whether the handshake goroutine is either done or
// parked waiting for ciphertext that has not arrived.
func (p *pipe) settledLocked() bool {
	return p.hsDone || p.eof || p.closed || (p.waiting && len(p.in) == 0)
}

// awaitSettled blocks until the handshake goroutine can make no further
// progress without more input.
func (p *pipe) awaitSettled() {
	p.mu.Lock()
	for !p.settledLocked() {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

func (p *pipe) LocalAddr() net.Addr              { return pipeAddr{} }
func (p *pipe) RemoteAddr() net.Addr             { return pipeAddr{} }
func (p *pipe) SetDeadline(time.Time) error      { return nil }
func (p *pipe) SetReadDeadline(time.Time) error  { return nil }
func (p *pipe) SetWriteDeadline(time.Time) error { return nil }
