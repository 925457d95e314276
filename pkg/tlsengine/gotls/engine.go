// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gotls

import (
	"context"
	"crypto/tls"
	"errors"
	"io"

	"github.com/absmach/mhttp/pkg/bytespan"
	"github.com/absmach/mhttp/pkg/tlsengine"
)

const (
	maxPlaintext = 16 * 1024
	// Header plus the largest expansion crypto/tls applies to one record.
	maxRecord = maxPlaintext + 5 + 2048
)

// ErrNoCloseNotify is returned by CloseInbound when the peer ended the
// stream without a close_notify alert.
var ErrNoCloseNotify = errors.New("gotls: inbound closed before receiving close_notify")

var _ tlsengine.Engine = (*Engine)(nil)

// Engine adapts a crypto/tls connection to the tlsengine.Engine contract.
// The handshake runs on its own goroutine against an in-memory pipe; the
// driver sees it as NeedTask until it either needs ciphertext or has
// produced some.
type Engine struct {
	conn   *tls.Conn
	pipe   *pipe
	cancel context.CancelFunc
	done   chan struct{}

	// Guarded by pipe.mu.
	hsErrReported  bool
	taskPending    bool
	outboundClosed bool
	inboundDone    bool
	peerClosed     bool
	pendingEOF     bool
}

func newEngine(cfg *tls.Config, role tlsengine.Role) *Engine {
	p := newPipe()
	var conn *tls.Conn
	if role == tlsengine.Client {
		conn = tls.Client(p, cfg)
	} else {
		conn = tls.Server(p, cfg)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		conn:   conn,
		pipe:   p,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(e.done)
		p.finish(conn.HandshakeContext(ctx))
	}()
	return e
}

// ConnectionState returns the negotiated parameters. It must only be called
// once the handshake has finished.
func (e *Engine) ConnectionState() tls.ConnectionState {
	return e.conn.ConnectionState()
}

func (e *Engine) HandshakeStatus() tlsengine.HandshakeStatus {
	e.pipe.mu.Lock()
	defer e.pipe.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() tlsengine.HandshakeStatus {
	p := e.pipe
	switch {
	case len(p.out) > 0:
		return tlsengine.NeedWrap
	case p.hsErr != nil && !e.hsErrReported && !e.outboundClosed:
		return tlsengine.NeedWrap
	case e.outboundClosed || p.hsDone:
		return tlsengine.NotHandshaking
	case p.waiting && len(p.in) == 0:
		return tlsengine.NeedUnwrap
	default:
		return tlsengine.NeedTask
	}
}

func (e *Engine) DelegatedTask() func() {
	e.pipe.mu.Lock()
	defer e.pipe.mu.Unlock()
	if e.taskPending || e.statusLocked() != tlsengine.NeedTask {
		return nil
	}
	e.taskPending = true
	return func() {
		e.pipe.awaitSettled()
		e.pipe.mu.Lock()
		e.taskPending = false
		e.pipe.mu.Unlock()
	}
}

func (e *Engine) Wrap(src, dst *bytespan.Buffer) (tlsengine.Result, error) {
	p := e.pipe
	p.mu.Lock()

	if e.outboundClosed {
		res := e.drainLocked(dst)
		if res.Status == tlsengine.OK && len(p.out) == 0 {
			res.Status = tlsengine.Closed
		}
		res.HandshakeStatus = e.statusLocked()
		p.mu.Unlock()
		return res, nil
	}

	if !p.hsDone || p.hsErr != nil {
		if len(p.out) == 0 && p.hsErr != nil && !e.hsErrReported {
			e.hsErrReported = true
			err := p.hsErr
			p.mu.Unlock()
			return tlsengine.Result{}, err
		}
		res := e.drainLocked(dst)
		res.HandshakeStatus = e.statusLocked()
		p.mu.Unlock()
		return res, nil
	}

	consumed := 0
	if len(p.out) == 0 && src.HasRemaining() {
		p.mu.Unlock()
		n := min(src.Remaining(), maxPlaintext)
		if _, err := e.conn.Write(src.Bytes()[:n]); err != nil {
			return tlsengine.Result{}, err
		}
		src.Advance(n)
		consumed = n
		p.mu.Lock()
	}
	res := e.drainLocked(dst)
	res.Consumed = consumed
	res.HandshakeStatus = e.statusLocked()
	p.mu.Unlock()
	return res, nil
}

// drainLocked moves all pending ciphertext into dst, or reports Overflow
// when it does not fit in one piece.
func (e *Engine) drainLocked(dst *bytespan.Buffer) tlsengine.Result {
	p := e.pipe
	if len(p.out) > dst.Remaining() {
		return tlsengine.Result{Status: tlsengine.Overflow}
	}
	n := dst.Put(p.out)
	p.out = p.out[:0]
	return tlsengine.Result{Status: tlsengine.OK, Produced: n}
}

func (e *Engine) Unwrap(src, dst *bytespan.Buffer) (tlsengine.Result, error) {
	p := e.pipe
	consumed := src.Remaining()
	p.push(src.Bytes())
	src.Advance(consumed)

	p.mu.Lock()
	if e.inboundDone || e.pendingEOF {
		e.inboundDone = true
		res := tlsengine.Result{Status: tlsengine.Closed, HandshakeStatus: e.statusLocked(), Consumed: consumed}
		p.mu.Unlock()
		return res, nil
	}
	if !p.hsDone {
		res := tlsengine.Result{Status: tlsengine.OK, HandshakeStatus: e.statusLocked(), Consumed: consumed}
		if consumed == 0 {
			res.Status = tlsengine.Underflow
		}
		p.mu.Unlock()
		return res, nil
	}
	if p.hsErr != nil {
		err := p.hsErr
		p.mu.Unlock()
		return tlsengine.Result{}, err
	}
	p.mu.Unlock()

	if !dst.HasRemaining() {
		return tlsengine.Result{Status: tlsengine.Overflow, HandshakeStatus: e.HandshakeStatus(), Consumed: consumed}, nil
	}

	n, err := e.conn.Read(dst.Bytes())
	if n > 0 {
		dst.Advance(n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	res := tlsengine.Result{Consumed: consumed, Produced: n}
	switch {
	case err == nil || n > 0 && isWouldBlock(err):
		res.Status = tlsengine.OK
	case errors.Is(err, io.EOF):
		if !p.eof {
			e.peerClosed = true
		}
		if n > 0 {
			e.pendingEOF = true
			res.Status = tlsengine.OK
			break
		}
		e.inboundDone = true
		res.Status = tlsengine.Closed
	case isWouldBlock(err):
		res.Status = tlsengine.Underflow
	default:
		return tlsengine.Result{}, err
	}
	res.HandshakeStatus = e.statusLocked()
	return res, nil
}

func isWouldBlock(err error) bool {
	return errors.Is(err, errWouldBlock)
}

func (e *Engine) CloseOutbound() {
	p := e.pipe
	p.mu.Lock()
	if e.outboundClosed {
		p.mu.Unlock()
		return
	}
	e.outboundClosed = true
	established := p.hsDone && p.hsErr == nil
	if !established {
		e.hsErrReported = true
		p.closed = true
		p.cond.Broadcast()
	}
	p.mu.Unlock()

	if !established {
		e.cancel()
		<-e.done
		return
	}
	// Queues close_notify into the pipe; Wrap hands it out.
	_ = e.conn.CloseWrite()
}

func (e *Engine) CloseInbound() error {
	p := e.pipe
	p.mu.Lock()
	defer p.mu.Unlock()
	e.inboundDone = true
	p.eof = true
	p.cond.Broadcast()
	if !e.peerClosed {
		return ErrNoCloseNotify
	}
	return nil
}

func (e *Engine) IsInboundDone() bool {
	e.pipe.mu.Lock()
	defer e.pipe.mu.Unlock()
	return e.inboundDone
}

func (e *Engine) IsOutboundDone() bool {
	e.pipe.mu.Lock()
	defer e.pipe.mu.Unlock()
	return e.outboundClosed && len(e.pipe.out) == 0
}

func (e *Engine) ApplicationBufferSize() int { return maxPlaintext }
func (e *Engine) PacketBufferSize() int      { return maxRecord }
