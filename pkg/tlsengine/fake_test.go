// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tlsengine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"

	"github.com/absmach/mhttp/pkg/bytespan"
)

const closeMarker = 0xffff

// fakeEngine follows a scripted handshake and then frames application data
// as a two byte length followed by the payload. A length of 0xffff is the
// close notification.
type fakeEngine struct {
	script []HandshakeStatus
	step   int
	hello  []byte
	expect int
	tasks  int

	handed  int
	ran     int
	taskLog []int

	appSize    int
	packetSize int
	maxRecord  int

	wrapStatus *Status
	wrapErr    error
	unwrapErr  error

	// handshakeAppMin is the free plaintext space a handshake unwrap needs;
	// less is reported as Overflow.
	handshakeAppMin int
	// peerCloses makes the next handshake unwrap read a close notification.
	peerCloses      bool
	// awaitPeerClose keeps asking for unwraps after the close was sent
	// until the peer's close arrives.
	awaitPeerClose  bool
	unwraps         int
	overflows       int

	outboundClosed bool
	closeSent      bool
	inboundDone    bool
	peerClosed     bool
}

func newFakeEngine(script ...HandshakeStatus) *fakeEngine {
	return &fakeEngine{
		script:     script,
		hello:      []byte("HELLO"),
		expect:     5,
		tasks:      2,
		appSize:    64,
		packetSize: 64,
		maxRecord:  1 << 12,
	}
}

func (e *fakeEngine) handshaking() bool {
	return e.step < len(e.script)
}

func (e *fakeEngine) HandshakeStatus() HandshakeStatus {
	switch {
	case e.outboundClosed && !e.closeSent:
		return NeedWrap
	case e.outboundClosed && e.awaitPeerClose && !e.inboundDone:
		return NeedUnwrap
	case e.outboundClosed:
		return NotHandshaking
	case e.handshaking():
		return e.script[e.step]
	default:
		return NotHandshaking
	}
}

func (e *fakeEngine) advance() HandshakeStatus {
	e.step++
	if !e.handshaking() {
		return Finished
	}
	return e.HandshakeStatus()
}

func (e *fakeEngine) Wrap(src, dst *bytespan.Buffer) (Result, error) {
	if e.wrapErr != nil {
		return Result{}, e.wrapErr
	}
	if e.outboundClosed {
		if e.closeSent {
			return Result{Status: Closed, HandshakeStatus: NotHandshaking}, nil
		}
		if dst.Remaining() < 2 {
			return Result{Status: Overflow, HandshakeStatus: NeedWrap}, nil
		}
		dst.Put([]byte{0xff, 0xff})
		e.closeSent = true
		return Result{Status: Closed, HandshakeStatus: e.HandshakeStatus(), Produced: 2}, nil
	}
	if e.handshaking() && e.script[e.step] == NeedWrap {
		if dst.Remaining() < len(e.hello) {
			return Result{Status: Overflow, HandshakeStatus: NeedWrap}, nil
		}
		dst.Put(e.hello)
		return Result{Status: OK, HandshakeStatus: e.advance(), Produced: len(e.hello)}, nil
	}
	if e.wrapStatus != nil {
		return Result{Status: *e.wrapStatus, HandshakeStatus: e.HandshakeStatus()}, nil
	}

	n := src.Remaining()
	if n > e.maxRecord {
		n = e.maxRecord
	}
	if dst.Remaining() < 2+n {
		return Result{Status: Overflow, HandshakeStatus: NotHandshaking}, nil
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(n))
	dst.Put(hdr[:])
	dst.Put(src.Bytes()[:n])
	src.Advance(n)
	return Result{Status: OK, HandshakeStatus: NotHandshaking, Consumed: n, Produced: 2 + n}, nil
}

func (e *fakeEngine) Unwrap(src, dst *bytespan.Buffer) (Result, error) {
	if e.unwrapErr != nil {
		return Result{}, e.unwrapErr
	}
	e.unwraps++
	if e.inboundDone {
		return Result{Status: Closed, HandshakeStatus: e.HandshakeStatus()}, nil
	}
	if e.handshaking() && e.script[e.step] == NeedUnwrap {
		if src.Remaining() < e.expect {
			return Result{Status: Underflow, HandshakeStatus: NeedUnwrap}, nil
		}
		if e.peerCloses {
			src.Advance(e.expect)
			e.inboundDone = true
			e.peerClosed = true
			return Result{Status: Closed, HandshakeStatus: e.HandshakeStatus(), Consumed: e.expect}, nil
		}
		if dst.Remaining() < e.handshakeAppMin {
			e.overflows++
			return Result{Status: Overflow, HandshakeStatus: NeedUnwrap}, nil
		}
		src.Advance(e.expect)
		return Result{Status: OK, HandshakeStatus: e.advance(), Consumed: e.expect}, nil
	}

	if src.Remaining() < 2 {
		return Result{Status: Underflow, HandshakeStatus: e.HandshakeStatus()}, nil
	}
	n := int(binary.BigEndian.Uint16(src.Bytes()))
	if n == closeMarker {
		src.Advance(2)
		e.inboundDone = true
		e.peerClosed = true
		return Result{Status: Closed, HandshakeStatus: e.HandshakeStatus(), Consumed: 2}, nil
	}
	if src.Remaining() < 2+n {
		return Result{Status: Underflow, HandshakeStatus: e.HandshakeStatus()}, nil
	}
	if dst.Remaining() < n {
		return Result{Status: Overflow, HandshakeStatus: e.HandshakeStatus()}, nil
	}
	dst.Put(src.Bytes()[2 : 2+n])
	src.Advance(2 + n)
	return Result{Status: OK, HandshakeStatus: e.HandshakeStatus(), Consumed: 2 + n, Produced: n}, nil
}

func (e *fakeEngine) DelegatedTask() func() {
	if e.HandshakeStatus() != NeedTask || e.handed == e.tasks {
		return nil
	}
	e.handed++
	id := e.handed
	return func() {
		e.taskLog = append(e.taskLog, id)
		e.ran++
		if e.ran == e.tasks {
			e.handed, e.ran = 0, 0
			e.step++
		}
	}
}

func (e *fakeEngine) CloseOutbound() { e.outboundClosed = true }

func (e *fakeEngine) CloseInbound() error {
	e.inboundDone = true
	if !e.peerClosed {
		return errors.New("inbound closed before receiving close notification")
	}
	return nil
}

func (e *fakeEngine) IsInboundDone() bool        { return e.inboundDone }
func (e *fakeEngine) IsOutboundDone() bool       { return e.closeSent }
func (e *fakeEngine) ApplicationBufferSize() int { return e.appSize }
func (e *fakeEngine) PacketBufferSize() int      { return e.packetSize }

// fakeTransport serves reads from chunks, one chunk per Read call, then
// io.EOF. Writes are collected.
type fakeTransport struct {
	chunks [][]byte
	out    bytes.Buffer
	reads  int
	writes int
	closed int
	// maxWrite limits how much a single Write accepts.
	maxWrite int
}

func (t *fakeTransport) Read(p []byte) (int, error) {
	t.reads++
	if len(t.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, t.chunks[0])
	t.chunks[0] = t.chunks[0][n:]
	if len(t.chunks[0]) == 0 {
		t.chunks = t.chunks[1:]
	}
	return n, nil
}

func (t *fakeTransport) Write(p []byte) (int, error) {
	t.writes++
	if t.closed > 0 {
		return 0, errors.New("write on closed transport")
	}
	if t.maxWrite > 0 && len(p) > t.maxWrite {
		p = p[:t.maxWrite]
	}
	return t.out.Write(p)
}

func (t *fakeTransport) Close() error {
	t.closed++
	return nil
}

func record(payload string) []byte {
	b := make([]byte, 2, 2+len(payload))
	binary.BigEndian.PutUint16(b, uint16(len(payload)))
	return append(b, payload...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(e Engine, t Transport, exec *Executor) *Session {
	return NewSession(Config{
		Role:     Server,
		Executor: exec,
		Policy:   SizingPolicy{ApplicationBufferSize: 1, PacketBufferSize: 1},
		Logger:   testLogger(),
	}, e, t)
}

func plaintext(s string) *bytespan.Buffer {
	return bytespan.Wrap([]byte(s))
}
