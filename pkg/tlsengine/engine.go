// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tlsengine

import (
	"io"

	"github.com/absmach/mhttp/pkg/bytespan"
)

// HandshakeStatus tells the driver what the engine needs next.
type HandshakeStatus int

const (
	// NotHandshaking means no handshake is in progress.
	NotHandshaking HandshakeStatus = iota
	// Finished is reported once, right after the handshake completes.
	Finished
	// NeedTask means delegated computation must run before progress.
	NeedTask
	// NeedWrap means the engine has records to send.
	NeedWrap
	// NeedUnwrap means the engine needs records from the peer.
	NeedUnwrap
)

func (h HandshakeStatus) String() string {
	switch h {
	case NotHandshaking:
		return "not_handshaking"
	case Finished:
		return "finished"
	case NeedTask:
		return "need_task"
	case NeedWrap:
		return "need_wrap"
	case NeedUnwrap:
		return "need_unwrap"
	default:
		return "unknown"
	}
}

// Status is the outcome of a single Wrap or Unwrap call.
type Status int

const (
	// OK means the operation made progress.
	OK Status = iota
	// Overflow means the destination buffer is too small.
	Overflow
	// Underflow means the source does not hold a complete record.
	Underflow
	// Closed means the engine side involved has been closed.
	Closed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Overflow:
		return "buffer_overflow"
	case Underflow:
		return "buffer_underflow"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result reports what a Wrap or Unwrap did.
type Result struct {
	Status          Status
	HandshakeStatus HandshakeStatus
	Consumed        int
	Produced        int
}

// Engine is a cryptographic session that transforms plaintext into records
// and back without doing any I/O of its own.
//
// Wrap reads plaintext from src, which is in read mode, and appends records
// to dst, which is in write mode. Unwrap does the reverse. An error from
// either call means the engine rejected its input and cannot continue.
type Engine interface {
	Wrap(src, dst *bytespan.Buffer) (Result, error)
	Unwrap(src, dst *bytespan.Buffer) (Result, error)
	HandshakeStatus() HandshakeStatus

	// DelegatedTask returns the next pending computation or nil.
	DelegatedTask() func()

	// CloseOutbound queues a close notification. Wrap reports Closed once it
	// has been produced.
	CloseOutbound()

	// CloseInbound marks the inbound side done. It fails when the peer did
	// not send a close notification first.
	CloseInbound() error

	IsInboundDone() bool
	IsOutboundDone() bool

	ApplicationBufferSize() int
	PacketBufferSize() int
}

// Transport is the raw byte stream a Session reads records from and writes
// records to. Reads may block.
type Transport = io.ReadWriteCloser

// Role is fixed when a Session is created.
type Role int

const (
	// Server accepts handshakes.
	Server Role = iota
	// Client initiates handshakes.
	Client
)

func (r Role) String() string {
	if r == Client {
		return "client"
	}
	return "server"
}
