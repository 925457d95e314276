// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package tlsengine drives an opaque TLS engine over a raw byte transport.
//
// The Engine interface is the wrap/unwrap contract: it turns plaintext into
// records and back and reports what it needs next, but never touches the
// network. A Session owns one engine, one transport and four working
// buffers, and performs all I/O:
//
//	NeedUnwrap  read from the transport, unwrap into the inbound staging buffer
//	NeedWrap    wrap into the outbound record buffer, flush it fully
//	NeedTask    run delegated computation on the shared Executor
//	Finished    done
//
// Overflow and underflow outcomes are absorbed by growing the buffer
// involved: to the size the engine proposes when that is larger, otherwise
// to twice the current size, always keeping the bytes already written.
// Closed is the normal end of a connection and is reported as
// ErrConnectionClosed. Records the engine rejects end the connection with
// ErrTLSRecordFault.
//
// The gotls subpackage provides an Engine backed by crypto/tls.
package tlsengine
