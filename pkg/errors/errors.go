// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package errors provides structured error handling for mhttp.
package errors

import (
	"errors"
	"fmt"
)

// Message assembly errors. All of them are fatal to the message being
// assembled except ErrNotYetComplete, which only asks the caller to keep
// feeding chunks.
var (
	// ErrAlreadyComplete indicates a chunk was offered after the message was
	// already reported complete and the assembler was not reset.
	ErrAlreadyComplete = errors.New("message already complete")

	// ErrNotYetComplete indicates a view was requested before the message
	// was complete.
	ErrNotYetComplete = errors.New("message not yet complete")

	// ErrMalformedHeader indicates a header line without a ':' separator.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrTruncatedHeaders indicates the blank line ending the head was never found.
	ErrTruncatedHeaders = errors.New("truncated headers")

	// ErrMalformedStartLine indicates a request or status line that does not
	// have the expected tokens.
	ErrMalformedStartLine = errors.New("malformed start line")

	// ErrUnknownStatusCode indicates a status code with no entry in the status table.
	ErrUnknownStatusCode = errors.New("unknown status code")

	// ErrMalformedText indicates bytes that cannot be decoded with the declared charset.
	ErrMalformedText = errors.New("malformed text")
)

// Connection level errors.
var (
	// ErrTLSHandshakeFailure indicates the handshake could not be completed
	// and the connection is unusable.
	ErrTLSHandshakeFailure = errors.New("tls handshake failure")

	// ErrTLSRecordFault indicates ciphertext rejected by the cryptographic layer.
	ErrTLSRecordFault = errors.New("tls record fault")

	// ErrProtocolInvariantViolation indicates an engine outcome that must
	// never occur, such as an underflow after a wrap.
	ErrProtocolInvariantViolation = errors.New("protocol invariant violation")

	// ErrConnectionClosed indicates the connection ended in an orderly way.
	// Like io.EOF it is a terminal signal rather than a failure.
	ErrConnectionClosed = errors.New("connection closed")
)

// ConnError wraps an error with the connection it happened on.
type ConnError struct {
	Op         string // Operation that failed
	Role       string // client or server
	SessionID  string // Session identifier
	RemoteAddr string // Peer address
	Err        error  // Underlying error
}

// Error implements the error interface.
func (e *ConnError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s %s [%s] %s: %v", e.Role, e.Op, e.SessionID, e.RemoteAddr, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Role, e.Op, e.RemoteAddr, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// New creates a new ConnError.
func New(op, role, sessionID, remoteAddr string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnError{
		Op:         op,
		Role:       role,
		SessionID:  sessionID,
		RemoteAddr: remoteAddr,
		Err:        err,
	}
}

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Mark attaches a sentinel kind to a cause so both match with errors.Is.
func Mark(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
