// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"crypto/x509"

	"github.com/absmach/mhttp/pkg/message"
	"github.com/absmach/mhttp/pkg/status"
)

// Context contains connection metadata. It is passed to Handler methods and
// lives as long as the connection, except Params which is set per message.
type Context struct {
	// SessionID is a unique identifier for this connection
	SessionID string

	// RemoteAddr is the client's network address
	RemoteAddr string

	// Secure is true when the connection runs over TLS
	Secure bool

	// Cert is the client's TLS certificate (if using mTLS)
	Cert *x509.Certificate

	// Params holds the URI template parameters of the current request
	Params map[string]string
}

// Handler defines the callbacks of a message-oriented connection.
//
// OnConnect is called once the connection is admitted and, when TLS is
// enabled, after the handshake. Returning an error closes the connection.
//
// ServeMessage is called for every complete request. A nil response closes
// the connection without writing anything; an error is logged and answered
// with 500 Internal Server Error.
//
// OnDisconnect is called when the connection ends for any reason. Its error
// is logged.
type Handler interface {
	OnConnect(ctx context.Context, hctx *Context) error
	ServeMessage(ctx context.Context, hctx *Context, req *message.Request) (*message.Response, error)
	OnDisconnect(ctx context.Context, hctx *Context) error
}

// NoopHandler accepts connections and answers every request with 204.
// Useful for testing.
type NoopHandler struct{}

var _ Handler = (*NoopHandler)(nil)

func (h *NoopHandler) OnConnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) ServeMessage(ctx context.Context, hctx *Context, req *message.Request) (*message.Response, error) {
	return message.NewResponse(status.NoContent), nil
}

func (h *NoopHandler) OnDisconnect(ctx context.Context, hctx *Context) error {
	return nil
}
