// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handler provides the interface that links the connection driver to
// application logic.
//
// # Data Flow
//
//	Client → Session (TLS) → Assembler → Request → Handler → Response → Session → Client
//
// # Handler Methods
//
//   - OnConnect: called once per admitted connection, after the TLS handshake
//   - ServeMessage: called for each complete request, returns the response
//   - OnDisconnect: called when the connection ends
//
// # Context
//
// The Context struct carries connection metadata across all handler calls:
//   - SessionID: Unique identifier for this connection
//   - RemoteAddr: Client's network address
//   - Secure: Whether the connection runs over TLS
//   - Cert: Client certificate for mutually authenticated TLS connections
//   - Params: URI template parameters of the current request
//
// # Routing
//
// Mux implements Handler by dispatching on method and URI template:
//
//	mux := handler.NewMux()
//	mux.Handle("GET", "/echo/{name}", func(ctx context.Context, hctx *handler.Context, req *message.Request) (*message.Response, error) {
//		return handler.Text(status.OK, "hello "+hctx.Params["name"]), nil
//	})
package handler
