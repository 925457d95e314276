// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package tcp serves request/response exchanges over plain or TLS-protected
// TCP connections.
//
// # Connection Flow
//
//  1. Server accepts a connection and asks the Limiter to admit the remote host
//  2. A session id is assigned and, when Config.TLS is set, the engine
//     handshake runs, with delegated tasks submitted to Config.Executor
//  3. handler.OnConnect is called
//  4. Plaintext chunks are fed into a pooled message.Assembler until the
//     message is complete
//  5. The request view goes to handler.ServeMessage and the response is
//     written back (wrapped into records under TLS)
//  6. The assembler is reset and returned to the pool; steps 4 and 5 repeat
//     until the peer closes or sends "Connection: close"
//  7. handler.OnDisconnect is called and the connection is closed
//
// Malformed messages are answered with 400, handler errors with 500; both
// close the connection.
//
// # Graceful Shutdown
//
// When ctx is cancelled the server stops accepting, waits up to
// ShutdownTimeout for active connections and returns ErrShutdownTimeout if
// some are still running.
//
// # Example
//
//	tlsCtx, err := gotls.NewServerContext("server.p12", "secret", "", "")
//	if err != nil {
//		return err
//	}
//	srv := tcp.New(tcp.Config{
//		Address:  ":8443",
//		TLS:      tlsCtx,
//		Executor: tlsengine.NewExecutor(64, logger),
//		Logger:   logger,
//	}, mux)
//	return srv.Listen(ctx)
package tcp
