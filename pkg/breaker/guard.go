// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package breaker

import (
	"context"

	"github.com/absmach/mhttp/pkg/handler"
	"github.com/absmach/mhttp/pkg/message"
	"github.com/absmach/mhttp/pkg/status"
)

var _ handler.Handler = (*Guard)(nil)

// Guard wraps a handler. Handler errors and 5xx responses count as failures;
// while the circuit is open requests are answered with 503 directly.
type Guard struct {
	next handler.Handler
	cb   *CircuitBreaker
}

// NewGuard returns next guarded by cb.
func NewGuard(next handler.Handler, cb *CircuitBreaker) *Guard {
	return &Guard{next: next, cb: cb}
}

// OnConnect is not guarded.
func (g *Guard) OnConnect(ctx context.Context, hctx *handler.Context) error {
	return g.next.OnConnect(ctx, hctx)
}

// OnDisconnect is not guarded.
func (g *Guard) OnDisconnect(ctx context.Context, hctx *handler.Context) error {
	return g.next.OnDisconnect(ctx, hctx)
}

// ServeMessage forwards req unless the circuit is open.
func (g *Guard) ServeMessage(ctx context.Context, hctx *handler.Context, req *message.Request) (*message.Response, error) {
	if err := g.cb.Allow(); err != nil {
		resp := handler.Text(status.ServiceUnavailable, status.ServiceUnavailable.Reason)
		resp.Headers.Set("Retry-After", "30")
		return resp, nil
	}

	resp, err := g.next.ServeMessage(ctx, hctx, req)
	g.cb.Record(err == nil && (resp == nil || resp.Status.Code < 500))
	return resp, err
}
