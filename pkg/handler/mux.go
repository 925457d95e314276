// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/absmach/mhttp/pkg/message"
	"github.com/absmach/mhttp/pkg/status"
	"github.com/absmach/mhttp/pkg/uritemplate"
)

// ErrDuplicateRoute is returned when a method and template are registered twice.
var ErrDuplicateRoute = errors.New("route already registered")

// RouteFunc serves one routed request. hctx.Params holds the template
// parameters.
type RouteFunc func(ctx context.Context, hctx *Context, req *message.Request) (*message.Response, error)

type route struct {
	method   string
	template *uritemplate.Template
	fn       RouteFunc
}

// Mux is a Handler that dispatches requests by method and URI template.
// Routes are tried in registration order. Unmatched paths get 404 and
// matched paths with another method get 405.
type Mux struct {
	mu     sync.RWMutex
	routes []route

	// Connect and Disconnect are optional connection hooks.
	Connect    func(ctx context.Context, hctx *Context) error
	Disconnect func(ctx context.Context, hctx *Context) error
}

var _ Handler = (*Mux)(nil)

// NewMux returns an empty router.
func NewMux() *Mux {
	return &Mux{}
}

// Handle registers fn for method and path template. An empty method matches
// every method.
func (m *Mux) Handle(method, path string, fn RouteFunc) error {
	tmpl, err := uritemplate.Parse(path)
	if err != nil {
		return err
	}
	method = strings.ToUpper(method)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.routes {
		if r.method == method && r.template.Normalized() == tmpl.Normalized() {
			return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, method, path)
		}
	}
	m.routes = append(m.routes, route{method: method, template: tmpl, fn: fn})
	return nil
}

func (m *Mux) OnConnect(ctx context.Context, hctx *Context) error {
	if m.Connect == nil {
		return nil
	}
	return m.Connect(ctx, hctx)
}

func (m *Mux) OnDisconnect(ctx context.Context, hctx *Context) error {
	if m.Disconnect == nil {
		return nil
	}
	return m.Disconnect(ctx, hctx)
}

func (m *Mux) ServeMessage(ctx context.Context, hctx *Context, req *message.Request) (*message.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pathMatched := false
	for _, r := range m.routes {
		params, ok := r.template.Match(req.Path)
		if !ok {
			continue
		}
		pathMatched = true
		if r.method != "" && r.method != strings.ToUpper(req.Method) {
			continue
		}
		hctx.Params = params
		return r.fn(ctx, hctx, req)
	}
	if pathMatched {
		return Text(status.MethodNotAllowed, status.MethodNotAllowed.Reason), nil
	}
	return Text(status.NotFound, status.NotFound.Reason), nil
}

// Text returns a plain text response.
func Text(st status.Status, body string) *message.Response {
	resp := message.NewResponse(st)
	resp.Headers.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Body = []byte(body)
	return resp
}

// JSON returns v encoded as a JSON response.
func JSON(st status.Status, v any) (*message.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	resp := message.NewResponse(st)
	resp.Headers.Set("Content-Type", "application/json")
	resp.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Body = body
	return resp, nil
}
