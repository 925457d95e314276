// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/absmach/mhttp/pkg/headers"
	"github.com/absmach/mhttp/pkg/message"
	"github.com/absmach/mhttp/pkg/status"
	"github.com/absmach/mhttp/pkg/uritemplate"
	"github.com/google/go-cmp/cmp"
)

func newRequest(t *testing.T, line string) *message.Request {
	t.Helper()
	req, err := message.NewRequest(line, headers.New(), nil)
	if err != nil {
		t.Fatalf("NewRequest(%q) error = %v", line, err)
	}
	return req
}

func TestNoopHandler(t *testing.T) {
	h := &NoopHandler{}
	ctx := context.Background()
	hctx := &Context{SessionID: "test-session", RemoteAddr: "127.0.0.1:1234"}

	if err := h.OnConnect(ctx, hctx); err != nil {
		t.Errorf("OnConnect() error = %v", err)
	}
	resp, err := h.ServeMessage(ctx, hctx, newRequest(t, "GET / HTTP/1.1"))
	if err != nil {
		t.Fatalf("ServeMessage() error = %v", err)
	}
	if resp.Status != status.NoContent {
		t.Errorf("status = %v, want %v", resp.Status, status.NoContent)
	}
	if err := h.OnDisconnect(ctx, hctx); err != nil {
		t.Errorf("OnDisconnect() error = %v", err)
	}
}

func echo(ctx context.Context, hctx *Context, req *message.Request) (*message.Response, error) {
	return Text(status.OK, hctx.Params["name"]), nil
}

func TestMux_ServeMessage(t *testing.T) {
	mux := NewMux()
	if err := mux.Handle("GET", "/echo/{name}", echo); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := mux.Handle("", "/any", func(context.Context, *Context, *message.Request) (*message.Response, error) {
		return Text(status.Accepted, "any"), nil
	}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	cases := []struct {
		desc   string
		line   string
		status status.Status
		body   string
		params map[string]string
	}{
		{desc: "template match", line: "GET /echo/alice HTTP/1.1", status: status.OK, body: "alice", params: map[string]string{"name": "alice"}},
		{desc: "trailing slash", line: "GET /echo/bob/ HTTP/1.1", status: status.OK, body: "bob", params: map[string]string{"name": "bob"}},
		{desc: "method is case insensitive", line: "get /echo/carol HTTP/1.1", status: status.OK, body: "carol", params: map[string]string{"name": "carol"}},
		{desc: "wrong method", line: "POST /echo/alice HTTP/1.1", status: status.MethodNotAllowed, body: "Method Not Allowed"},
		{desc: "unknown path", line: "GET /nope HTTP/1.1", status: status.NotFound, body: "Not Found"},
		{desc: "any method", line: "DELETE /any HTTP/1.1", status: status.Accepted, body: "any", params: map[string]string{}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			hctx := &Context{}
			resp, err := mux.ServeMessage(context.Background(), hctx, newRequest(t, tc.line))
			if err != nil {
				t.Fatalf("ServeMessage() error = %v", err)
			}
			if resp.Status != tc.status {
				t.Errorf("status = %v, want %v", resp.Status, tc.status)
			}
			if string(resp.Body) != tc.body {
				t.Errorf("body = %q, want %q", resp.Body, tc.body)
			}
			if diff := cmp.Diff(tc.params, hctx.Params); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMux_Handle(t *testing.T) {
	mux := NewMux()
	if err := mux.Handle("GET", "/a/{x}", echo); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := mux.Handle("get", "/a/{y}", echo); !errors.Is(err, ErrDuplicateRoute) {
		t.Errorf("duplicate Handle() error = %v, want ErrDuplicateRoute", err)
	}
	if err := mux.Handle("POST", "/a/{y}", echo); err != nil {
		t.Errorf("Handle() for another method error = %v", err)
	}
	if err := mux.Handle("GET", "no-slash", echo); !errors.Is(err, uritemplate.ErrInvalidPath) {
		t.Errorf("Handle() error = %v, want ErrInvalidPath", err)
	}
}

func TestMux_Hooks(t *testing.T) {
	errReject := errors.New("rejected")
	var disconnected string
	mux := NewMux()
	mux.Connect = func(ctx context.Context, hctx *Context) error {
		if hctx.Cert == nil {
			return errReject
		}
		return nil
	}
	mux.Disconnect = func(ctx context.Context, hctx *Context) error {
		disconnected = hctx.SessionID
		return nil
	}

	hctx := &Context{SessionID: "s1"}
	if err := mux.OnConnect(context.Background(), hctx); !errors.Is(err, errReject) {
		t.Errorf("OnConnect() error = %v, want %v", err, errReject)
	}
	if err := mux.OnDisconnect(context.Background(), hctx); err != nil || disconnected != "s1" {
		t.Errorf("OnDisconnect() error = %v, disconnected = %q", err, disconnected)
	}
	if err := NewMux().OnConnect(context.Background(), hctx); err != nil {
		t.Errorf("OnConnect() without hook error = %v", err)
	}
}

func TestJSON(t *testing.T) {
	resp, err := JSON(status.OK, map[string]string{"status": "healthy"})
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if got, _ := resp.Headers.Get("content-type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if string(resp.Body) != `{"status":"healthy"}` {
		t.Errorf("body = %s", resp.Body)
	}
	if _, err := JSON(status.OK, make(chan int)); err == nil {
		t.Error("JSON() accepted an unencodable value")
	}
}
