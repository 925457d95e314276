// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"bytes"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/headers"
)

// Request is a parsed request head plus its opaque body.
type Request struct {
	Method  string
	Path    string
	Query   string
	Version string
	Scheme  string
	Headers *headers.Headers
	Body    []byte
}

// NewRequest builds a request from a request line of the form
// "METHOD SP PATH[?QUERY] SP VERSION".
func NewRequest(requestLine string, h *headers.Headers, body []byte) (*Request, error) {
	parts := strings.Split(requestLine, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: %q", mherrors.ErrMalformedStartLine, requestLine)
	}
	path, query, _ := strings.Cut(parts[1], "?")
	if h == nil {
		h = &headers.Headers{}
	}
	return &Request{
		Method:  parts[0],
		Path:    path,
		Query:   query,
		Version: parts[2],
		Scheme:  "http",
		Headers: h,
		Body:    body,
	}, nil
}

// RequestLine renders the request line, filling GET, "/" and HTTP/1.1 for
// empty fields.
func (r *Request) RequestLine() string {
	method := r.Method
	if method == "" {
		method = "GET"
	}
	path := r.Path
	if strings.TrimSpace(path) == "" {
		path = "/"
	}
	if r.Query != "" {
		path += "?" + r.Query
	}
	version := r.Version
	if version == "" {
		version = "HTTP/1.1"
	}
	return method + " " + path + " " + version
}

// HeaderBytes renders the request line, the headers and the terminating
// blank line.
func (r *Request) HeaderBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(r.RequestLine())
	buf.WriteString("\r\n")
	if r.Headers != nil {
		_, _ = r.Headers.WriteTo(&buf)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// Host returns the host part of the Host header.
func (r *Request) Host() string {
	hp, ok := r.hostHeader()
	if !ok {
		return ""
	}
	host, _, err := net.SplitHostPort(hp)
	if err != nil {
		return hp
	}
	return host
}

// Port returns the port of the Host header, or false if none is given.
func (r *Request) Port() (int, bool) {
	hp, ok := r.hostHeader()
	if !ok {
		return 0, false
	}
	_, port, err := net.SplitHostPort(hp)
	if err != nil {
		return 0, false
	}
	p, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return 0, false
	}
	return p, true
}

// IsSecure reports whether the request arrived over TLS.
func (r *Request) IsSecure() bool {
	return r.Scheme == "https" || r.Scheme == "wss"
}

// URI assembles the absolute request URI.
func (r *Request) URI() *url.URL {
	u := &url.URL{
		Scheme:   r.Scheme,
		Path:     r.Path,
		RawQuery: r.Query,
	}
	if hp, ok := r.hostHeader(); ok {
		u.Host = hp
	}
	return u
}

func (r *Request) hostHeader() (string, bool) {
	if r.Headers == nil {
		return "", false
	}
	v, ok := r.Headers.Get("Host")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}
