// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/headers"
	"github.com/absmach/mhttp/pkg/status"
)

// Response is a parsed or constructed status line, headers and body.
type Response struct {
	Scheme  string
	Version string
	Status  status.Status
	Reason  string
	Headers *headers.Headers
	Body    []byte
}

// NewResponse returns an HTTP/1.1 response with empty headers.
func NewResponse(st status.Status) *Response {
	return &Response{
		Scheme:  "http",
		Version: "1.1",
		Status:  st,
		Reason:  st.Reason,
		Headers: &headers.Headers{},
	}
}

// ParseStatusLine parses "SCHEME/VERSION SP CODE SP REASON" into a response
// without headers or body. The reason phrase may be missing or contain spaces.
func ParseStatusLine(line string) (*Response, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: %q", mherrors.ErrMalformedStartLine, line)
	}
	scheme, version, ok := strings.Cut(parts[0], "/")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("%w: %q", mherrors.ErrMalformedStartLine, line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", mherrors.ErrMalformedStartLine, line)
	}
	st, err := status.ForCode(code)
	if err != nil {
		return nil, err
	}
	reason := st.Reason
	if len(parts) == 3 {
		reason = parts[2]
	}
	return &Response{
		Scheme:  strings.ToLower(scheme),
		Version: version,
		Status:  st,
		Reason:  reason,
		Headers: &headers.Headers{},
	}, nil
}

// StatusLine renders "HTTP/1.1 404 Not Found".
func (r *Response) StatusLine() string {
	reason := r.Reason
	if reason == "" {
		reason = r.Status.Reason
	}
	scheme := r.Scheme
	if scheme == "" {
		scheme = "http"
	}
	version := r.Version
	if version == "" {
		version = "1.1"
	}
	return strings.ToUpper(scheme) + "/" + version + " " + strconv.Itoa(r.Status.Code) + " " + reason
}

// HeaderBytes renders the status line, the headers and the terminating
// blank line.
func (r *Response) HeaderBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(r.StatusLine())
	buf.WriteString("\r\n")
	if r.Headers != nil {
		_, _ = r.Headers.WriteTo(&buf)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// Bytes renders the whole message.
func (r *Response) Bytes() []byte {
	return append(r.HeaderBytes(), r.Body...)
}
