// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/absmach/mhttp/pkg/bytespan"
	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/headers"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// readBuffer returns p the way a network read leaves it: flipped, with the
// capacity of the read buffer. Non-final reads fill the buffer edge to edge.
func readBuffer(p []byte, final bool) *bytespan.Buffer {
	capacity := len(p)
	if final {
		capacity++
	}
	b := bytespan.Allocate(capacity)
	b.Put(p)
	b.Flip()
	return b
}

// feed splits raw at the given sizes, cycling through them, and offers every
// piece to a.
func feed(t *testing.T, a *Assembler, raw []byte, sizes ...int) {
	t.Helper()
	for i := 0; len(raw) > 0; i++ {
		n := sizes[i%len(sizes)]
		if n > len(raw) {
			n = len(raw)
		}
		final := n == len(raw)
		complete, err := a.AcceptChunk(readBuffer(raw[:n], final))
		if err != nil {
			t.Fatalf("AcceptChunk() error = %v", err)
		}
		if complete != final {
			t.Fatalf("AcceptChunk() complete = %v after %d bytes, want %v", complete, n, final)
		}
		raw = raw[n:]
	}
}

func TestAssembler_RequestScenario(t *testing.T) {
	raw := []byte("GET /a/b?x=1 HTTP/1.1\r\nHost: example.com\r\n\r\nhi")

	first := raw[:5]
	second := raw[5:25]
	rest := raw[25:]

	a := NewAssembler()
	for i, chunk := range [][]byte{first, second, rest} {
		complete, err := a.AcceptChunk(readBuffer(chunk, i == 2))
		if err != nil {
			t.Fatalf("AcceptChunk(%d) error = %v", i, err)
		}
		if complete != (i == 2) {
			t.Fatalf("AcceptChunk(%d) complete = %v", i, complete)
		}
	}

	req, err := a.Request()
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	want := &Request{
		Method:  "GET",
		Path:    "/a/b",
		Query:   "x=1",
		Version: "HTTP/1.1",
		Scheme:  "http",
		Headers: headers.New(headers.Field{Name: "Host", Value: "example.com"}),
		Body:    []byte("hi"),
	}
	if diff := cmp.Diff(want, req, cmp.AllowUnexported(headers.Headers{})); diff != "" {
		t.Errorf("Request() mismatch (-want +got):\n%s", diff)
	}
	if req.Host() != "example.com" {
		t.Errorf("Host() = %q", req.Host())
	}
	if _, ok := req.Port(); ok {
		t.Error("Port() reported a port for a bare host")
	}
	if a.State() != Parsed {
		t.Errorf("State() = %v, want parsed", a.State())
	}

	again, err := a.Request()
	if err != nil || again != req {
		t.Errorf("Request() not cached: %p vs %p, %v", again, req, err)
	}
}

func TestAssembler_ResponseScenario(t *testing.T) {
	a := NewAssembler()
	feed(t, a, []byte("HTTP/1.1 404 Not Found\r\n\r\n"), 7)

	resp, err := a.Response()
	if err != nil {
		t.Fatalf("Response() error = %v", err)
	}
	if resp.Status.Symbol != "NOT_FOUND" {
		t.Errorf("Status.Symbol = %q, want NOT_FOUND", resp.Status.Symbol)
	}
	if resp.Headers.Len() != 0 {
		t.Errorf("Headers.Len() = %d, want 0", resp.Headers.Len())
	}
	if len(resp.Body) != 0 {
		t.Errorf("Body = %q, want empty", resp.Body)
	}
	if resp.Scheme != "http" || resp.Version != "1.1" || resp.Reason != "Not Found" {
		t.Errorf("status line parts = %q %q %q", resp.Scheme, resp.Version, resp.Reason)
	}
	if got := resp.StatusLine(); got != "HTTP/1.1 404 Not Found" {
		t.Errorf("StatusLine() = %q", got)
	}
}

func TestAssembler_UnknownStatusCode(t *testing.T) {
	a := NewAssembler()
	feed(t, a, []byte("HTTP/1.1 299 Odd\r\n\r\n"), 64)

	if _, err := a.Response(); !errors.Is(err, mherrors.ErrUnknownStatusCode) {
		t.Fatalf("Response() error = %v, want ErrUnknownStatusCode", err)
	}
	if _, err := a.Response(); !errors.Is(err, mherrors.ErrUnknownStatusCode) {
		t.Fatalf("second Response() error = %v, want ErrUnknownStatusCode", err)
	}
}

type message struct {
	startLine string
	fields    []headers.Field
	body      []byte
}

func (m message) serialize(eol string) []byte {
	var buf bytes.Buffer
	buf.WriteString(m.startLine + eol)
	for _, f := range m.fields {
		buf.WriteString(f.Name + ": " + f.Value + eol)
	}
	buf.WriteString(eol)
	buf.Write(m.body)
	return buf.Bytes()
}

func randomMessage(r *rand.Rand) message {
	m := message{startLine: fmt.Sprintf("POST /items/%d?page=%d HTTP/1.1", r.Intn(1000), r.Intn(10))}
	for i, n := 0, r.Intn(6); i < n; i++ {
		name := fmt.Sprintf("X-Field-%d", r.Intn(3))
		m.fields = append(m.fields, headers.Field{Name: name, Value: strings.Repeat("v", r.Intn(40))})
	}
	body := make([]byte, r.Intn(300))
	for i := range body {
		body[i] = byte(r.Intn(256))
	}
	// Leading blank lines of a body are skipped when parsing.
	if len(body) > 0 {
		body[0] = 'b'
	}
	m.body = body
	return m
}

func TestAssembler_ChunkBoundaryInvariance(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 50; iter++ {
		m := randomMessage(r)
		for _, eol := range []string{"\r\n", "\n"} {
			raw := m.serialize(eol)
			splits := [][]int{
				{1},
				{2, 3},
				{5, 20, 7},
				{len(raw)},
				{1 + r.Intn(len(raw)), 1 + r.Intn(17)},
			}
			for _, sizes := range splits {
				a := NewAssembler()
				feed(t, a, raw, sizes...)

				req, err := a.Request()
				if err != nil {
					t.Fatalf("iter %d sizes %v: Request() error = %v", iter, sizes, err)
				}
				if got := req.RequestLine(); got != m.startLine {
					t.Fatalf("iter %d sizes %v: start line = %q, want %q", iter, sizes, got, m.startLine)
				}
				if diff := cmp.Diff(m.fields, req.Headers.Fields(), cmpopts.EquateEmpty()); diff != "" {
					t.Fatalf("iter %d sizes %v: headers (-want +got):\n%s", iter, sizes, diff)
				}
				if !bytes.Equal(req.Body, m.body) {
					t.Fatalf("iter %d sizes %v: body differs (%d vs %d bytes)", iter, sizes, len(req.Body), len(m.body))
				}
			}
		}
	}
}

func TestAssembler_MalformedHeaderAnyPosition(t *testing.T) {
	valid := []string{"Host: example.com", "Accept: */*", "X-Trace: 1"}
	for pos := 0; pos <= len(valid); pos++ {
		lines := append([]string{}, valid[:pos]...)
		lines = append(lines, "NoSeparatorHere")
		lines = append(lines, valid[pos:]...)
		raw := "GET / HTTP/1.1\r\n" + strings.Join(lines, "\r\n") + "\r\n\r\nbody"

		for _, size := range []int{1, 9, len(raw)} {
			a := NewAssembler()
			feed(t, a, []byte(raw), size)
			if _, err := a.Request(); !errors.Is(err, mherrors.ErrMalformedHeader) {
				t.Errorf("pos %d size %d: Request() error = %v, want ErrMalformedHeader", pos, size, err)
			}
			if _, err := a.Response(); !errors.Is(err, mherrors.ErrMalformedHeader) {
				t.Errorf("pos %d size %d: Response() error = %v, want ErrMalformedHeader", pos, size, err)
			}
		}
	}
}

func TestAssembler_Lifecycle(t *testing.T) {
	a := NewAssembler()

	if _, err := a.Request(); !errors.Is(err, mherrors.ErrNotYetComplete) {
		t.Fatalf("Request() before completion error = %v", err)
	}
	if _, err := a.Response(); !errors.Is(err, mherrors.ErrNotYetComplete) {
		t.Fatalf("Response() before completion error = %v", err)
	}

	complete, err := a.AcceptChunk(readBuffer([]byte("GET / HTTP/1.1\r\n"), false))
	if err != nil || complete {
		t.Fatalf("AcceptChunk() = %v, %v", complete, err)
	}
	if a.IsComplete() {
		t.Fatal("IsComplete() = true after a full read")
	}

	complete, err = a.AcceptChunk(readBuffer([]byte("\r\n"), true))
	if err != nil || !complete {
		t.Fatalf("AcceptChunk() = %v, %v", complete, err)
	}
	if _, err := a.AcceptChunk(readBuffer([]byte("more"), true)); !errors.Is(err, mherrors.ErrAlreadyComplete) {
		t.Fatalf("AcceptChunk() after completion error = %v, want ErrAlreadyComplete", err)
	}
	if _, err := a.Request(); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if _, err := a.AcceptChunk(readBuffer([]byte("more"), true)); !errors.Is(err, mherrors.ErrAlreadyComplete) {
		t.Fatalf("AcceptChunk() after parse error = %v, want ErrAlreadyComplete", err)
	}
}

func TestAssembler_EmptyFinalRead(t *testing.T) {
	a := NewAssembler()
	feed(t, a, []byte("GET /x HTTP/1.0\r\n\r\n"), 64)

	b := NewAssembler()
	if _, err := b.AcceptChunk(readBuffer([]byte("GET /x HTTP/1.0\r\n\r\n"), false)); err != nil {
		t.Fatal(err)
	}
	complete, err := b.AcceptChunk(readBuffer(nil, true))
	if err != nil || !complete {
		t.Fatalf("empty final read = %v, %v", complete, err)
	}
	if b.Len() != a.Len() {
		t.Errorf("Len() = %d, want %d", b.Len(), a.Len())
	}
}

func TestAssembler_ResetIsolation(t *testing.T) {
	a := NewAssembler()
	feed(t, a, []byte("POST /secret HTTP/1.1\r\nX-Token: abc123\r\n\r\nclassified-payload"), 4)
	if _, err := a.Request(); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	a.Reset()
	if a.State() != Accumulating || a.Len() != 0 {
		t.Fatalf("after Reset state = %v len = %d", a.State(), a.Len())
	}
	if _, err := a.Request(); !errors.Is(err, mherrors.ErrNotYetComplete) {
		t.Fatalf("Request() after Reset error = %v", err)
	}

	feed(t, a, []byte("GET /public HTTP/1.1\r\n\r\n"), 3)
	req, err := a.Request()
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if req.Path != "/public" || req.Headers.Len() != 0 || len(req.Body) != 0 {
		t.Errorf("request leaked prior message: %+v", req)
	}
	for _, leaked := range []string{"secret", "abc123", "classified"} {
		if bytes.Contains(req.HeaderBytes(), []byte(leaked)) {
			t.Errorf("head contains %q from the prior message", leaked)
		}
	}
}

func TestAssembler_TruncatedHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no blank line", raw: "GET / HTTP/1.1\r\nHost: a\r\n"},
		{name: "partial last line", raw: "GET / HTTP/1.1\r\nHost: a"},
		{name: "start line only", raw: "GET / HTTP/1.1"},
		{name: "only blank lines", raw: "\r\n\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler()
			feed(t, a, []byte(tt.raw), 3)
			if _, err := a.Request(); !errors.Is(err, mherrors.ErrTruncatedHeaders) {
				t.Errorf("Request() error = %v, want ErrTruncatedHeaders", err)
			}
		})
	}
}

func TestAssembler_LeadingBlankLinesAndBodySkip(t *testing.T) {
	a := NewAssembler()
	feed(t, a, []byte("\r\nGET / HTTP/1.1\r\nA: 1\r\nB:2\r\nA:  3 \r\n\r\n\r\n\nbody\r\n\r\ntail"), 6)

	req, err := a.Request()
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	want := []headers.Field{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}, {Name: "A", Value: "3"}}
	if diff := cmp.Diff(want, req.Headers.Fields()); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
	if string(req.Body) != "body\r\n\r\ntail" {
		t.Errorf("Body = %q", req.Body)
	}
}

func TestAssembler_MalformedRequestLine(t *testing.T) {
	a := NewAssembler()
	feed(t, a, []byte("GARBAGE\r\n\r\n"), 32)
	if _, err := a.Request(); !errors.Is(err, mherrors.ErrMalformedStartLine) {
		t.Errorf("Request() error = %v, want ErrMalformedStartLine", err)
	}
}

func TestAssembler_StrictCharset(t *testing.T) {
	a := NewAssembler(WithCharset(bytespan.ASCII))
	feed(t, a, []byte("GET / HTTP/1.1\r\nX-Name: caf\xe9\r\n\r\n"), 100)
	if _, err := a.Request(); !errors.Is(err, mherrors.ErrMalformedText) {
		t.Errorf("Request() error = %v, want ErrMalformedText", err)
	}

	b := NewAssembler()
	feed(t, b, []byte("GET / HTTP/1.1\r\nX-Name: caf\xe9\r\n\r\n"), 100)
	req, err := b.Request()
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if v, _ := req.Headers.Get("X-Name"); v != "café" {
		t.Errorf("X-Name = %q", v)
	}
}
