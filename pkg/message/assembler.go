// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"github.com/absmach/mhttp/pkg/bytespan"
	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/headers"
)

// State is the lifecycle stage of the message being assembled.
type State int

const (
	// Accumulating accepts chunks.
	Accumulating State = iota
	// Complete holds every chunk of the message; views may be requested.
	Complete
	// Parsed holds a cached parse result.
	Parsed
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Complete:
		return "complete"
	case Parsed:
		return "parsed"
	default:
		return "unknown"
	}
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithCharset sets the charset used to decode the head. Defaults to
// bytespan.Latin1.
func WithCharset(cs bytespan.Charset) Option {
	return func(a *Assembler) {
		if cs != nil {
			a.charset = cs
		}
	}
}

// Assembler reconstructs one message from the buffers of successive network
// reads. It is owned by a single connection and reused after Reset.
//
// A buffer whose limit equals its capacity was filled edge to edge by the
// read, so more data is expected. Any shorter fill completes the message.
type Assembler struct {
	charset bytespan.Charset
	chunks  []*bytespan.Buffer
	state   State

	head    *head
	headErr error
	req     *Request
	resp    *Response
	respErr error
}

// NewAssembler returns an empty assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{charset: bytespan.Latin1}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AcceptChunk copies the unread part of b and reports whether the message is
// now complete. b is drained.
func (a *Assembler) AcceptChunk(b *bytespan.Buffer) (bool, error) {
	if a.state != Accumulating {
		return false, mherrors.ErrAlreadyComplete
	}
	if b.HasRemaining() {
		a.chunks = append(a.chunks, bytespan.CopyRemaining(b))
	}
	if b.Limit() != b.Cap() {
		a.state = Complete
	}
	return a.state != Accumulating, nil
}

// IsComplete reports whether the current message has been fully received.
func (a *Assembler) IsComplete() bool {
	return a.state != Accumulating
}

// State returns the current lifecycle stage.
func (a *Assembler) State() State {
	return a.state
}

// Len returns the number of bytes accumulated so far.
func (a *Assembler) Len() int {
	n := 0
	for _, c := range a.chunks {
		n += c.Remaining()
	}
	return n
}

// Request materializes the message as a request. The result is cached.
func (a *Assembler) Request() (*Request, error) {
	if a.req != nil {
		return a.req, nil
	}
	h, err := a.parse()
	if err != nil {
		return nil, err
	}
	req, err := NewRequest(h.startLine, h.headers.Clone(), h.body)
	if err != nil {
		return nil, err
	}
	a.req = req
	return req, nil
}

// Response materializes the message as a response, resolving the status
// code against the status table. The result is cached.
func (a *Assembler) Response() (*Response, error) {
	if a.resp != nil || a.respErr != nil {
		return a.resp, a.respErr
	}
	h, err := a.parse()
	if err != nil {
		return nil, err
	}
	resp, err := ParseStatusLine(h.startLine)
	if err != nil {
		a.respErr = err
		return nil, err
	}
	resp.Headers = h.headers.Clone()
	resp.Body = h.body
	a.resp = resp
	return resp, nil
}

// Reset discards every chunk and cached view and returns to Accumulating.
func (a *Assembler) Reset() {
	for i := range a.chunks {
		a.chunks[i] = nil
	}
	a.chunks = a.chunks[:0]
	a.state = Accumulating
	a.head = nil
	a.headErr = nil
	a.req = nil
	a.resp = nil
	a.respErr = nil
}

func (a *Assembler) parse() (*head, error) {
	switch a.state {
	case Accumulating:
		return nil, mherrors.ErrNotYetComplete
	case Parsed:
		return a.head, a.headErr
	}
	a.head, a.headErr = parseHead(a.chunks, a.charset)
	a.state = Parsed
	return a.head, a.headErr
}

type head struct {
	startLine string
	headers   *headers.Headers
	body      []byte
}
