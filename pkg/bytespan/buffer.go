// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bytespan

import (
	"errors"
	"io"
)

// ErrInvalidMark is returned by Reset when no mark is set.
var ErrInvalidMark = errors.New("bytespan: mark not set")

// Buffer is an owned byte region with explicit cursors.
//
// Capacity is fixed at allocation. Position and limit follow the usual
// write/flip/read cycle: in write mode bytes are appended at Position up to
// Limit; after Flip the region [0, Position) becomes readable. A Buffer never
// aliases memory it did not allocate or copy, except when built with Wrap.
type Buffer struct {
	data []byte
	pos  int
	lim  int
	mark int
}

// Allocate returns an empty buffer in write mode with the given capacity.
func Allocate(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{
		data: make([]byte, capacity),
		lim:  capacity,
		mark: -1,
	}
}

// Wrap returns a buffer in read mode over b. The buffer takes ownership of b.
func Wrap(b []byte) *Buffer {
	return &Buffer{
		data: b,
		lim:  len(b),
		mark: -1,
	}
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Position returns the read or write cursor.
func (b *Buffer) Position() int { return b.pos }

// Limit returns the limit cursor.
func (b *Buffer) Limit() int { return b.lim }

// SetPosition moves the cursor. Values outside [0, Limit] are clamped.
// A mark beyond the new position is discarded.
func (b *Buffer) SetPosition(p int) {
	switch {
	case p < 0:
		p = 0
	case p > b.lim:
		p = b.lim
	}
	b.pos = p
	if b.mark > p {
		b.mark = -1
	}
}

// SetLimit moves the limit. Values outside [0, Cap] are clamped.
func (b *Buffer) SetLimit(l int) {
	switch {
	case l < 0:
		l = 0
	case l > len(b.data):
		l = len(b.data)
	}
	b.lim = l
	if b.pos > l {
		b.pos = l
	}
	if b.mark > l {
		b.mark = -1
	}
}

// Remaining returns Limit - Position.
func (b *Buffer) Remaining() int { return b.lim - b.pos }

// HasRemaining reports whether Remaining is positive.
func (b *Buffer) HasRemaining() bool { return b.pos < b.lim }

// Bytes returns the region [Position, Limit). The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data[b.pos:b.lim] }

// Written returns the region [0, Position). In write mode this is
// everything written so far.
func (b *Buffer) Written() []byte { return b.data[:b.pos] }

// Advance moves Position forward by n, clamped to Limit.
func (b *Buffer) Advance(n int) {
	b.SetPosition(b.pos + n)
}

// Get consumes and returns one byte. ok is false when nothing remains.
func (b *Buffer) Get() (c byte, ok bool) {
	if b.pos >= b.lim {
		return 0, false
	}
	c = b.data[b.pos]
	b.pos++
	return c, true
}

// Put copies as much of p as fits between Position and Limit and returns the
// number of bytes copied.
func (b *Buffer) Put(p []byte) int {
	n := copy(b.data[b.pos:b.lim], p)
	b.pos += n
	return n
}

// Mark records the current position.
func (b *Buffer) Mark() { b.mark = b.pos }

// Reset returns to the marked position.
func (b *Buffer) Reset() error {
	if b.mark < 0 {
		return ErrInvalidMark
	}
	b.pos = b.mark
	return nil
}

// Clear switches to write mode over the whole capacity, discarding content.
func (b *Buffer) Clear() {
	b.pos = 0
	b.lim = len(b.data)
	b.mark = -1
}

// Flip switches from write mode to read mode.
func (b *Buffer) Flip() {
	b.lim = b.pos
	b.pos = 0
	b.mark = -1
}

// Compact moves the unread bytes to the front and switches to write mode
// after them.
func (b *Buffer) Compact() {
	n := copy(b.data, b.data[b.pos:b.lim])
	b.pos = n
	b.lim = len(b.data)
	b.mark = -1
}

// Enlarge returns a new write mode buffer sized by the enlargement policy
// and carrying forward the bytes already written to b ([0, Position)).
//
// The new capacity is proposed when proposed exceeds b's capacity, otherwise
// twice b's capacity. b must not be used afterwards.
func Enlarge(b *Buffer, proposed int) *Buffer {
	capacity := b.Cap() * 2
	if proposed > b.Cap() {
		capacity = proposed
	}
	if capacity == 0 {
		capacity = minCapacity
	}
	nb := Allocate(capacity)
	nb.Put(b.Written())
	return nb
}

const minCapacity = 256

// FillFrom performs a single Read from r into [Position, Limit) and advances
// Position by the bytes read.
func (b *Buffer) FillFrom(r io.Reader) (int, error) {
	if !b.HasRemaining() {
		return 0, nil
	}
	n, err := r.Read(b.data[b.pos:b.lim])
	b.pos += n
	return n, err
}

// DrainTo writes [Position, Limit) to w, looping on short writes, and
// advances Position past what was written.
func (b *Buffer) DrainTo(w io.Writer) (int, error) {
	total := 0
	for b.HasRemaining() {
		n, err := w.Write(b.data[b.pos:b.lim])
		b.pos += n
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
