// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bytespan

import "bytes"

// ReadLine consumes bytes up to and including the next '\n' and returns them
// decoded, terminator included.
//
// When the buffer runs out first, ok is false and the consumed bytes are not
// given back. Callers that retry with more data must Mark before calling and
// Reset afterwards.
func ReadLine(b *Buffer, cs Charset) (line string, ok bool, err error) {
	rest := b.Bytes()
	i := bytes.IndexByte(rest, '\n')
	if i < 0 {
		b.Advance(len(rest))
		return "", false, nil
	}
	raw := rest[:i+1]
	b.Advance(i + 1)
	line, err = cs.Decode(raw)
	if err != nil {
		return "", false, err
	}
	return line, true, nil
}

// ReadUntilToken marks the buffer, then consumes bytes until the consumed
// prefix ends with token, returning the prefix decoded and without the token.
//
// On exhaustion ok is false and the mark stays at the starting position, so
// the caller can Reset and retry once more data has arrived.
func ReadUntilToken(b *Buffer, token string, cs Charset) (text string, ok bool, err error) {
	b.Mark()
	tok, err := cs.Encode(token)
	if err != nil {
		return "", false, err
	}
	start := b.Position()
	if len(tok) == 0 {
		return "", true, nil
	}
	for {
		if _, more := b.Get(); !more {
			return "", false, nil
		}
		consumed := b.data[start:b.pos]
		if bytes.HasSuffix(consumed, tok) {
			text, err = cs.Decode(consumed[:len(consumed)-len(tok)])
			if err != nil {
				return "", false, err
			}
			return text, true, nil
		}
	}
}

// Concatenate copies the remaining bytes of every buffer, in order, into one
// new buffer in read mode. Every input is drained.
func Concatenate(bufs ...*Buffer) *Buffer {
	total := 0
	for _, b := range bufs {
		total += b.Remaining()
	}
	out := make([]byte, 0, total)
	for _, b := range bufs {
		out = append(out, b.Bytes()...)
		b.SetPosition(b.Limit())
	}
	return Wrap(out)
}

// CopyRemaining copies the unread bytes of b into a new buffer in read mode
// and drains b.
func CopyRemaining(b *Buffer) *Buffer {
	out := make([]byte, b.Remaining())
	copy(out, b.Bytes())
	b.SetPosition(b.Limit())
	return Wrap(out)
}
