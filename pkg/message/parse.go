// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"fmt"
	"strings"

	"github.com/absmach/mhttp/pkg/bytespan"
	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/headers"
)

// parseHead walks the chunks line by line until the blank line ending the
// head. A line split across chunks is carried into the next chunk. Blank
// lines before the start line are ignored.
func parseHead(chunks []*bytespan.Buffer, cs bytespan.Charset) (*head, error) {
	views := make([]*bytespan.Buffer, len(chunks))
	for i, c := range chunks {
		views[i] = bytespan.Wrap(c.Bytes())
	}

	h := &head{headers: &headers.Headers{}}
	var carry *bytespan.Buffer
	for i, cur := range views {
		if carry != nil {
			cur = bytespan.Concatenate(carry, cur)
			carry = nil
		}
		for {
			cur.Mark()
			line, ok, err := bytespan.ReadLine(cur, cs)
			if err != nil {
				return nil, err
			}
			if !ok {
				if err := cur.Reset(); err != nil {
					return nil, err
				}
				carry = bytespan.CopyRemaining(cur)
				break
			}

			line = strings.TrimSpace(line)
			switch {
			case line == "" && h.startLine == "":
				continue
			case line == "":
				body := bytespan.Concatenate(append([]*bytespan.Buffer{cur}, views[i+1:]...)...)
				skipBlankLines(body, cs)
				h.body = bytespan.CopyRemaining(body).Bytes()
				return h, nil
			case h.startLine == "":
				h.startLine = line
			default:
				name, value, found := strings.Cut(line, ":")
				if !found {
					return nil, fmt.Errorf("%w: %q", mherrors.ErrMalformedHeader, line)
				}
				h.headers.Add(name, strings.TrimSpace(value))
			}
		}
	}
	return nil, mherrors.ErrTruncatedHeaders
}

// skipBlankLines consumes whole blank lines at the front of b.
func skipBlankLines(b *bytespan.Buffer, cs bytespan.Charset) {
	for b.HasRemaining() {
		b.Mark()
		line, ok, err := bytespan.ReadLine(b, cs)
		if err != nil || !ok || strings.TrimSpace(line) != "" {
			_ = b.Reset()
			return
		}
	}
}
