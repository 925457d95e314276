// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bytespan

import (
	"fmt"
	"unicode/utf8"

	mherrors "github.com/absmach/mhttp/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// Charset converts between bytes and text.
type Charset interface {
	Name() string
	Decode(b []byte) (string, error)
	Encode(s string) ([]byte, error)
}

var (
	// ASCII rejects bytes above 0x7f.
	ASCII Charset = asciiCharset{}

	// UTF8 rejects invalid UTF-8 sequences.
	UTF8 Charset = utf8Charset{}

	// Latin1 maps every byte to a rune and never fails to decode.
	Latin1 Charset = textCharset{name: "iso-8859-1", enc: charmap.ISO8859_1}
)

// LookupCharset returns the charset registered under an IANA or WHATWG name.
func LookupCharset(name string) (Charset, error) {
	switch name {
	case "ascii", "us-ascii", "US-ASCII":
		return ASCII, nil
	case "utf-8", "UTF-8", "utf8":
		return UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", name, err)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = name
	}
	return textCharset{name: canonical, enc: enc}, nil
}

type asciiCharset struct{}

func (asciiCharset) Name() string { return "us-ascii" }

func (asciiCharset) Decode(b []byte) (string, error) {
	for i, c := range b {
		if c > 0x7f {
			return "", fmt.Errorf("%w: non-ascii byte 0x%02x at offset %d", mherrors.ErrMalformedText, c, i)
		}
	}
	return string(b), nil
}

func (asciiCharset) Encode(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, fmt.Errorf("%w: non-ascii character at offset %d", mherrors.ErrMalformedText, i)
		}
	}
	return []byte(s), nil
}

type utf8Charset struct{}

func (utf8Charset) Name() string { return "utf-8" }

func (utf8Charset) Decode(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid utf-8", mherrors.ErrMalformedText)
	}
	return string(b), nil
}

func (utf8Charset) Encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: invalid utf-8", mherrors.ErrMalformedText)
	}
	return []byte(s), nil
}

type textCharset struct {
	name string
	enc  encoding.Encoding
}

func (c textCharset) Name() string { return c.name }

func (c textCharset) Decode(b []byte) (string, error) {
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", mherrors.ErrMalformedText, c.name, err)
	}
	return string(out), nil
}

func (c textCharset) Encode(s string) ([]byte, error) {
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", mherrors.ErrMalformedText, c.name, err)
	}
	return out, nil
}
