// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package headers provides an ordered, case-insensitive header multimap.
package headers

import (
	"io"
	"strings"
)

// Field is one header line.
type Field struct {
	Name  string
	Value string
}

var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// clean replaces CR and LF so a field always stays on one wire line.
func clean(f Field) Field {
	return Field{Name: lineBreaks.Replace(f.Name), Value: lineBreaks.Replace(f.Value)}
}

// Headers keeps fields in insertion order. Names repeat freely and are
// compared case-insensitively; the spelling of the first insertion is kept.
// The zero value is empty and ready to use.
type Headers struct {
	fields []Field
}

// New returns headers holding a copy of fields.
func New(fields ...Field) *Headers {
	h := &Headers{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		h.fields = append(h.fields, clean(f))
	}
	return h
}

// Add appends a field. CR and LF in name or value are replaced by spaces.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, clean(Field{Name: name, Value: value}))
}

// Set replaces every field named name with a single one, at the position of
// the first existing occurrence or at the end.
func (h *Headers) Set(name, value string) {
	value = lineBreaks.Replace(value)
	idx := -1
	kept := h.fields[:0]
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			if idx < 0 {
				idx = len(kept)
				kept = append(kept, Field{Name: f.Name, Value: value})
			}
			continue
		}
		kept = append(kept, f)
	}
	h.fields = kept
	if idx < 0 {
		h.Add(name, value)
	}
}

// Get returns the first value for name and whether it was present.
func (h *Headers) Get(name string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value for name in insertion order.
func (h *Headers) Values(name string) []string {
	var vals []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Del removes every field named name.
func (h *Headers) Del(name string) {
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Fields returns a copy of all fields in order.
func (h *Headers) Fields() []Field {
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

// Len returns the number of fields.
func (h *Headers) Len() int {
	return len(h.fields)
}

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	return New(h.fields...)
}

// WriteTo writes each field as "Name: value\r\n".
func (h *Headers) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, f := range h.fields {
		n, err := io.WriteString(w, f.Name+": "+f.Value+"\r\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
