// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package headers

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHeaders(t *testing.T) {
	h := &Headers{}
	h.Add("Host", "example.com")
	h.Add("Accept", "text/plain")
	h.Add("accept", "application/json")

	if v, ok := h.Get("HOST"); !ok || v != "example.com" {
		t.Fatalf("Get(HOST) = %q, %v", v, ok)
	}
	if diff := cmp.Diff([]string{"text/plain", "application/json"}, h.Values("Accept")); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}

	h.Set("ACCEPT", "*/*")
	want := []Field{
		{Name: "Host", Value: "example.com"},
		{Name: "Accept", Value: "*/*"},
	}
	if diff := cmp.Diff(want, h.Fields()); diff != "" {
		t.Errorf("after Set (-want +got):\n%s", diff)
	}

	h.Set("X-New", "1")
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}

	h.Del("host")
	if _, ok := h.Get("Host"); ok {
		t.Error("Host still present after Del")
	}
}

func TestHeadersClone(t *testing.T) {
	h := New(Field{Name: "A", Value: "1"})
	c := h.Clone()
	c.Add("B", "2")
	c.Set("A", "changed")

	if v, _ := h.Get("A"); v != "1" {
		t.Errorf("source changed: A = %q", v)
	}
	if h.Len() != 1 {
		t.Errorf("source Len() = %d", h.Len())
	}
}

func TestHeadersWriteTo(t *testing.T) {
	h := New(
		Field{Name: "Host", Value: "example.com"},
		Field{Name: "Set-Cookie", Value: "a=1"},
		Field{Name: "Set-Cookie", Value: "b=2"},
	)
	var buf bytes.Buffer
	n, err := h.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	want := "Host: example.com\r\nSet-Cookie: a=1\r\nSet-Cookie: b=2\r\n"
	if buf.String() != want {
		t.Errorf("WriteTo() = %q, want %q", buf.String(), want)
	}
	if n != int64(len(want)) {
		t.Errorf("WriteTo() n = %d, want %d", n, len(want))
	}
}

func TestHeadersLineBreaks(t *testing.T) {
	cases := []struct {
		desc  string
		build func() *Headers
		want  string
	}{
		{
			desc:  "add value",
			build: func() *Headers { h := New(); h.Add("X-Name", "a\rEvil: 1"); return h },
			want:  "X-Name: a Evil: 1\r\n",
		},
		{
			desc:  "add name",
			build: func() *Headers { h := New(); h.Add("X\r\nEvil", "1"); return h },
			want:  "X  Evil: 1\r\n",
		},
		{
			desc: "set existing",
			build: func() *Headers {
				h := New(Field{Name: "X-Name", Value: "ok"})
				h.Set("x-name", "a\nb")
				return h
			},
			want: "X-Name: a b\r\n",
		},
		{
			desc:  "new",
			build: func() *Headers { return New(Field{Name: "X-Name", Value: "a\r\n\r\nbody"}) },
			want:  "X-Name: a    body\r\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var buf bytes.Buffer
			if _, err := tc.build().WriteTo(&buf); err != nil {
				t.Fatalf("WriteTo() error = %v", err)
			}
			if buf.String() != tc.want {
				t.Errorf("WriteTo() = %q, want %q", buf.String(), tc.want)
			}
		})
	}
}
