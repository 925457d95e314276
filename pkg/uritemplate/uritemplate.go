// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package uritemplate matches request paths against templates such as
// "/things/{id}/messages".
package uritemplate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPath indicates a template that is empty or does not start with '/'.
	ErrInvalidPath = errors.New("invalid uri path")

	// ErrEmptySegment indicates "//" inside a template, or a trailing '/'
	// on a template with parameters.
	ErrEmptySegment = errors.New("empty segment in uri path")

	// ErrDuplicateParameter indicates a parameter name used twice.
	ErrDuplicateParameter = errors.New("duplicate parameter in uri path")

	// ErrInvalidSegment indicates braces that do not enclose a whole segment.
	ErrInvalidSegment = errors.New("invalid segment in uri path")
)

type segment struct {
	param bool
	value string
}

// Template is a parsed path template.
type Template struct {
	raw        string
	normalized string
	segments   []segment
	params     int
}

// Parse validates path and returns its template.
func Parse(path string) (*Template, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	t := &Template{raw: path}
	names := map[string]struct{}{}
	var norm strings.Builder

	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			if i == 0 || (i == len(parts)-1 && t.params == 0) {
				continue
			}
			return nil, fmt.Errorf("%w: %q", ErrEmptySegment, path)
		}

		norm.WriteByte('/')
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) >= 2 {
			name := part[1 : len(part)-1]
			if strings.ContainsAny(name, "{}") {
				return nil, fmt.Errorf("%w: %q in %q", ErrInvalidSegment, part, path)
			}
			if _, dup := names[name]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateParameter, name)
			}
			names[name] = struct{}{}
			norm.WriteString("{" + strconv.Itoa(t.params) + "}")
			t.params++
			t.segments = append(t.segments, segment{param: true, value: name})
			continue
		}
		if strings.ContainsAny(part, "{}") {
			return nil, fmt.Errorf("%w: %q in %q", ErrInvalidSegment, part, path)
		}
		norm.WriteString(part)
		t.segments = append(t.segments, segment{value: part})
	}

	t.normalized = norm.String()
	return t, nil
}

// MustParse is like Parse but panics on error. For static route tables.
func MustParse(path string) *Template {
	t, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return t
}

// Match reports whether path fits the template and returns the parameter
// values by name.
func (t *Template) Match(path string) (map[string]string, bool) {
	segs, ok := split(path)
	if !ok || len(segs) != len(t.segments) {
		return nil, false
	}
	params := make(map[string]string, t.params)
	for i, s := range t.segments {
		if s.param {
			params[s.value] = segs[i]
			continue
		}
		if s.value != segs[i] {
			return nil, false
		}
	}
	return params, true
}

// Normalized returns the template with parameters replaced by their index,
// so "/a/{x}" and "/a/{y}" compare equal.
func (t *Template) Normalized() string {
	return t.normalized
}

// SegmentCount returns the number of non-empty segments.
func (t *Template) SegmentCount() int {
	return len(t.segments)
}

// HasParameters reports whether the template has any {name} segment.
func (t *Template) HasParameters() bool {
	return t.params > 0
}

// String returns the template as given to Parse.
func (t *Template) String() string {
	return t.raw
}

func split(path string) ([]string, bool) {
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}
	parts := strings.Split(path, "/")
	segs := make([]string, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			if i == 0 || i == len(parts)-1 {
				continue
			}
			return nil, false
		}
		segs = append(segs, part)
	}
	return segs, true
}
