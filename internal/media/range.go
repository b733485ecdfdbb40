// Package media serves stored video bytes over HTTP with single byte-range
// support.
package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNoRange is returned when the request carries no Range header.
	ErrNoRange = errors.New("no range requested")
	// ErrIgnoredRange marks a header that is not a single bytes range.
	// Such headers are ignored and the full representation is served.
	ErrIgnoredRange = errors.New("range header ignored")
	// ErrUnsatisfiable marks a well-formed range outside the resource.
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// Range is an inclusive byte window.
type Range struct {
	Start int64
	End   int64
}

// Length is the number of bytes in the window.
func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range value for a resource of size bytes.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange parses a Range header against a resource of size bytes.
//
// Accepted forms are bytes=S-E, bytes=S- and bytes=-N. An end past the last
// byte is clamped.
func ParseRange(header string, size int64) (Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Range{}, ErrNoRange
	}

	unit, spec, ok := strings.Cut(header, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return Range{}, ErrIgnoredRange
	}
	spec = strings.TrimSpace(spec)
	if strings.Contains(spec, ",") {
		return Range{}, ErrIgnoredRange
	}
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return Range{}, ErrIgnoredRange
	}
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	if first == "" {
		n, err := parseOffset(last)
		if err != nil {
			return Range{}, ErrIgnoredRange
		}
		if n == 0 || size == 0 {
			return Range{}, ErrUnsatisfiable
		}
		if n > size {
			n = size
		}
		return Range{Start: size - n, End: size - 1}, nil
	}

	start, err := parseOffset(first)
	if err != nil {
		return Range{}, ErrIgnoredRange
	}
	end := size - 1
	if last != "" {
		end, err = parseOffset(last)
		if err != nil {
			return Range{}, ErrIgnoredRange
		}
		if end < start {
			return Range{}, ErrUnsatisfiable
		}
	}
	if start >= size {
		return Range{}, ErrUnsatisfiable
	}
	if end >= size {
		end = size - 1
	}
	return Range{Start: start, End: end}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty offset")
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}
