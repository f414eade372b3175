// Package http provides the JSON API over the ledger.
//
// This file parses query strings and request bodies into engine arguments.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

const (
	maxBodyBytes = 1 << 20
	maxPageSize  = 1000
)

// Reserved query keys. Every other key is a filter.
var (
	pageKeys        = []string{"page", "page_size"}
	transactionKeys = []string{"period", "start_date", "end_date", "paginate", "page", "page_size"}
)

// ParsePage reads page and page_size, defaulting to 1 and defaultSize.
func ParsePage(query url.Values, defaultSize int) (core.Page, error) {
	p := core.Page{Number: 1, Size: defaultSize}

	if v := strings.TrimSpace(query.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.Page{}, core.Invalid("page", "must be an integer, got %q", v)
		}
		p.Number = n
	}
	if v := strings.TrimSpace(query.Get("page_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.Page{}, core.Invalid("page_size", "must be an integer, got %q", v)
		}
		if n > maxPageSize {
			return core.Page{}, core.Invalid("page_size", "must be <= %d, got %d", maxPageSize, n)
		}
		p.Size = n
	}

	return p, nil
}

// ParseFilters turns every non-reserved query key into an equality filter.
// Repeated keys keep their first value.
func ParseFilters(query url.Values, reserved ...string) core.Filters {
	skip := make(map[string]bool, len(reserved))
	for _, k := range reserved {
		skip[k] = true
	}

	var f core.Filters
	for key, values := range query {
		if skip[key] || len(values) == 0 {
			continue
		}
		if f == nil {
			f = core.Filters{}
		}
		f[key] = sanitizeInput(values[0])
	}
	return f
}

// ParseBool reads an optional boolean query value.
func ParseBool(query url.Values, key string, def bool) (bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, core.Invalid(key, "must be a boolean, got %q", v)
	}
	return b, nil
}

// ParseBound reads an optional date bound. Accepted layouts are
// "YYYY-MM-DD HH:MM:SS", "YYYY-MM-DD" and RFC3339.
func ParseBound(query url.Values, key string) (time.Time, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := core.ParseTimestamp(v)
	if err != nil {
		return time.Time{}, core.Invalid(key, "unrecognized date %q", v)
	}
	return t, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

var (
	errEmptyBody    = errors.New("empty request body")
	errTrailingData = errors.New("unexpected data after JSON value")
)

// JSONBody reads a request body once and decodes it strictly.
type JSONBody struct {
	body []byte
	err  error
}

// NewJSONBody reads at most maxBodyBytes of r's body.
func NewJSONBody(w http.ResponseWriter, r *http.Request) *JSONBody {
	b := &JSONBody{}
	b.body, b.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return b
}

// Decode fills v, rejecting unknown fields and trailing data.
func (b *JSONBody) Decode(v any) error {
	if b.err != nil {
		return b.err
	}
	if len(bytes.TrimSpace(b.body)) == 0 {
		return errEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(b.body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
