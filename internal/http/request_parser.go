// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Mutating endpoints accept either JSON or form-encoded bodies, and list
// endpoints share one set of query parameters for filtering.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moneta/internal/core"
)

// errBadRequest marks malformed input that is not a domain validation error.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// ParseFilter reads type, range, start, end and limit from query parameters.
// Explicit start/end dates win over a named range.
func ParseFilter(query url.Values, now time.Time) (core.Filter, error) {
	var f core.Filter

	t, err := core.ParseFilterType(query.Get("type"))
	if err != nil {
		return core.Filter{}, badRequest("invalid type %q", query.Get("type"))
	}
	f.Type = t

	f.Range = core.RangePreset(query.Get("range"), now)

	start, end := strings.TrimSpace(query.Get("start")), strings.TrimSpace(query.Get("end"))
	if start != "" || end != "" {
		if start == "" || end == "" {
			return core.Filter{}, badRequest("start and end must be given together")
		}
		s, err := core.ParseDate(start)
		if err != nil {
			return core.Filter{}, badRequest("invalid start date %q", start)
		}
		e, err := core.ParseDate(end)
		if err != nil {
			return core.Filter{}, badRequest("invalid end date %q", end)
		}
		if e.Before(s.Time) {
			return core.Filter{}, badRequest("end date before start date")
		}
		f.Range = &core.DateRange{Start: s, End: e}
	}

	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return core.Filter{}, badRequest("invalid limit %q", v)
		}
		f.Limit = n
	}

	return f, nil
}

// ParseID parses a positive path identifier.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", s)
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.Contains(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = badRequest("invalid JSON body")
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = badRequest("invalid form body")
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseTransaction builds a transaction from a request body. A missing date
// defaults to today; validation is left to the service.
func ParseTransaction(p *RequestBodyParser, today core.Date) (core.Transaction, error) {
	if err := p.Parse(); err != nil {
		return core.Transaction{}, err
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, err
	}

	t, err := core.ParseTransactionType(p.Get("type"))
	if err != nil {
		return core.Transaction{}, err
	}

	var categoryID int64
	if v := p.Get("category_id"); v != "" {
		categoryID, err = strconv.ParseInt(v, 10, 64)
		if err != nil || categoryID <= 0 {
			return core.Transaction{}, core.ErrMissingCategory
		}
	}

	date := today
	if v := p.Get("date"); v != "" {
		date, err = core.ParseDate(v)
		if err != nil {
			return core.Transaction{}, err
		}
	}

	return core.Transaction{
		Amount:      amount,
		Type:        t,
		CategoryID:  categoryID,
		Description: p.Get("description"),
		Date:        date,
	}, nil
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *ResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *ResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
