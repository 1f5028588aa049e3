// Package pagination reads limit/offset query parameters and wraps list
// results in the envelope shared by every list endpoint.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit= and ?offset=. Missing or invalid values fall back
// to DefaultLimit and 0; limits above MaxLimit are clamped.
func FromContext(c echo.Context) Params {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	switch {
	case err != nil || limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// Bounds returns the [start, end) window of a result set of size total. A
// non-positive limit selects everything from the offset on.
func (p Params) Bounds(total int) (start, end int) {
	start = min(max(p.Offset, 0), total)
	end = total
	if p.Limit > 0 && start+p.Limit < total {
		end = start + p.Limit
	}
	return start, end
}

type Response struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
	HasMore    bool        `json:"has_more"`
	NextOffset *int        `json:"next_offset,omitempty"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	r := &Response{Data: data, Total: total, Limit: limit, Offset: offset}
	if next := offset + limit; next < total {
		r.HasMore = true
		r.NextOffset = &next
	}
	return r
}

// Page copies the requested window of items into a Response.
func Page[T any](items []T, p Params) *Response {
	start, end := p.Bounds(len(items))
	page := make([]T, end-start)
	copy(page, items[start:end])
	return NewResponse(page, len(items), p.Limit, p.Offset)
}
