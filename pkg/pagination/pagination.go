// Package pagination provides limit/offset pagination helpers for list endpoints.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	// DefaultLimit is the page size when none is requested.
	DefaultLimit = 20
	// MaxLimit caps the requested page size.
	MaxLimit = 100
)

// Params holds parsed pagination parameters.
type Params struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// FromContext parses limit/offset query parameters with defaults and caps.
func FromContext(c echo.Context) Params {
	p := Params{Limit: DefaultLimit, Offset: 0}

	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}

	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// SQL returns a LIMIT/OFFSET clause fragment for appending to a query.
func (p Params) SQL() string {
	return " LIMIT " + strconv.Itoa(p.Limit) + " OFFSET " + strconv.Itoa(p.Offset)
}

// HasNext reports whether another page exists given the total row count.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious reports whether an earlier page exists.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset of the following page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset of the preceding page, floored at zero.
func (p Params) PreviousOffset() int {
	o := p.Offset - p.Limit
	if o < 0 {
		o = 0
	}
	return o
}

// Response is a paginated list envelope.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

// NewResponse wraps data in a pagination envelope.
func NewResponse(data interface{}, total int, p Params) Response {
	return Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}
