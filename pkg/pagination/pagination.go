package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// Params holds page-based pagination parameters extracted from a request.
type Params struct {
	Page     int
	PageSize int
}

// FromContext extracts pagination parameters from the echo context. Missing or
// malformed values are passed through as zero and clamped by Normalize.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if size == 0 {
		size, _ = strconv.Atoi(c.QueryParam("page_size"))
	}
	return Params{Page: page, PageSize: size}
}

// Normalize clamps out-of-range values instead of rejecting them: a page below
// one becomes the first page, a non-positive size becomes the default.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	return p
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages returns ceil(total/pageSize), or 0 when there is nothing to page.
func (p Params) TotalPages(total int) int {
	if total <= 0 || p.PageSize <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}

// Window returns the [start, end) bounds of the current page within a slice
// of length n.
func (p Params) Window(n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.PageSize
	if end > n {
		end = n
	}
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.PageSize < total
}

// Response is the envelope returned by paginated list endpoints.
type Response struct {
	Items      interface{} `json:"items"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalCount int         `json:"totalCount"`
	TotalPages int         `json:"totalPages"`
	HasNext    bool        `json:"hasNext"`
}

func NewResponse(items interface{}, total int, p Params) *Response {
	return &Response{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: total,
		TotalPages: p.TotalPages(total),
		HasNext:    p.HasNext(total),
	}
}
