// Package pagination provides offset pagination for list endpoints.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultLimit is the default number of items per page.
	DefaultLimit = 20
	// MaxLimit is the maximum allowed items per page.
	MaxLimit = 100
	// MinLimit is the minimum allowed items per page.
	MinLimit = 1
)

// Params are the pagination parameters of one list request.
type Params struct {
	Limit  int
	Offset int
}

// Default returns params for the first page at the default size.
func Default() Params {
	return Params{Limit: DefaultLimit}
}

// Parse extracts pagination parameters from an HTTP request.
// Recognized query parameters:
//
//	limit     items per page (per_page is an alias)
//	offset    items to skip
//	page      1-indexed page number, converted to an offset
//
// Out-of-range and non-numeric values fall back to the defaults.
func Parse(r *http.Request) Params {
	p := Default()
	q := r.URL.Query()

	if limit := q.Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			p.Limit = l
		}
	} else if perPage := q.Get("per_page"); perPage != "" {
		if l, err := strconv.Atoi(perPage); err == nil {
			p.Limit = l
		}
	}

	if offset := q.Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			p.Offset = o
		}
	} else if page := q.Get("page"); page != "" {
		if n, err := strconv.Atoi(page); err == nil && n > 1 {
			p.Offset = (n - 1) * p.normalizedLimit()
		}
	}

	p.Normalize()
	return p
}

// Normalize clamps the params into their allowed ranges.
func (p *Params) Normalize() {
	*p = Params{Limit: p.normalizedLimit(), Offset: max(p.Offset, 0)}
}

func (p Params) normalizedLimit() int {
	if p.Limit < MinLimit {
		return DefaultLimit
	}
	if p.Limit > MaxLimit {
		return MaxLimit
	}
	return p.Limit
}

// ProbeLimit is the fetch size for detecting a following page: one row
// past the requested page.
func (p Params) ProbeLimit() int {
	return p.Limit + 1
}

// Page is a paginated list response.
type Page[T any] struct {
	Data    []T  `json:"data"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasNext bool `json:"has_next"`
}

// NewPage builds a page from items fetched with ProbeLimit: the probe
// row past the page boundary is trimmed and recorded as HasNext.
func NewPage[T any](items []T, p Params) *Page[T] {
	page := &Page[T]{
		Data:   items,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if len(items) > p.Limit {
		page.Data = items[:p.Limit]
		page.HasNext = true
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	return page
}
