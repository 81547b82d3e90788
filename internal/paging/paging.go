// Package paging normalizes page requests and builds pagination metadata.
package paging

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (Page-1)*PageSize and Page*PageSize inside int range.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Request is a normalized 1-based page request.
type Request struct {
	Page     int
	PageSize int
}

// NewRequest clamps page to [1, MaxPage] and size to [1, MaxPageSize], using the default for zero.
func NewRequest(page, pageSize int) Request {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Request{Page: page, PageSize: pageSize}
}

// Offset returns the number of rows to skip.
func (r Request) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// Page is a slice of results with the metadata callers need to continue.
type Page[T any] struct {
	Items       []T   `json:"items"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

// NewPage builds a page whose metadata is consistent with total.
func NewPage[T any](items []T, total int64, request Request) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(request.PageSize) - 1) / int64(request.PageSize))
	}
	return Page[T]{
		Items:       items,
		CurrentPage: request.Page,
		PerPage:     request.PageSize,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     int64(request.Page)*int64(request.PageSize) < total,
		HasPrev:     request.Page > 1,
	}
}
