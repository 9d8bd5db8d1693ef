package model

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	MaxPage      = math.MaxInt32 / MaxLimit
)

// ProductFilter selects a page of the catalog.
type ProductFilter struct {
	Page     int
	Limit    int
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// Normalize replaces out-of-range paging values with defaults and clamps
// oversized ones.
func (f ProductFilter) Normalize() ProductFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Offset is the number of matching rows skipped before this page.
func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// NewPagination computes page metadata for total matching rows.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// ProductPage is one page of the catalog.
type ProductPage struct {
	Products   []Product
	Pagination Pagination
}
