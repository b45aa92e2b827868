package domain

import "math"

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

const (
	DefaultPage      = 1
	DefaultLimit     = 10
	DefaultSortField = "createdAt"

	// MaxPage and MaxLimit keep the row offset well inside int range.
	MaxPage  = 1_000_000
	MaxLimit = 1000
)

// SortFields maps the public sort keys to their columns.
var SortFields = map[string]string{
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"name":          "name",
	"price":         "price",
	"discountPrice": "discount_price",
	"sku":           "sku",
}

// ProductQuery describes a filtered, sorted page of products.
// A Limit of zero means every matching product is returned.
type ProductQuery struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder SortOrder
	MinPrice  *float64
	MaxPrice  *float64
}

// NewProductQuery returns a query with the default paging and sorting.
func NewProductQuery() ProductQuery {
	return ProductQuery{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    DefaultSortField,
		SortOrder: SortOrderDesc,
	}
}

// Unlimited reports whether paging is disabled.
func (q ProductQuery) Unlimited() bool {
	return q.Limit == 0
}

// Offset returns the number of rows skipped before the page starts.
func (q ProductQuery) Offset() int {
	if q.Unlimited() || q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Pagination holds the metadata returned with a product page.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination computes pagination metadata. With limit zero the whole
// result is a single page.
func NewPagination(page, limit, total int) Pagination {
	if page <= 0 {
		page = DefaultPage
	}
	pages := 0
	switch {
	case total <= 0:
		pages = 0
	case limit <= 0:
		pages = 1
	default:
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products   []*Product `json:"products"`
	Pagination Pagination `json:"pagination"`
}
