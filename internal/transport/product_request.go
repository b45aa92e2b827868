package transport

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"product-catalog/internal/domain"
	"product-catalog/internal/middleware"
	"product-catalog/internal/service"
)

// CreateProductRequest represents the create product payload
type CreateProductRequest struct {
	Name          *string  `json:"name" validate:"required,notblank,max=255"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price" validate:"required"`
	DiscountPrice *float64 `json:"discountPrice"`
	SKU           *string  `json:"sku" validate:"required,notblank,max=255"`
	ImageURL      *string  `json:"imageUrl" validate:"omitempty,url,max=1024"`
}

func (r CreateProductRequest) toInput() service.CreateProductInput {
	return service.CreateProductInput{
		Name:          *r.Name,
		Description:   r.Description,
		Price:         *r.Price,
		DiscountPrice: r.DiscountPrice,
		SKU:           *r.SKU,
		ImageURL:      r.ImageURL,
	}
}

// UpdateProductRequest represents the partial update payload. Omitted fields are left unchanged.
type UpdateProductRequest struct {
	Name          *string  `json:"name" validate:"omitempty,notblank,max=255"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price"`
	DiscountPrice *float64 `json:"discountPrice"`
	SKU           *string  `json:"sku" validate:"omitempty,notblank,max=255"`
}

func (r UpdateProductRequest) toInput() service.UpdateProductInput {
	return service.UpdateProductInput{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		DiscountPrice: r.DiscountPrice,
		SKU:           r.SKU,
	}
}

// listProductsQuery is the typed form of the list query string.
type listProductsQuery struct {
	Page      int    `json:"page" validate:"gte=1,lte=1000000"`
	Limit     int    `json:"limit" validate:"gte=0,lte=1000"`
	SortBy    string `json:"sortBy" validate:"sortfield"`
	SortOrder string `json:"sortOrder" validate:"oneof=asc desc"`
}

var listParams = map[string]bool{
	"page":      true,
	"limit":     true,
	"search":    true,
	"sortBy":    true,
	"sortOrder": true,
	"minPrice":  true,
	"maxPrice":  true,
}

// parseProductQuery converts the list query string into a ProductQuery.
// Non-numeric paging values fall back to their defaults and non-numeric
// price bounds are ignored; unknown parameters and out-of-range values
// are reported as validation errors.
func parseProductQuery(values url.Values) (domain.ProductQuery, []middleware.ValidationError) {
	var unknown []string
	for key := range values {
		if !listParams[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		errs := make([]middleware.ValidationError, 0, len(unknown))
		for _, key := range unknown {
			errs = append(errs, middleware.ValidationError{Field: key, Message: "unknown query parameter"})
		}
		return domain.ProductQuery{}, errs
	}

	raw := listProductsQuery{
		Page:      intParam(values, "page", domain.DefaultPage),
		Limit:     intParam(values, "limit", domain.DefaultLimit),
		SortBy:    stringParam(values, "sortBy", domain.DefaultSortField),
		SortOrder: strings.ToLower(stringParam(values, "sortOrder", string(domain.SortOrderDesc))),
	}
	if err := middleware.ValidateRequest(raw); err != nil {
		return domain.ProductQuery{}, middleware.FormatValidationErrors(err)
	}

	return domain.ProductQuery{
		Page:      raw.Page,
		Limit:     raw.Limit,
		Search:    strings.TrimSpace(values.Get("search")),
		SortBy:    raw.SortBy,
		SortOrder: domain.SortOrder(raw.SortOrder),
		MinPrice:  floatParam(values, "minPrice"),
		MaxPrice:  floatParam(values, "maxPrice"),
	}, nil
}

func stringParam(values url.Values, key, fallback string) string {
	if v := strings.TrimSpace(values.Get(key)); v != "" {
		return v
	}
	return fallback
}

func intParam(values url.Values, key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(values.Get(key)))
	if err != nil {
		return fallback
	}
	return n
}

func floatParam(values url.Values, key string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(values.Get(key)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
