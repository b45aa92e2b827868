package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Product is a catalog product as returned by the API.
type Product struct {
	UID           string    `json:"uid"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	Price         float64   `json:"price"`
	DiscountPrice *float64  `json:"discountPrice"`
	SKU           string    `json:"sku"`
	ImageURL      *string   `json:"imageUrl"`
	ImagePublicID *string   `json:"imagePublicId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ProductPage is one page of a listing.
type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// ListOptions selects a page of products. Zero values use the server defaults;
// a Limit pointing at zero returns every match.
type ListOptions struct {
	Page      int
	Limit     *int
	Search    string
	SortBy    string
	SortOrder string
	MinPrice  *float64
	MaxPrice  *float64
}

// CreateProductInput is the body of a create request.
type CreateProductInput struct {
	Name          string   `json:"name"`
	Description   *string  `json:"description,omitempty"`
	Price         float64  `json:"price"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	SKU           string   `json:"sku"`
	ImageURL      *string  `json:"imageUrl,omitempty"`
}

// UpdateProductInput is the body of a partial update. Nil fields are not sent.
type UpdateProductInput struct {
	Name          *string  `json:"name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	DiscountPrice *float64 `json:"discountPrice,omitempty"`
	SKU           *string  `json:"sku,omitempty"`
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     []FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("catalog api: %d %s", e.StatusCode, e.Message)
}

// NotFound reports whether the error is a 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			ValidationErrors []FieldError `json:"validation_errors"`
		} `json:"details"`
	} `json:"error"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Code: http.StatusText(status)}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Fields = env.Error.Details.ValidationErrors
	}
	return apiErr
}
