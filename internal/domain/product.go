package domain

import (
	"time"
)

// Product represents a product in the catalog.
// ID is the database key and never leaves the service; UID is the public identifier.
type Product struct {
	ID            int64     `json:"-" db:"id"`
	UID           string    `json:"uid" db:"uid"`
	Name          string    `json:"name" db:"name"`
	Description   *string   `json:"description" db:"description"`
	Price         float64   `json:"price" db:"price"`
	DiscountPrice *float64  `json:"discountPrice" db:"discount_price"`
	SKU           string    `json:"sku" db:"sku"`
	ImageURL      *string   `json:"imageUrl" db:"image_url"`
	ImagePublicID *string   `json:"imagePublicId" db:"image_public_id"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// HasImage reports whether an image is attached.
func (p *Product) HasImage() bool {
	return p.ImageURL != nil && *p.ImageURL != ""
}

// ProductPatch carries the fields of a partial update. Nil fields are left unchanged.
type ProductPatch struct {
	Name          *string
	Description   *string
	Price         *float64
	DiscountPrice *float64
	SKU           *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.DiscountPrice == nil && p.SKU == nil
}

// ImageRef identifies a stored product image. PublicID is empty for
// stores that address assets by URL alone.
type ImageRef struct {
	URL      string
	PublicID string
}

// IsZero reports whether the reference points at nothing.
func (r ImageRef) IsZero() bool {
	return r.URL == "" && r.PublicID == ""
}

// ImageRefOf extracts the image reference of a product.
func ImageRefOf(p *Product) ImageRef {
	var ref ImageRef
	if p.ImageURL != nil {
		ref.URL = *p.ImageURL
	}
	if p.ImagePublicID != nil {
		ref.PublicID = *p.ImagePublicID
	}
	return ref
}
