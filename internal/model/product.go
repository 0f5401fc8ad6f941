package model

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a catalogue product. The order pipeline reads price and
// stock from here but never owns the catalogue.
type Product struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	SKU            string    `json:"sku" db:"sku"`
	PriceCents     int64     `json:"priceCents" db:"price_cents"`
	Quantity       int       `json:"quantity" db:"quantity"`
	AllowBackorder bool      `json:"allowBackorder" db:"allow_backorder"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// ProductVariant represents a purchasable variation of a product.
// PriceCents overrides the product price when set; Quantity is tracked
// independently of the parent product.
type ProductVariant struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ProductID  uuid.UUID  `json:"productId" db:"product_id"`
	Name       string     `json:"name" db:"name"`
	PriceCents *int64     `json:"priceCents,omitempty" db:"price_cents"`
	Quantity   int        `json:"quantity" db:"quantity"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}
