package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promotion kinds.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
	DiscountFreeShipping DiscountType = "FREE_SHIPPING"
)

// DiscountCode represents a promotional code. Codes are stored upper-cased
// and looked up case-insensitively. UsedCount increments exactly once per
// successfully paid order that referenced the code.
type DiscountCode struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Code          string          `json:"code" db:"code"`
	Type          DiscountType    `json:"type" db:"type"`
	Value         decimal.Decimal `json:"value" db:"value"`
	MinOrderCents *int64          `json:"minOrderCents,omitempty" db:"min_order_cents"`
	MaxUses       *int            `json:"maxUses,omitempty" db:"max_uses"`
	UsedCount     int             `json:"usedCount" db:"used_count"`
	StartsAt      *time.Time      `json:"startsAt,omitempty" db:"starts_at"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty" db:"expires_at"`
	Active        bool            `json:"active" db:"active"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// NormalizeDiscountCode upper-cases and trims a user-supplied code string.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the code against its own activation window, usage limit
// and minimum order amount for the given subtotal.
func (d *DiscountCode) Validate(subtotalCents int64, now time.Time) error {
	if !d.Active {
		return ErrDiscountInactive
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return ErrDiscountInactive
	}
	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		return ErrDiscountExpired
	}
	if d.MaxUses != nil && d.UsedCount >= *d.MaxUses {
		return ErrDiscountExhausted
	}
	if d.MinOrderCents != nil && subtotalCents < *d.MinOrderCents {
		return &DiscountMinimumError{Code: d.Code, MinOrderCents: *d.MinOrderCents}
	}
	return nil
}

// AmountCents computes the discount amount for the given subtotal.
// Percentage values may be fractional (e.g. 12.5). Fixed amounts are clamped
// at the subtotal so the order total can never go negative. Free-shipping
// codes contribute no direct amount; shipping is zeroed downstream.
func (d *DiscountCode) AmountCents(subtotalCents int64) int64 {
	switch d.Type {
	case DiscountPercentage:
		amount := decimal.NewFromInt(subtotalCents).
			Mul(d.Value).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if amount > subtotalCents {
			return subtotalCents
		}
		if amount < 0 {
			return 0
		}
		return amount
	case DiscountFixedAmount:
		amount := d.Value.Round(0).IntPart()
		if amount > subtotalCents {
			return subtotalCents
		}
		if amount < 0 {
			return 0
		}
		return amount
	default:
		return 0
	}
}
