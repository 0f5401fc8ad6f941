package model

import (
	"time"

	"github.com/google/uuid"
)

// Identity keys a cart to either an authenticated user or an anonymous
// session. Exactly one of the two must be set.
type Identity struct {
	UserID    *uuid.UUID
	SessionID string
}

// Valid reports whether exactly one identity component is set.
func (i Identity) Valid() bool {
	if i.UserID != nil {
		return i.SessionID == ""
	}
	return i.SessionID != ""
}

// UserIdentity builds an identity for an authenticated user.
func UserIdentity(userID uuid.UUID) Identity {
	return Identity{UserID: &userID}
}

// SessionIdentity builds an identity for an anonymous session.
func SessionIdentity(sessionID string) Identity {
	return Identity{SessionID: sessionID}
}

// CartItem represents one (product, variant, quantity) selection in a cart.
// One row exists per (identity, product, variant) pair; quantities are
// mutated in place by subsequent adds.
type CartItem struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    *uuid.UUID `json:"userId,omitempty" db:"user_id"`
	SessionID *string    `json:"-" db:"session_id"`
	ProductID uuid.UUID  `json:"productId" db:"product_id"`
	VariantID *uuid.UUID `json:"variantId,omitempty" db:"variant_id"`
	Quantity  int        `json:"quantity" db:"quantity"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// CartItemRequest is the payload for adding or updating a cart item.
type CartItemRequest struct {
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Quantity  int        `json:"quantity"`
}
