package service

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// CartService defines operations for per-identity cart management.
type CartService interface {
	// Items lists the cart for the identity.
	Items(ctx context.Context, identity model.Identity) ([]model.CartItem, error)

	// AddItem adds a (product, variant, quantity) selection; quantities of
	// an existing row are summed.
	AddItem(ctx context.Context, identity model.Identity, req model.CartItemRequest) (*model.CartItem, error)

	// UpdateItemQuantity replaces the quantity of an existing row.
	UpdateItemQuantity(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID, quantity int) error

	// RemoveItem deletes a single row.
	RemoveItem(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID) error

	// Clear empties the cart.
	Clear(ctx context.Context, identity model.Identity) error

	// Merge folds an anonymous session cart into a user cart after login.
	Merge(ctx context.Context, sessionID string, userID uuid.UUID) error
}

// CheckoutService converts a validated cart into a persisted order plus a
// hosted payment session. Stock is not reserved at this stage.
type CheckoutService interface {
	Checkout(ctx context.Context, identity model.Identity, req *model.CheckoutRequest) (*model.CheckoutResponse, error)
}

// OrderService owns the order lifecycle after creation: webhook-driven
// fulfilment, cancellation/refund, and privileged status advancement.
type OrderService interface {
	// GetByID retrieves an order with items and timeline, or nil if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.OrderDetail, error)

	// ListByUser lists a user's orders newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error)

	// FinalizeOrder applies a confirmed payment: CONFIRMED/PAID transition,
	// stock decrement, discount usage increment, cart clear. Idempotent
	// under webhook redelivery.
	FinalizeOrder(ctx context.Context, orderID uuid.UUID, paymentMethod string) error

	// RecordPaymentFailure records a failed payment attempt in the audit
	// trail without advancing the order.
	RecordPaymentFailure(ctx context.Context, orderID uuid.UUID, reason string) error

	// Cancel reverses a not-yet-fulfilled order, refunding first when paid.
	Cancel(ctx context.Context, orderID uuid.UUID, reason *string) (*model.OrderDetail, error)

	// UpdateStatus advances the order status subject to the transition table.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, req *model.UpdateStatusRequest) (*model.OrderDetail, error)
}
