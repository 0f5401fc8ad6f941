package repository

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repository
// methods can run inside or outside a caller-owned transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProductRepository defines read and stock-mutation access to the catalogue.
// The order pipeline consults the catalogue but never owns it.
type ProductRepository interface {
	// GetByID retrieves a single product, or nil if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)

	// GetVariantsByIDs retrieves multiple variants by their IDs.
	GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.ProductVariant, error)

	// DecrementStock conditionally decrements variant stock when variantID is
	// set, product stock otherwise. Returns false when the row exists but the
	// decrement was refused (not enough stock and backorder disallowed).
	DecrementStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error)

	// RestoreStock increments stock, the inverse of DecrementStock.
	RestoreStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variantID *uuid.UUID, quantity int) error
}

// CartRepository defines data access for per-identity cart items.
type CartRepository interface {
	// Items lists all cart items for the identity.
	Items(ctx context.Context, identity model.Identity) ([]model.CartItem, error)

	// Upsert adds the requested quantity to an existing (product, variant)
	// row for the identity, or inserts a new row.
	Upsert(ctx context.Context, identity model.Identity, req model.CartItemRequest) (*model.CartItem, error)

	// SetQuantity replaces the quantity of an existing row. Returns false
	// when no matching row exists.
	SetQuantity(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error)

	// Remove deletes a single (product, variant) row for the identity.
	Remove(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID) error

	// Clear deletes every cart item for the identity.
	Clear(ctx context.Context, identity model.Identity) error

	// ClearUserTx deletes a user's cart inside the provided transaction.
	ClearUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error

	// Merge moves an anonymous session cart into a user cart; colliding
	// (product, variant) rows have their quantities summed.
	Merge(ctx context.Context, sessionID string, userID uuid.UUID) error
}

// DiscountRepository defines data access for promotional codes.
type DiscountRepository interface {
	// GetByCode looks a code up case-insensitively, or nil if absent.
	GetByCode(ctx context.Context, code string) (*model.DiscountCode, error)

	// IncrementUsage bumps the usage counter by exactly one.
	IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// Upsert inserts or updates a code by its code string (bulk import).
	Upsert(ctx context.Context, code *model.DiscountCode) error
}

// OrderRepository defines data access for orders, line items and the
// append-only timeline.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts line-item snapshots within the transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// AppendEvent appends a timeline entry. q may be a pool or a transaction.
	AppendEvent(ctx context.Context, q Querier, orderID uuid.UUID, status model.OrderStatus, note *string) error

	// GetByID retrieves an order with its line items, or nils if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error)

	// GetTimeline lists timeline entries newest first.
	GetTimeline(ctx context.Context, orderID uuid.UUID) ([]model.OrderEvent, error)

	// ListByUser lists a user's orders newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error)

	// SetPaymentSession stores the external payment-session reference.
	SetPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error

	// MarkPaid flips the order to CONFIRMED/PAID iff payment status is still
	// PENDING. Returns false when the guard did not match (already settled).
	MarkPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, method string) (bool, error)

	// MarkPaymentFailed records a failed payment attempt on the order.
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) error

	// MarkCancelled sets status CANCELLED, stamping cancelled_at; payment
	// status becomes REFUNDED when refunded is true.
	MarkCancelled(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, refunded bool) error

	// SetStatus updates the order status, stamping shipped_at/delivered_at
	// and recording the tracking number where applicable.
	SetStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, trackingNumber *string) error

	// ExpireStalePending cancels orders still PENDING/PENDING created before
	// the cutoff, appending a timeline entry per order. Returns the expired
	// order ids.
	ExpireStalePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}
