package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// PaymentStatus enumerates the payment lifecycle states.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// statusTransitions is the allowed-successor table for order statuses.
// DELIVERED and CANCELLED are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether the status change from -> to is permitted.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// ShippingAddress holds the denormalized shipping fields stored on every
// order. Guest orders have no address record anywhere else, so this copy is
// the source of truth.
type ShippingAddress struct {
	FirstName  string  `json:"firstName" db:"shipping_first_name"`
	LastName   string  `json:"lastName" db:"shipping_last_name"`
	Phone      string  `json:"phone" db:"shipping_phone"`
	Street     string  `json:"street" db:"shipping_street"`
	City       string  `json:"city" db:"shipping_city"`
	State      *string `json:"state,omitempty" db:"shipping_state"`
	PostalCode *string `json:"postalCode,omitempty" db:"shipping_postal_code"`
	Country    string  `json:"country" db:"shipping_country"`
}

// Order represents a customer order. Monetary fields are integer minor
// currency units and are always recomputed server-side from line items;
// TotalCents = SubtotalCents - DiscountCents + ShippingCents.
type Order struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	OrderNumber      string          `json:"orderNumber" db:"order_number"`
	UserID           *uuid.UUID      `json:"userId,omitempty" db:"user_id"`
	Email            string          `json:"email" db:"email"`
	Phone            *string         `json:"phone,omitempty" db:"phone"`
	SubtotalCents    int64           `json:"subtotalCents" db:"subtotal_cents"`
	DiscountCents    int64           `json:"discountCents" db:"discount_cents"`
	ShippingCents    int64           `json:"shippingCents" db:"shipping_cents"`
	TotalCents       int64           `json:"totalCents" db:"total_cents"`
	Currency         string          `json:"currency" db:"currency"`
	Status           OrderStatus     `json:"status" db:"status"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus" db:"payment_status"`
	PaymentSessionID *string         `json:"paymentSessionId,omitempty" db:"payment_session_id"`
	PaymentMethod    *string         `json:"paymentMethod,omitempty" db:"payment_method"`
	DiscountCodeID   *uuid.UUID      `json:"discountCodeId,omitempty" db:"discount_code_id"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	Notes            *string         `json:"notes,omitempty" db:"notes"`
	TrackingNumber   *string         `json:"trackingNumber,omitempty" db:"tracking_number"`
	PaidAt           *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	ShippedAt        *time.Time      `json:"shippedAt,omitempty" db:"shipped_at"`
	DeliveredAt      *time.Time      `json:"deliveredAt,omitempty" db:"delivered_at"`
	CancelledAt      *time.Time      `json:"cancelledAt,omitempty" db:"cancelled_at"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem is an immutable snapshot of a purchased product or variant at
// order time. It is deliberately decoupled from the live catalogue so
// historical orders stay accurate if the product later changes.
type OrderItem struct {
	ID             uuid.UUID  `json:"-" db:"id"`
	OrderID        uuid.UUID  `json:"-" db:"order_id"`
	ProductID      uuid.UUID  `json:"productId" db:"product_id"`
	VariantID      *uuid.UUID `json:"variantId,omitempty" db:"variant_id"`
	Name           string     `json:"name" db:"name"`
	SKU            string     `json:"sku" db:"sku"`
	UnitPriceCents int64      `json:"unitPriceCents" db:"unit_price_cents"`
	Quantity       int        `json:"quantity" db:"quantity"`
	TotalCents     int64      `json:"totalCents" db:"total_cents"`
}

// OrderEvent is an append-only audit record of an order's status history.
type OrderEvent struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	OrderID   uuid.UUID   `json:"-" db:"order_id"`
	Status    OrderStatus `json:"status" db:"status"`
	Note      *string     `json:"note,omitempty" db:"note"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
}

// OrderDetail bundles an order with its line items and timeline for display.
// Timeline entries are ordered newest first.
type OrderDetail struct {
	Order    Order        `json:"order"`
	Items    []OrderItem  `json:"items"`
	Timeline []OrderEvent `json:"timeline"`
}
