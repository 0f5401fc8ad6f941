package model

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeInvalidDiscount     = "INVALID_DISCOUNT"
	ErrCodeDiscountInactive    = "DISCOUNT_INACTIVE"
	ErrCodeDiscountExpired     = "DISCOUNT_EXPIRED"
	ErrCodeDiscountExhausted   = "DISCOUNT_EXHAUSTED"
	ErrCodeDiscountMinimum     = "DISCOUNT_MINIMUM_NOT_MET"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeInvalidTransition   = "INVALID_STATUS_TRANSITION"
	ErrCodeOrderNotCancellable = "ORDER_NOT_CANCELLABLE"
	ErrCodeGatewayError        = "GATEWAY_ERROR"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// DomainError is a business-rule error with a machine-readable code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrEmptyCart           = NewDomainError(ErrCodeEmptyCart, "Cart is empty")
	ErrInvalidDiscount     = NewDomainError(ErrCodeInvalidDiscount, "Discount code not found")
	ErrDiscountInactive    = NewDomainError(ErrCodeDiscountInactive, "Discount code is not active")
	ErrDiscountExpired     = NewDomainError(ErrCodeDiscountExpired, "Discount code has expired")
	ErrDiscountExhausted   = NewDomainError(ErrCodeDiscountExhausted, "Discount code usage limit reached")
	ErrProductNotFound     = NewDomainError(ErrCodeProductNotFound, "One or more products not found")
	ErrOrderNotFound       = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrInvalidQuantity     = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrOrderNotCancellable = NewDomainError(ErrCodeOrderNotCancellable, "Order can no longer be cancelled")
)

// InsufficientStockError is returned when a requested quantity exceeds the
// available stock of a non-backorderable product.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available", e.ProductID, e.Available)
}

// DiscountMinimumError is returned when the order subtotal is below the
// discount code's minimum order amount.
type DiscountMinimumError struct {
	Code          string
	MinOrderCents int64
}

func (e *DiscountMinimumError) Error() string {
	return fmt.Sprintf("discount %s requires a minimum order of %d", e.Code, e.MinOrderCents)
}

// InvalidTransitionError is returned when an order status change is not
// permitted by the transition table.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition %s -> %s", e.From, e.To)
}

// GatewayError wraps a failure from the payment gateway.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
