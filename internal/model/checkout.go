package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CheckoutRequest is the payload for converting a cart into an order plus a
// hosted payment session.
type CheckoutRequest struct {
	Email           string          `json:"email"`
	Phone           *string         `json:"phone,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	DiscountCode    *string         `json:"discountCode,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
}

// Validate checks required fields and email format before any persistence.
func (r *CheckoutRequest) Validate() error {
	if r == nil {
		return NewDomainError(ErrCodeValidation, "request body is required")
	}
	if !emailPattern.MatchString(strings.TrimSpace(r.Email)) {
		return NewDomainError(ErrCodeValidation, "a valid email address is required")
	}

	addr := r.ShippingAddress
	required := map[string]string{
		"firstName": addr.FirstName,
		"lastName":  addr.LastName,
		"phone":     addr.Phone,
		"street":    addr.Street,
		"city":      addr.City,
		"country":   addr.Country,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return NewDomainError(ErrCodeValidation, fmt.Sprintf("shippingAddress.%s is required", field))
		}
	}
	return nil
}

// CheckoutResponse is returned to the caller after a payment session has
// been created; the client redirects to CheckoutURL.
type CheckoutResponse struct {
	CheckoutURL string    `json:"checkoutUrl"`
	SessionID   string    `json:"sessionId"`
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
}

// CancelOrderRequest carries the optional reason for a cancellation.
type CancelOrderRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// UpdateStatusRequest is the privileged payload for manual status
// advancement.
type UpdateStatusRequest struct {
	Status         OrderStatus `json:"status"`
	TrackingNumber *string     `json:"trackingNumber,omitempty"`
	Note           *string     `json:"note,omitempty"`
}
