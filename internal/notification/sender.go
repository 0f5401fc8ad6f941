package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// Sender dispatches customer-facing emails. Delivery is fire-and-forget:
// callers log failures and never propagate them into the order pipeline.
type Sender interface {
	// SendOrderConfirmation sends the post-payment confirmation email.
	SendOrderConfirmation(ctx context.Context, order *model.Order, items []model.OrderItem) error
}

// httpSender posts notification requests to the mail service.
type httpSender struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewSender creates an HTTP notification sender. When baseURL is empty a
// no-op sender is returned so the pipeline works without a mail service.
func NewSender(baseURL string, timeout time.Duration, logger zerolog.Logger) Sender {
	logger = logger.With().Str("component", "notification").Logger()

	if baseURL == "" {
		logger.Info().Msg("notification sender disabled (no base URL configured)")
		return nopSender{}
	}

	return &httpSender{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type confirmationPayload struct {
	To          string            `json:"to"`
	Template    string            `json:"template"`
	OrderNumber string            `json:"orderNumber"`
	TotalCents  int64             `json:"totalCents"`
	Currency    string            `json:"currency"`
	Items       []model.OrderItem `json:"items"`
}

// SendOrderConfirmation sends the post-payment confirmation email.
func (s *httpSender) SendOrderConfirmation(ctx context.Context, order *model.Order, items []model.OrderItem) error {
	payload := confirmationPayload{
		To:          order.Email,
		Template:    "order-confirmation",
		OrderNumber: order.OrderNumber,
		TotalCents:  order.TotalCents,
		Currency:    order.Currency,
		Items:       items,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/emails", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	s.logger.Debug().
		Str("order_number", order.OrderNumber).
		Str("to", order.Email).
		Msg("order confirmation sent")

	return nil
}

// nopSender drops all notifications.
type nopSender struct{}

func (nopSender) SendOrderConfirmation(context.Context, *model.Order, []model.OrderItem) error {
	return nil
}
