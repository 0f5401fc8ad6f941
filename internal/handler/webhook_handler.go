package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxWebhookBody bounds the webhook payload size.
const maxWebhookBody = 1 << 20

const (
	eventSessionCompleted     = "checkout.session.completed"
	eventSessionPaymentFailed = "checkout.session.payment_failed"
)

// webhookEvent is the gateway's event envelope. The order id travels in the
// session metadata, set when the session was created.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentMethod string `json:"payment_method"`
			FailureReason string `json:"failure_reason"`
			Metadata      struct {
				OrderID string `json:"order_id"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// WebhookHandler receives payment gateway callbacks.
type WebhookHandler struct {
	service service.OrderService
	secret  string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service service.OrderService, secret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		secret:  secret,
		logger:  logger.With().Str("handler", "webhook").Logger(),
		now:     time.Now,
	}
}

// HandlePayment handles POST /api/webhooks/payment requests. The signature
// is verified against the raw body before any parsing; nothing is mutated on
// a signature failure. Once the signature passes, the event is acknowledged
// even when processing fails, so the gateway retry loop is driven by our
// own idempotent finalization rather than redelivery storms.
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "failed to read request body", h.logger)
		return
	}

	signature := r.Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(h.secret, signature, body, h.now()); err != nil {
		h.logger.Warn().Err(err).Msg("webhook signature rejected")
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidSignature, "invalid webhook signature", h.logger)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid webhook payload", h.logger)
		return
	}

	h.process(r, event)

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// process dispatches a verified event. Failures are logged, never surfaced:
// the handler has already committed to acknowledging.
func (h *WebhookHandler) process(r *http.Request, event webhookEvent) {
	logger := h.logger.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	orderID, err := uuid.Parse(event.Data.Object.Metadata.OrderID)
	if err != nil {
		logger.Warn().Str("order_id", event.Data.Object.Metadata.OrderID).Msg("webhook event missing usable order id")
		return
	}

	switch event.Type {
	case eventSessionCompleted:
		method := event.Data.Object.PaymentMethod
		if method == "" {
			method = "card"
		}
		if err := h.service.FinalizeOrder(r.Context(), orderID, method); err != nil {
			logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to finalize order from webhook")
		}
	case eventSessionPaymentFailed:
		if err := h.service.RecordPaymentFailure(r.Context(), orderID, event.Data.Object.FailureReason); err != nil {
			logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to record payment failure from webhook")
		}
	default:
		logger.Debug().Msg("ignoring unhandled webhook event type")
	}
}
