package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// Gateway is the client-side contract with the hosted payment provider.
// Completion of a session is reported asynchronously via signed webhooks,
// never through these calls.
type Gateway interface {
	// CreateSession creates a hosted checkout session and returns its id and
	// redirect URL.
	CreateSession(ctx context.Context, req *SessionRequest) (*Session, error)

	// EnsureCoupon creates a gateway-side coupon for the code if one does
	// not already exist, returning the gateway coupon id.
	EnsureCoupon(ctx context.Context, coupon CouponParams) (string, error)

	// Refund issues a refund against a completed session.
	Refund(ctx context.Context, sessionID string) error
}

// SessionLineItem is one purchasable line in a hosted checkout session.
// Amounts are in minor currency units.
type SessionLineItem struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	UnitAmountCents int64  `json:"unit_amount"`
	Quantity        int    `json:"quantity"`
}

// CouponParams mirrors a discount code on the gateway side, keyed by the
// code string so repeated checkouts reuse the same coupon.
type CouponParams struct {
	Code        string `json:"code"`
	PercentOff  string `json:"percent_off,omitempty"`
	AmountOff   int64  `json:"amount_off,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// SessionRequest carries everything the gateway needs to host a checkout.
type SessionRequest struct {
	LineItems     []SessionLineItem `json:"line_items"`
	ShippingCents int64             `json:"shipping_amount"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	CouponID      string            `json:"coupon,omitempty"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	Metadata      map[string]string `json:"metadata"`
}

// Session is the gateway-hosted checkout resource.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// httpGateway talks to the provider's REST API. All calls are bounded by the
// client timeout; failures surface as *model.GatewayError.
type httpGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewGateway creates an HTTP payment gateway client.
func NewGateway(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) Gateway {
	return &httpGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "payment-gateway").Logger(),
	}
}

// CreateSession creates a hosted checkout session.
func (g *httpGateway) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	var session Session
	if err := g.post(ctx, "/v1/checkout/sessions", req, &session); err != nil {
		return nil, &model.GatewayError{Op: "create session", Err: err}
	}

	g.logger.Info().
		Str("session_id", session.ID).
		Str("order_id", req.Metadata["order_id"]).
		Msg("payment session created")

	return &session, nil
}

// EnsureCoupon fetches the coupon by code and creates it when absent.
func (g *httpGateway) EnsureCoupon(ctx context.Context, coupon CouponParams) (string, error) {
	var existing struct {
		ID string `json:"id"`
	}
	err := g.get(ctx, "/v1/coupons/"+url.PathEscape(coupon.Code), &existing)
	if err == nil && existing.ID != "" {
		return existing.ID, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, "/v1/coupons", coupon, &created); err != nil {
		return "", &model.GatewayError{Op: "create coupon", Err: err}
	}

	g.logger.Debug().Str("code", coupon.Code).Str("coupon_id", created.ID).Msg("gateway coupon created")

	return created.ID, nil
}

// Refund issues a refund against a completed session.
func (g *httpGateway) Refund(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	if err := g.post(ctx, "/v1/refunds", body, nil); err != nil {
		return &model.GatewayError{Op: "refund", Err: err}
	}

	g.logger.Info().Str("session_id", sessionID).Msg("refund issued")

	return nil
}

func (g *httpGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	return g.do(req, out)
}

func (g *httpGateway) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	return g.do(req, out)
}

func (g *httpGateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error().Err(err).Str("url", req.URL.String()).Msg("gateway request failed")
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.Error().
			Int("status", resp.StatusCode).
			Str("url", req.URL.String()).
			Str("body", string(snippet)).
			Msg("gateway rejected request")
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return nil
}
