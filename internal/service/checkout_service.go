package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// checkoutService implements CheckoutService.
type checkoutService struct {
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	discountRepo repository.DiscountRepository
	orderRepo    repository.OrderRepository
	gateway      payment.Gateway
	checkoutCfg  config.CheckoutConfig
	paymentCfg   config.PaymentConfig
	eventTopic   string
	logger       zerolog.Logger
	now          func() time.Time
}

// NewCheckoutService creates a new checkout service. The pricing policy
// (currency, shipping threshold and rate, order-number prefix) is fixed at
// construction time.
func NewCheckoutService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	discountRepo repository.DiscountRepository,
	orderRepo repository.OrderRepository,
	gateway payment.Gateway,
	checkoutCfg config.CheckoutConfig,
	paymentCfg config.PaymentConfig,
	eventTopic string,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		discountRepo: discountRepo,
		orderRepo:    orderRepo,
		gateway:      gateway,
		checkoutCfg:  checkoutCfg,
		paymentCfg:   paymentCfg,
		eventTopic:   eventTopic,
		logger:       logger.With().Str("service", "checkout").Logger(),
		now:          time.Now,
	}
}

// pricedItem is a cart item with its resolved price, availability and
// catalogue snapshot fields.
type pricedItem struct {
	cart           model.CartItem
	name           string
	sku            string
	variantName    string
	unitPriceCents int64
	totalCents     int64
}

// Checkout runs the full session-creation pipeline. Any failure before the
// order is persisted aborts with nothing written; a gateway failure after
// persistence leaves an inert PENDING order for the reaper.
func (s *checkoutService) Checkout(ctx context.Context, identity model.Identity, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	if !identity.Valid() {
		return nil, model.NewDomainError(model.ErrCodeValidation, "a user or session identity is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cartItems, err := s.cartRepo.Items(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cartItems) == 0 {
		return nil, model.ErrEmptyCart
	}

	priced, err := s.priceItems(ctx, cartItems)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	for _, item := range priced {
		subtotal += item.totalCents
	}

	var discount *model.DiscountCode
	var discountCents int64
	if req.DiscountCode != nil && *req.DiscountCode != "" {
		discount, err = s.resolveDiscount(ctx, *req.DiscountCode, subtotal)
		if err != nil {
			return nil, err
		}
		discountCents = discount.AmountCents(subtotal)
	}

	shippingCents := s.shippingCost(subtotal, discount)
	totalCents := subtotal - discountCents + shippingCents

	order, items, err := s.persistOrder(ctx, identity, req, priced, discount, subtotal, discountCents, shippingCents, totalCents)
	if err != nil {
		return nil, err
	}

	session, err := s.createPaymentSession(ctx, order, items, discount, shippingCents)
	if err != nil {
		// The PENDING order stays behind; it is inert and the reaper will
		// expire it if it is never paid.
		s.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("order_number", order.OrderNumber).
			Msg("payment session creation failed after order persisted")
		return nil, err
	}

	if err := s.orderRepo.SetPaymentSession(ctx, order.ID, session.ID); err != nil {
		return nil, fmt.Errorf("failed to attach payment session: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("session_id", session.ID).
		Int64("total_cents", totalCents).
		Msg("checkout session created")

	return &model.CheckoutResponse{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	}, nil
}

// priceItems resolves effective unit price and availability for every cart
// item and enforces the advisory stock check. Stock is not reserved here;
// the authoritative decrement happens at payment confirmation.
func (s *checkoutService) priceItems(ctx context.Context, cartItems []model.CartItem) ([]pricedItem, error) {
	productIDs := make([]uuid.UUID, 0, len(cartItems))
	variantIDs := make([]uuid.UUID, 0, len(cartItems))
	for _, item := range cartItems {
		productIDs = append(productIDs, item.ProductID)
		if item.VariantID != nil {
			variantIDs = append(variantIDs, *item.VariantID)
		}
	}

	products, err := s.productRepo.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	productsByID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	variants, err := s.productRepo.GetVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	variantsByID := make(map[uuid.UUID]model.ProductVariant, len(variants))
	for _, v := range variants {
		variantsByID[v.ID] = v
	}

	priced := make([]pricedItem, 0, len(cartItems))
	for _, item := range cartItems {
		product, ok := productsByID[item.ProductID]
		if !ok {
			return nil, model.ErrProductNotFound
		}

		unitPrice := product.PriceCents
		available := product.Quantity
		variantName := ""

		if item.VariantID != nil {
			variant, ok := variantsByID[*item.VariantID]
			if !ok || variant.ProductID != product.ID {
				return nil, model.ErrProductNotFound
			}
			if variant.PriceCents != nil {
				unitPrice = *variant.PriceCents
			}
			available = variant.Quantity
			variantName = variant.Name
		}

		if item.Quantity > available && !product.AllowBackorder {
			s.logger.Warn().
				Str("product_id", product.ID.String()).
				Int("requested", item.Quantity).
				Int("available", available).
				Msg("insufficient stock at checkout")
			return nil, &model.InsufficientStockError{ProductID: product.ID, Available: available}
		}

		priced = append(priced, pricedItem{
			cart:           item,
			name:           product.Name,
			sku:            product.SKU,
			variantName:    variantName,
			unitPriceCents: unitPrice,
			totalCents:     unitPrice * int64(item.Quantity),
		})
	}

	return priced, nil
}

// resolveDiscount looks the code up and validates it against the subtotal.
func (s *checkoutService) resolveDiscount(ctx context.Context, code string, subtotalCents int64) (*model.DiscountCode, error) {
	discount, err := s.discountRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up discount code: %w", err)
	}
	if discount == nil {
		return nil, model.ErrInvalidDiscount
	}

	if err := discount.Validate(subtotalCents, s.now()); err != nil {
		s.logger.Warn().
			Str("code", discount.Code).
			Err(err).
			Msg("discount code rejected")
		return nil, err
	}

	return discount, nil
}

// shippingCost applies the flat-rate policy: free at or above the threshold
// or with a free-shipping code, the flat rate otherwise.
func (s *checkoutService) shippingCost(subtotalCents int64, discount *model.DiscountCode) int64 {
	if discount != nil && discount.Type == model.DiscountFreeShipping {
		return 0
	}
	if subtotalCents >= s.checkoutCfg.FreeShippingThresholdCents {
		return 0
	}
	return s.checkoutCfg.FlatShippingRateCents
}

// persistOrder writes the order, its line-item snapshots, the initial
// timeline entry and the order.created outbox event in one transaction.
func (s *checkoutService) persistOrder(
	ctx context.Context,
	identity model.Identity,
	req *model.CheckoutRequest,
	priced []pricedItem,
	discount *model.DiscountCode,
	subtotal, discountCents, shippingCents, totalCents int64,
) (order *model.Order, items []model.OrderItem, err error) {
	now := s.now()

	orderNumber, err := generateOrderNumber(s.checkoutCfg.OrderNumberPrefix, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate order number: %w", err)
	}

	order = &model.Order{
		ID:              uuid.New(),
		OrderNumber:     orderNumber,
		UserID:          identity.UserID,
		Email:           req.Email,
		Phone:           req.Phone,
		SubtotalCents:   subtotal,
		DiscountCents:   discountCents,
		ShippingCents:   shippingCents,
		TotalCents:      totalCents,
		Currency:        s.checkoutCfg.Currency,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if discount != nil {
		id := discount.ID
		order.DiscountCodeID = &id
	}

	items = make([]model.OrderItem, len(priced))
	for i, p := range priced {
		name := p.name
		if p.variantName != "" {
			name = fmt.Sprintf("%s (%s)", p.name, p.variantName)
		}
		items[i] = model.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      p.cart.ProductID,
			VariantID:      p.cart.VariantID,
			Name:           name,
			SKU:            p.sku,
			UnitPriceCents: p.unitPriceCents,
			Quantity:       p.cart.Quantity,
			TotalCents:     p.totalCents,
		}
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err = s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
		return nil, nil, fmt.Errorf("failed to create order items: %w", err)
	}

	note := "awaiting payment"
	if err = s.orderRepo.AppendEvent(ctx, tx, order.ID, model.OrderStatusPending, &note); err != nil {
		return nil, nil, fmt.Errorf("failed to record order event: %w", err)
	}

	if err = events.Insert(ctx, tx, s.eventTopic, events.OrderEvent{
		Type:        events.TypeOrderCreated,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Payload:     map[string]any{"total_cents": totalCents, "currency": order.Currency},
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to record order event: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	return order, items, nil
}

// createPaymentSession requests the hosted checkout session, mirroring the
// discount as a gateway coupon when one applies.
func (s *checkoutService) createPaymentSession(ctx context.Context, order *model.Order, items []model.OrderItem, discount *model.DiscountCode, shippingCents int64) (*payment.Session, error) {
	lineItems := make([]payment.SessionLineItem, len(items))
	for i, item := range items {
		lineItems[i] = payment.SessionLineItem{
			Name:            item.Name,
			UnitAmountCents: item.UnitPriceCents,
			Quantity:        item.Quantity,
		}
	}

	sessionReq := &payment.SessionRequest{
		LineItems:     lineItems,
		ShippingCents: shippingCents,
		Currency:      order.Currency,
		CustomerEmail: order.Email,
		SuccessURL:    s.paymentCfg.SuccessURL,
		CancelURL:     s.paymentCfg.CancelURL,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	}

	if discount != nil && discount.Type != model.DiscountFreeShipping {
		coupon := payment.CouponParams{Code: discount.Code}
		if discount.Type == model.DiscountPercentage {
			coupon.PercentOff = discount.Value.String()
		} else {
			coupon.AmountOff = order.DiscountCents
			coupon.Currency = order.Currency
		}

		couponID, err := s.gateway.EnsureCoupon(ctx, coupon)
		if err != nil {
			return nil, err
		}
		sessionReq.CouponID = couponID
	}

	return s.gateway.CreateSession(ctx, sessionReq)
}

const orderNumberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateOrderNumber builds a human-readable order number:
// 3-letter prefix, 8-digit date, 4-character random suffix. Collisions are
// possible and surface as a uniqueness violation on insert.
func generateOrderNumber(prefix string, now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	suffix := make([]byte, 4)
	for i, b := range buf {
		suffix[i] = orderNumberCharset[int(b)%len(orderNumberCharset)]
	}

	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix), nil
}
