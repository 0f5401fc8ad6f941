package service

import (
	"context"
	"fmt"

	"storefront/internal/events"
	"storefront/internal/model"
	"storefront/internal/notification"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	discountRepo repository.DiscountRepository
	cartRepo     repository.CartRepository
	gateway      payment.Gateway
	notifier     notification.Sender
	eventTopic   string
	logger       zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	discountRepo repository.DiscountRepository,
	cartRepo repository.CartRepository,
	gateway payment.Gateway,
	notifier notification.Sender,
	eventTopic string,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		discountRepo: discountRepo,
		cartRepo:     cartRepo,
		gateway:      gateway,
		notifier:     notifier,
		eventTopic:   eventTopic,
		logger:       logger.With().Str("service", "order").Logger(),
	}
}

// GetByID retrieves an order with its items and timeline.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderDetail, error) {
	order, items, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, nil
	}

	timeline, err := s.orderRepo.GetTimeline(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order timeline: %w", err)
	}

	return &model.OrderDetail{Order: *order, Items: items, Timeline: timeline}, nil
}

// defaultListLimit caps unpaginated order listings.
const defaultListLimit = 50

// ListByUser lists a user's orders newest first.
func (s *orderService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

// FinalizeOrder is the single authoritative translation of payment success
// into durable state. The CONFIRMED/PAID flip is a conditional update keyed
// on the current payment status, so redelivered webhook events short-circuit
// without touching stock or discount counters a second time.
func (s *orderService) FinalizeOrder(ctx context.Context, orderID uuid.UUID, paymentMethod string) (err error) {
	order, items, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return model.ErrOrderNotFound
	}

	if order.PaymentStatus == model.PaymentStatusPaid {
		s.logger.Info().
			Str("order_id", orderID.String()).
			Msg("order already paid, skipping duplicate finalization")
		return nil
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to finalize order: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	applied, err := s.orderRepo.MarkPaid(ctx, tx, orderID, paymentMethod)
	if err != nil {
		return fmt.Errorf("failed to finalize order: %w", err)
	}
	if !applied {
		// Lost the race against a concurrent delivery of the same event.
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		s.logger.Info().
			Str("order_id", orderID.String()).
			Msg("payment already settled by concurrent delivery")
		return nil
	}

	// Stock is decremented here, at confirmed payment, never at checkout.
	for _, item := range items {
		decremented, decErr := s.productRepo.DecrementStock(ctx, tx, item.ProductID, item.VariantID, item.Quantity)
		if decErr != nil {
			err = fmt.Errorf("failed to decrement stock: %w", decErr)
			return err
		}
		if !decremented {
			// Oversold: both concurrent checkouts passed the advisory check.
			// The payment stands; flag the shortfall for manual reconciliation.
			note := fmt.Sprintf("stock shortfall for %s (qty %d), manual reconciliation required", item.SKU, item.Quantity)
			s.logger.Error().
				Str("order_id", orderID.String()).
				Str("sku", item.SKU).
				Int("quantity", item.Quantity).
				Msg("stock shortfall at fulfilment")
			if evErr := s.orderRepo.AppendEvent(ctx, tx, orderID, model.OrderStatusConfirmed, &note); evErr != nil {
				err = fmt.Errorf("failed to record shortfall event: %w", evErr)
				return err
			}
		}
	}

	if order.DiscountCodeID != nil {
		if err = s.discountRepo.IncrementUsage(ctx, tx, *order.DiscountCodeID); err != nil {
			return fmt.Errorf("failed to increment discount usage: %w", err)
		}
	}

	if order.UserID != nil {
		if err = s.cartRepo.ClearUserTx(ctx, tx, *order.UserID); err != nil {
			return fmt.Errorf("failed to clear user cart: %w", err)
		}
	}

	note := "payment received"
	if err = s.orderRepo.AppendEvent(ctx, tx, orderID, model.OrderStatusConfirmed, &note); err != nil {
		return fmt.Errorf("failed to record order event: %w", err)
	}

	if err = events.Insert(ctx, tx, s.eventTopic, events.OrderEvent{
		Type:        events.TypeOrderPaid,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Payload:     map[string]any{"payment_method": paymentMethod},
	}); err != nil {
		return fmt.Errorf("failed to record order event: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to finalize order: %w", err)
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order finalized")

	// Best effort only; a failed email must never fail the webhook.
	if notifyErr := s.notifier.SendOrderConfirmation(ctx, order, items); notifyErr != nil {
		s.logger.Warn().
			Err(notifyErr).
			Str("order_id", orderID.String()).
			Msg("failed to send order confirmation")
	}

	return nil
}

// RecordPaymentFailure records a failed payment attempt in the audit trail.
func (s *orderService) RecordPaymentFailure(ctx context.Context, orderID uuid.UUID, reason string) (err error) {
	order, _, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return model.ErrOrderNotFound
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to record payment failure: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.MarkPaymentFailed(ctx, orderID); err != nil {
		return fmt.Errorf("failed to record payment failure: %w", err)
	}

	note := "payment failed"
	if reason != "" {
		note = fmt.Sprintf("payment failed: %s", reason)
	}
	if err = s.orderRepo.AppendEvent(ctx, tx, orderID, order.Status, &note); err != nil {
		return fmt.Errorf("failed to record payment failure event: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to record payment failure: %w", err)
	}

	s.logger.Warn().
		Str("order_id", orderID.String()).
		Str("reason", reason).
		Msg("payment failed")

	return nil
}

// Cancel reverses a not-yet-fulfilled order. When the order is paid the
// refund is issued first and the cancellation only persists after the
// refund call succeeds.
func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID, reason *string) (detail *model.OrderDetail, err error) {
	order, items, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if order.Status != model.OrderStatusPending && order.Status != model.OrderStatusConfirmed {
		return nil, model.ErrOrderNotCancellable
	}

	wasPaid := order.PaymentStatus == model.PaymentStatusPaid
	if wasPaid {
		if order.PaymentSessionID == nil {
			return nil, fmt.Errorf("paid order %s has no payment session reference", orderID)
		}
		if err = s.gateway.Refund(ctx, *order.PaymentSessionID); err != nil {
			s.logger.Error().
				Err(err).
				Str("order_id", orderID.String()).
				Msg("refund failed, cancellation aborted")
			return nil, err
		}
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.MarkCancelled(ctx, tx, orderID, wasPaid); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	// Inventory was only decremented if payment completed.
	if wasPaid {
		for _, item := range items {
			if err = s.productRepo.RestoreStock(ctx, tx, item.ProductID, item.VariantID, item.Quantity); err != nil {
				return nil, fmt.Errorf("failed to restore stock: %w", err)
			}
		}
	}

	note := "cancelled by request"
	if reason != nil && *reason != "" {
		note = *reason
	}
	if err = s.orderRepo.AppendEvent(ctx, tx, orderID, model.OrderStatusCancelled, &note); err != nil {
		return nil, fmt.Errorf("failed to record cancellation event: %w", err)
	}

	if err = events.Insert(ctx, tx, s.eventTopic, events.OrderEvent{
		Type:        events.TypeOrderCancelled,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Payload:     map[string]any{"refunded": wasPaid},
	}); err != nil {
		return nil, fmt.Errorf("failed to record cancellation event: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Bool("refunded", wasPaid).
		Msg("order cancelled")

	return s.GetByID(ctx, orderID)
}

// UpdateStatus advances the order status subject to the transition table.
func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, req *model.UpdateStatusRequest) (detail *model.OrderDetail, err error) {
	if !model.ValidOrderStatus(req.Status) {
		return nil, model.NewDomainError(model.ErrCodeValidation, fmt.Sprintf("unknown order status %q", req.Status))
	}

	order, _, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if !model.CanTransition(order.Status, req.Status) {
		return nil, &model.InvalidTransitionError{From: order.Status, To: req.Status}
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.SetStatus(ctx, tx, orderID, req.Status, req.TrackingNumber); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err = s.orderRepo.AppendEvent(ctx, tx, orderID, req.Status, req.Note); err != nil {
		return nil, fmt.Errorf("failed to record status event: %w", err)
	}

	if req.Status == model.OrderStatusShipped {
		payload := map[string]any{}
		if req.TrackingNumber != nil {
			payload["tracking_number"] = *req.TrackingNumber
		}
		if err = events.Insert(ctx, tx, s.eventTopic, events.OrderEvent{
			Type:        events.TypeOrderShipped,
			OrderID:     order.ID.String(),
			OrderNumber: order.OrderNumber,
			Payload:     payload,
		}); err != nil {
			return nil, fmt.Errorf("failed to record status event: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("from", string(order.Status)).
		Str("to", string(req.Status)).
		Msg("order status updated")

	return s.GetByID(ctx, orderID)
}
