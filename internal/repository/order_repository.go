package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateOrder inserts a new order within the provided transaction. A unique
// violation on order_number surfaces as an error; the caller decides whether
// to retry with a fresh number.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (
			id, order_number, user_id, email, phone,
			subtotal_cents, discount_cents, shipping_cents, total_cents, currency,
			status, payment_status, payment_session_id, payment_method, discount_code_id,
			shipping_first_name, shipping_last_name, shipping_phone, shipping_street,
			shipping_city, shipping_state, shipping_postal_code, shipping_country,
			notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $25)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.OrderNumber, order.UserID, order.Email, order.Phone,
		order.SubtotalCents, order.DiscountCents, order.ShippingCents, order.TotalCents, order.Currency,
		order.Status, order.PaymentStatus, order.PaymentSessionID, order.PaymentMethod, order.DiscountCodeID,
		order.ShippingAddress.FirstName, order.ShippingAddress.LastName, order.ShippingAddress.Phone,
		order.ShippingAddress.Street, order.ShippingAddress.City, order.ShippingAddress.State,
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country,
		order.Notes, order.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("order_number", order.OrderNumber).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple line items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, variant_id, name, sku, unit_price_cents, quantity, total_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, item.ID, item.OrderID, item.ProductID, item.VariantID,
			item.Name, item.SKU, item.UnitPriceCents, item.Quantity, item.TotalCents)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_id", items[i].ProductID.String()).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// AppendEvent appends a timeline entry for the order.
func (r *orderRepository) AppendEvent(ctx context.Context, q Querier, orderID uuid.UUID, status model.OrderStatus, note *string) error {
	query := `
		INSERT INTO order_events (id, order_id, status, note, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err := q.Exec(ctx, query, uuid.New(), orderID, status, note); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to append order event")
		return fmt.Errorf("failed to append order event: %w", err)
	}

	return nil
}

const orderColumns = `
	id, order_number, user_id, email, phone,
	subtotal_cents, discount_cents, shipping_cents, total_cents, currency,
	status, payment_status, payment_session_id, payment_method, discount_code_id,
	shipping_first_name, shipping_last_name, shipping_phone, shipping_street,
	shipping_city, shipping_state, shipping_postal_code, shipping_country,
	notes, tracking_number, paid_at, shipped_at, delivered_at, cancelled_at,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Email, &o.Phone,
		&o.SubtotalCents, &o.DiscountCents, &o.ShippingCents, &o.TotalCents, &o.Currency,
		&o.Status, &o.PaymentStatus, &o.PaymentSessionID, &o.PaymentMethod, &o.DiscountCodeID,
		&o.ShippingAddress.FirstName, &o.ShippingAddress.LastName, &o.ShippingAddress.Phone,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.Notes, &o.TrackingNumber, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID retrieves an order by its ID along with its line items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	orderQuery := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, orderQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, nil, fmt.Errorf("failed to query order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, product_id, variant_id, name, sku, unit_price_cents, quantity, total_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, itemsQuery, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order items")
		return nil, nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.Name, &item.SKU, &item.UnitPriceCents, &item.Quantity, &item.TotalCents)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return order, items, nil
}

// GetTimeline lists timeline entries newest first.
func (r *orderRepository) GetTimeline(ctx context.Context, orderID uuid.UUID) ([]model.OrderEvent, error) {
	query := `
		SELECT id, order_id, status, note, created_at
		FROM order_events
		WHERE order_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query order timeline")
		return nil, fmt.Errorf("failed to query order timeline: %w", err)
	}
	defer rows.Close()

	var events []model.OrderEvent
	for rows.Next() {
		var ev model.OrderEvent
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.Status, &ev.Note, &ev.CreatedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order event row")
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order event rows")
		return nil, fmt.Errorf("error iterating order events: %w", err)
	}

	return events, nil
}

// ListByUser lists a user's orders newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to query user orders")
		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// SetPaymentSession stores the external payment-session reference.
func (r *orderRepository) SetPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	query := `UPDATE orders SET payment_session_id = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, orderID, sessionID); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to set payment session")
		return fmt.Errorf("failed to set payment session: %w", err)
	}

	return nil
}

// MarkPaid flips the order to CONFIRMED/PAID iff payment status is still
// PENDING. The guard makes webhook redelivery idempotent: a second delivery
// matches zero rows and the caller short-circuits.
func (r *orderRepository) MarkPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, method string) (bool, error) {
	query := `
		UPDATE orders
		SET status = $2, payment_status = $3, payment_method = $4, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND payment_status = $5
	`

	tag, err := tx.Exec(ctx, query, orderID,
		model.OrderStatusConfirmed, model.PaymentStatusPaid, method, model.PaymentStatusPending)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark order paid")
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkPaymentFailed records a failed payment attempt. The order status is
// left untouched; only the payment status and audit trail change.
func (r *orderRepository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET payment_status = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = $3
	`

	if _, err := r.pool.Exec(ctx, query, orderID, model.PaymentStatusFailed, model.PaymentStatusPending); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark payment failed")
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}

	return nil
}

// MarkCancelled sets status CANCELLED, stamping cancelled_at.
func (r *orderRepository) MarkCancelled(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, refunded bool) error {
	paymentStatus := ""
	if refunded {
		paymentStatus = string(model.PaymentStatusRefunded)
	}

	query := `
		UPDATE orders
		SET status = $2,
			payment_status = CASE WHEN $3 <> '' THEN $3 ELSE payment_status END,
			cancelled_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, orderID, model.OrderStatusCancelled, paymentStatus); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark order cancelled")
		return fmt.Errorf("failed to mark order cancelled: %w", err)
	}

	return nil
}

// SetStatus updates the order status, stamping shipped_at/delivered_at and
// recording the tracking number where applicable. Transition validation
// happens in the service layer; this method only persists.
func (r *orderRepository) SetStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, trackingNumber *string) error {
	query := `
		UPDATE orders
		SET status = $2,
			tracking_number = COALESCE($3, tracking_number),
			shipped_at = CASE WHEN $2 = 'SHIPPED' THEN NOW() ELSE shipped_at END,
			delivered_at = CASE WHEN $2 = 'DELIVERED' THEN NOW() ELSE delivered_at END,
			updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, orderID, status, trackingNumber); err != nil {
		r.logger.Error().Err(err).
			Str("order_id", orderID.String()).
			Str("status", string(status)).
			Msg("failed to set order status")
		return fmt.Errorf("failed to set order status: %w", err)
	}

	return nil
}

// ExpireStalePending cancels orders still awaiting payment that were created
// before the cutoff. Each expired order gets a timeline entry.
func (r *orderRepository) ExpireStalePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin expiry transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	expire := `
		UPDATE orders
		SET status = $1, cancelled_at = NOW(), updated_at = NOW()
		WHERE status = $2 AND payment_status = $3 AND created_at < $4
		RETURNING id
	`

	rows, err := tx.Query(ctx, expire,
		model.OrderStatusCancelled, model.OrderStatusPending, model.PaymentStatusPending, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to expire stale orders")
		return nil, fmt.Errorf("failed to expire stale orders: %w", err)
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expired order id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired orders: %w", err)
	}

	if len(ids) > 0 {
		note := "checkout session expired"
		batch := &pgx.Batch{}
		for _, id := range ids {
			batch.Queue(
				`INSERT INTO order_events (id, order_id, status, note, created_at) VALUES ($1, $2, $3, $4, NOW())`,
				uuid.New(), id, model.OrderStatusCancelled, &note,
			)
		}
		results := tx.SendBatch(ctx, batch)
		for range ids {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return nil, fmt.Errorf("failed to record expiry event: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return nil, fmt.Errorf("failed to close expiry batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit expiry transaction")
		return nil, fmt.Errorf("failed to commit expiry: %w", err)
	}

	return ids, nil
}
