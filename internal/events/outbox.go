package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Order lifecycle event types written to the outbox.
const (
	TypeOrderCreated   = "order.created"
	TypeOrderPaid      = "order.paid"
	TypeOrderCancelled = "order.cancelled"
	TypeOrderShipped   = "order.shipped"
)

// OrderEvent is the payload published for order lifecycle changes.
type OrderEvent struct {
	EventID     string         `json:"event_id"`
	Type        string         `json:"type"`
	OrderID     string         `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Record is one outbox row. Rows are written in the same transaction as the
// business change and published asynchronously by the dispatcher.
type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// execer is satisfied by *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Insert writes an order event to the outbox, keyed by order id so a
// partition sees each order's events in sequence.
func Insert(ctx context.Context, q execer, topic string, event OrderEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode outbox event: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		event.EventID, topic, event.OrderID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// FetchPending returns up to limit unsent outbox rows, oldest first.
func FetchPending(ctx context.Context, pool *pgxpool.Pool, limit int) ([]Record, error) {
	rows, err := pool.Query(ctx,
		`SELECT id, event_id, topic, key, payload, created_at, sent_at
		 FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// MarkSent stamps an outbox row as published.
func MarkSent(ctx context.Context, pool *pgxpool.Pool, id int64) error {
	if _, err := pool.Exec(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to mark outbox row sent: %w", err)
	}
	return nil
}
