package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"storefront/internal/events"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher captures published messages in memory.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []events.OrderEvent
	fail     bool
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		return assert.AnError
	}

	var event events.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	p.messages = append(p.messages, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OrderEvent(nil), p.messages...)
}

func TestOutbox_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	ctx := context.Background()

	t.Run("Insert then FetchPending then MarkSent", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		orderID := uuid.NewString()
		require.NoError(t, events.Insert(ctx, testDB.Pool, "storefront.orders", events.OrderEvent{
			Type:        events.TypeOrderPaid,
			OrderID:     orderID,
			OrderNumber: "STF-20250314-0001",
		}))

		pending, err := events.FetchPending(ctx, testDB.Pool, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "storefront.orders", pending[0].Topic)
		assert.Equal(t, orderID, pending[0].Key)
		assert.Nil(t, pending[0].SentAt)

		require.NoError(t, events.MarkSent(ctx, testDB.Pool, pending[0].ID))

		pending, err = events.FetchPending(ctx, testDB.Pool, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("FetchPending returns oldest rows first", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		first := uuid.NewString()
		second := uuid.NewString()
		require.NoError(t, events.Insert(ctx, testDB.Pool, "storefront.orders", events.OrderEvent{
			Type: events.TypeOrderCreated, OrderID: first,
		}))
		require.NoError(t, events.Insert(ctx, testDB.Pool, "storefront.orders", events.OrderEvent{
			Type: events.TypeOrderPaid, OrderID: second,
		}))

		pending, err := events.FetchPending(ctx, testDB.Pool, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, first, pending[0].Key)
		assert.Equal(t, second, pending[1].Key)
	})

	t.Run("Dispatcher drains the outbox", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		orderID := uuid.NewString()
		require.NoError(t, events.Insert(ctx, testDB.Pool, "storefront.orders", events.OrderEvent{
			Type:    events.TypeOrderShipped,
			OrderID: orderID,
			Payload: map[string]any{"tracking_number": "TRK123"},
		}))

		publisher := &recordingPublisher{}
		dispatcher := events.NewDispatcher(testDB.Pool, publisher, 50*time.Millisecond, zerolog.Nop())

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			dispatcher.Run(runCtx)
			close(done)
		}()

		require.Eventually(t, func() bool {
			return len(publisher.published()) == 1
		}, 5*time.Second, 50*time.Millisecond)

		cancel()
		<-done

		got := publisher.published()[0]
		assert.Equal(t, events.TypeOrderShipped, got.Type)
		assert.Equal(t, orderID, got.OrderID)
		assert.Equal(t, "TRK123", got.Payload["tracking_number"])

		pending, err := events.FetchPending(ctx, testDB.Pool, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("Publish failure leaves the row for retry", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		require.NoError(t, events.Insert(ctx, testDB.Pool, "storefront.orders", events.OrderEvent{
			Type: events.TypeOrderCancelled, OrderID: uuid.NewString(),
		}))

		publisher := &recordingPublisher{fail: true}
		dispatcher := events.NewDispatcher(testDB.Pool, publisher, 50*time.Millisecond, zerolog.Nop())

		runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		dispatcher.Run(runCtx)

		pending, err := events.FetchPending(ctx, testDB.Pool, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}
