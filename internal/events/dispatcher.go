package events

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Publisher delivers a single event payload to the message broker.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// kafkaPublisher writes JSON events to a Kafka topic, partitioned by key so
// each order's events stay ordered.
type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a Kafka-backed publisher.
func NewKafkaPublisher(brokers []string, topic string) Publisher {
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// Dispatcher polls the outbox and publishes unsent rows. It runs until its
// context is cancelled. Publish failures leave the row unsent; the next
// sweep retries it.
type Dispatcher struct {
	pool      *pgxpool.Pool
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(pool *pgxpool.Pool, publisher Publisher, interval time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		pool:      pool,
		publisher: publisher,
		interval:  interval,
		batchSize: 100,
		logger:    logger.With().Str("component", "outbox-dispatcher").Logger(),
	}
}

// Run blocks, sweeping the outbox on every tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info().Dur("interval", d.interval).Msg("outbox dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.sweep(ctx); err != nil {
				d.logger.Error().Err(err).Msg("outbox sweep failed")
			}
		}
	}
}

// sweep publishes one batch of pending rows.
func (d *Dispatcher) sweep(ctx context.Context) error {
	records, err := FetchPending(ctx, d.pool, d.batchSize)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := d.publisher.Publish(ctx, rec.Key, rec.Payload); err != nil {
			d.logger.Warn().
				Err(err).
				Str("event_id", rec.EventID).
				Str("topic", rec.Topic).
				Msg("failed to publish outbox event, will retry")
			return nil
		}

		if err := MarkSent(ctx, d.pool, rec.ID); err != nil {
			return err
		}

		d.logger.Debug().
			Str("event_id", rec.EventID).
			Str("key", rec.Key).
			Msg("outbox event published")
	}

	return nil
}
