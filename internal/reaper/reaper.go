package reaper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderExpirer is the slice of the order repository the reaper needs.
type OrderExpirer interface {
	ExpireStalePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// Reaper expires checkout sessions that were created but never paid. Orders
// still PENDING with a PENDING payment past the TTL are cancelled so their
// numbers stop occupying the open-orders view. Stock was never decremented
// for them, so there is nothing else to unwind.
type Reaper struct {
	orderRepo OrderExpirer
	ttl       time.Duration
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a new pending-order reaper.
func New(orderRepo OrderExpirer, ttl, interval time.Duration, logger zerolog.Logger) *Reaper {
	return &Reaper{
		orderRepo: orderRepo,
		ttl:       ttl,
		interval:  interval,
		logger:    logger.With().Str("component", "reaper").Logger(),
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info().
		Dur("ttl", r.ttl).
		Dur("interval", r.interval).
		Msg("reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires all stale pending orders once.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := r.now().Add(-r.ttl)

	expired, err := r.orderRepo.ExpireStalePending(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to expire stale pending orders")
		return
	}

	if len(expired) > 0 {
		r.logger.Info().
			Int("expired", len(expired)).
			Time("cutoff", cutoff).
			Msg("expired stale pending orders")
	}
}
