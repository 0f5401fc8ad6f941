package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// discountRepository implements DiscountRepository using PostgreSQL.
type discountRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDiscountRepository creates a new PostgreSQL-backed discount repository.
func NewDiscountRepository(pool *pgxpool.Pool, logger zerolog.Logger) DiscountRepository {
	return &discountRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "discount").Logger(),
	}
}

const discountColumns = `id, code, type, value, min_order_cents, max_uses, used_count, starts_at, expires_at, active, created_at`

// GetByCode looks a discount code up case-insensitively.
func (r *discountRepository) GetByCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	query := `SELECT ` + discountColumns + ` FROM discount_codes WHERE code = $1`

	var d model.DiscountCode
	err := r.pool.QueryRow(ctx, query, model.NormalizeDiscountCode(code)).Scan(
		&d.ID, &d.Code, &d.Type, &d.Value, &d.MinOrderCents, &d.MaxUses, &d.UsedCount,
		&d.StartsAt, &d.ExpiresAt, &d.Active, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("code", code).Msg("discount code not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query discount code")
		return nil, fmt.Errorf("failed to query discount code: %w", err)
	}

	return &d, nil
}

// IncrementUsage bumps the usage counter by exactly one. Callers guard the
// increment with the order's payment-status compare-and-set so webhook
// redelivery cannot double-count.
func (r *discountRepository) IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE discount_codes SET used_count = used_count + 1 WHERE id = $1`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		r.logger.Error().Err(err).Str("discount_id", id.String()).Msg("failed to increment discount usage")
		return fmt.Errorf("failed to increment discount usage: %w", err)
	}

	return nil
}

// Upsert inserts or updates a code by its code string. Usage counters are
// preserved on update.
func (r *discountRepository) Upsert(ctx context.Context, d *model.DiscountCode) error {
	query := `
		INSERT INTO discount_codes (id, code, type, value, min_order_cents, max_uses, used_count, starts_at, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, NOW())
		ON CONFLICT (code) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			min_order_cents = EXCLUDED.min_order_cents,
			max_uses = EXCLUDED.max_uses,
			starts_at = EXCLUDED.starts_at,
			expires_at = EXCLUDED.expires_at,
			active = EXCLUDED.active
	`

	_, err := r.pool.Exec(ctx, query,
		d.ID, model.NormalizeDiscountCode(d.Code), d.Type, d.Value,
		d.MinOrderCents, d.MaxUses, d.StartsAt, d.ExpiresAt, d.Active,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("code", d.Code).Msg("failed to upsert discount code")
		return fmt.Errorf("failed to upsert discount code: %w", err)
	}

	return nil
}
