package repository

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// cartRepository implements CartRepository using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// identityClause returns the WHERE fragment and argument for an identity.
// The placeholder index is always $1.
func identityClause(identity model.Identity) (string, any) {
	if identity.UserID != nil {
		return "user_id = $1", *identity.UserID
	}
	return "session_id = $1", identity.SessionID
}

const cartColumns = `id, user_id, session_id, product_id, variant_id, quantity, created_at, updated_at`

// Items lists all cart items for the identity.
func (r *cartRepository) Items(ctx context.Context, identity model.Identity) ([]model.CartItem, error) {
	clause, arg := identityClause(identity)
	query := `SELECT ` + cartColumns + ` FROM cart_items WHERE ` + clause + ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query cart items")
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.SessionID, &item.ProductID, &item.VariantID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart item row")
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart item rows")
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// Upsert adds the requested quantity to an existing row or inserts a new one.
func (r *cartRepository) Upsert(ctx context.Context, identity model.Identity, req model.CartItemRequest) (*model.CartItem, error) {
	clause, arg := identityClause(identity)
	update := `
		UPDATE cart_items
		SET quantity = quantity + $4, updated_at = NOW()
		WHERE ` + clause + ` AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
		RETURNING ` + cartColumns

	var item model.CartItem
	err := r.pool.QueryRow(ctx, update, arg, req.ProductID, req.VariantID, req.Quantity).Scan(
		&item.ID, &item.UserID, &item.SessionID, &item.ProductID, &item.VariantID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
	)
	if err == nil {
		return &item, nil
	}
	if err != pgx.ErrNoRows {
		r.logger.Error().Err(err).Str("product_id", req.ProductID.String()).Msg("failed to update cart item")
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	now := time.Now()
	var sessionID *string
	if identity.SessionID != "" {
		sessionID = &identity.SessionID
	}
	insert := `
		INSERT INTO cart_items (id, user_id, session_id, product_id, variant_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + cartColumns

	err = r.pool.QueryRow(ctx, insert, uuid.New(), identity.UserID, sessionID, req.ProductID, req.VariantID, req.Quantity, now).Scan(
		&item.ID, &item.UserID, &item.SessionID, &item.ProductID, &item.VariantID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", req.ProductID.String()).Msg("failed to insert cart item")
		return nil, fmt.Errorf("failed to insert cart item: %w", err)
	}

	r.logger.Debug().Str("product_id", req.ProductID.String()).Int("quantity", req.Quantity).Msg("cart item added")

	return &item, nil
}

// SetQuantity replaces the quantity of an existing cart row.
func (r *cartRepository) SetQuantity(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error) {
	clause, arg := identityClause(identity)
	query := `
		UPDATE cart_items
		SET quantity = $4, updated_at = NOW()
		WHERE ` + clause + ` AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
	`

	tag, err := r.pool.Exec(ctx, query, arg, productID, variantID, quantity)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to set cart item quantity")
		return false, fmt.Errorf("failed to set cart item quantity: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Remove deletes a single (product, variant) row for the identity.
func (r *cartRepository) Remove(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID) error {
	clause, arg := identityClause(identity)
	query := `DELETE FROM cart_items WHERE ` + clause + ` AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3`

	if _, err := r.pool.Exec(ctx, query, arg, productID, variantID); err != nil {
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to remove cart item")
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	return nil
}

// Clear deletes every cart item for the identity.
func (r *cartRepository) Clear(ctx context.Context, identity model.Identity) error {
	clause, arg := identityClause(identity)
	query := `DELETE FROM cart_items WHERE ` + clause

	if _, err := r.pool.Exec(ctx, query, arg); err != nil {
		r.logger.Error().Err(err).Msg("failed to clear cart")
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

// ClearUserTx deletes a user's cart inside the provided transaction.
func (r *cartRepository) ClearUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE user_id = $1`

	if _, err := tx.Exec(ctx, query, userID); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to clear user cart")
		return fmt.Errorf("failed to clear user cart: %w", err)
	}

	return nil
}

// Merge moves an anonymous session cart into a user cart. Rows colliding on
// (product, variant) have their quantities summed; the session rows are then
// removed.
func (r *cartRepository) Merge(ctx context.Context, sessionID string, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin merge transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Fold colliding rows into the user cart.
	fold := `
		UPDATE cart_items u
		SET quantity = u.quantity + s.quantity, updated_at = NOW()
		FROM cart_items s
		WHERE u.user_id = $1
		  AND s.session_id = $2
		  AND u.product_id = s.product_id
		  AND u.variant_id IS NOT DISTINCT FROM s.variant_id
	`
	if _, err := tx.Exec(ctx, fold, userID, sessionID); err != nil {
		r.logger.Error().Err(err).Msg("failed to fold session cart into user cart")
		return fmt.Errorf("failed to merge cart: %w", err)
	}

	// Reassign the remaining session rows to the user.
	reassign := `
		UPDATE cart_items
		SET user_id = $1, session_id = NULL, updated_at = NOW()
		WHERE session_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM cart_items u
			WHERE u.user_id = $1
			  AND u.product_id = cart_items.product_id
			  AND u.variant_id IS NOT DISTINCT FROM cart_items.variant_id
		  )
	`
	if _, err := tx.Exec(ctx, reassign, userID, sessionID); err != nil {
		r.logger.Error().Err(err).Msg("failed to reassign session cart rows")
		return fmt.Errorf("failed to merge cart: %w", err)
	}

	// Drop whatever is left of the session cart.
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE session_id = $1`, sessionID); err != nil {
		r.logger.Error().Err(err).Msg("failed to delete session cart rows")
		return fmt.Errorf("failed to merge cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit merge transaction")
		return fmt.Errorf("failed to merge cart: %w", err)
	}

	r.logger.Info().Str("user_id", userID.String()).Msg("session cart merged into user cart")

	return nil
}
