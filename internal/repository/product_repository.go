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

// productRepository implements ProductRepository using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

const productColumns = `id, name, sku, price_cents, quantity, allow_backorder, created_at, updated_at`

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p model.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SKU, &p.PriceCents, &p.Quantity, &p.AllowBackorder, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id.String()).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return &p, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.PriceCents, &p.Quantity, &p.AllowBackorder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// GetVariantsByIDs retrieves multiple product variants by their IDs.
func (r *productRepository) GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.ProductVariant, error) {
	if len(ids) == 0 {
		return []model.ProductVariant{}, nil
	}

	query := `
		SELECT id, product_id, name, price_cents, quantity, created_at
		FROM product_variants
		WHERE id = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query variants")
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []model.ProductVariant
	for rows.Next() {
		var v model.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.PriceCents, &v.Quantity, &v.CreatedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan variant row")
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating variant rows")
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return variants, nil
}

// DecrementStock performs a single conditional decrement so the quantity can
// never go below zero for non-backorderable products. A false return means
// the row exists but held less stock than requested.
func (r *productRepository) DecrementStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error) {
	var tagRows int64

	if variantID != nil {
		query := `
			UPDATE product_variants v
			SET quantity = v.quantity - $2
			FROM products p
			WHERE v.id = $1
			  AND p.id = v.product_id
			  AND (v.quantity >= $2 OR p.allow_backorder)
		`
		tag, err := tx.Exec(ctx, query, variantID, quantity)
		if err != nil {
			r.logger.Error().Err(err).Str("variant_id", variantID.String()).Msg("failed to decrement variant stock")
			return false, fmt.Errorf("failed to decrement variant stock: %w", err)
		}
		tagRows = tag.RowsAffected()
	} else {
		query := `
			UPDATE products
			SET quantity = quantity - $2, updated_at = NOW()
			WHERE id = $1
			  AND (quantity >= $2 OR allow_backorder)
		`
		tag, err := tx.Exec(ctx, query, productID, quantity)
		if err != nil {
			r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to decrement product stock")
			return false, fmt.Errorf("failed to decrement product stock: %w", err)
		}
		tagRows = tag.RowsAffected()
	}

	return tagRows == 1, nil
}

// RestoreStock increments stock for a cancelled paid order.
func (r *productRepository) RestoreStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variantID *uuid.UUID, quantity int) error {
	if variantID != nil {
		query := `UPDATE product_variants SET quantity = quantity + $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, query, variantID, quantity); err != nil {
			r.logger.Error().Err(err).Str("variant_id", variantID.String()).Msg("failed to restore variant stock")
			return fmt.Errorf("failed to restore variant stock: %w", err)
		}
		return nil
	}

	query := `UPDATE products SET quantity = quantity + $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.Exec(ctx, query, productID, quantity); err != nil {
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to restore product stock")
		return fmt.Errorf("failed to restore product stock: %w", err)
	}

	return nil
}
