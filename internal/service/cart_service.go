package service

import (
	"context"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, logger zerolog.Logger) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		logger:      logger.With().Str("service", "cart").Logger(),
	}
}

// Items lists the cart for the identity.
func (s *cartService) Items(ctx context.Context, identity model.Identity) ([]model.CartItem, error) {
	if !identity.Valid() {
		return nil, model.NewDomainError(model.ErrCodeValidation, "cart identity is required")
	}
	return s.cartRepo.Items(ctx, identity)
}

// AddItem adds a (product, variant, quantity) selection to the cart after
// verifying the product (and variant, when given) exists.
func (s *cartService) AddItem(ctx context.Context, identity model.Identity, req model.CartItemRequest) (*model.CartItem, error) {
	if !identity.Valid() {
		return nil, model.NewDomainError(model.ErrCodeValidation, "cart identity is required")
	}
	if req.Quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	if req.VariantID != nil {
		variants, err := s.productRepo.GetVariantsByIDs(ctx, []uuid.UUID{*req.VariantID})
		if err != nil {
			return nil, fmt.Errorf("failed to look up variant: %w", err)
		}
		if len(variants) == 0 || variants[0].ProductID != req.ProductID {
			return nil, model.ErrProductNotFound
		}
	}

	item, err := s.cartRepo.Upsert(ctx, identity, req)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	s.logger.Debug().
		Str("product_id", req.ProductID.String()).
		Int("quantity", item.Quantity).
		Msg("cart item added")

	return item, nil
}

// UpdateItemQuantity replaces the quantity of an existing row.
func (s *cartService) UpdateItemQuantity(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID, quantity int) error {
	if !identity.Valid() {
		return model.NewDomainError(model.ErrCodeValidation, "cart identity is required")
	}
	if quantity <= 0 {
		return model.ErrInvalidQuantity
	}

	found, err := s.cartRepo.SetQuantity(ctx, identity, productID, variantID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	if !found {
		return model.ErrProductNotFound
	}
	return nil
}

// RemoveItem deletes a single row.
func (s *cartService) RemoveItem(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID) error {
	if !identity.Valid() {
		return model.NewDomainError(model.ErrCodeValidation, "cart identity is required")
	}
	return s.cartRepo.Remove(ctx, identity, productID, variantID)
}

// Clear empties the cart.
func (s *cartService) Clear(ctx context.Context, identity model.Identity) error {
	if !identity.Valid() {
		return model.NewDomainError(model.ErrCodeValidation, "cart identity is required")
	}
	return s.cartRepo.Clear(ctx, identity)
}

// Merge folds an anonymous session cart into a user cart after login.
func (s *cartService) Merge(ctx context.Context, sessionID string, userID uuid.UUID) error {
	if sessionID == "" {
		return model.NewDomainError(model.ErrCodeValidation, "session id is required")
	}

	if err := s.cartRepo.Merge(ctx, sessionID, userID); err != nil {
		return fmt.Errorf("failed to merge carts: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Msg("session cart merged into user cart")

	return nil
}
