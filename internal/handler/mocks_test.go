package handler

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCartService is a mock implementation of service.CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) Items(ctx context.Context, identity model.Identity) ([]model.CartItem, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartItem), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, identity model.Identity, req model.CartItemRequest) (*model.CartItem, error) {
	args := m.Called(ctx, identity, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CartItem), args.Error(1)
}

func (m *MockCartService) UpdateItemQuantity(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID, quantity int) error {
	args := m.Called(ctx, identity, productID, variantID, quantity)
	return args.Error(0)
}

func (m *MockCartService) RemoveItem(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID) error {
	args := m.Called(ctx, identity, productID, variantID)
	return args.Error(0)
}

func (m *MockCartService) Clear(ctx context.Context, identity model.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockCartService) Merge(ctx context.Context, sessionID string, userID uuid.UUID) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

// MockCheckoutService is a mock implementation of service.CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Checkout(ctx context.Context, identity model.Identity, req *model.CheckoutRequest) (*model.CheckoutResponse, error) {
	args := m.Called(ctx, identity, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutResponse), args.Error(1)
}

// MockOrderService is a mock implementation of service.OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderDetail), args.Error(1)
}

func (m *MockOrderService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) FinalizeOrder(ctx context.Context, orderID uuid.UUID, paymentMethod string) error {
	args := m.Called(ctx, orderID, paymentMethod)
	return args.Error(0)
}

func (m *MockOrderService) RecordPaymentFailure(ctx context.Context, orderID uuid.UUID, reason string) error {
	args := m.Called(ctx, orderID, reason)
	return args.Error(0)
}

func (m *MockOrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason *string) (*model.OrderDetail, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderDetail), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, req *model.UpdateStatusRequest) (*model.OrderDetail, error) {
	args := m.Called(ctx, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderDetail), args.Error(1)
}
