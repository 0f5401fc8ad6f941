package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	orderRepo    *MockOrderRepository
	productRepo  *MockProductRepository
	discountRepo *MockDiscountRepository
	cartRepo     *MockCartRepository
	gateway      *MockGateway
	notifier     *MockNotifier
	tx           *MockTx
	service      OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		orderRepo:    new(MockOrderRepository),
		productRepo:  new(MockProductRepository),
		discountRepo: new(MockDiscountRepository),
		cartRepo:     new(MockCartRepository),
		gateway:      new(MockGateway),
		notifier:     new(MockNotifier),
		tx:           new(MockTx),
	}
	f.service = NewOrderService(
		f.orderRepo, f.productRepo, f.discountRepo, f.cartRepo,
		f.gateway, f.notifier, "storefront.orders", zerolog.Nop(),
	)
	return f
}

func pendingOrder(id uuid.UUID) *model.Order {
	return &model.Order{
		ID:            id,
		OrderNumber:   "ORD-20250314-AB12",
		Email:         "customer@example.com",
		SubtotalCents: 10000,
		ShippingCents: 2500,
		TotalCents:    12500,
		Currency:      "usd",
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestListByUser_ClampsPagination(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()
	userID := uuid.New()

	// Oversized limit and negative offset collapse to the defaults.
	f.orderRepo.On("ListByUser", ctx, userID, 50, 0).
		Return([]model.Order{*pendingOrder(uuid.New())}, nil)

	orders, err := f.service.ListByUser(ctx, userID, 500, -1)

	require.NoError(t, err)
	assert.Len(t, orders, 1)
	f.orderRepo.AssertExpectations(t)
}

func TestFinalizeOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	productID := uuid.New()
	userID := uuid.New()
	discountID := uuid.New()

	order := pendingOrder(orderID)
	order.UserID = &userID
	order.DiscountCodeID = &discountID
	items := []model.OrderItem{
		{OrderID: orderID, ProductID: productID, SKU: "WID-1", Quantity: 2, UnitPriceCents: 5000, TotalCents: 10000},
	}

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, items, nil)
	f.orderRepo.On("BeginTx", ctx).Return(f.tx, nil)
	f.orderRepo.On("MarkPaid", ctx, f.tx, orderID, "card").Return(true, nil)
	f.productRepo.On("DecrementStock", ctx, f.tx, productID, (*uuid.UUID)(nil), 2).Return(true, nil)
	f.discountRepo.On("IncrementUsage", ctx, f.tx, discountID).Return(nil)
	f.cartRepo.On("ClearUserTx", ctx, f.tx, userID).Return(nil)
	f.orderRepo.On("AppendEvent", ctx, f.tx, orderID, model.OrderStatusConfirmed, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)
	f.notifier.On("SendOrderConfirmation", ctx, order, items).Return(nil)

	err := f.service.FinalizeOrder(ctx, orderID, "card")

	require.NoError(t, err)
	f.orderRepo.AssertExpectations(t)
	f.productRepo.AssertExpectations(t)
	f.discountRepo.AssertExpectations(t)
	f.cartRepo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestFinalizeOrder_IdempotentOnRedelivery(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	order := pendingOrder(orderID)
	order.Status = model.OrderStatusConfirmed
	order.PaymentStatus = model.PaymentStatusPaid

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, []model.OrderItem{}, nil)

	err := f.service.FinalizeOrder(ctx, orderID, "card")

	require.NoError(t, err)
	f.orderRepo.AssertNotCalled(t, "BeginTx")
	f.productRepo.AssertNotCalled(t, "DecrementStock")
	f.discountRepo.AssertNotCalled(t, "IncrementUsage")
}

func TestFinalizeOrder_ConcurrentDeliveryLosesRace(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	order := pendingOrder(orderID)

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, []model.OrderItem{}, nil)
	f.orderRepo.On("BeginTx", ctx).Return(f.tx, nil)
	f.orderRepo.On("MarkPaid", ctx, f.tx, orderID, "card").Return(false, nil)
	f.tx.On("Rollback", ctx).Return(nil)

	err := f.service.FinalizeOrder(ctx, orderID, "card")

	require.NoError(t, err)
	assert.True(t, f.tx.rolledBack)
	f.productRepo.AssertNotCalled(t, "DecrementStock")
}

func TestFinalizeOrder_StockShortfallStillFinalizes(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	productID := uuid.New()
	order := pendingOrder(orderID)
	items := []model.OrderItem{
		{OrderID: orderID, ProductID: productID, SKU: "WID-1", Quantity: 5, UnitPriceCents: 2000, TotalCents: 10000},
	}

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, items, nil)
	f.orderRepo.On("BeginTx", ctx).Return(f.tx, nil)
	f.orderRepo.On("MarkPaid", ctx, f.tx, orderID, "card").Return(true, nil)
	f.productRepo.On("DecrementStock", ctx, f.tx, productID, (*uuid.UUID)(nil), 5).Return(false, nil)
	f.orderRepo.On("AppendEvent", ctx, f.tx, orderID, model.OrderStatusConfirmed, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)
	f.notifier.On("SendOrderConfirmation", ctx, order, items).Return(nil)

	err := f.service.FinalizeOrder(ctx, orderID, "card")

	// A paid order is never failed for stock; the shortfall is flagged in
	// the timeline instead.
	require.NoError(t, err)
	assert.True(t, f.tx.committed)
	f.orderRepo.AssertNumberOfCalls(t, "AppendEvent", 2)
}

func TestFinalizeOrder_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	f.orderRepo.On("GetByID", ctx, orderID).Return(nil, nil, nil)

	err := f.service.FinalizeOrder(ctx, orderID, "card")

	require.Error(t, err)
	assert.Equal(t, model.ErrOrderNotFound, err)
}

func TestFinalizeOrder_NotificationFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	productID := uuid.New()
	order := pendingOrder(orderID)
	items := []model.OrderItem{
		{OrderID: orderID, ProductID: productID, SKU: "WID-1", Quantity: 1, UnitPriceCents: 10000, TotalCents: 10000},
	}

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, items, nil)
	f.orderRepo.On("BeginTx", ctx).Return(f.tx, nil)
	f.orderRepo.On("MarkPaid", ctx, f.tx, orderID, "card").Return(true, nil)
	f.productRepo.On("DecrementStock", ctx, f.tx, productID, (*uuid.UUID)(nil), 1).Return(true, nil)
	f.orderRepo.On("AppendEvent", ctx, f.tx, orderID, model.OrderStatusConfirmed, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)
	f.notifier.On("SendOrderConfirmation", ctx, order, items).Return(assert.AnError)

	err := f.service.FinalizeOrder(ctx, orderID, "card")

	require.NoError(t, err)
	assert.True(t, f.tx.committed)
}

func TestRecordPaymentFailure(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	order := pendingOrder(orderID)

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, []model.OrderItem{}, nil)
	f.orderRepo.On("BeginTx", ctx).Return(f.tx, nil)
	f.orderRepo.On("MarkPaymentFailed", ctx, orderID).Return(nil)
	f.orderRepo.On("AppendEvent", ctx, f.tx, orderID, model.OrderStatusPending, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)

	err := f.service.RecordPaymentFailure(ctx, orderID, "card_declined")

	require.NoError(t, err)
	f.orderRepo.AssertExpectations(t)
}

func TestCancel_PendingUnpaidOrder(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	productID := uuid.New()
	order := pendingOrder(orderID)
	items := []model.OrderItem{
		{OrderID: orderID, ProductID: productID, SKU: "WID-1", Quantity: 2, UnitPriceCents: 5000, TotalCents: 10000},
	}
	cancelled := *order
	cancelled.Status = model.OrderStatusCancelled

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, items, nil).Once()
	f.orderRepo.On("BeginTx", ctx).Return(f.tx, nil)
	f.orderRepo.On("MarkCancelled", ctx, f.tx, orderID, false).Return(nil)
	f.orderRepo.On("AppendEvent", ctx, f.tx, orderID, model.OrderStatusCancelled, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)
	f.orderRepo.On("GetByID", ctx, orderID).Return(&cancelled, items, nil).Once()
	f.orderRepo.On("GetTimeline", ctx, orderID).Return([]model.OrderEvent{}, nil)

	detail, err := f.service.Cancel(ctx, orderID, nil)

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, model.OrderStatusCancelled, detail.Order.Status)

	// Stock was never decremented for an unpaid order, so nothing to restore
	// and no refund to issue.
	f.gateway.AssertNotCalled(t, "Refund")
	f.productRepo.AssertNotCalled(t, "RestoreStock")
}

func TestCancel_PaidOrderRefundsFirst(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	productID := uuid.New()
	sessionID := "cs_paid"

	order := pendingOrder(orderID)
	order.Status = model.OrderStatusConfirmed
	order.PaymentStatus = model.PaymentStatusPaid
	order.PaymentSessionID = &sessionID
	items := []model.OrderItem{
		{OrderID: orderID, ProductID: productID, SKU: "WID-1", Quantity: 2, UnitPriceCents: 5000, TotalCents: 10000},
	}
	cancelled := *order
	cancelled.Status = model.OrderStatusCancelled
	cancelled.PaymentStatus = model.PaymentStatusRefunded

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, items, nil).Once()
	f.gateway.On("Refund", ctx, sessionID).Return(nil)
	f.orderRepo.On("BeginTx", ctx).Return(f.tx, nil)
	f.orderRepo.On("MarkCancelled", ctx, f.tx, orderID, true).Return(nil)
	f.productRepo.On("RestoreStock", ctx, f.tx, productID, (*uuid.UUID)(nil), 2).Return(nil)
	f.orderRepo.On("AppendEvent", ctx, f.tx, orderID, model.OrderStatusCancelled, mock.Anything).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)
	f.orderRepo.On("GetByID", ctx, orderID).Return(&cancelled, items, nil).Once()
	f.orderRepo.On("GetTimeline", ctx, orderID).Return([]model.OrderEvent{}, nil)

	detail, err := f.service.Cancel(ctx, orderID, nil)

	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRefunded, detail.Order.PaymentStatus)
	f.gateway.AssertExpectations(t)
	f.productRepo.AssertExpectations(t)
}

func TestCancel_RefundFailureAbortsCancellation(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	sessionID := "cs_paid"

	order := pendingOrder(orderID)
	order.Status = model.OrderStatusConfirmed
	order.PaymentStatus = model.PaymentStatusPaid
	order.PaymentSessionID = &sessionID

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, []model.OrderItem{}, nil)
	f.gateway.On("Refund", ctx, sessionID).Return(&model.GatewayError{Op: "refund", Err: assert.AnError})

	detail, err := f.service.Cancel(ctx, orderID, nil)

	require.Error(t, err)
	var gwErr *model.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Nil(t, detail)

	// The refund must succeed before anything is persisted.
	f.orderRepo.AssertNotCalled(t, "BeginTx")
	f.orderRepo.AssertNotCalled(t, "MarkCancelled")
}

func TestCancel_ShippedOrderRejected(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	order := pendingOrder(orderID)
	order.Status = model.OrderStatusShipped
	order.PaymentStatus = model.PaymentStatusPaid

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, []model.OrderItem{}, nil)

	detail, err := f.service.Cancel(ctx, orderID, nil)

	require.Error(t, err)
	assert.Equal(t, model.ErrOrderNotCancellable, err)
	assert.Nil(t, detail)
	f.gateway.AssertNotCalled(t, "Refund")
}

func TestUpdateStatus_ValidTransition(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	tracking := "TRK123"

	order := pendingOrder(orderID)
	order.Status = model.OrderStatusConfirmed
	order.PaymentStatus = model.PaymentStatusPaid
	shipped := *order
	shipped.Status = model.OrderStatusShipped
	shipped.TrackingNumber = &tracking

	req := &model.UpdateStatusRequest{Status: model.OrderStatusShipped, TrackingNumber: &tracking}

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, []model.OrderItem{}, nil).Once()
	f.orderRepo.On("BeginTx", ctx).Return(f.tx, nil)
	f.orderRepo.On("SetStatus", ctx, f.tx, orderID, model.OrderStatusShipped, &tracking).Return(nil)
	f.orderRepo.On("AppendEvent", ctx, f.tx, orderID, model.OrderStatusShipped, (*string)(nil)).Return(nil)
	f.tx.On("Commit", ctx).Return(nil)
	f.orderRepo.On("GetByID", ctx, orderID).Return(&shipped, []model.OrderItem{}, nil).Once()
	f.orderRepo.On("GetTimeline", ctx, orderID).Return([]model.OrderEvent{}, nil)

	detail, err := f.service.UpdateStatus(ctx, orderID, req)

	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, detail.Order.Status)
	require.NotNil(t, detail.Order.TrackingNumber)
	assert.Equal(t, tracking, *detail.Order.TrackingNumber)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	order := pendingOrder(orderID)
	order.Status = model.OrderStatusDelivered

	f.orderRepo.On("GetByID", ctx, orderID).Return(order, []model.OrderItem{}, nil)

	detail, err := f.service.UpdateStatus(ctx, orderID, &model.UpdateStatusRequest{Status: model.OrderStatusShipped})

	require.Error(t, err)
	var transErr *model.InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, model.OrderStatusDelivered, transErr.From)
	assert.Equal(t, model.OrderStatusShipped, transErr.To)
	assert.Nil(t, detail)
	f.orderRepo.AssertNotCalled(t, "BeginTx")
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	detail, err := f.service.UpdateStatus(ctx, uuid.New(), &model.UpdateStatusRequest{Status: "TELEPORTED"})

	require.Error(t, err)
	var domErr *model.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, model.ErrCodeValidation, domErr.Code)
	assert.Nil(t, detail)
	f.orderRepo.AssertNotCalled(t, "GetByID")
}

func TestGetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	orderID := uuid.New()
	f.orderRepo.On("GetByID", ctx, orderID).Return(nil, nil, nil)

	detail, err := f.service.GetByID(ctx, orderID)

	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from    model.OrderStatus
		to      model.OrderStatus
		allowed bool
	}{
		{model.OrderStatusPending, model.OrderStatusConfirmed, true},
		{model.OrderStatusPending, model.OrderStatusCancelled, true},
		{model.OrderStatusPending, model.OrderStatusShipped, false},
		{model.OrderStatusConfirmed, model.OrderStatusProcessing, true},
		{model.OrderStatusConfirmed, model.OrderStatusShipped, true},
		{model.OrderStatusConfirmed, model.OrderStatusCancelled, true},
		{model.OrderStatusProcessing, model.OrderStatusShipped, true},
		{model.OrderStatusProcessing, model.OrderStatusCancelled, false},
		{model.OrderStatusShipped, model.OrderStatusDelivered, true},
		{model.OrderStatusShipped, model.OrderStatusCancelled, false},
		{model.OrderStatusDelivered, model.OrderStatusShipped, false},
		{model.OrderStatusCancelled, model.OrderStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, model.CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}
