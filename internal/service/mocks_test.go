package service

import (
	"context"
	"time"

	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.ProductVariant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProductVariant), args.Error(1)
}

func (m *MockProductRepository) DecrementStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error) {
	args := m.Called(ctx, tx, productID, variantID, quantity)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) RestoreStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variantID *uuid.UUID, quantity int) error {
	args := m.Called(ctx, tx, productID, variantID, quantity)
	return args.Error(0)
}

// MockCartRepository is a mock implementation of CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) Items(ctx context.Context, identity model.Identity) ([]model.CartItem, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartItem), args.Error(1)
}

func (m *MockCartRepository) Upsert(ctx context.Context, identity model.Identity, req model.CartItemRequest) (*model.CartItem, error) {
	args := m.Called(ctx, identity, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CartItem), args.Error(1)
}

func (m *MockCartRepository) SetQuantity(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID, quantity int) (bool, error) {
	args := m.Called(ctx, identity, productID, variantID, quantity)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartRepository) Remove(ctx context.Context, identity model.Identity, productID uuid.UUID, variantID *uuid.UUID) error {
	args := m.Called(ctx, identity, productID, variantID)
	return args.Error(0)
}

func (m *MockCartRepository) Clear(ctx context.Context, identity model.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockCartRepository) ClearUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	args := m.Called(ctx, tx, userID)
	return args.Error(0)
}

func (m *MockCartRepository) Merge(ctx context.Context, sessionID string, userID uuid.UUID) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

// MockDiscountRepository is a mock implementation of DiscountRepository.
type MockDiscountRepository struct {
	mock.Mock
}

func (m *MockDiscountRepository) GetByCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiscountCode), args.Error(1)
}

func (m *MockDiscountRepository) IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockDiscountRepository) Upsert(ctx context.Context, code *model.DiscountCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	args := m.Called(ctx, tx, items)
	return args.Error(0)
}

func (m *MockOrderRepository) AppendEvent(ctx context.Context, q repository.Querier, orderID uuid.UUID, status model.OrderStatus, note *string) error {
	args := m.Called(ctx, q, orderID, status, note)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	var items []model.OrderItem
	if args.Get(1) != nil {
		items = args.Get(1).([]model.OrderItem)
	}
	return args.Get(0).(*model.Order), items, args.Error(2)
}

func (m *MockOrderRepository) GetTimeline(ctx context.Context, orderID uuid.UUID) ([]model.OrderEvent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OrderEvent), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) SetPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	args := m.Called(ctx, orderID, sessionID)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, method string) (bool, error) {
	args := m.Called(ctx, tx, orderID, method)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkCancelled(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, refunded bool) error {
	args := m.Called(ctx, tx, orderID, refunded)
	return args.Error(0)
}

func (m *MockOrderRepository) SetStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, trackingNumber *string) error {
	args := m.Called(ctx, tx, orderID, status, trackingNumber)
	return args.Error(0)
}

func (m *MockOrderRepository) ExpireStalePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockGateway is a mock implementation of the payment gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, req *payment.SessionRequest) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) EnsureCoupon(ctx context.Context, coupon payment.CouponParams) (string, error) {
	args := m.Called(ctx, coupon)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// MockNotifier is a mock implementation of the notification sender.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendOrderConfirmation(ctx context.Context, order *model.Order, items []model.OrderItem) error {
	args := m.Called(ctx, order, items)
	return args.Error(0)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
