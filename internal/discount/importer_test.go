package discount

import (
	"context"
	"testing"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

// MockLoader is a mock implementation of Loader.
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context, path string) ([]model.DiscountCode, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DiscountCode), args.Error(1)
}

func discountCode(code string, value int64) model.DiscountCode {
	return model.DiscountCode{
		ID:     uuid.New(),
		Code:   code,
		Type:   model.DiscountPercentage,
		Value:  decimal.NewFromInt(value),
		Active: true,
	}
}

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()
	loader := new(MockLoader)
	repo := new(MockDiscountRepository)

	loader.On("Load", ctx, "a.gz").Return([]model.DiscountCode{discountCode("SAVE10", 10)}, nil)
	loader.On("Load", ctx, "b.gz").Return([]model.DiscountCode{discountCode("SAVE20", 20)}, nil)
	repo.On("Upsert", ctx, mock.AnythingOfType("*model.DiscountCode")).Return(nil)

	importer := NewImporter(loader, repo, zerolog.Nop())
	count, err := importer.Import(ctx, []string{"a.gz", "b.gz"})

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	repo.AssertNumberOfCalls(t, "Upsert", 2)
}

func TestImporter_LaterFileWinsOnCollision(t *testing.T) {
	ctx := context.Background()
	loader := new(MockLoader)
	repo := new(MockDiscountRepository)

	loader.On("Load", ctx, "a.gz").Return([]model.DiscountCode{discountCode("SAVE10", 10)}, nil)
	loader.On("Load", ctx, "b.gz").Return([]model.DiscountCode{discountCode("SAVE10", 15)}, nil)

	var upserted *model.DiscountCode
	repo.On("Upsert", ctx, mock.AnythingOfType("*model.DiscountCode")).
		Run(func(args mock.Arguments) {
			upserted = args.Get(1).(*model.DiscountCode)
		}).Return(nil)

	importer := NewImporter(loader, repo, zerolog.Nop())
	count, err := importer.Import(ctx, []string{"a.gz", "b.gz"})

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NotNil(t, upserted)
	assert.True(t, upserted.Value.Equal(decimal.NewFromInt(15)))
}

func TestImporter_LoadFailureAbortsBeforeWrite(t *testing.T) {
	ctx := context.Background()
	loader := new(MockLoader)
	repo := new(MockDiscountRepository)

	loader.On("Load", ctx, "a.gz").Return([]model.DiscountCode{discountCode("SAVE10", 10)}, nil)
	loader.On("Load", ctx, "b.gz").Return(nil, assert.AnError)

	importer := NewImporter(loader, repo, zerolog.Nop())
	count, err := importer.Import(ctx, []string{"a.gz", "b.gz"})

	require.Error(t, err)
	assert.Equal(t, 0, count)
	repo.AssertNotCalled(t, "Upsert")
}

func TestImporter_NoFiles(t *testing.T) {
	importer := NewImporter(new(MockLoader), new(MockDiscountRepository), zerolog.Nop())
	count, err := importer.Import(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
