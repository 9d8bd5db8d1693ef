package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/auth"
	apperrors "storefront/internal/errors"
	"storefront/internal/model"
	"storefront/internal/repository"
)

func catalog() []model.Product {
	return []model.Product{
		{ID: 1, Name: "A", Price: decimal.NewFromInt(10), Stock: 5},
		{ID: 2, Name: "B", Price: decimal.NewFromInt(20), Stock: 2},
	}
}

type orderFixture struct {
	orders   *MockOrderRepository
	products *MockProductRepository
	users    *MockUserRepository
	hook     *logtest.Hook
	service  OrderService
}

func newOrderFixture() *orderFixture {
	log, hook := logtest.NewNullLogger()
	f := &orderFixture{
		orders:   new(MockOrderRepository),
		products: new(MockProductRepository),
		users:    new(MockUserRepository),
		hook:     hook,
	}
	f.service = NewOrderService(f.orders, f.products, f.users, nil, log)
	return f
}

func TestOrderService_CreateOrder_ComputesTotal(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, uint(2)).Return(&model.User{ID: 2, Email: "user@example.com"}, nil)
	f.products.On("FindByIDs", mock.Anything, []uint{1, 2}).Return(catalog(), nil)

	f.orders.On("CreateWithItems", mock.Anything, mock.AnythingOfType("*model.Order"), mock.AnythingOfType("[]model.OrderItem")).
		Run(func(args mock.Arguments) {
			committed := args.Get(1).(*model.Order)
			committed.ID = 30
			committed.Items = args.Get(2).([]model.OrderItem)
		}).
		Return(nil)
	f.orders.On("FindByIDForUser", mock.Anything, uint(30), uint(2)).Return(nil, errors.New("replica lag"))

	order, err := f.service.CreateOrder(context.Background(), customer, []model.CartItem{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 2},
	})

	require.NoError(t, err)
	assert.Equal(t, "70.00", order.Total.StringFixed(2))
	assert.Equal(t, uint(2), order.UserID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "A", order.Items[0].Product.Name)
	assert.True(t, order.Items[1].UnitPrice.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, order.User)
	assert.Equal(t, "user@example.com", order.User.Email)

	var messages []string
	for _, entry := range f.hook.AllEntries() {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "order created")
	assert.Contains(t, messages, "reload created order")

	f.orders.AssertExpectations(t)
}

func TestOrderService_CreateOrder_RejectsShortStockBeforeWriting(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, uint(2)).Return(&model.User{ID: 2}, nil)
	f.products.On("FindByIDs", mock.Anything, []uint{1, 2}).Return(catalog(), nil)

	order, err := f.service.CreateOrder(context.Background(), customer, []model.CartItem{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 3},
	})

	assert.Nil(t, order)
	require.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	var stockErr *apperrors.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, uint(2), stockErr.ProductID)
	assert.Equal(t, "B", stockErr.Name)
	assert.Equal(t, 2, stockErr.Available)
	f.orders.AssertNotCalled(t, "CreateWithItems", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrder_SumsRepeatedProducts(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, uint(2)).Return(&model.User{ID: 2}, nil)
	f.products.On("FindByIDs", mock.Anything, []uint{2}).Return(catalog()[1:], nil)

	_, err := f.service.CreateOrder(context.Background(), customer, []model.CartItem{
		{ProductID: 2, Quantity: 1},
		{ProductID: 2, Quantity: 2},
	})

	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	f.orders.AssertNotCalled(t, "CreateWithItems", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrder_LostRaceInsideTransaction(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, uint(2)).Return(&model.User{ID: 2}, nil)
	f.products.On("FindByIDs", mock.Anything, []uint{1}).Return(catalog()[:1], nil)
	f.orders.On("CreateWithItems", mock.Anything, mock.Anything, mock.Anything).
		Return(&apperrors.InsufficientStockError{ProductID: 1, Requested: 5})

	_, err := f.service.CreateOrder(context.Background(), customer, []model.CartItem{{ProductID: 1, Quantity: 5}})

	var stockErr *apperrors.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "A", stockErr.Name)
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)
}

func TestOrderService_CreateOrder_InvalidCarts(t *testing.T) {
	tests := []struct {
		name          string
		identity      auth.Identity
		cart          []model.CartItem
		setup         func(*orderFixture)
		expectedError error
	}{
		{
			name:          "anonymous",
			cart:          []model.CartItem{{ProductID: 1, Quantity: 1}},
			setup:         func(*orderFixture) {},
			expectedError: apperrors.ErrUnauthenticated,
		},
		{
			name:          "empty cart",
			identity:      customer,
			setup:         func(*orderFixture) {},
			expectedError: apperrors.ErrInvalidInput,
		},
		{
			name:          "zero quantity",
			identity:      customer,
			cart:          []model.CartItem{{ProductID: 1, Quantity: 0}},
			setup:         func(*orderFixture) {},
			expectedError: apperrors.ErrInvalidInput,
		},
		{
			name:          "quantity above the cap",
			identity:      customer,
			cart:          []model.CartItem{{ProductID: 1, Quantity: model.MaxQuantity + 1}},
			setup:         func(*orderFixture) {},
			expectedError: apperrors.ErrInvalidInput,
		},
		{
			name:     "repeated lines that wrap around",
			identity: customer,
			cart: []model.CartItem{
				{ProductID: 1, Quantity: 6148914691236517206},
				{ProductID: 1, Quantity: 6148914691236517206},
				{ProductID: 1, Quantity: 6148914691236517206},
			},
			setup:         func(*orderFixture) {},
			expectedError: apperrors.ErrInvalidInput,
		},
		{
			name:          "repeated lines past the cap",
			identity:      customer,
			cart:          []model.CartItem{{ProductID: 1, Quantity: model.MaxQuantity}, {ProductID: 1, Quantity: 1}},
			setup:         func(*orderFixture) {},
			expectedError: apperrors.ErrInvalidInput,
		},
		{
			name:     "total beyond what an order can hold",
			identity: customer,
			cart:     []model.CartItem{{ProductID: 5, Quantity: 1000}},
			setup: func(f *orderFixture) {
				f.users.On("FindByID", mock.Anything, uint(2)).Return(&model.User{ID: 2}, nil)
				f.products.On("FindByIDs", mock.Anything, []uint{5}).Return([]model.Product{
					{ID: 5, Name: "Yacht", Price: decimal.RequireFromString("9999999999.99"), Stock: 5000},
				}, nil)
			},
			expectedError: apperrors.ErrInvalidInput,
		},
		{
			name:          "missing product id",
			identity:      customer,
			cart:          []model.CartItem{{Quantity: 1}},
			setup:         func(*orderFixture) {},
			expectedError: apperrors.ErrInvalidInput,
		},
		{
			name:     "deleted purchaser",
			identity: customer,
			cart:     []model.CartItem{{ProductID: 1, Quantity: 1}},
			setup: func(f *orderFixture) {
				f.users.On("FindByID", mock.Anything, uint(2)).Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: apperrors.ErrUnauthenticated,
		},
		{
			name:     "unknown product",
			identity: customer,
			cart:     []model.CartItem{{ProductID: 99, Quantity: 1}},
			setup: func(f *orderFixture) {
				f.users.On("FindByID", mock.Anything, uint(2)).Return(&model.User{ID: 2}, nil)
				f.products.On("FindByIDs", mock.Anything, []uint{99}).Return([]model.Product{}, nil)
			},
			expectedError: apperrors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			tt.setup(f)

			order, err := f.service.CreateOrder(context.Background(), tt.identity, tt.cart)

			assert.Nil(t, order)
			assert.ErrorIs(t, err, tt.expectedError)
			f.orders.AssertNotCalled(t, "CreateWithItems", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_GetOrder(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByIDForUser", mock.Anything, uint(8), uint(2)).Return(&model.Order{ID: 8, UserID: 2}, nil)
	f.orders.On("FindByIDForUser", mock.Anything, uint(9), uint(2)).Return(nil, gorm.ErrRecordNotFound)

	order, err := f.service.GetOrder(context.Background(), customer, 8)
	require.NoError(t, err)
	assert.Equal(t, uint(8), order.ID)

	_, err = f.service.GetOrder(context.Background(), customer, 9)
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)

	_, err = f.service.GetOrder(context.Background(), customer, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestOrderService_ListOrders(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("ListByUser", mock.Anything, uint(2)).Return([]model.Order{{ID: 4}, {ID: 3}}, nil)

	orders, err := f.service.ListOrders(context.Background(), customer)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	_, err = f.service.ListOrders(context.Background(), auth.Identity{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

// memoryStore applies orders with the same all-or-nothing conditional
// decrement the SQL repository performs.
type memoryStore struct {
	mu       sync.Mutex
	products map[uint]model.Product
	orders   []model.Order
}

func (s *memoryStore) CreateWithItems(_ context.Context, order *model.Order, items []model.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	demand := make(map[uint]int)
	for _, item := range items {
		demand[item.ProductID] += item.Quantity
	}
	for id, qty := range demand {
		if s.products[id].Stock < qty {
			return &apperrors.InsufficientStockError{ProductID: id, Requested: qty}
		}
	}
	for id, qty := range demand {
		p := s.products[id]
		p.Stock -= qty
		s.products[id] = p
	}
	order.ID = uint(len(s.orders) + 1)
	order.Items = items
	s.orders = append(s.orders, *order)
	return nil
}

func (s *memoryStore) FindByIDForUser(_ context.Context, id, userID uint) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id && o.UserID == userID {
			return &o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memoryStore) ListByUser(_ context.Context, userID uint) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type memoryCatalog struct {
	repository.ProductRepository
	store *memoryStore
}

func (c memoryCatalog) FindByIDs(_ context.Context, ids []uint) ([]model.Product, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	out := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.store.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryUsers struct {
	repository.UserRepository
}

func (memoryUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	return &model.User{ID: id}, nil
}

func TestOrderService_CreateOrder_ConcurrentBuyersOfLastUnit(t *testing.T) {
	store := &memoryStore{products: map[uint]model.Product{
		1: {ID: 1, Name: "Last lamp", Price: decimal.NewFromInt(15), Stock: 1},
	}}
	log := logrus.New()
	log.SetOutput(io.Discard)
	service := NewOrderService(store, memoryCatalog{store: store}, memoryUsers{}, nil, log)

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		shortages int
	)
	for i := 1; i <= buyers; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := service.CreateOrder(context.Background(), auth.Identity{ID: id}, []model.CartItem{{ProductID: 1, Quantity: 1}})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperrors.ErrInsufficientStock):
				shortages++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint(i))
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, buyers-1, shortages)
	assert.Equal(t, 0, store.products[1].Stock)
	assert.Len(t, store.orders, 1)
}
