package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aryankhatri/food-ordering-platform/internal/models"
	"github.com/aryankhatri/food-ordering-platform/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) CreateCart(ctx context.Context, cart *models.Cart) error {
	args := m.Called(ctx, cart)

	return args.Error(0)
}

func (m *MockCartRepository) GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, id)

	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCartRepository) FindActiveCartByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, customerID)

	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCartRepository) FindCartByGuestToken(ctx context.Context, token string) (*models.Cart, error) {
	args := m.Called(ctx, token)

	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCartRepository) FindActiveCartByGuestToken(ctx context.Context, token string) (*models.Cart, error) {
	args := m.Called(ctx, token)

	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCartRepository) ReactivateGuestCart(ctx context.Context, cartID, enterpriseID uuid.UUID, expiresAt time.Time) error {
	args := m.Called(ctx, cartID, enterpriseID, expiresAt)

	return args.Error(0)
}

func (m *MockCartRepository) AssignCartToCustomer(ctx context.Context, cartID, customerID uuid.UUID) error {
	args := m.Called(ctx, cartID, customerID)

	return args.Error(0)
}

func (m *MockCartRepository) UpsertItem(ctx context.Context, item *models.CartItem) (int, error) {
	args := m.Called(ctx, item)

	return args.Int(0), args.Error(1)
}

func (m *MockCartRepository) UpdateItemQuantity(ctx context.Context, cartID, foodID uuid.UUID, quantity int) (bool, error) {
	args := m.Called(ctx, cartID, foodID, quantity)

	return args.Bool(0), args.Error(1)
}

func (m *MockCartRepository) DeleteItem(ctx context.Context, cartID, foodID uuid.UUID) error {
	args := m.Called(ctx, cartID, foodID)

	return args.Error(0)
}

func (m *MockCartRepository) GetItem(ctx context.Context, cartID, foodID uuid.UUID) (*models.CartItem, error) {
	args := m.Called(ctx, cartID, foodID)

	if item, ok := args.Get(0).(*models.CartItem); ok {
		return item, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCartRepository) GetItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	args := m.Called(ctx, cartID)

	if items, ok := args.Get(0).([]models.CartItem); ok {
		return items, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCartRepository) GetActiveItemsByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CustomerCartItem, error) {
	args := m.Called(ctx, customerID)

	if items, ok := args.Get(0).([]models.CustomerCartItem); ok {
		return items, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCartRepository) AbandonCart(ctx context.Context, cartID uuid.UUID) error {
	args := m.Called(ctx, cartID)

	return args.Error(0)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetCustomerByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Customer, error) {
	args := m.Called(ctx, accountID)

	if customer, ok := args.Get(0).(*models.Customer); ok {
		return customer, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCatalogRepository) GetCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	args := m.Called(ctx, id)

	if customer, ok := args.Get(0).(*models.Customer); ok {
		return customer, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCatalogRepository) GetFoodByID(ctx context.Context, id uuid.UUID) (*models.Food, error) {
	args := m.Called(ctx, id)

	if food, ok := args.Get(0).(*models.Food); ok {
		return food, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCatalogRepository) GetFoodsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Food, error) {
	args := m.Called(ctx, ids)

	if foods, ok := args.Get(0).(map[uuid.UUID]models.Food); ok {
		return foods, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCatalogRepository) GetEnterpriseByID(ctx context.Context, id uuid.UUID) (*models.Enterprise, error) {
	args := m.Called(ctx, id)

	if enterprise, ok := args.Get(0).(*models.Enterprise); ok {
		return enterprise, args.Error(1)
	}

	return nil, args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrderWithDetails(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)

	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)

	if order, ok := args.Get(0).(*models.Order); ok {
		return order, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockOrderRepository) FindRecentConfirmedOrder(ctx context.Context, customerID uuid.UUID, totalAmount float64, window time.Duration) (*models.Order, error) {
	args := m.Called(ctx, customerID, totalAmount, window)

	if order, ok := args.Get(0).(*models.Order); ok {
		return order, args.Error(1)
	}

	return nil, args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)

	return args.Error(0)
}

func (m *MockPaymentRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Payment, error) {
	args := m.Called(ctx, paymentIntentID)

	if payment, ok := args.Get(0).(*models.Payment); ok {
		return payment, args.Error(1)
	}

	return nil, args.Error(1)
}

type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) FindOrCreateForPeriod(ctx context.Context, enterpriseID uuid.UUID, periodStart, periodEnd time.Time) (*models.Settlement, error) {
	args := m.Called(ctx, enterpriseID, periodStart, periodEnd)

	if settlement, ok := args.Get(0).(*models.Settlement); ok {
		return settlement, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockSettlementRepository) AttachOrder(ctx context.Context, settlementID uuid.UUID, order *models.Order) (bool, error) {
	args := m.Called(ctx, settlementID, order)

	return args.Bool(0), args.Error(1)
}

func (m *MockSettlementRepository) RecomputeNetPayout(ctx context.Context, settlementID uuid.UUID) (float64, error) {
	args := m.Called(ctx, settlementID)

	return args.Get(0).(float64), args.Error(1)
}

type MockStripeClient struct {
	mock.Mock
}

func (m *MockStripeClient) RetrieveConfirmation(ctx context.Context, sessionID string) (*models.PaymentConfirmation, error) {
	args := m.Called(ctx, sessionID)

	if confirmation, ok := args.Get(0).(*models.PaymentConfirmation); ok {
		return confirmation, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockStripeClient) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	args := m.Called(payload, signature)

	return args.Get(0).(stripe.Event), args.Error(1)
}

type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendOrderConfirmation(to, customerName, orderID string, totalAmount float64) error {
	args := m.Called(to, customerName, orderID, totalAmount)

	return args.Error(0)
}

// fakeCache is an in-memory Cache used to observe the snapshot and identity
// keys a service writes, including the TTLs it chose. Errors can be injected
// to exercise the cache-failure paths.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration

	getErr error
	setErr error
	delErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeCache) Get(_ context.Context, key string, value any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return false, f.getErr
	}

	data, ok := f.data[key]
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}

	return true, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	f.data[key] = data
	f.ttls[key] = ttl

	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.delErr != nil {
		return f.delErr
	}

	delete(f.data, key)
	delete(f.ttls, key)

	return nil
}

func (f *fakeCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[key]; ok {
		f.ttls[key] = ttl
	}

	return nil
}

func (f *fakeCache) Close() error {
	return nil
}

func (f *fakeCache) seed(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, _ := json.Marshal(value)
	f.data[key] = data
}

func (f *fakeCache) contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.data[key]

	return ok
}

func (f *fakeCache) ttlOf(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ttls[key]
}
