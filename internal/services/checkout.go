package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aryankhatri/food-ordering-platform/internal/api/middleware"
	"github.com/aryankhatri/food-ordering-platform/internal/cache"
	"github.com/aryankhatri/food-ordering-platform/internal/config"
	appErrors "github.com/aryankhatri/food-ordering-platform/internal/errors"
	"github.com/aryankhatri/food-ordering-platform/internal/models"
	repository "github.com/aryankhatri/food-ordering-platform/internal/repositories"
	"github.com/aryankhatri/food-ordering-platform/pkg/sendgrid"
	"github.com/aryankhatri/food-ordering-platform/pkg/stripe"
	"github.com/google/uuid"
)

// CheckoutService turns a paid gateway session into a confirmed order. The
// flow is guarded twice against replays (webhooks and user retries can both
// re-enter): a recent confirmed order with the same total is reused, and a
// payment row is keyed by the gateway's payment intent.
type CheckoutService struct {
	cartRepo       repository.CartRepository
	catalogRepo    repository.CatalogRepository
	orderRepo      repository.OrderRepository
	paymentRepo    repository.PaymentRepository
	settlementRepo repository.SettlementRepository
	cache          cache.Cache
	gateway        stripe.Client
	email          sendgrid.EmailService
	cartService    *CartService
	cartCfg        config.Cart
}

func NewCheckoutService(
	cartRepo repository.CartRepository,
	catalogRepo repository.CatalogRepository,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	settlementRepo repository.SettlementRepository,
	c cache.Cache,
	gateway stripe.Client,
	email sendgrid.EmailService,
	cartService *CartService,
	cartCfg config.Cart,
) *CheckoutService {
	return &CheckoutService{
		cartRepo:       cartRepo,
		catalogRepo:    catalogRepo,
		orderRepo:      orderRepo,
		paymentRepo:    paymentRepo,
		settlementRepo: settlementRepo,
		cache:          c,
		gateway:        gateway,
		email:          email,
		cartService:    cartService,
		cartCfg:        cartCfg,
	}
}

// FinalizeCheckout validates the items, creates (or reuses) the order, records
// the payment, rolls the order into the enterprise's monthly settlement and
// retires the customer's carts. All validation runs before the first write:
// an unavailable item or an over-cap quantity rejects the whole checkout with
// nothing mutated.
func (s *CheckoutService) FinalizeCheckout(ctx context.Context, accountID uuid.UUID, sessionID string) (*models.CheckoutResult, error) {

	logger := middleware.LoggerFromContext(ctx)

	confirmation, err := s.gateway.RetrieveConfirmation(ctx, sessionID)
	if err != nil {
		return nil, appErrors.ThirdPartyError("Failed to verify payment session").WithError(err)
	}

	if !confirmation.Paid {
		return nil, appErrors.BadRequestError("Payment has not been completed")
	}

	customer, err := s.catalogRepo.GetCustomerByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Customer not found")
		}
		return nil, appErrors.DatabaseError("Failed to look up customer").WithError(err)
	}

	items, err := s.cartRepo.GetActiveItemsByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart items").WithError(err)
	}

	if len(items) == 0 {
		return nil, appErrors.BadRequestError("Cart is empty")
	}

	foods, err := s.loadFoods(ctx, items)
	if err != nil {
		return nil, err
	}

	if err := s.validateItems(items, foods); err != nil {
		return nil, err
	}

	total := roundToCents(orderTotal(items))

	order, err := s.orderRepo.FindRecentConfirmedOrder(ctx, customer.ID, total, s.cartCfg.DuplicateOrderWindow)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to check for duplicate order").WithError(err)
	}

	reused := order != nil

	if !reused {

		order, err = s.createOrder(ctx, customer.ID, items, total, confirmation.PaymentIntentID)
		if err != nil {
			return nil, err
		}
	}

	if err := s.recordPayment(ctx, order, customer.ID, confirmation); err != nil {
		return nil, err
	}

	if err := s.settleOrder(ctx, order); err != nil {
		return nil, err
	}

	s.purgeCarts(ctx, accountID, items)

	if err := s.email.SendOrderConfirmation(customer.Email, customer.Name, order.ID.String(), order.TotalAmount); err != nil {
		logger.Warn("Failed to send order confirmation email", slog.String("order_id", order.ID.String()), slog.String("error", err.Error()))
	}

	return &models.CheckoutResult{OrderID: order.ID, Reused: reused, Success: true}, nil
}

// ProcessWebhook handles the gateway's asynchronous confirmation. Only
// checkout.session.completed events are acted on; the session's metadata must
// carry the account id stamped at session creation. Returns (nil, nil) for
// event types this system ignores.
func (s *CheckoutService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*models.CheckoutResult, error) {

	event, err := s.gateway.VerifyWebhookSignature(payload, signature)
	if err != nil {
		return nil, appErrors.ThirdPartyError("Webhook signature verification failed").WithError(err)
	}

	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	object := event.Data.Object

	sessionID, ok := object["id"].(string)
	if !ok || sessionID == "" {
		return nil, appErrors.BadRequestError("Webhook payload missing session id")
	}

	metadata, _ := object["metadata"].(map[string]any)

	accountRaw, _ := metadata["account_id"].(string)

	accountID, err := uuid.Parse(accountRaw)
	if err != nil {
		return nil, appErrors.BadRequestError("Webhook payload missing account id")
	}

	return s.FinalizeCheckout(ctx, accountID, sessionID)
}

func (s *CheckoutService) loadFoods(ctx context.Context, items []models.CustomerCartItem) (map[uuid.UUID]models.Food, error) {

	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))

	for _, item := range items {
		if _, ok := seen[item.FoodID]; ok {
			continue
		}

		seen[item.FoodID] = struct{}{}
		ids = append(ids, item.FoodID)
	}

	foods, err := s.catalogRepo.GetFoodsByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load food metadata").WithError(err)
	}

	return foods, nil
}

// validateItems rejects the checkout when any line references an item that is
// no longer orderable or exceeds the per-item cap. The error names the item so
// the storefront can point at the offending line.
func (s *CheckoutService) validateItems(items []models.CustomerCartItem, foods map[uuid.UUID]models.Food) error {

	for _, item := range items {

		food, ok := foods[item.FoodID]
		if !ok {
			return appErrors.UnavailableError(fmt.Sprintf("Item %s is no longer available", item.FoodID))
		}

		if !food.IsAvailable {
			return appErrors.UnavailableError(fmt.Sprintf("%s is currently unavailable", food.Name))
		}

		if item.Quantity > s.cartCfg.MaxItemQuantity {
			return appErrors.UnavailableError(
				fmt.Sprintf("%s exceeds the maximum of %d per order", food.Name, s.cartCfg.MaxItemQuantity))
		}
	}

	return nil
}

func (s *CheckoutService) createOrder(ctx context.Context, customerID uuid.UUID, items []models.CustomerCartItem, total float64, paymentIntentID string) (*models.Order, error) {

	enterpriseID := items[0].EnterpriseID

	rate, err := s.commissionRate(ctx, enterpriseID)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:               uuid.New(),
		CustomerID:       customerID,
		EnterpriseID:     enterpriseID,
		Status:           models.OrderStatusConfirmed,
		TotalAmount:      total,
		CommissionAmount: roundToCents(total * rate / 100),
		PaymentIntentID:  paymentIntentID,
	}

	for _, item := range items {
		order.Details = append(order.Details, models.OrderDetail{
			ID:        uuid.New(),
			OrderID:   order.ID,
			FoodID:    item.FoodID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			SubTotal:  roundToCents(float64(item.Quantity) * item.Price),
		})
	}

	if err := s.orderRepo.CreateOrderWithDetails(ctx, order); err != nil {
		return nil, appErrors.DatabaseError("Failed to create order").WithError(err)
	}

	return order, nil
}

func (s *CheckoutService) commissionRate(ctx context.Context, enterpriseID uuid.UUID) (float64, error) {

	enterprise, err := s.catalogRepo.GetEnterpriseByID(ctx, enterpriseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.cartCfg.DefaultCommissionRate, nil
		}
		return 0, appErrors.DatabaseError("Failed to look up enterprise").WithError(err)
	}

	if enterprise.CommissionRate != nil {
		return *enterprise.CommissionRate, nil
	}

	return s.cartCfg.DefaultCommissionRate, nil
}

// recordPayment writes one payment row per gateway payment intent. A replay
// with the same intent id finds the existing row and writes nothing.
func (s *CheckoutService) recordPayment(ctx context.Context, order *models.Order, customerID uuid.UUID, confirmation *models.PaymentConfirmation) error {

	if confirmation.PaymentIntentID == "" {
		return nil
	}

	existing, err := s.paymentRepo.FindByPaymentIntentID(ctx, confirmation.PaymentIntentID)
	if err != nil {
		return appErrors.DatabaseError("Failed to check for existing payment").WithError(err)
	}

	if existing != nil {
		return nil
	}

	payment := &models.Payment{
		ID:              uuid.New(),
		OrderID:         order.ID,
		CustomerID:      customerID,
		Amount:          float64(confirmation.AmountTotal) / 100,
		Currency:        confirmation.Currency,
		PaymentIntentID: confirmation.PaymentIntentID,
		Status:          models.PaymentStatusPaid,
	}

	if err := s.paymentRepo.CreatePayment(ctx, payment); err != nil {
		return appErrors.DatabaseError("Failed to record payment").WithError(err)
	}

	return nil
}

// settleOrder rolls the order into the enterprise's settlement for the current
// calendar month. Attach is conflict-free on replay, and the payout is always
// recomputed from scratch so a skipped attach cannot double-count.
func (s *CheckoutService) settleOrder(ctx context.Context, order *models.Order) error {

	periodStart, periodEnd := settlementPeriod(time.Now().UTC())

	settlement, err := s.settlementRepo.FindOrCreateForPeriod(ctx, order.EnterpriseID, periodStart, periodEnd)
	if err != nil {
		return appErrors.DatabaseError("Failed to resolve settlement period").WithError(err)
	}

	if _, err := s.settlementRepo.AttachOrder(ctx, settlement.ID, order); err != nil {
		return appErrors.DatabaseError("Failed to attach order to settlement").WithError(err)
	}

	if _, err := s.settlementRepo.RecomputeNetPayout(ctx, settlement.ID); err != nil {
		return appErrors.DatabaseError("Failed to recompute settlement payout").WithError(err)
	}

	return nil
}

// purgeCarts abandons every cart that contributed items and drops the user's
// identity mapping. Best effort on the cache side; a leftover key re-validates
// to nothing on the next resolution.
func (s *CheckoutService) purgeCarts(ctx context.Context, accountID uuid.UUID, items []models.CustomerCartItem) {

	logger := middleware.LoggerFromContext(ctx)

	seen := make(map[uuid.UUID]struct{})

	for _, item := range items {

		if _, ok := seen[item.CartID]; ok {
			continue
		}

		seen[item.CartID] = struct{}{}

		if err := s.cartService.AbandonCart(ctx, item.CartID); err != nil {
			logger.Error("Failed to abandon cart after checkout", slog.String("cart_id", item.CartID.String()), slog.String("error", err.Error()))
		}
	}

	key := cache.Key(cache.UserCartKeyPrefix, accountID.String())

	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Warn("Failed to delete identity cache key", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func orderTotal(items []models.CustomerCartItem) float64 {

	var total float64

	for _, item := range items {
		total += float64(item.Quantity) * item.Price
	}

	return total
}

func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// settlementPeriod maps a point in time to its calendar month boundaries.
func settlementPeriod(now time.Time) (time.Time, time.Time) {

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	return start, end
}
