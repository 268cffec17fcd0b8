package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/aryankhatri/food-ordering-platform/internal/api/middleware"
	"github.com/aryankhatri/food-ordering-platform/internal/cache"
	appErrors "github.com/aryankhatri/food-ordering-platform/internal/errors"
	repository "github.com/aryankhatri/food-ordering-platform/internal/repositories"
	"github.com/google/uuid"
)

// MergeService folds a guest cart into a user's cart at login. The merge is
// idempotent: once the guest cart is assigned or abandoned, the guest token
// no longer resolves to anything and a replayed request is a no-op.
type MergeService struct {
	cartRepo    repository.CartRepository
	catalogRepo repository.CatalogRepository
	cache       cache.Cache
	cartService *CartService
}

func NewMergeService(cartRepo repository.CartRepository, catalogRepo repository.CatalogRepository, c cache.Cache, cartService *CartService) *MergeService {
	return &MergeService{cartRepo: cartRepo, catalogRepo: catalogRepo, cache: c, cartService: cartService}
}

// MergeGuestCartIntoUserCart runs after authentication. Two cases:
//
//   - the user has no active cart: the guest cart is reassigned wholesale,
//     keeping its id, losing its token and expiry;
//   - the user already has one: the guest items are replayed onto it line by
//     line through the same upsert used by add-to-cart, then the guest cart
//     is abandoned.
//
// An absent or expired guest cart makes the whole call a no-op.
func (s *MergeService) MergeGuestCartIntoUserCart(ctx context.Context, accountID uuid.UUID, guestToken string) error {

	logger := middleware.LoggerFromContext(ctx)

	if guestToken == "" {
		return nil
	}

	guestKey := cache.Key(cache.GuestCartKeyPrefix, guestToken)

	guestCart, err := s.cartRepo.FindActiveCartByGuestToken(ctx, guestToken)
	if err != nil {
		return appErrors.DatabaseError("Failed to find guest cart").WithError(err)
	}

	if guestCart == nil {
		s.deleteKey(ctx, guestKey)
		return nil
	}

	if guestCart.Expired(time.Now()) {

		if err := s.cartService.AbandonCart(ctx, guestCart.ID); err != nil {
			return err
		}

		s.deleteKey(ctx, guestKey)

		return nil
	}

	customer, err := s.catalogRepo.GetCustomerByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundError("Customer not found")
		}
		return appErrors.DatabaseError("Failed to look up customer").WithError(err)
	}

	userCart, err := s.cartRepo.FindActiveCartByCustomer(ctx, customer.ID)
	if err != nil {
		return appErrors.DatabaseError("Failed to find user cart").WithError(err)
	}

	userKey := cache.Key(cache.UserCartKeyPrefix, accountID.String())

	if userCart == nil {

		if err := s.cartRepo.AssignCartToCustomer(ctx, guestCart.ID, customer.ID); err != nil {
			return appErrors.DatabaseError("Failed to assign guest cart").WithError(err)
		}

		s.deleteKey(ctx, guestKey)

		if err := s.cache.Set(ctx, userKey, guestCart.ID.String(), 0); err != nil {
			logger.Warn("Failed to write identity cache after merge", slog.String("key", userKey), slog.String("error", err.Error()))
		}

		// Drops the guest TTL from the cached snapshot.
		return s.cartService.HydrateCacheFromDB(ctx, guestCart.ID, 0)
	}

	// Replay from the durable rows, not the cached snapshot. The snapshot is
	// best-effort: it may be cold after an eviction or Redis restart, and
	// reading it here would make those guest items vanish from the merged
	// cart with no error. The rows are the source of record, so the merge
	// reads them even when the snapshot is warm.
	guestItems, err := s.cartRepo.GetItems(ctx, guestCart.ID)
	if err != nil {
		return appErrors.DatabaseError("Failed to load guest cart items").WithError(err)
	}

	for _, item := range guestItems {

		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}

		if err := s.cartService.UpsertItem(ctx, userCart.ID, item.FoodID, quantity, item.Price, item.Note, 0); err != nil {
			return err
		}
	}

	if err := s.cartService.AbandonCart(ctx, guestCart.ID); err != nil {
		return err
	}

	s.deleteKey(ctx, guestKey)

	if err := s.cache.Set(ctx, userKey, userCart.ID.String(), 0); err != nil {
		logger.Warn("Failed to write identity cache after merge", slog.String("key", userKey), slog.String("error", err.Error()))
	}

	return s.cartService.HydrateCacheFromDB(ctx, userCart.ID, 0)
}

func (s *MergeService) deleteKey(ctx context.Context, key string) {

	logger := middleware.LoggerFromContext(ctx)

	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Warn("Failed to delete cache key", slog.String("key", key), slog.String("error", err.Error()))
	}
}
