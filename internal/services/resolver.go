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
	"github.com/aryankhatri/food-ordering-platform/internal/metrics"
	"github.com/aryankhatri/food-ordering-platform/internal/models"
	repository "github.com/aryankhatri/food-ordering-platform/internal/repositories"
	"github.com/google/uuid"
)

// CartResolver maps an actor (user id or guest token) to its active cart.
// The identity cache is consulted first but every hit is re-validated against
// the durable store before being trusted; a stale entry heals itself within
// one resolution call. Stale guest carts are abandoned lazily here.
type CartResolver struct {
	cartRepo    repository.CartRepository
	catalogRepo repository.CatalogRepository
	cache       cache.Cache
	guestTTL    time.Duration
}

func NewCartResolver(cartRepo repository.CartRepository, catalogRepo repository.CatalogRepository, c cache.Cache, guestTTL time.Duration) *CartResolver {
	return &CartResolver{cartRepo: cartRepo, catalogRepo: catalogRepo, cache: c, guestTTL: guestTTL}
}

// ResolveActiveCartID returns the id of the actor's active cart, or nil when
// none exists. Callers create a cart before adding items. UserID wins when
// the actor carries both identities.
func (r *CartResolver) ResolveActiveCartID(ctx context.Context, actor models.Actor) (*uuid.UUID, error) {

	if actor.UserID != nil {
		return r.resolveForUser(ctx, *actor.UserID)
	}

	if actor.GuestToken != "" {
		return r.resolveForGuest(ctx, actor.GuestToken)
	}

	return nil, nil
}

func (r *CartResolver) resolveForUser(ctx context.Context, accountID uuid.UUID) (*uuid.UUID, error) {

	logger := middleware.LoggerFromContext(ctx)
	key := cache.Key(cache.UserCartKeyPrefix, accountID.String())

	if cartID, ok := r.cachedCartID(ctx, key); ok {

		cart, err := r.cartRepo.GetCartByID(ctx, cartID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.DatabaseError("Failed to validate cached cart").WithError(err)
		}

		if cart != nil && cart.Status == models.CartStatusActive {
			metrics.CacheHit("identity")
			return &cart.ID, nil
		}

		// Stale mapping: the cart vanished or was abandoned elsewhere.
		r.deleteKey(ctx, key)
	}

	metrics.CacheMiss("identity")

	customer, err := r.catalogRepo.GetCustomerByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.DatabaseError("Failed to look up customer").WithError(err)
	}

	cart, err := r.cartRepo.FindActiveCartByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to find active cart").WithError(err)
	}

	if cart == nil {
		return nil, nil
	}

	// User identity entries never expire; only an explicit abandon removes them.
	if err := r.cache.Set(ctx, key, cart.ID.String(), 0); err != nil {
		logger.Warn("Failed to repopulate identity cache", slog.String("key", key), slog.String("error", err.Error()))
	}

	return &cart.ID, nil
}

func (r *CartResolver) resolveForGuest(ctx context.Context, guestToken string) (*uuid.UUID, error) {

	logger := middleware.LoggerFromContext(ctx)
	key := cache.Key(cache.GuestCartKeyPrefix, guestToken)
	now := time.Now()

	if cartID, ok := r.cachedCartID(ctx, key); ok {

		cart, err := r.cartRepo.GetCartByID(ctx, cartID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.DatabaseError("Failed to validate cached cart").WithError(err)
		}

		if cart != nil && cart.Status == models.CartStatusActive && !cart.Expired(now) {
			metrics.CacheHit("identity")

			// Every successful resolution restarts the guest expiry clock.
			if err := r.cache.Expire(ctx, key, r.guestTTL); err != nil {
				logger.Warn("Failed to refresh identity cache ttl", slog.String("key", key), slog.String("error", err.Error()))
			}

			return &cart.ID, nil
		}

		if cart != nil && cart.Status == models.CartStatusActive {
			// Expired in place: retire it before falling through.
			if err := r.abandonStale(ctx, cart.ID); err != nil {
				return nil, err
			}
		}

		r.deleteKey(ctx, key)
	}

	metrics.CacheMiss("identity")

	cart, err := r.cartRepo.FindActiveCartByGuestToken(ctx, guestToken)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to find active cart").WithError(err)
	}

	if cart == nil {
		return nil, nil
	}

	if cart.Expired(now) {
		// Never resurrect an expired guest cart.
		if err := r.abandonStale(ctx, cart.ID); err != nil {
			return nil, err
		}

		r.deleteKey(ctx, key)

		return nil, nil
	}

	if err := r.cache.Set(ctx, key, cart.ID.String(), r.guestTTL); err != nil {
		logger.Warn("Failed to repopulate identity cache", slog.String("key", key), slog.String("error", err.Error()))
	}

	return &cart.ID, nil
}

// cachedCartID reads an identity mapping. Cache failures are treated as
// misses, never as errors.
func (r *CartResolver) cachedCartID(ctx context.Context, key string) (uuid.UUID, bool) {

	logger := middleware.LoggerFromContext(ctx)

	var raw string

	found, err := r.cache.Get(ctx, key, &raw)
	if err != nil {
		logger.Warn("Identity cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return uuid.Nil, false
	}

	if !found {
		return uuid.Nil, false
	}

	cartID, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("Identity cache entry malformed", slog.String("key", key), slog.String("error", err.Error()))
		r.deleteKey(ctx, key)

		return uuid.Nil, false
	}

	return cartID, true
}

// abandonStale retires an expired or orphaned guest cart and drops its cached
// snapshot. The durable write is mandatory, the cache deletes are not.
func (r *CartResolver) abandonStale(ctx context.Context, cartID uuid.UUID) error {

	if err := r.cartRepo.AbandonCart(ctx, cartID); err != nil {
		return appErrors.DatabaseError("Failed to abandon expired cart").WithError(err)
	}

	r.deleteKey(ctx, cache.Key(cache.CartItemsKeyPrefix, cartID.String()))
	r.deleteKey(ctx, cache.Key(cache.CartMarkerPrefix, cartID.String()))

	return nil
}

func (r *CartResolver) deleteKey(ctx context.Context, key string) {

	logger := middleware.LoggerFromContext(ctx)

	if err := r.cache.Delete(ctx, key); err != nil {
		logger.Warn("Failed to delete cache key", slog.String("key", key), slog.String("error", err.Error()))
	}
}
