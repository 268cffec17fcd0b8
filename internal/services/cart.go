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
	"github.com/microcosm-cc/bluemonday"
)

// CartService is the mutation engine: it creates carts, upserts line items
// and keeps the cached snapshot in lock-step with the durable rows. Within
// any single operation the durable write happens first; a crash in between
// leaves the cache stale-but-safe and the next hydrate repairs it.
type CartService struct {
	cartRepo    repository.CartRepository
	catalogRepo repository.CatalogRepository
	cache       cache.Cache
	resolver    *CartResolver
	sanitizer   *bluemonday.Policy
	guestTTL    time.Duration
}

func NewCartService(cartRepo repository.CartRepository, catalogRepo repository.CatalogRepository, c cache.Cache, resolver *CartResolver, guestTTL time.Duration) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
		cache:       c,
		resolver:    resolver,
		sanitizer:   bluemonday.StrictPolicy(),
		guestTTL:    guestTTL,
	}
}

// CreateActiveCart opens a cart for the actor, scoped to one enterprise. A
// guest token that already owns a row (the token is unique) gets that row
// reactivated with a fresh expiry instead of a duplicate insert.
func (s *CartService) CreateActiveCart(ctx context.Context, actor models.Actor, enterpriseID uuid.UUID) (*models.Cart, error) {

	if actor.UserID != nil {

		customer, err := s.catalogRepo.GetCustomerByAccountID(ctx, *actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFoundError("Customer not found")
			}
			return nil, appErrors.DatabaseError("Failed to look up customer").WithError(err)
		}

		cart := &models.Cart{
			ID:           uuid.New(),
			CustomerID:   &customer.ID,
			EnterpriseID: enterpriseID,
			Status:       models.CartStatusActive,
		}

		if err := s.cartRepo.CreateCart(ctx, cart); err != nil {
			return nil, appErrors.DatabaseError("Failed to create cart").WithError(err)
		}

		s.refreshIdentity(ctx, actor, cart.ID)

		return cart, nil
	}

	if actor.GuestToken == "" {
		return nil, appErrors.BadRequestError("A guest token is required to open a cart")
	}

	expiresAt := time.Now().Add(s.guestTTL)

	existing, err := s.cartRepo.FindCartByGuestToken(ctx, actor.GuestToken)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to look up guest cart").WithError(err)
	}

	if existing != nil {

		if err := s.cartRepo.ReactivateGuestCart(ctx, existing.ID, enterpriseID, expiresAt); err != nil {
			return nil, appErrors.DatabaseError("Failed to reactivate guest cart").WithError(err)
		}

		existing.Status = models.CartStatusActive
		existing.EnterpriseID = enterpriseID
		existing.ExpiresAt = &expiresAt

		s.refreshIdentity(ctx, actor, existing.ID)

		return existing, nil
	}

	token := actor.GuestToken
	cart := &models.Cart{
		ID:           uuid.New(),
		GuestToken:   &token,
		EnterpriseID: enterpriseID,
		Status:       models.CartStatusActive,
		ExpiresAt:    &expiresAt,
	}

	if err := s.cartRepo.CreateCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to create cart").WithError(err)
	}

	s.refreshIdentity(ctx, actor, cart.ID)

	return cart, nil
}

// UpsertItem adds quantityDelta to the (cart, food) line, creating it with at
// least quantity 1, and re-stamps price and note. The cached snapshot entry is
// replaced with the resulting state, enriched with display metadata. ttl > 0
// marks a guest cart and is applied to the item-list key.
func (s *CartService) UpsertItem(ctx context.Context, cartID, foodID uuid.UUID, quantityDelta int, priceSnapshot float64, note string, ttl time.Duration) error {

	if quantityDelta <= 0 {
		return appErrors.ValidationError("Quantity must be positive")
	}

	item := &models.CartItem{
		ID:       uuid.New(),
		CartID:   cartID,
		FoodID:   foodID,
		Quantity: quantityDelta,
		Price:    priceSnapshot,
		Note:     s.sanitizer.Sanitize(note),
	}

	quantity, err := s.cartRepo.UpsertItem(ctx, item)
	if err != nil {
		return appErrors.DatabaseError("Failed to upsert cart item").WithError(err)
	}

	entry := models.CachedCartItem{
		FoodID:        foodID,
		Quantity:      quantity,
		PriceSnapshot: priceSnapshot,
		Note:          item.Note,
		MenuItem:      s.menuItemFor(ctx, foodID),
	}

	s.writeSnapshotEntry(ctx, cartID, entry, ttl)

	return nil
}

// SetItemQuantity overwrites a line's quantity. quantity <= 0 is the removal
// path and is idempotent. Setting a quantity on an item that was never added
// is a no-op: creating it here would bypass the add path's enterprise check
// and price snapshotting.
func (s *CartService) SetItemQuantity(ctx context.Context, cartID, foodID uuid.UUID, quantity int, ttl time.Duration) error {

	if quantity <= 0 {

		if err := s.cartRepo.DeleteItem(ctx, cartID, foodID); err != nil {
			return appErrors.DatabaseError("Failed to remove cart item").WithError(err)
		}

		s.removeSnapshotEntry(ctx, cartID, foodID, ttl)

		return nil
	}

	found, err := s.cartRepo.UpdateItemQuantity(ctx, cartID, foodID, quantity)
	if err != nil {
		return appErrors.DatabaseError("Failed to update cart item quantity").WithError(err)
	}

	if !found {
		return nil
	}

	item, err := s.cartRepo.GetItem(ctx, cartID, foodID)
	if err != nil {
		return appErrors.DatabaseError("Failed to reload cart item").WithError(err)
	}

	entry := models.CachedCartItem{
		FoodID:        foodID,
		Quantity:      item.Quantity,
		PriceSnapshot: item.Price,
		Note:          item.Note,
		MenuItem:      s.menuItemFor(ctx, foodID),
	}

	s.writeSnapshotEntry(ctx, cartID, entry, ttl)

	return nil
}

// HydrateCacheFromDB rebuilds the whole cached snapshot from the durable
// rows, batch-fetching display metadata. Idempotent and safe at any time:
// this is the recovery path after an eviction, a merge or a cache outage.
// Cache write failures are logged and swallowed.
func (s *CartService) HydrateCacheFromDB(ctx context.Context, cartID uuid.UUID, ttl time.Duration) error {

	logger := middleware.LoggerFromContext(ctx)

	items, err := s.cartRepo.GetItems(ctx, cartID)
	if err != nil {
		return appErrors.DatabaseError("Failed to load cart items").WithError(err)
	}

	foodIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		foodIDs = append(foodIDs, item.FoodID)
	}

	foods, err := s.catalogRepo.GetFoodsByIDs(ctx, foodIDs)
	if err != nil {
		return appErrors.DatabaseError("Failed to load food metadata").WithError(err)
	}

	enterpriseNames := make(map[uuid.UUID]string)

	entries := make([]models.CachedCartItem, 0, len(items))

	for _, item := range items {

		entry := models.CachedCartItem{
			FoodID:        item.FoodID,
			Quantity:      item.Quantity,
			PriceSnapshot: item.Price,
			Note:          item.Note,
		}

		if food, ok := foods[item.FoodID]; ok {
			entry.MenuItem = s.buildMenuItem(ctx, &food, enterpriseNames)
		}

		entries = append(entries, entry)
	}

	itemsKey := cache.Key(cache.CartItemsKeyPrefix, cartID.String())

	if err := s.cache.Set(ctx, itemsKey, entries, ttl); err != nil {
		logger.Warn("Failed to write cart snapshot cache", slog.String("key", itemsKey), slog.String("error", err.Error()))
		return nil
	}

	markerKey := cache.Key(cache.CartMarkerPrefix, cartID.String())

	if err := s.cache.Set(ctx, markerKey, cartID.String(), ttl); err != nil {
		logger.Warn("Failed to write cart marker", slog.String("key", markerKey), slog.String("error", err.Error()))
	}

	return nil
}

// Snapshot reads the cached item list. A cold cache yields an empty list by
// design; callers that need guaranteed freshness hydrate first.
func (s *CartService) Snapshot(ctx context.Context, cartID uuid.UUID) (*models.CartSnapshot, error) {

	items := s.readSnapshotList(ctx, cartID)

	if items == nil {
		items = []models.CachedCartItem{}
	}

	return &models.CartSnapshot{CartID: cartID, Items: items}, nil
}

// AbandonCart retires a cart: one durable transaction flips the status, frees
// the guest token and deletes the line items, then the cache keys go away
// best-effort. Calling it twice is harmless.
func (s *CartService) AbandonCart(ctx context.Context, cartID uuid.UUID) error {

	if err := s.cartRepo.AbandonCart(ctx, cartID); err != nil {
		return appErrors.DatabaseError("Failed to abandon cart").WithError(err)
	}

	s.deleteKey(ctx, cache.Key(cache.CartItemsKeyPrefix, cartID.String()))
	s.deleteKey(ctx, cache.Key(cache.CartMarkerPrefix, cartID.String()))

	return nil
}

// GetCart resolves the actor's active cart and returns its snapshot,
// hydrating the cache when the list is cold.
func (s *CartService) GetCart(ctx context.Context, actor models.Actor) (*models.CartSnapshot, error) {

	cartID, err := s.resolver.ResolveActiveCartID(ctx, actor)
	if err != nil {
		return nil, err
	}

	if cartID == nil {
		return &models.CartSnapshot{Items: []models.CachedCartItem{}}, nil
	}

	snapshot, err := s.Snapshot(ctx, *cartID)
	if err != nil {
		return nil, err
	}

	if len(snapshot.Items) > 0 {
		metrics.CacheHit("items")
		return snapshot, nil
	}

	metrics.CacheMiss("items")

	cart, err := s.cartRepo.GetCartByID(ctx, *cartID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	if err := s.HydrateCacheFromDB(ctx, *cartID, s.ttlFor(cart)); err != nil {
		return nil, err
	}

	return s.Snapshot(ctx, *cartID)
}

// AddItem is the storefront add-to-cart operation: it validates the food,
// opens a cart when none is active and rejects a second enterprise in the
// same cart.
func (s *CartService) AddItem(ctx context.Context, actor models.Actor, req *models.AddItemRequest) (*models.CartSnapshot, error) {

	food, err := s.catalogRepo.GetFoodByID(ctx, req.FoodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Food not found")
		}
		return nil, appErrors.DatabaseError("Failed to look up food").WithError(err)
	}

	cartID, err := s.resolver.ResolveActiveCartID(ctx, actor)
	if err != nil {
		return nil, err
	}

	var cart *models.Cart

	if cartID == nil {

		cart, err = s.CreateActiveCart(ctx, actor, food.EnterpriseID)
		if err != nil {
			return nil, err
		}

	} else {

		cart, err = s.cartRepo.GetCartByID(ctx, *cartID)
		if err != nil {
			return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
		}

		if cart.EnterpriseID != food.EnterpriseID {
			return nil, appErrors.ConflictError("Cart already holds items from another restaurant").
				WithDetail("Clear the cart before ordering from a different restaurant")
		}
	}

	ttl := s.ttlFor(cart)

	if err := s.UpsertItem(ctx, cart.ID, food.ID, req.Quantity, food.Price, req.Note, ttl); err != nil {
		return nil, err
	}

	s.refreshIdentity(ctx, actor, cart.ID)

	return s.Snapshot(ctx, cart.ID)
}

// UpdateQuantity sets an absolute quantity on a line of the actor's cart;
// zero removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, actor models.Actor, req *models.SetItemQuantityRequest) (*models.CartSnapshot, error) {

	cartID, err := s.resolver.ResolveActiveCartID(ctx, actor)
	if err != nil {
		return nil, err
	}

	if cartID == nil {
		return nil, appErrors.NotFoundError("Cart not found")
	}

	cart, err := s.cartRepo.GetCartByID(ctx, *cartID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart").WithError(err)
	}

	if err := s.SetItemQuantity(ctx, cart.ID, req.FoodID, req.Quantity, s.ttlFor(cart)); err != nil {
		return nil, err
	}

	s.refreshIdentity(ctx, actor, cart.ID)

	return s.Snapshot(ctx, cart.ID)
}

// ClearCart abandons the actor's active cart and drops the identity mapping.
// Clearing when no cart exists is a no-op.
func (s *CartService) ClearCart(ctx context.Context, actor models.Actor) error {

	cartID, err := s.resolver.ResolveActiveCartID(ctx, actor)
	if err != nil {
		return err
	}

	if cartID == nil {
		return nil
	}

	if err := s.AbandonCart(ctx, *cartID); err != nil {
		return err
	}

	if actor.UserID != nil {
		s.deleteKey(ctx, cache.Key(cache.UserCartKeyPrefix, actor.UserID.String()))
	}

	if actor.GuestToken != "" {
		s.deleteKey(ctx, cache.Key(cache.GuestCartKeyPrefix, actor.GuestToken))
	}

	return nil
}

func (s *CartService) ttlFor(cart *models.Cart) time.Duration {
	if cart.GuestToken != nil {
		return s.guestTTL
	}

	return 0
}

// refreshIdentity rewrites the actor's identity mapping after a mutation,
// re-applying the guest TTL so an active guest keeps their cart alive.
func (s *CartService) refreshIdentity(ctx context.Context, actor models.Actor, cartID uuid.UUID) {

	logger := middleware.LoggerFromContext(ctx)

	var key string
	var ttl time.Duration

	if actor.UserID != nil {
		key = cache.Key(cache.UserCartKeyPrefix, actor.UserID.String())
	} else if actor.GuestToken != "" {
		key = cache.Key(cache.GuestCartKeyPrefix, actor.GuestToken)
		ttl = s.guestTTL
	} else {
		return
	}

	if err := s.cache.Set(ctx, key, cartID.String(), ttl); err != nil {
		logger.Warn("Failed to refresh identity cache", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// menuItemFor derives the denormalized display metadata for one food. Any
// failure here only degrades the cached view, never the operation.
func (s *CartService) menuItemFor(ctx context.Context, foodID uuid.UUID) *models.MenuItem {

	logger := middleware.LoggerFromContext(ctx)

	food, err := s.catalogRepo.GetFoodByID(ctx, foodID)
	if err != nil {
		logger.Warn("Failed to derive menu metadata", slog.String("food_id", foodID.String()), slog.String("error", err.Error()))
		return nil
	}

	return s.buildMenuItem(ctx, food, map[uuid.UUID]string{})
}

func (s *CartService) buildMenuItem(ctx context.Context, food *models.Food, enterpriseNames map[uuid.UUID]string) *models.MenuItem {

	logger := middleware.LoggerFromContext(ctx)

	name, ok := enterpriseNames[food.EnterpriseID]
	if !ok {

		enterprise, err := s.catalogRepo.GetEnterpriseByID(ctx, food.EnterpriseID)
		if err != nil {
			logger.Warn("Failed to load enterprise name", slog.String("enterprise_id", food.EnterpriseID.String()), slog.String("error", err.Error()))
		} else {
			name = enterprise.Name
		}

		enterpriseNames[food.EnterpriseID] = name
	}

	return &models.MenuItem{
		ID:             food.ID,
		Name:           food.Name,
		Price:          food.Price,
		Image:          food.Image,
		Description:    food.Description,
		Category:       food.Category,
		RestaurantID:   food.EnterpriseID,
		RestaurantName: name,
	}
}

// readSnapshotList returns the cached list or nil on a miss. Cache failures
// count as misses.
func (s *CartService) readSnapshotList(ctx context.Context, cartID uuid.UUID) []models.CachedCartItem {

	logger := middleware.LoggerFromContext(ctx)
	key := cache.Key(cache.CartItemsKeyPrefix, cartID.String())

	var items []models.CachedCartItem

	found, err := s.cache.Get(ctx, key, &items)
	if err != nil {
		logger.Warn("Failed to read cart snapshot cache", slog.String("key", key), slog.String("error", err.Error()))
		return nil
	}

	if !found {
		return nil
	}

	return items
}

// writeSnapshotEntry replaces or appends one entry in the cached list. The
// whole list is read, mutated and written back as a single JSON value; two
// concurrent writers to the same cart can lose one update (last write wins).
// The durable store stays authoritative and the next hydrate repairs the
// cache, so the race is accepted rather than paying per-item round trips.
func (s *CartService) writeSnapshotEntry(ctx context.Context, cartID uuid.UUID, entry models.CachedCartItem, ttl time.Duration) {

	logger := middleware.LoggerFromContext(ctx)
	key := cache.Key(cache.CartItemsKeyPrefix, cartID.String())

	items := s.readSnapshotList(ctx, cartID)

	replaced := false

	for i := range items {
		if items[i].FoodID == entry.FoodID {
			items[i] = entry
			replaced = true

			break
		}
	}

	if !replaced {
		items = append(items, entry)
	}

	if err := s.cache.Set(ctx, key, items, ttl); err != nil {
		logger.Warn("Failed to write cart snapshot cache", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *CartService) removeSnapshotEntry(ctx context.Context, cartID, foodID uuid.UUID, ttl time.Duration) {

	logger := middleware.LoggerFromContext(ctx)
	key := cache.Key(cache.CartItemsKeyPrefix, cartID.String())

	items := s.readSnapshotList(ctx, cartID)

	if items == nil {
		return
	}

	filtered := items[:0]
	for _, item := range items {
		if item.FoodID != foodID {
			filtered = append(filtered, item)
		}
	}

	if err := s.cache.Set(ctx, key, filtered, ttl); err != nil {
		logger.Warn("Failed to write cart snapshot cache", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *CartService) deleteKey(ctx context.Context, key string) {

	logger := middleware.LoggerFromContext(ctx)

	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Warn("Failed to delete cache key", slog.String("key", key), slog.String("error", err.Error()))
	}
}
