package models

import (
	"time"

	"github.com/google/uuid"
)

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusAbandoned CartStatus = "abandoned"
)

// Cart is the durable source of truth for an in-progress order. A cart is
// scoped to a single enterprise and is looked up either by customer id or by
// guest token, never both: once a guest logs in and the cart is merged, the
// guest token is cleared.
type Cart struct {
	ID           uuid.UUID  `json:"id"`
	CustomerID   *uuid.UUID `json:"customer_id,omitempty"`
	GuestToken   *string    `json:"guest_token,omitempty"`
	EnterpriseID uuid.UUID  `json:"enterprise_id"`
	Status       CartStatus `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether a guest cart has passed its expiry. Carts without an
// ExpiresAt (user carts) never expire.
func (c *Cart) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

type CartItem struct {
	ID        uuid.UUID `json:"id"`
	CartID    uuid.UUID `json:"cart_id"`
	FoodID    uuid.UUID `json:"food_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerCartItem is a CartItem joined with its parent cart, used by checkout
// which loads items across all of a customer's active carts rather than
// trusting a single resolved cart id.
type CustomerCartItem struct {
	CartItem

	EnterpriseID uuid.UUID `json:"enterprise_id"`
}

// MenuItem is the denormalized display metadata attached to cached cart
// entries so the storefront can render a cart without extra catalog reads.
type MenuItem struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Price          float64   `json:"price"`
	Image          string    `json:"image,omitempty"`
	Description    string    `json:"description,omitempty"`
	Category       string    `json:"category,omitempty"`
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	RestaurantName string    `json:"restaurant_name,omitempty"`
}

// CachedCartItem is one entry of the cached cart snapshot list. The cache is
// never authoritative; every field is rebuildable from CartItem + Food rows.
type CachedCartItem struct {
	FoodID        uuid.UUID `json:"food_id"`
	Quantity      int       `json:"quantity"`
	PriceSnapshot float64   `json:"price_snapshot"`
	Note          string    `json:"note,omitempty"`
	MenuItem      *MenuItem `json:"menu_item,omitempty"`
}

type CartSnapshot struct {
	CartID uuid.UUID        `json:"cart_id"`
	Items  []CachedCartItem `json:"items"`
}

type AddItemRequest struct {
	FoodID   uuid.UUID `json:"food_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
	Note     string    `json:"note" validate:"max=500"`
}

type SetItemQuantityRequest struct {
	FoodID   uuid.UUID `json:"food_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"min=0"`
}
