package cache

import (
	"context"
	"time"
)

// Cache is the fast, ephemeral store in front of Postgres. It is never a
// source of truth: a miss or a failure only changes cost, not outcome.
type Cache interface {
	Get(ctx context.Context, key string, value interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

func Key(prefix string, id string) string {
	return prefix + ":" + id
}

// The cart subsystem owns exactly these key shapes.
const (
	CartItemsKeyPrefix = "cart:items" // cart:items:<cartID> -> []CachedCartItem
	CartMarkerPrefix   = "cart"       // cart:<cartID> -> cart marker
	UserCartKeyPrefix  = "cart:user"  // cart:user:<userID> -> cartID
	GuestCartKeyPrefix = "cart:guest" // cart:guest:<token> -> cartID
)
