package utils

import (
	"context"
	"time"
)

// DefaultDBTimeout bounds every statement the repositories run against
// Postgres. A cart mutation should fail fast rather than hold a connection.
const DefaultDBTimeout = 5 * time.Second

// WithDBTimeout derives the per-query context the repository layer uses.
func WithDBTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultDBTimeout)
}
