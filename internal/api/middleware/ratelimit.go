package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/aryankhatri/food-ordering-platform/internal/errors"
	repository "github.com/aryankhatri/food-ordering-platform/internal/repositories"
	"github.com/aryankhatri/food-ordering-platform/internal/utils/response"
)

type RateLimitMiddleware struct {
	repo repository.RateLimitRepository
}

func NewRateLimitMiddleware(repo repository.RateLimitRepository) *RateLimitMiddleware {
	return &RateLimitMiddleware{repo: repo}
}

// Limit applies the per-IP sliding window to cart mutation routes. A redis
// outage fails open: throttling is an optimization, not a correctness gate.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := LoggerFromContext(r.Context())

		clientIP, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			clientIP = r.RemoteAddr
		}

		allowed, retryAfter, err := m.repo.CheckRateLimit(r.Context(), clientIP)
		if err != nil {
			logger.Warn("Rate limit check failed, allowing request", slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			response.Error(w, errors.TooManyRequestsError("Too many cart requests, slow down"))
			return
		}

		next.ServeHTTP(w, r)
	}
}
