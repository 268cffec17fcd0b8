package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aryankhatri/food-ordering-platform/internal/errors"
	"github.com/aryankhatri/food-ordering-platform/internal/models"
	"github.com/aryankhatri/food-ordering-platform/internal/utils/response"
	"github.com/golang-jwt/jwt/v5"
)

type actorContextKey string

const actorKey = actorContextKey("actor")

// GuestTokenCookie is issued by the storefront; this subsystem only reads it.
const GuestTokenCookie = "guest_token"

type ActorMiddleware struct {
	jwtKey []byte
}

func NewActorMiddleware(jwtKey []byte) *ActorMiddleware {
	return &ActorMiddleware{jwtKey: jwtKey}
}

// Resolve builds the request Actor: a valid Bearer token yields the user id,
// the guest cookie yields the guest token. Both may be present right after
// login; the user id takes precedence downstream. Anonymous requests pass
// through with an empty actor — cart routes answer them with an empty cart.
func (m *ActorMiddleware) Resolve(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := LoggerFromContext(r.Context())

		var actor models.Actor

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				logger.Warn("Invalid authorization header format")
				response.Error(w, errors.UnauthorizedError("Invalid authorization format"))
				return
			}

			claims := &models.Claims{}

			token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.BadRequestError("unexpected signing method")
				}
				return m.jwtKey, nil
			})

			if err != nil || !token.Valid {
				logger.Warn("JWT parsing failed", slog.Any("error", err))
				response.Error(w, errors.UnauthorizedError("Invalid or expired token"))
				return
			}

			userID := claims.UserID
			actor.UserID = &userID
		}

		if cookie, err := r.Cookie(GuestTokenCookie); err == nil && cookie.Value != "" {
			actor.GuestToken = cookie.Value
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)

		if actor.UserID != nil {
			ctx = context.WithValue(ctx, loggerKey, logger.With(slog.String("user_id", actor.UserID.String())))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequireAuth guards routes that only make sense for a logged-in account
// (merge, checkout).
func (m *ActorMiddleware) RequireAuth(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		actor := ActorFromContext(r.Context())

		if actor.UserID == nil {
			response.Error(w, errors.UnauthorizedError("Authentication required"))
			return
		}

		next.ServeHTTP(w, r)
	}
}

func ActorFromContext(ctx context.Context) models.Actor {
	if actor, ok := ctx.Value(actorKey).(models.Actor); ok {
		return actor
	}

	return models.Actor{}
}
