package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aryankhatri/food-ordering-platform/internal/api/middleware"
	"github.com/aryankhatri/food-ordering-platform/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWTKey = []byte("test-signing-key")

func signedToken(t *testing.T, userID uuid.UUID, expiresAt time.Time) string {
	t.Helper()

	claims := &models.Claims{
		UserID: userID,
		Email:  "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTKey)
	require.NoError(t, err)

	return token
}

func captureActor(captured *models.Actor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*captured = middleware.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}
}

func TestResolve(t *testing.T) {
	m := middleware.NewActorMiddleware(testJWTKey)

	t.Run("Anonymous Request Passes Through", func(t *testing.T) {
		var actor models.Actor

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		rec := httptest.NewRecorder()

		m.Resolve(captureActor(&actor)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, actor.UserID)
		assert.Empty(t, actor.GuestToken)
	})

	t.Run("Bearer Token Yields User", func(t *testing.T) {
		var actor models.Actor

		userID := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, userID, time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()

		m.Resolve(captureActor(&actor)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, actor.UserID)
		assert.Equal(t, userID, *actor.UserID)
		assert.True(t, actor.IsAuthenticated())
	})

	t.Run("Guest Cookie Yields Guest Token", func(t *testing.T) {
		var actor models.Actor

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.AddCookie(&http.Cookie{Name: middleware.GuestTokenCookie, Value: "guest-abc"})
		rec := httptest.NewRecorder()

		m.Resolve(captureActor(&actor)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, actor.UserID)
		assert.Equal(t, "guest-abc", actor.GuestToken)
		assert.True(t, actor.IsGuest())
	})

	t.Run("Both Identities Survive The Login Transition", func(t *testing.T) {
		var actor models.Actor

		userID := uuid.New()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, userID, time.Now().Add(time.Hour)))
		req.AddCookie(&http.Cookie{Name: middleware.GuestTokenCookie, Value: "guest-abc"})
		rec := httptest.NewRecorder()

		m.Resolve(captureActor(&actor)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, actor.UserID)
		assert.Equal(t, userID, *actor.UserID)
		assert.Equal(t, "guest-abc", actor.GuestToken)
	})

	t.Run("Failure - Malformed Authorization Header", func(t *testing.T) {
		var actor models.Actor

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		m.Resolve(captureActor(&actor)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Failure - Expired Token", func(t *testing.T) {
		var actor models.Actor

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, uuid.New(), time.Now().Add(-time.Hour)))
		rec := httptest.NewRecorder()

		m.Resolve(captureActor(&actor)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Failure - Wrong Signing Key", func(t *testing.T) {
		var actor models.Actor

		other := middleware.NewActorMiddleware([]byte("other-key"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, uuid.New(), time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()

		other.Resolve(captureActor(&actor)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	m := middleware.NewActorMiddleware(testJWTKey)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("Success - Authenticated Actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, uuid.New(), time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()

		m.Resolve(m.RequireAuth(next)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Failure - Guest Only", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", nil)
		req.AddCookie(&http.Cookie{Name: middleware.GuestTokenCookie, Value: "guest-abc"})
		rec := httptest.NewRecorder()

		m.Resolve(m.RequireAuth(next)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Failure - Anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", nil)
		rec := httptest.NewRecorder()

		m.Resolve(m.RequireAuth(next)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
