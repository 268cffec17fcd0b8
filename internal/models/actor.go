package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Actor identifies the caller of a cart operation: an authenticated account,
// a guest, or both during the login transition. When both are present the
// user id takes precedence for cart resolution.
type Actor struct {
	UserID     *uuid.UUID
	GuestToken string
}

func (a Actor) IsGuest() bool {
	return a.UserID == nil && a.GuestToken != ""
}

func (a Actor) IsAuthenticated() bool {
	return a.UserID != nil
}

type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}
