package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Food struct {
	ID           uuid.UUID `json:"id"`
	EnterpriseID uuid.UUID `json:"enterprise_id"`
	Name         string    `json:"name"`
	Price        float64   `json:"price"`
	Image        string    `json:"image,omitempty"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	IsAvailable  bool      `json:"is_available"`
}

type Enterprise struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	// CommissionRate is a percentage. Nil means the platform default applies.
	CommissionRate *float64 `json:"commission_rate,omitempty"`
}
