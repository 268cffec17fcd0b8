package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID               uuid.UUID   `json:"id"`
	CustomerID       uuid.UUID   `json:"customer_id"`
	EnterpriseID     uuid.UUID   `json:"enterprise_id"`
	Status           OrderStatus `json:"status"`
	TotalAmount      float64     `json:"total_amount"`
	CommissionAmount float64     `json:"commission_amount"`
	PaymentIntentID  string      `json:"payment_intent_id,omitempty"`
	Details          []OrderDetail
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type OrderDetail struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	FoodID    uuid.UUID `json:"food_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	SubTotal  float64   `json:"sub_total"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

type Payment struct {
	ID              uuid.UUID     `json:"id"`
	OrderID         uuid.UUID     `json:"order_id"`
	CustomerID      uuid.UUID     `json:"customer_id"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency"`
	PaymentIntentID string        `json:"payment_intent_id"`
	Status          PaymentStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Settlement accumulates one calendar month of orders for an enterprise.
// NetPayout is always recomputed from the attached settlement items, never
// adjusted incrementally.
type Settlement struct {
	ID           uuid.UUID `json:"id"`
	EnterpriseID uuid.UUID `json:"enterprise_id"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	NetPayout    float64   `json:"net_payout"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type SettlementItem struct {
	ID               uuid.UUID `json:"id"`
	SettlementID     uuid.UUID `json:"settlement_id"`
	OrderID          uuid.UUID `json:"order_id"`
	OrderTotal       float64   `json:"order_total"`
	CommissionAmount float64   `json:"commission_amount"`
	CreatedAt        time.Time `json:"created_at"`
}

// PaymentConfirmation is the gateway's answer for a checkout session lookup.
type PaymentConfirmation struct {
	Paid            bool
	PaymentIntentID string
	AmountTotal     int64 // minor units
	Currency        string
	Metadata        map[string]string
}

type CheckoutResult struct {
	OrderID uuid.UUID `json:"order_id"`
	Reused  bool      `json:"reused"`
	Success bool      `json:"success"`
}

type FinalizeCheckoutRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}
