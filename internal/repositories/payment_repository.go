package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aryankhatri/food-ordering-platform/internal/models"
	"github.com/aryankhatri/food-ordering-platform/internal/utils"
)

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Payment, error)
}

type paymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepository {
	return &paymentRepository{DB: db}
}

func (r *paymentRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO payments (id, order_id, customer_id, amount, currency, payment_intent_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := r.DB.ExecContext(dbCtx, query, payment.ID, payment.OrderID, payment.CustomerID, payment.Amount, payment.Currency, payment.PaymentIntentID, payment.Status)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

// FindByPaymentIntentID is the second idempotency guard of checkout: one
// payment row per gateway payment intent. Returns (nil, nil) on no match.
func (r *paymentRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Payment, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, order_id, customer_id, amount, currency, payment_intent_id, status, created_at
		FROM payments
		WHERE payment_intent_id = $1
	`

	payment := &models.Payment{}

	err := r.DB.QueryRowContext(dbCtx, query, paymentIntentID).Scan(&payment.ID, &payment.OrderID, &payment.CustomerID, &payment.Amount, &payment.Currency, &payment.PaymentIntentID, &payment.Status, &payment.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment by intent id: %w", err)
	}

	return payment, nil
}
