package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aryankhatri/food-ordering-platform/internal/models"
	"github.com/aryankhatri/food-ordering-platform/internal/utils"
	"github.com/google/uuid"
)

type OrderRepository interface {
	CreateOrderWithDetails(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindRecentConfirmedOrder(ctx context.Context, customerID uuid.UUID, totalAmount float64, window time.Duration) (*models.Order, error)
}

type orderRepository struct {
	DB *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepository {
	return &orderRepository{DB: db}
}

// CreateOrderWithDetails inserts the order and all of its line items in one
// transaction; a partial order can never become visible.
func (r *orderRepository) CreateOrderWithDetails(ctx context.Context, order *models.Order) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin order transaction: %w", err)
	}

	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (id, customer_id, enterprise_id, status, total_amount, commission_amount, payment_intent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`

	_, err = tx.ExecContext(dbCtx, orderQuery, order.ID, order.CustomerID, order.EnterpriseID, order.Status, order.TotalAmount, order.CommissionAmount, order.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	detailQuery := `
		INSERT INTO order_details (id, order_id, food_id, quantity, unit_price, sub_total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	for _, detail := range order.Details {

		_, err := tx.ExecContext(dbCtx, detailQuery, detail.ID, order.ID, detail.FoodID, detail.Quantity, detail.UnitPrice, detail.SubTotal)
		if err != nil {
			return fmt.Errorf("failed to insert order detail: %w", err)
		}

	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order transaction: %w", err)
	}

	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	order := &models.Order{}

	query := `
		SELECT id, customer_id, enterprise_id, status, total_amount, commission_amount, payment_intent_id, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(&order.ID, &order.CustomerID, &order.EnterpriseID, &order.Status, &order.TotalAmount, &order.CommissionAmount, &order.PaymentIntentID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	detailsQuery := `
		SELECT id, food_id, quantity, unit_price, sub_total, created_at
		FROM order_details
		WHERE order_id = $1
	`

	rows, err := r.DB.QueryContext(dbCtx, detailsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order details: %w", err)
	}

	defer rows.Close()

	var details []models.OrderDetail

	for rows.Next() {

		var detail models.OrderDetail

		err := rows.Scan(&detail.ID, &detail.FoodID, &detail.Quantity, &detail.UnitPrice, &detail.SubTotal, &detail.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order detail: %w", err)
		}

		detail.OrderID = order.ID

		details = append(details, detail)

	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	order.Details = details

	return order, nil
}

// FindRecentConfirmedOrder is the duplicate-webhook guard: an order for the
// same customer with the same total, confirmed inside the window, is reused
// instead of creating a second one. Returns (nil, nil) when no match exists.
func (r *orderRepository) FindRecentConfirmedOrder(ctx context.Context, customerID uuid.UUID, totalAmount float64, window time.Duration) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, customer_id, enterprise_id, status, total_amount, commission_amount, payment_intent_id, created_at, updated_at
		FROM orders
		WHERE customer_id = $1 AND total_amount = $2 AND status = 'confirmed' AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	order := &models.Order{}

	cutoff := time.Now().Add(-window)

	err := r.DB.QueryRowContext(dbCtx, query, customerID, totalAmount, cutoff).Scan(&order.ID, &order.CustomerID, &order.EnterpriseID, &order.Status, &order.TotalAmount, &order.CommissionAmount, &order.PaymentIntentID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find recent confirmed order: %w", err)
	}

	return order, nil
}
