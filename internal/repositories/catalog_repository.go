package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aryankhatri/food-ordering-platform/internal/models"
	"github.com/aryankhatri/food-ordering-platform/internal/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CatalogRepository reads the entities the cart logic references but never
// owns: customers, foods and enterprises.
type CatalogRepository interface {
	GetCustomerByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Customer, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetFoodByID(ctx context.Context, id uuid.UUID) (*models.Food, error)
	GetFoodsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Food, error)
	GetEnterpriseByID(ctx context.Context, id uuid.UUID) (*models.Enterprise, error)
}

type catalogRepository struct {
	DB *sql.DB
}

func NewCatalogRepo(db *sql.DB) CatalogRepository {
	return &catalogRepository{DB: db}
}

func (r *catalogRepository) GetCustomerByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Customer, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, account_id, name, email, created_at
		FROM customers
		WHERE account_id = $1
	`

	customer := &models.Customer{}

	err := r.DB.QueryRowContext(dbCtx, query, accountID).Scan(&customer.ID, &customer.AccountID, &customer.Name, &customer.Email, &customer.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get customer by account: %w", err)
	}

	return customer, nil
}

func (r *catalogRepository) GetCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, account_id, name, email, created_at
		FROM customers
		WHERE id = $1
	`

	customer := &models.Customer{}

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(&customer.ID, &customer.AccountID, &customer.Name, &customer.Email, &customer.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return customer, nil
}

func (r *catalogRepository) GetFoodByID(ctx context.Context, id uuid.UUID) (*models.Food, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, enterprise_id, name, price, image, description, category, is_available
		FROM foods
		WHERE id = $1
	`

	food := &models.Food{}

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(&food.ID, &food.EnterpriseID, &food.Name, &food.Price, &food.Image, &food.Description, &food.Category, &food.IsAvailable)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get food: %w", err)
	}

	return food, nil
}

// GetFoodsByIDs batch-fetches display metadata for cache hydration, one round
// trip for the whole cart.
func (r *catalogRepository) GetFoodsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Food, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	foods := make(map[uuid.UUID]models.Food, len(ids))

	if len(ids) == 0 {
		return foods, nil
	}

	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}

	query := `
		SELECT id, enterprise_id, name, price, image, description, category, is_available
		FROM foods
		WHERE id = ANY($1)
	`

	rows, err := r.DB.QueryContext(dbCtx, query, pq.Array(idStrings))
	if err != nil {
		return nil, fmt.Errorf("failed to batch fetch foods: %w", err)
	}

	defer rows.Close()

	for rows.Next() {

		var food models.Food

		err := rows.Scan(&food.ID, &food.EnterpriseID, &food.Name, &food.Price, &food.Image, &food.Description, &food.Category, &food.IsAvailable)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food: %w", err)
		}

		foods[food.ID] = food

	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return foods, nil
}

func (r *catalogRepository) GetEnterpriseByID(ctx context.Context, id uuid.UUID) (*models.Enterprise, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, commission_rate
		FROM enterprises
		WHERE id = $1
	`

	enterprise := &models.Enterprise{}

	var commissionRate sql.NullFloat64

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(&enterprise.ID, &enterprise.Name, &commissionRate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get enterprise: %w", err)
	}

	if commissionRate.Valid {
		enterprise.CommissionRate = &commissionRate.Float64
	}

	return enterprise, nil
}
