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

type CartRepository interface {
	CreateCart(ctx context.Context, cart *models.Cart) error
	GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindActiveCartByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	FindCartByGuestToken(ctx context.Context, token string) (*models.Cart, error)
	FindActiveCartByGuestToken(ctx context.Context, token string) (*models.Cart, error)
	ReactivateGuestCart(ctx context.Context, cartID, enterpriseID uuid.UUID, expiresAt time.Time) error
	AssignCartToCustomer(ctx context.Context, cartID, customerID uuid.UUID) error
	UpsertItem(ctx context.Context, item *models.CartItem) (int, error)
	UpdateItemQuantity(ctx context.Context, cartID, foodID uuid.UUID, quantity int) (bool, error)
	DeleteItem(ctx context.Context, cartID, foodID uuid.UUID) error
	GetItem(ctx context.Context, cartID, foodID uuid.UUID) (*models.CartItem, error)
	GetItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	GetActiveItemsByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CustomerCartItem, error)
	AbandonCart(ctx context.Context, cartID uuid.UUID) error
}

type cartRepository struct {
	DB *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepository {
	return &cartRepository{DB: db}
}

const cartColumns = `id, customer_id, guest_token, enterprise_id, status, expires_at, created_at`

func scanCart(row *sql.Row) (*models.Cart, error) {
	cart := &models.Cart{}

	var customerID uuid.NullUUID
	var guestToken sql.NullString
	var expiresAt sql.NullTime

	err := row.Scan(&cart.ID, &customerID, &guestToken, &cart.EnterpriseID, &cart.Status, &expiresAt, &cart.CreatedAt)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		cart.CustomerID = &customerID.UUID
	}

	if guestToken.Valid {
		cart.GuestToken = &guestToken.String
	}

	if expiresAt.Valid {
		cart.ExpiresAt = &expiresAt.Time
	}

	return cart, nil
}

func (r *cartRepository) CreateCart(ctx context.Context, cart *models.Cart) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO carts (id, customer_id, guest_token, enterprise_id, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	var customerID uuid.NullUUID
	if cart.CustomerID != nil {
		customerID = uuid.NullUUID{UUID: *cart.CustomerID, Valid: true}
	}

	var guestToken sql.NullString
	if cart.GuestToken != nil {
		guestToken = sql.NullString{String: *cart.GuestToken, Valid: true}
	}

	var expiresAt sql.NullTime
	if cart.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *cart.ExpiresAt, Valid: true}
	}

	return r.DB.QueryRowContext(dbCtx, query, cart.ID, customerID, guestToken, cart.EnterpriseID, cart.Status, expiresAt).Scan(&cart.CreatedAt)
}

func (r *cartRepository) GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + cartColumns + `
		FROM carts
		WHERE id = $1
	`

	cart, err := scanCart(r.DB.QueryRowContext(dbCtx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get cart %s: %w", id, err)
	}

	return cart, nil
}

// FindActiveCartByCustomer returns (nil, nil) when the customer has no active
// cart; the most recently created one wins when several exist.
func (r *cartRepository) FindActiveCartByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + cartColumns + `
		FROM carts
		WHERE customer_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`

	cart, err := scanCart(r.DB.QueryRowContext(dbCtx, query, customerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active cart for customer %s: %w", customerID, err)
	}

	return cart, nil
}

// FindCartByGuestToken looks a cart up by token regardless of status. The
// guest-token unique constraint means at most one row can match; an abandoned
// row is reactivated by the mutation engine instead of inserting a duplicate.
func (r *cartRepository) FindCartByGuestToken(ctx context.Context, token string) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + cartColumns + `
		FROM carts
		WHERE guest_token = $1
	`

	cart, err := scanCart(r.DB.QueryRowContext(dbCtx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find cart by guest token: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) FindActiveCartByGuestToken(ctx context.Context, token string) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + cartColumns + `
		FROM carts
		WHERE guest_token = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`

	cart, err := scanCart(r.DB.QueryRowContext(dbCtx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active cart by guest token: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) ReactivateGuestCart(ctx context.Context, cartID, enterpriseID uuid.UUID, expiresAt time.Time) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE carts
		SET status = 'active', enterprise_id = $2, expires_at = $3
		WHERE id = $1
	`

	result, err := r.DB.ExecContext(dbCtx, query, cartID, enterpriseID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to reactivate guest cart: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// AssignCartToCustomer hands a guest cart to a registered user: the token is
// cleared to free the unique slot and the expiry is dropped, user carts do not
// expire.
func (r *cartRepository) AssignCartToCustomer(ctx context.Context, cartID, customerID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE carts
		SET customer_id = $2, guest_token = NULL, expires_at = NULL, status = 'active'
		WHERE id = $1
	`

	result, err := r.DB.ExecContext(dbCtx, query, cartID, customerID)
	if err != nil {
		return fmt.Errorf("failed to assign cart to customer: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// UpsertItem adds quantity to an existing (cart, food) row or inserts a fresh
// one, atomically via ON CONFLICT, so concurrent adds of the same food cannot
// race between an existence check and a write. Price and note are re-stamped
// on every call. Returns the resulting quantity.
func (r *cartRepository) UpsertItem(ctx context.Context, item *models.CartItem) (int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO cart_items (id, cart_id, food_id, quantity, price, note, created_at, updated_at)
		VALUES ($1, $2, $3, GREATEST($4, 1), $5, $6, NOW(), NOW())
		ON CONFLICT (cart_id, food_id)
		DO UPDATE SET quantity = cart_items.quantity + $4, price = EXCLUDED.price, note = EXCLUDED.note, updated_at = NOW()
		RETURNING quantity
	`

	var quantity int

	err := r.DB.QueryRowContext(dbCtx, query, item.ID, item.CartID, item.FoodID, item.Quantity, item.Price, item.Note).Scan(&quantity)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return quantity, nil
}

// UpdateItemQuantity sets an absolute quantity. Returns false when the item
// was never added; callers treat that as a no-op, not an error.
func (r *cartRepository) UpdateItemQuantity(ctx context.Context, cartID, foodID uuid.UUID, quantity int) (bool, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE cart_id = $1 AND food_id = $2
	`

	result, err := r.DB.ExecContext(dbCtx, query, cartID, foodID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to update cart item quantity: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get updated rows: %w", err)
	}

	return updatedRows > 0, nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, foodID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND food_id = $2
	`

	// RowsAffected deliberately unchecked: deleting an absent item is a no-op.
	_, err := r.DB.ExecContext(dbCtx, query, cartID, foodID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	return nil
}

func (r *cartRepository) GetItem(ctx context.Context, cartID, foodID uuid.UUID) (*models.CartItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, cart_id, food_id, quantity, price, note, created_at, updated_at
		FROM cart_items
		WHERE cart_id = $1 AND food_id = $2
	`

	item := &models.CartItem{}

	err := r.DB.QueryRowContext(dbCtx, query, cartID, foodID).Scan(&item.ID, &item.CartID, &item.FoodID, &item.Quantity, &item.Price, &item.Note, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}

	return item, nil
}

func (r *cartRepository) GetItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, cart_id, food_id, quantity, price, note, created_at, updated_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at
	`

	rows, err := r.DB.QueryContext(dbCtx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}

	defer rows.Close()

	var items []models.CartItem

	for rows.Next() {

		var item models.CartItem

		err := rows.Scan(&item.ID, &item.CartID, &item.FoodID, &item.Quantity, &item.Price, &item.Note, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		items = append(items, item)

	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// GetActiveItemsByCustomer loads the line items of every active cart the
// customer owns, by join. Checkout uses this instead of a resolved cart id so
// a stale identity cache cannot hide items.
func (r *cartRepository) GetActiveItemsByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.CustomerCartItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ci.id, ci.cart_id, ci.food_id, ci.quantity, ci.price, ci.note, ci.created_at, ci.updated_at, c.enterprise_id
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.customer_id = $1 AND c.status = 'active'
		ORDER BY ci.created_at
	`

	rows, err := r.DB.QueryContext(dbCtx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer cart items: %w", err)
	}

	defer rows.Close()

	var items []models.CustomerCartItem

	for rows.Next() {

		var item models.CustomerCartItem

		err := rows.Scan(&item.ID, &item.CartID, &item.FoodID, &item.Quantity, &item.Price, &item.Note, &item.CreatedAt, &item.UpdatedAt, &item.EnterpriseID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer cart item: %w", err)
		}

		items = append(items, item)

	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// AbandonCart flips the status, frees the guest-token slot and deletes all
// line items as one transaction. Safe to call on an already abandoned cart.
func (r *cartRepository) AbandonCart(ctx context.Context, cartID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin abandon transaction: %w", err)
	}

	defer tx.Rollback()

	updateQuery := `
		UPDATE carts
		SET status = 'abandoned', guest_token = NULL, expires_at = NULL
		WHERE id = $1
	`

	if _, err := tx.ExecContext(dbCtx, updateQuery, cartID); err != nil {
		return fmt.Errorf("failed to abandon cart: %w", err)
	}

	deleteQuery := `
		DELETE FROM cart_items
		WHERE cart_id = $1
	`

	if _, err := tx.ExecContext(dbCtx, deleteQuery, cartID); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit abandon transaction: %w", err)
	}

	return nil
}
