package repository_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aryankhatri/food-ordering-platform/internal/models"
	repository "github.com/aryankhatri/food-ordering-platform/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCartRepoTest(t *testing.T) (repository.CartRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	t.Cleanup(func() {
		db.Close()
	})

	repo := repository.NewCartRepo(db)
	require.NotNil(t, repo, "NewCartRepo should return a non-nil repository")

	return repo, mock
}

func cartRows(cart *models.Cart) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "customer_id", "guest_token", "enterprise_id", "status", "expires_at", "created_at"})

	var customerID any
	if cart.CustomerID != nil {
		customerID = *cart.CustomerID
	}

	var guestToken any
	if cart.GuestToken != nil {
		guestToken = *cart.GuestToken
	}

	var expiresAt any
	if cart.ExpiresAt != nil {
		expiresAt = *cart.ExpiresAt
	}

	return rows.AddRow(cart.ID, customerID, guestToken, cart.EnterpriseID, string(cart.Status), expiresAt, cart.CreatedAt)
}

func TestCreateCart(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	now := time.Now()

	t.Run("Success - Guest Cart", func(t *testing.T) {
		// Arrange
		token := uuid.NewString()
		expiresAt := now.Add(24 * time.Hour)
		cart := &models.Cart{
			ID:           uuid.New(),
			GuestToken:   &token,
			EnterpriseID: uuid.New(),
			Status:       models.CartStatusActive,
			ExpiresAt:    &expiresAt,
		}

		mock.ExpectQuery(`INSERT INTO carts`).
			WithArgs(cart.ID, uuid.NullUUID{}, sql.NullString{String: token, Valid: true}, cart.EnterpriseID, cart.Status, sql.NullTime{Time: expiresAt, Valid: true}).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

		// Act
		err := repo.CreateCart(ctx, cart)

		// Assert
		require.NoError(t, err)
		assert.WithinDuration(t, now, cart.CreatedAt, time.Second)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - User Cart", func(t *testing.T) {
		// Arrange
		customerID := uuid.New()
		cart := &models.Cart{
			ID:           uuid.New(),
			CustomerID:   &customerID,
			EnterpriseID: uuid.New(),
			Status:       models.CartStatusActive,
		}

		mock.ExpectQuery(`INSERT INTO carts`).
			WithArgs(cart.ID, uuid.NullUUID{UUID: customerID, Valid: true}, sql.NullString{}, cart.EnterpriseID, cart.Status, sql.NullTime{}).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

		// Act
		err := repo.CreateCart(ctx, cart)

		// Assert
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		// Arrange
		token := uuid.NewString()
		cart := &models.Cart{ID: uuid.New(), GuestToken: &token, EnterpriseID: uuid.New(), Status: models.CartStatusActive}
		dbError := errors.New("insert failed")

		mock.ExpectQuery(`INSERT INTO carts`).WillReturnError(dbError)

		// Act
		err := repo.CreateCart(ctx, cart)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, dbError)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetCartByID(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()

	customerID := uuid.New()
	cart := &models.Cart{
		ID:           uuid.New(),
		CustomerID:   &customerID,
		EnterpriseID: uuid.New(),
		Status:       models.CartStatusActive,
		CreatedAt:    time.Now(),
	}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mock.ExpectQuery(`(?s)SELECT .+FROM carts.+WHERE id = \$1`).
			WithArgs(cart.ID).
			WillReturnRows(cartRows(cart))

		// Act
		got, err := repo.GetCartByID(ctx, cart.ID)

		// Assert
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, cart.ID, got.ID)
		require.NotNil(t, got.CustomerID)
		assert.Equal(t, customerID, *got.CustomerID)
		assert.Nil(t, got.GuestToken)
		assert.Nil(t, got.ExpiresAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		// Arrange
		mock.ExpectQuery(`(?s)SELECT .+FROM carts.+WHERE id = \$1`).
			WithArgs(cart.ID).
			WillReturnError(sql.ErrNoRows)

		// Act
		got, err := repo.GetCartByID(ctx, cart.ID)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindActiveCartByCustomer(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	customerID := uuid.New()

	t.Run("Success - Cart Found", func(t *testing.T) {
		// Arrange
		cart := &models.Cart{ID: uuid.New(), CustomerID: &customerID, EnterpriseID: uuid.New(), Status: models.CartStatusActive, CreatedAt: time.Now()}

		mock.ExpectQuery(`(?s)SELECT .+FROM carts.+WHERE customer_id = \$1 AND status = 'active'`).
			WithArgs(customerID).
			WillReturnRows(cartRows(cart))

		// Act
		got, err := repo.FindActiveCartByCustomer(ctx, customerID)

		// Assert
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, cart.ID, got.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - No Active Cart", func(t *testing.T) {
		// Arrange
		mock.ExpectQuery(`(?s)SELECT .+FROM carts.+WHERE customer_id = \$1 AND status = 'active'`).
			WithArgs(customerID).
			WillReturnError(sql.ErrNoRows)

		// Act
		got, err := repo.FindActiveCartByCustomer(ctx, customerID)

		// Assert: no rows is a miss, not an error
		require.NoError(t, err)
		assert.Nil(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindActiveCartByGuestToken(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	token := uuid.NewString()

	t.Run("Success - Cart Found", func(t *testing.T) {
		// Arrange
		expiresAt := time.Now().Add(time.Hour)
		cart := &models.Cart{ID: uuid.New(), GuestToken: &token, EnterpriseID: uuid.New(), Status: models.CartStatusActive, ExpiresAt: &expiresAt, CreatedAt: time.Now()}

		mock.ExpectQuery(`(?s)SELECT .+FROM carts.+WHERE guest_token = \$1 AND status = 'active'`).
			WithArgs(token).
			WillReturnRows(cartRows(cart))

		// Act
		got, err := repo.FindActiveCartByGuestToken(ctx, token)

		// Assert
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NotNil(t, got.GuestToken)
		assert.Equal(t, token, *got.GuestToken)
		require.NotNil(t, got.ExpiresAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - No Active Cart", func(t *testing.T) {
		// Arrange
		mock.ExpectQuery(`(?s)SELECT .+FROM carts.+WHERE guest_token = \$1 AND status = 'active'`).
			WithArgs(token).
			WillReturnError(sql.ErrNoRows)

		// Act
		got, err := repo.FindActiveCartByGuestToken(ctx, token)

		// Assert
		require.NoError(t, err)
		assert.Nil(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpsertItem(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()

	item := &models.CartItem{
		ID:       uuid.New(),
		CartID:   uuid.New(),
		FoodID:   uuid.New(),
		Quantity: 2,
		Price:    9.99,
		Note:     "no onions",
	}

	t.Run("Success - Returns Resulting Quantity", func(t *testing.T) {
		// Arrange: the row already held 3, the upsert adds 2
		mock.ExpectQuery(`(?s)INSERT INTO cart_items.+ON CONFLICT \(cart_id, food_id\)`).
			WithArgs(item.ID, item.CartID, item.FoodID, item.Quantity, item.Price, item.Note).
			WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(5))

		// Act
		quantity, err := repo.UpsertItem(ctx, item)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 5, quantity)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		// Arrange
		dbError := errors.New("constraint violation")
		mock.ExpectQuery(`INSERT INTO cart_items`).WillReturnError(dbError)

		// Act
		quantity, err := repo.UpsertItem(ctx, item)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, dbError)
		assert.Zero(t, quantity)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateItemQuantity(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	cartID := uuid.New()
	foodID := uuid.New()

	t.Run("Success - Item Updated", func(t *testing.T) {
		// Arrange
		mock.ExpectExec(`(?s)UPDATE cart_items.+SET quantity = \$3`).
			WithArgs(cartID, foodID, 4).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// Act
		found, err := repo.UpdateItemQuantity(ctx, cartID, foodID, 4)

		// Assert
		require.NoError(t, err)
		assert.True(t, found)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - Item Absent Is Not An Error", func(t *testing.T) {
		// Arrange
		mock.ExpectExec(`(?s)UPDATE cart_items.+SET quantity = \$3`).
			WithArgs(cartID, foodID, 4).
			WillReturnResult(sqlmock.NewResult(0, 0))

		// Act
		found, err := repo.UpdateItemQuantity(ctx, cartID, foodID, 4)

		// Assert
		require.NoError(t, err)
		assert.False(t, found)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteItem(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	cartID := uuid.New()
	foodID := uuid.New()

	t.Run("Success - Absent Item Is A No-Op", func(t *testing.T) {
		// Arrange
		mock.ExpectExec(`DELETE FROM cart_items`).
			WithArgs(cartID, foodID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		// Act
		err := repo.DeleteItem(ctx, cartID, foodID)

		// Assert
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		// Arrange
		dbError := errors.New("delete failed")
		mock.ExpectExec(`DELETE FROM cart_items`).WillReturnError(dbError)

		// Act
		err := repo.DeleteItem(ctx, cartID, foodID)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, dbError)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetItems(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	cartID := uuid.New()
	now := time.Now()

	t.Run("Success - Multiple Items", func(t *testing.T) {
		// Arrange
		rows := sqlmock.NewRows([]string{"id", "cart_id", "food_id", "quantity", "price", "note", "created_at", "updated_at"}).
			AddRow(uuid.New(), cartID, uuid.New(), 2, 9.99, "", now, now).
			AddRow(uuid.New(), cartID, uuid.New(), 1, 4.50, "extra spicy", now, now)

		mock.ExpectQuery(`(?s)SELECT .+FROM cart_items.+WHERE cart_id = \$1`).
			WithArgs(cartID).
			WillReturnRows(rows)

		// Act
		items, err := repo.GetItems(ctx, cartID)

		// Assert
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, 2, items[0].Quantity)
		assert.Equal(t, "extra spicy", items[1].Note)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - Empty Cart", func(t *testing.T) {
		// Arrange
		mock.ExpectQuery(`(?s)SELECT .+FROM cart_items.+WHERE cart_id = \$1`).
			WithArgs(cartID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "food_id", "quantity", "price", "note", "created_at", "updated_at"}))

		// Act
		items, err := repo.GetItems(ctx, cartID)

		// Assert
		require.NoError(t, err)
		assert.Empty(t, items)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetActiveItemsByCustomer(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	customerID := uuid.New()
	enterpriseID := uuid.New()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		rows := sqlmock.NewRows([]string{"id", "cart_id", "food_id", "quantity", "price", "note", "created_at", "updated_at", "enterprise_id"}).
			AddRow(uuid.New(), uuid.New(), uuid.New(), 3, 12.00, "", now, now, enterpriseID)

		mock.ExpectQuery(`(?s)SELECT .+FROM cart_items ci.+JOIN carts c ON c\.id = ci\.cart_id`).
			WithArgs(customerID).
			WillReturnRows(rows)

		// Act
		items, err := repo.GetActiveItemsByCustomer(ctx, customerID)

		// Assert
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, enterpriseID, items[0].EnterpriseID)
		assert.Equal(t, 3, items[0].Quantity)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAbandonCart(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	cartID := uuid.New()

	t.Run("Success - Status Flip And Item Delete In One Transaction", func(t *testing.T) {
		// Arrange
		mock.ExpectBegin()
		mock.ExpectExec(`(?s)UPDATE carts.+SET status = 'abandoned', guest_token = NULL, expires_at = NULL`).
			WithArgs(cartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM cart_items`).
			WithArgs(cartID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		// Act
		err := repo.AbandonCart(ctx, cartID)

		// Assert
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - Already Abandoned Cart Is Harmless", func(t *testing.T) {
		// Arrange: zero affected rows on both statements still commits
		mock.ExpectBegin()
		mock.ExpectExec(`(?s)UPDATE carts.+SET status = 'abandoned'`).
			WithArgs(cartID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM cart_items`).
			WithArgs(cartID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		// Act
		err := repo.AbandonCart(ctx, cartID)

		// Assert
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Rolls Back On Item Delete Error", func(t *testing.T) {
		// Arrange
		dbError := errors.New("delete failed")
		mock.ExpectBegin()
		mock.ExpectExec(`(?s)UPDATE carts.+SET status = 'abandoned'`).
			WithArgs(cartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM cart_items`).
			WithArgs(cartID).
			WillReturnError(dbError)
		mock.ExpectRollback()

		// Act
		err := repo.AbandonCart(ctx, cartID)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, dbError)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAssignCartToCustomer(t *testing.T) {
	repo, mock := setupCartRepoTest(t)
	ctx := t.Context()
	cartID := uuid.New()
	customerID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mock.ExpectExec(`(?s)UPDATE carts.+SET customer_id = \$2, guest_token = NULL, expires_at = NULL`).
			WithArgs(cartID, customerID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// Act
		err := repo.AssignCartToCustomer(ctx, cartID, customerID)

		// Assert
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure - Cart Missing", func(t *testing.T) {
		// Arrange
		mock.ExpectExec(`(?s)UPDATE carts.+SET customer_id = \$2`).
			WithArgs(cartID, customerID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		// Act
		err := repo.AssignCartToCustomer(ctx, cartID, customerID)

		// Assert
		require.Error(t, err)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
