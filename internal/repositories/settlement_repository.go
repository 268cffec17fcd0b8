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

type SettlementRepository interface {
	FindOrCreateForPeriod(ctx context.Context, enterpriseID uuid.UUID, periodStart, periodEnd time.Time) (*models.Settlement, error)
	AttachOrder(ctx context.Context, settlementID uuid.UUID, order *models.Order) (bool, error)
	RecomputeNetPayout(ctx context.Context, settlementID uuid.UUID) (float64, error)
}

type settlementRepository struct {
	DB *sql.DB
}

func NewSettlementRepo(db *sql.DB) SettlementRepository {
	return &settlementRepository{DB: db}
}

func (r *settlementRepository) FindOrCreateForPeriod(ctx context.Context, enterpriseID uuid.UUID, periodStart, periodEnd time.Time) (*models.Settlement, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	selectQuery := `
		SELECT id, enterprise_id, period_start, period_end, net_payout, created_at, updated_at
		FROM settlements
		WHERE enterprise_id = $1 AND period_start = $2 AND period_end = $3
	`

	settlement := &models.Settlement{}

	err := r.DB.QueryRowContext(dbCtx, selectQuery, enterpriseID, periodStart, periodEnd).Scan(&settlement.ID, &settlement.EnterpriseID, &settlement.PeriodStart, &settlement.PeriodEnd, &settlement.NetPayout, &settlement.CreatedAt, &settlement.UpdatedAt)
	if err == nil {
		return settlement, nil
	}

	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find settlement: %w", err)
	}

	insertQuery := `
		INSERT INTO settlements (id, enterprise_id, period_start, period_end, net_payout, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	settlement = &models.Settlement{
		ID:           uuid.New(),
		EnterpriseID: enterpriseID,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
	}

	err = r.DB.QueryRowContext(dbCtx, insertQuery, settlement.ID, enterpriseID, periodStart, periodEnd).Scan(&settlement.CreatedAt, &settlement.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}

	return settlement, nil
}

// AttachOrder links an order to a settlement exactly once. ON CONFLICT on the
// (settlement_id, order_id) unique pair makes re-entrant checkout calls skip
// the insert; the return value reports whether a row was actually added.
func (r *settlementRepository) AttachOrder(ctx context.Context, settlementID uuid.UUID, order *models.Order) (bool, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO settlement_items (id, settlement_id, order_id, order_total, commission_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (settlement_id, order_id) DO NOTHING
	`

	result, err := r.DB.ExecContext(dbCtx, query, uuid.New(), settlementID, order.ID, order.TotalAmount, order.CommissionAmount)
	if err != nil {
		return false, fmt.Errorf("failed to attach order to settlement: %w", err)
	}

	insertedRows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get inserted rows: %w", err)
	}

	return insertedRows > 0, nil
}

// RecomputeNetPayout rebuilds the payout from the attached items from scratch
// on every call. Incremental adjustment would drift under reused orders.
func (r *settlementRepository) RecomputeNetPayout(ctx context.Context, settlementID uuid.UUID) (float64, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE settlements
		SET net_payout = (
			SELECT COALESCE(SUM(order_total - commission_amount), 0)
			FROM settlement_items
			WHERE settlement_id = $1
		), updated_at = NOW()
		WHERE id = $1
		RETURNING net_payout
	`

	var netPayout float64

	err := r.DB.QueryRowContext(dbCtx, query, settlementID).Scan(&netPayout)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute settlement payout: %w", err)
	}

	return netPayout, nil
}
