package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// PositionRepository handles database operations for Positions, the record
// of every executed LMSR bet or filled P2P order (§3).
type PositionRepository struct {
	db *sqlx.DB
}

// NewPositionRepository creates a new PositionRepository.
func NewPositionRepository(db *sqlx.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create inserts a new position inside tx.
func (r *PositionRepository) Create(ctx context.Context, tx *sqlx.Tx, p *domain.Position) error {
	query := `
		INSERT INTO positions
			(id, address, market_id, outcome, shares, cost_paid, app_session_id,
			 app_session_version, session_status, mode, fee, session_data, created_at)
		VALUES
			(:id, :address, :market_id, :outcome, :shares, :cost_paid, :app_session_id,
			 :app_session_version, :session_status, :mode, :fee, :session_data, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("position_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a position by its primary key.
func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	var p domain.Position
	err := r.db.GetContext(ctx, &p, `SELECT * FROM positions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, fmt.Errorf("position_repo.GetByID: %w", err)
	}
	return &p, nil
}

// GetByAddress returns an address's full position history, newest first.
func (r *PositionRepository) GetByAddress(ctx context.Context, address string, limit, offset int) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := r.db.SelectContext(ctx, &positions,
		`SELECT * FROM positions WHERE address = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("position_repo.GetByAddress: %w", err)
	}
	return positions, nil
}

// GetUnsettledByMarket returns every position in a market whose session is
// not yet settled, the Resolution Pipeline's per-market work list (§4.7).
func (r *PositionRepository) GetUnsettledByMarket(ctx context.Context, marketID uuid.UUID, mode domain.PositionMode) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := r.db.SelectContext(ctx, &positions,
		`SELECT * FROM positions
		 WHERE market_id = $1 AND mode = $2 AND session_status != 'settled'
		 ORDER BY created_at ASC`,
		marketID, mode)
	if err != nil {
		return nil, fmt.Errorf("position_repo.GetUnsettledByMarket: %w", err)
	}
	return positions, nil
}

// UpdateSession advances a position's session bookkeeping after an
// app-session RPC round trip: the new version, status, and session-data blob.
// version must be strictly greater than the stored value; otherwise nothing
// is written and ErrSessionVersionRegression is returned (session-version
// monotonicity, §5).
func (r *PositionRepository) UpdateSession(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, version int64, status domain.SessionStatus, sessionData json.RawMessage) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE positions
		 SET app_session_version = $1, session_status = $2, session_data = $3
		 WHERE id = $4 AND app_session_version < $1`,
		version, status, sessionData, id)
	if err != nil {
		return fmt.Errorf("position_repo.UpdateSession: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionVersionRegression
	}
	return nil
}

// MarkSettled closes out a position's session after the settlement-service
// has confirmed the payout, recording the final outcome blob and the fee
// charged (zero for a losing position, which pays no separate fee). This is
// the last write before ArchiveAndClear copies fee into the finance-report
// rollup, so it must land before the market's positions are archived.
func (r *PositionRepository) MarkSettled(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, fee decimal.Decimal, sessionData json.RawMessage) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE positions SET session_status = 'settled', fee = $1, session_data = $2 WHERE id = $3`,
		fee, sessionData, id)
	if err != nil {
		return fmt.Errorf("position_repo.MarkSettled: %w", err)
	}
	return nil
}

// AnyOpenSession reports whether any position anywhere still has an open
// session, part of the LP withdrawal-lock policy (§4.5, §5).
func (r *PositionRepository) AnyOpenSession(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM positions WHERE session_status = 'open')`)
	if err != nil {
		return false, fmt.Errorf("position_repo.AnyOpenSession: %w", err)
	}
	return exists, nil
}

// ArchiveAndClear copies every position for a market into the append-only
// settlements log and deletes the live rows, the final step of the
// Resolution Pipeline (§4.7's "after Phase C" note).
func (r *PositionRepository) ArchiveAndClear(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settlements_log
			(id, address, market_id, outcome, shares, cost_paid, app_session_id,
			 app_session_version, session_status, mode, fee, session_data, created_at, archived_at)
		SELECT id, address, market_id, outcome, shares, cost_paid, app_session_id,
		       app_session_version, session_status, mode, fee, session_data, created_at, now()
		FROM positions WHERE market_id = $1`,
		marketID)
	if err != nil {
		return fmt.Errorf("position_repo.ArchiveAndClear: insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE market_id = $1`, marketID); err != nil {
		return fmt.Errorf("position_repo.ArchiveAndClear: delete: %w", err)
	}
	return nil
}

// FinanceReport is a fee-revenue and volume rollup over a date window,
// computed from the settled-position archive for backoffice reporting.
type FinanceReport struct {
	From         time.Time       `db:"-" json:"from"`
	To           time.Time       `db:"-" json:"to"`
	SettledCount int             `db:"settled_count" json:"settledCount"`
	TotalVolume  decimal.Decimal `db:"total_volume" json:"totalVolume"`
	TotalFees    decimal.Decimal `db:"total_fees" json:"totalFees"`
}

// GetFinanceReport aggregates fee revenue and traded volume from the
// settlements log within [from, to), for the backoffice finance view (§9).
func (r *PositionRepository) GetFinanceReport(ctx context.Context, from, to time.Time) (*FinanceReport, error) {
	report := &FinanceReport{From: from, To: to}
	err := r.db.GetContext(ctx, report, `
		SELECT
			COUNT(*) AS settled_count,
			COALESCE(SUM(cost_paid), 0) AS total_volume,
			COALESCE(SUM(fee), 0) AS total_fees
		FROM settlements_log
		WHERE archived_at >= $1 AND archived_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("position_repo.GetFinanceReport: %w", err)
	}
	return report, nil
}
