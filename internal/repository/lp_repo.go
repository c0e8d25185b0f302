package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// LPRepository handles database operations for LP shares and the append-only
// LP event log (§4.5).
type LPRepository struct {
	db *sqlx.DB
}

// NewLPRepository creates a new LPRepository.
func NewLPRepository(db *sqlx.DB) *LPRepository {
	return &LPRepository{db: db}
}

// GetByAddress fetches a depositor's share row.
func (r *LPRepository) GetByAddress(ctx context.Context, address string) (*domain.LPShare, error) {
	var s domain.LPShare
	err := r.db.GetContext(ctx, &s, `SELECT * FROM lp_shares WHERE address = $1`, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLPShareNotFound
		}
		return nil, fmt.Errorf("lp_repo.GetByAddress: %w", err)
	}
	return &s, nil
}

// GetByAddressForUpdate locks a depositor's share row within tx, used during
// deposit/withdraw to serialize share-price computation against concurrent
// LP actions (§5).
func (r *LPRepository) GetByAddressForUpdate(ctx context.Context, tx *sqlx.Tx, address string) (*domain.LPShare, error) {
	var s domain.LPShare
	err := tx.GetContext(ctx, &s, `SELECT * FROM lp_shares WHERE address = $1 FOR UPDATE`, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLPShareNotFound
		}
		return nil, fmt.Errorf("lp_repo.GetByAddressForUpdate: %w", err)
	}
	return &s, nil
}

// UpsertShares inserts or updates a depositor's share row inside tx.
func (r *LPRepository) UpsertShares(ctx context.Context, tx *sqlx.Tx, s *domain.LPShare) error {
	query := `
		INSERT INTO lp_shares (address, shares, total_deposited, total_withdrawn, first_deposit_at, last_action_at)
		VALUES (:address, :shares, :total_deposited, :total_withdrawn, :first_deposit_at, :last_action_at)
		ON CONFLICT (address) DO UPDATE SET
			shares = EXCLUDED.shares,
			total_deposited = EXCLUDED.total_deposited,
			total_withdrawn = EXCLUDED.total_withdrawn,
			last_action_at = EXCLUDED.last_action_at`
	if _, err := tx.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("lp_repo.UpsertShares: %w", err)
	}
	return nil
}

// LogEvent inserts an append-only deposit/withdrawal event inside tx.
func (r *LPRepository) LogEvent(ctx context.Context, tx *sqlx.Tx, e *domain.LPEvent) error {
	query := `
		INSERT INTO lp_events
			(id, address, type, amount, shares, share_price, pool_value_before, pool_value_after, created_at)
		VALUES
			(:id, :address, :type, :amount, :shares, :share_price, :pool_value_before, :pool_value_after, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("lp_repo.LogEvent: %w", err)
	}
	return nil
}

// GetHistory returns a depositor's event history, newest first.
func (r *LPRepository) GetHistory(ctx context.Context, address string, limit, offset int) ([]*domain.LPEvent, error) {
	var events []*domain.LPEvent
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM lp_events WHERE address = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("lp_repo.GetHistory: %w", err)
	}
	return events, nil
}

// ListAllEvents returns the platform-wide LP event ledger, newest first, for
// backoffice finance reporting. Unlike GetHistory it is not scoped to a
// single address.
func (r *LPRepository) ListAllEvents(ctx context.Context, eventType string, limit, offset int) ([]*domain.LPEvent, error) {
	var events []*domain.LPEvent
	var err error
	if eventType != "" {
		err = r.db.SelectContext(ctx, &events,
			`SELECT * FROM lp_events WHERE type = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			eventType, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &events,
			`SELECT * FROM lp_events ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("lp_repo.ListAllEvents: %w", err)
	}
	return events, nil
}

// TotalShares sums every depositor's share balance, the denominator of the
// pool share price (§4.5).
func (r *LPRepository) TotalShares(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(shares), 0) FROM lp_shares`); err != nil {
		return decimal.Zero, fmt.Errorf("lp_repo.TotalShares: %w", err)
	}
	return total, nil
}

// poolLockKey is the arbitrary Postgres advisory-lock key guarding the LP
// pool's share-price computation. A single fixed key serializes every
// Deposit/Withdraw across the whole pool, not just one depositor's row.
const poolLockKey = 0x4c505f504f4f4c // "LP_POOL" in hex, fits an int64 key

// LockPool takes a transaction-scoped Postgres advisory lock over the LP
// pool, releasing automatically on commit or rollback. Deposit and Withdraw
// take it before reading TotalShares, so two concurrent calls can't both
// read the pre-action total and issue/redeem shares against a stale price
// (§4.5, §5).
func (r *LPRepository) LockPool(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, poolLockKey); err != nil {
		return fmt.Errorf("lp_repo.LockPool: %w", err)
	}
	return nil
}

// CountDepositors returns the number of addresses with a nonzero share
// balance, for PoolStats.LPCount.
func (r *LPRepository) CountDepositors(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM lp_shares WHERE shares > 0`); err != nil {
		return 0, fmt.Errorf("lp_repo.CountDepositors: %w", err)
	}
	return n, nil
}
