package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// OrderRepository handles database operations for P2P Orders and Fills
// (§4.4).
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order inside tx.
func (r *OrderRepository) Create(ctx context.Context, tx *sqlx.Tx, o *domain.Order) error {
	query := `
		INSERT INTO orders
			(id, market_id, user_address, outcome, mcps, amount, filled_amount, unfilled_amount,
			 max_shares, filled_shares, unfilled_shares, app_session_id, app_session_version,
			 status, created_at, updated_at)
		VALUES
			(:id, :market_id, :user_address, :outcome, :mcps, :amount, :filled_amount, :unfilled_amount,
			 :max_shares, :filled_shares, :unfilled_shares, :app_session_id, :app_session_version,
			 :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("order_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches an order by its primary key.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	err := r.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order_repo.GetByID: %w", err)
	}
	return &o, nil
}

// GetByIDForUpdate locks the order row within tx. Used when applying fills
// or cancelling, so concurrent matches against the same resting order
// serialize.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	err := tx.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order_repo.GetByIDForUpdate: %w", err)
	}
	return &o, nil
}

// GetRestableOpposite returns the resting orders on the opposite outcome of a
// binary market, in price-time priority (highest MCPS first, then oldest),
// locked FOR UPDATE so the matcher can apply fills without racing another
// matcher pass (§4.4, §5).
func (r *OrderRepository) GetRestableOpposite(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, oppositeOutcome int) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := tx.SelectContext(ctx, &orders,
		`SELECT * FROM orders
		 WHERE market_id = $1 AND outcome = $2 AND status IN ('OPEN','PARTIALLY_FILLED')
		 ORDER BY mcps DESC, created_at ASC
		 FOR UPDATE`,
		marketID, oppositeOutcome)
	if err != nil {
		return nil, fmt.Errorf("order_repo.GetRestableOpposite: %w", err)
	}
	return orders, nil
}

// GetDepth returns the resting orders for one outcome of a market, in
// price-time priority, for building a DepthLevel snapshot.
func (r *OrderRepository) GetDepth(ctx context.Context, marketID uuid.UUID, outcome int) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM orders
		 WHERE market_id = $1 AND outcome = $2 AND status IN ('OPEN','PARTIALLY_FILLED')
		 ORDER BY mcps DESC, created_at ASC`,
		marketID, outcome)
	if err != nil {
		return nil, fmt.Errorf("order_repo.GetDepth: %w", err)
	}
	return orders, nil
}

// GetByUserAddress returns an address's order history, newest first.
func (r *OrderRepository) GetByUserAddress(ctx context.Context, address string, limit, offset int) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM orders WHERE user_address = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("order_repo.GetByUserAddress: %w", err)
	}
	return orders, nil
}

// GetExpired returns resting orders past their market's close, the P2P
// resolution phase C work list (§4.7 phase C).
func (r *OrderRepository) GetExpired(ctx context.Context, marketID uuid.UUID) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM orders WHERE market_id = $1 AND status IN ('OPEN','PARTIALLY_FILLED')`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("order_repo.GetExpired: %w", err)
	}
	return orders, nil
}

// GetFilledForResolution returns every order in a market with filledShares > 0
// whose status isn't terminal-for-resolution (CANCELLED/EXPIRED/SETTLED),
// the P2P resolution phase B work list (§4.4, §4.7). This intentionally
// overlaps GetExpired's OPEN/PARTIALLY_FILLED set but also includes FILLED
// orders — the mainline case where both sides of a match reach FILLED and
// still need settling and marking SETTLED.
func (r *OrderRepository) GetFilledForResolution(ctx context.Context, marketID uuid.UUID) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM orders
		 WHERE market_id = $1 AND status NOT IN ('CANCELLED','EXPIRED','SETTLED') AND filled_shares > 0`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("order_repo.GetFilledForResolution: %w", err)
	}
	return orders, nil
}

// ApplyFill persists an order's post-fill counters and status inside tx.
func (r *OrderRepository) ApplyFill(ctx context.Context, tx *sqlx.Tx, o *domain.Order) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET filled_amount = $1, unfilled_amount = $2, filled_shares = $3,
		     unfilled_shares = $4, status = $5, updated_at = now()
		 WHERE id = $6`,
		o.FilledAmount, o.UnfilledAmount, o.FilledShares, o.UnfilledShares, o.Status, o.ID)
	if err != nil {
		return fmt.Errorf("order_repo.ApplyFill: %w", err)
	}
	return nil
}

// UpdateStatus sets an order's status directly, used for cancel/expire/settle
// transitions that don't touch the fill counters.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("order_repo.UpdateStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// CreateFill records a match between two orders inside tx.
func (r *OrderRepository) CreateFill(ctx context.Context, tx *sqlx.Tx, f *domain.Fill) error {
	query := `
		INSERT INTO fills (id, taker_order_id, maker_order_id, shares, price, cost, created_at)
		VALUES (:id, :taker_order_id, :maker_order_id, :shares, :price, :cost, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("order_repo.CreateFill: %w", err)
	}
	return nil
}
