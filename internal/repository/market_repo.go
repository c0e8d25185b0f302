package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MarketRepository handles all database operations for Markets.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a new market row. It calls m.EncodeQuantities() itself so
// QtyRaw reflects Quantities.
func (r *MarketRepository) Create(ctx context.Context, m *domain.Market) error {
	m.EncodeQuantities()
	query := `
		INSERT INTO markets
			(id, game_id, category_id, status, result, quantities, b, volume, created_at, opens_at, closes_at, resolved_at)
		VALUES
			(:id, :game_id, :category_id, :status, :result, :quantities, :b, :volume, :created_at, :opens_at, :closes_at, :resolved_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("market_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a market by its primary key.
func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	m.DecodeQuantities()
	return &m, nil
}

// GetByIDForUpdate locks the market row within tx, returning the decoded
// market. Used by the bet-placement and order-matching paths to serialize
// concurrent trades on the same market (§5's per-market mutex requirement).
func (r *MarketRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := tx.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByIDForUpdate: %w", err)
	}
	m.DecodeQuantities()
	return &m, nil
}

// GetOpenByGameAndCategory returns the non-resolved market for a given game
// and category, if one exists. Used by market creation to enforce
// ErrMarketExists (§4.2).
func (r *MarketRepository) GetOpenByGameAndCategory(ctx context.Context, gameID, categoryID uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m,
		`SELECT * FROM markets WHERE game_id = $1 AND category_id = $2 AND status != 'RESOLVED' LIMIT 1`,
		gameID, categoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetOpenByGameAndCategory: %w", err)
	}
	m.DecodeQuantities()
	return &m, nil
}

// UpdateQuantitiesAndVolume persists a new quantity vector and running volume
// inside tx, for use immediately after an LMSR trade is applied in memory.
func (r *MarketRepository) UpdateQuantitiesAndVolume(ctx context.Context, tx *sqlx.Tx, m *domain.Market) error {
	m.EncodeQuantities()
	_, err := tx.ExecContext(ctx,
		`UPDATE markets SET quantities = $1, volume = $2 WHERE id = $3`,
		m.QtyRaw, m.Volume, m.ID)
	if err != nil {
		return fmt.Errorf("market_repo.UpdateQuantitiesAndVolume: %w", err)
	}
	return nil
}

// UpdateStatus transitions a market's status inside tx. Callers must have
// already validated the transition with Market.CanTransitionTo.
func (r *MarketRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, status domain.MarketStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE markets SET status = $1 WHERE id = $2`, status, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.UpdateStatus: %w", err)
	}
	return nil
}

// Resolve sets result, status=RESOLVED and resolved_at inside tx.
func (r *MarketRepository) Resolve(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, outcome int) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE markets SET status = 'RESOLVED', result = $1, resolved_at = $2 WHERE id = $3 AND status = 'CLOSED'`,
		outcome, now, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Resolve: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketNotClosed
	}
	return nil
}

// ListOpen returns every market currently in OPEN status.
func (r *MarketRepository) ListOpen(ctx context.Context) ([]*domain.Market, error) {
	var markets []*domain.Market
	if err := r.db.SelectContext(ctx, &markets, `SELECT * FROM markets WHERE status = 'OPEN' ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("market_repo.ListOpen: %w", err)
	}
	for _, m := range markets {
		m.DecodeQuantities()
	}
	return markets, nil
}

// ListClosedUnresolved returns every CLOSED market awaiting resolution, the
// Resolution Pipeline's work queue (§4.7).
func (r *MarketRepository) ListClosedUnresolved(ctx context.Context) ([]*domain.Market, error) {
	var markets []*domain.Market
	if err := r.db.SelectContext(ctx, &markets, `SELECT * FROM markets WHERE status = 'CLOSED' ORDER BY closes_at ASC`); err != nil {
		return nil, fmt.Errorf("market_repo.ListClosedUnresolved: %w", err)
	}
	for _, m := range markets {
		m.DecodeQuantities()
	}
	return markets, nil
}

// ListExpiredOpen returns OPEN markets whose closes_at has passed, due to be
// transitioned to CLOSED by the Oracle/Game Controller.
func (r *MarketRepository) ListExpiredOpen(ctx context.Context, now time.Time) ([]*domain.Market, error) {
	var markets []*domain.Market
	if err := r.db.SelectContext(ctx, &markets,
		`SELECT * FROM markets WHERE status = 'OPEN' AND closes_at IS NOT NULL AND closes_at <= $1 ORDER BY closes_at ASC`,
		now); err != nil {
		return nil, fmt.Errorf("market_repo.ListExpiredOpen: %w", err)
	}
	for _, m := range markets {
		m.DecodeQuantities()
	}
	return markets, nil
}

// List returns a paginated slice of markets filtered by optional status, and
// the total matching count.
func (r *MarketRepository) List(ctx context.Context, limit, offset int, status string) ([]*domain.Market, int, error) {
	var markets []*domain.Market
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM markets WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &markets,
			`SELECT * FROM markets WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM markets`); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &markets,
			`SELECT * FROM markets ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	}
	for _, m := range markets {
		m.DecodeQuantities()
	}
	return markets, total, nil
}
