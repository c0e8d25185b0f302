package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// PositionService is the Position Tracker (§4.3): append-on-create,
// mutate-by-session storage for executed LMSR bets and filled P2P orders.
type PositionService struct {
	db           *sqlx.DB
	positionRepo *repository.PositionRepository
}

// NewPositionService creates a PositionService.
func NewPositionService(db *sqlx.DB, positionRepo *repository.PositionRepository) *PositionService {
	return &PositionService{db: db, positionRepo: positionRepo}
}

// GetPositionsByAddress returns a user's position history.
func (s *PositionService) GetPositionsByAddress(ctx context.Context, address string, limit, offset int) ([]*domain.Position, error) {
	positions, err := s.positionRepo.GetByAddress(ctx, address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("position_service.GetPositionsByAddress: %w", err)
	}
	return positions, nil
}

// GetPositionsByMarket returns every unsettled position in a market for the
// given mode, used by the Resolution Pipeline's per-phase work lists.
func (s *PositionService) GetPositionsByMarket(ctx context.Context, marketID uuid.UUID, mode domain.PositionMode) ([]*domain.Position, error) {
	positions, err := s.positionRepo.GetUnsettledByMarket(ctx, marketID, mode)
	if err != nil {
		return nil, fmt.Errorf("position_service.GetPositionsByMarket: %w", err)
	}
	return positions, nil
}

// GetBySession fetches a single position by its primary key, used when an
// API caller references a position by ID.
func (s *PositionService) GetBySession(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	p, err := s.positionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("position_service.GetBySession: %w", err)
	}
	return p, nil
}

// UpdateAppSessionVersion advances a position's session version and data
// blob inside tx. Fails with ErrSessionVersionRegression if version is not
// strictly greater than the stored value (§4.3's invariant).
func (s *PositionService) UpdateAppSessionVersion(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, version int64, status domain.SessionStatus, sessionData json.RawMessage) error {
	if err := s.positionRepo.UpdateSession(ctx, tx, id, version, status, sessionData); err != nil {
		return fmt.Errorf("position_service.UpdateAppSessionVersion: %w", err)
	}
	return nil
}

// MarkSettled closes out a position's session after settlement confirms the
// final payout, recording the fee charged (zero for a losing position).
func (s *PositionService) MarkSettled(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, fee decimal.Decimal, sessionData json.RawMessage) error {
	if err := s.positionRepo.MarkSettled(ctx, tx, id, fee, sessionData); err != nil {
		return fmt.Errorf("position_service.MarkSettled: %w", err)
	}
	return nil
}

// ClearPositions archives every position for a market to the settlements log
// and deletes the live rows, per §4.3's clearPositions operation.
func (s *PositionService) ClearPositions(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID) error {
	if err := s.positionRepo.ArchiveAndClear(ctx, tx, marketID); err != nil {
		return fmt.Errorf("position_service.ClearPositions: %w", err)
	}
	return nil
}
