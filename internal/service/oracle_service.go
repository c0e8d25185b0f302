package service

import (
	"context"
	"fmt"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// OracleBroadcaster — the subset of Hub the Oracle/Game Controller needs
// ──────────────────────────────────────────────────────────────────────────────

// OracleBroadcaster is the minimal interface OracleService needs from the WS
// hub.
type OracleBroadcaster interface {
	BroadcastGameState(active bool)
	BroadcastGameCreated(game *domain.Game)
	BroadcastMarketStatus(marketID uuid.UUID, status domain.MarketStatus, result *int)
}

// ──────────────────────────────────────────────────────────────────────────────
// OracleService — the Oracle / Game Controller (§4.10)
// ──────────────────────────────────────────────────────────────────────────────

// OracleService owns game lifecycle (scheduled -> active -> completed), the
// admin kill-switch, and the glue that turns "open/close/resolve a market
// for this game and category" into the right MarketService/ResolutionService
// calls. It never touches positions or quantities directly.
type OracleService struct {
	gameRepo      *repository.GameRepository
	categoryRepo  *repository.CategoryRepository
	marketSvc     *MarketService
	resolutionSvc *ResolutionService
	broadcaster   OracleBroadcaster
}

// NewOracleService builds an OracleService.
func NewOracleService(
	gameRepo *repository.GameRepository,
	categoryRepo *repository.CategoryRepository,
	marketSvc *MarketService,
	resolutionSvc *ResolutionService,
) *OracleService {
	return &OracleService{
		gameRepo:      gameRepo,
		categoryRepo:  categoryRepo,
		marketSvc:     marketSvc,
		resolutionSvc: resolutionSvc,
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *OracleService) SetBroadcaster(b OracleBroadcaster) { s.broadcaster = b }

// ──────────────────────────────────────────────────────────────────────────────
// Admin kill-switch
// ──────────────────────────────────────────────────────────────────────────────

// SetGameActive flips the singleton kill-switch. When false, OpenMarket
// refuses every request regardless of the game's own status (§4.10).
func (s *OracleService) SetGameActive(ctx context.Context, active bool) error {
	if err := s.gameRepo.SetGameState(ctx, active); err != nil {
		return fmt.Errorf("oracle_service.SetGameActive: %w", err)
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastGameState(active)
	}
	return nil
}

// IsGameActive reads the singleton kill-switch.
func (s *OracleService) IsGameActive(ctx context.Context) (bool, error) {
	state, err := s.gameRepo.GetGameState(ctx)
	if err != nil {
		return false, fmt.Errorf("oracle_service.IsGameActive: %w", err)
	}
	return state.Active, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Game lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// CreateGame schedules a new game; it cannot host markets until activated.
func (s *OracleService) CreateGame(ctx context.Context, sportID, homeTeamID, awayTeamID uuid.UUID) (*domain.Game, error) {
	g := &domain.Game{
		ID:         uuid.New(),
		SportID:    sportID,
		HomeTeamID: homeTeamID,
		AwayTeamID: awayTeamID,
		Status:     domain.GameScheduled,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.gameRepo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("oracle_service.CreateGame: %w", err)
	}
	return g, nil
}

// ActivateGame transitions a game to ACTIVE, the only status under which
// OpenMarket will create markets for it. Broadcasts GAME_CREATED, matching
// the "typically its first market follows" note in §6.
func (s *OracleService) ActivateGame(ctx context.Context, gameID uuid.UUID) (*domain.Game, error) {
	g, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("oracle_service.ActivateGame: %w", err)
	}
	if g.Status != domain.GameScheduled {
		return nil, domain.ErrGameNotScheduled
	}
	if err := s.gameRepo.UpdateStatus(ctx, gameID, domain.GameActive); err != nil {
		return nil, fmt.Errorf("oracle_service.ActivateGame: %w", err)
	}
	g.Status = domain.GameActive

	if s.broadcaster != nil {
		s.broadcaster.BroadcastGameCreated(g)
	}
	return g, nil
}

// CompleteGame transitions a game to COMPLETED. It does not itself resolve
// or close that game's markets; callers are expected to have done so first.
func (s *OracleService) CompleteGame(ctx context.Context, gameID uuid.UUID) (*domain.Game, error) {
	g, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("oracle_service.CompleteGame: %w", err)
	}
	if g.Status != domain.GameActive {
		return nil, domain.ErrGameNotActive
	}
	if err := s.gameRepo.UpdateStatus(ctx, gameID, domain.GameCompleted); err != nil {
		return nil, fmt.Errorf("oracle_service.CompleteGame: %w", err)
	}
	g.Status = domain.GameCompleted
	return g, nil
}

// ListActiveGames returns every ACTIVE game, the auto-play loop's candidate
// set for new market creation.
func (s *OracleService) ListActiveGames(ctx context.Context) ([]*domain.Game, error) {
	return s.gameRepo.ListActive(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Market gating (§4.9's /api/oracle/market/* and /api/oracle/outcome)
// ──────────────────────────────────────────────────────────────────────────────

// OpenMarket creates and immediately opens a fresh market for (gameID,
// categoryID), refusing when the admin kill-switch is off — independent of
// the game's own ACTIVE status, which MarketService.CreateMarket already
// checks.
func (s *OracleService) OpenMarket(ctx context.Context, gameID, categoryID uuid.UUID) (*domain.Market, error) {
	active, err := s.IsGameActive(ctx)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, domain.ErrGameNotActive
	}

	m, err := s.marketSvc.CreateMarket(ctx, gameID, categoryID, nil)
	if err != nil {
		return nil, fmt.Errorf("oracle_service.OpenMarket: create: %w", err)
	}
	m, err = s.marketSvc.OpenMarket(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("oracle_service.OpenMarket: open: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMarketStatus(m.ID, m.Status, m.Result)
	}
	return m, nil
}

// CloseMarket closes the current non-resolved market for (gameID,
// categoryID).
func (s *OracleService) CloseMarket(ctx context.Context, gameID, categoryID uuid.UUID) (*domain.Market, error) {
	m, err := s.marketSvc.GetCurrentMarket(ctx, gameID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("oracle_service.CloseMarket: lookup: %w", err)
	}
	m, err = s.marketSvc.CloseMarket(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("oracle_service.CloseMarket: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMarketStatus(m.ID, m.Status, m.Result)
	}
	return m, nil
}

// DetermineOutcome resolves the current CLOSED market for (gameID,
// categoryID) with the given winning outcome index, running the full
// Resolution Pipeline (§4.7), and returns the resolved market plus the
// pipeline's winner/loser/payout summary.
func (s *OracleService) DetermineOutcome(ctx context.Context, gameID, categoryID uuid.UUID, outcome int) (*domain.Market, *ResolutionSummary, error) {
	m, err := s.marketSvc.GetCurrentMarket(ctx, gameID, categoryID)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle_service.DetermineOutcome: lookup: %w", err)
	}
	if outcome < 0 || outcome >= m.OutcomeCount() {
		return nil, nil, domain.ErrInvalidOutcome
	}
	summary, err := s.resolutionSvc.ResolveMarket(ctx, m.ID, outcome)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle_service.DetermineOutcome: %w", err)
	}
	resolved, err := s.marketSvc.GetMarket(ctx, m.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle_service.DetermineOutcome: %w", err)
	}
	return resolved, summary, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ListExpiredOpenMarkets — the auto-play resolutionLoop's work list
// ──────────────────────────────────────────────────────────────────────────────

// ListExpiredOpenMarkets returns OPEN markets whose closing time has passed,
// ready for an auto-play loop to close.
func (s *OracleService) ListExpiredOpenMarkets(ctx context.Context) ([]*domain.Market, error) {
	return s.marketSvc.ListExpiredOpen(ctx)
}
