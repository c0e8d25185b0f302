package service

import (
	"context"
	"fmt"
	"time"

	"strconv"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/lmsr"
	"github.com/evetabi/prediction/internal/metrics"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into MarketService to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// Broadcaster is the minimal interface MarketService needs from the WS hub.
type Broadcaster interface {
	BroadcastMarketSummary(summary *domain.MarketSummary)
	BroadcastVolumeUpdate(marketID uuid.UUID, volume string)
}

// PoolValueSource is the minimal interface MarketService needs from the LP
// Manager to auto-scale b from the live pool value.
type PoolValueSource interface {
	PoolValue(ctx context.Context) (decimal.Decimal, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketService — the Market Manager (§4.2)
// ──────────────────────────────────────────────────────────────────────────────

// MarketService owns the market lifecycle state machine and LMSR trade
// application. Bet placement is serialized per market via a database row
// lock (FOR UPDATE) taken inside a transaction, satisfying §5's
// linearizable-quantity-update requirement.
type MarketService struct {
	db           *sqlx.DB
	marketRepo   *repository.MarketRepository
	gameRepo     *repository.GameRepository
	categoryRepo *repository.CategoryRepository
	positionRepo *repository.PositionRepository
	cfg          *config.Config
	pool         PoolValueSource // injected after LPService is built
	broadcaster  Broadcaster     // injected after the WS hub is built
}

// NewMarketService creates a MarketService.
func NewMarketService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	gameRepo *repository.GameRepository,
	categoryRepo *repository.CategoryRepository,
	positionRepo *repository.PositionRepository,
	cfg *config.Config,
) *MarketService {
	return &MarketService{
		db:           db,
		marketRepo:   marketRepo,
		gameRepo:     gameRepo,
		categoryRepo: categoryRepo,
		positionRepo: positionRepo,
		cfg:          cfg,
	}
}

// SetPoolValueSource injects the LP Manager dependency post-construction.
func (s *MarketService) SetPoolValueSource(p PoolValueSource) { s.pool = p }

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *MarketService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// ──────────────────────────────────────────────────────────────────────────────
// CreateMarket
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarket allocates a fresh market for (gameID, categoryID). Fails with
// ErrGameNotActive if the game is not ACTIVE, and ErrMarketExists if a
// non-RESOLVED market already covers the pair (§4.2).
func (s *MarketService) CreateMarket(ctx context.Context, gameID, categoryID uuid.UUID, bOverride *decimal.Decimal) (*domain.Market, error) {
	game, err := s.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: get game: %w", err)
	}
	if !game.IsActive() {
		return nil, domain.ErrGameNotActive
	}

	category, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: get category: %w", err)
	}

	if _, err := s.marketRepo.GetOpenByGameAndCategory(ctx, gameID, categoryID); err == nil {
		return nil, domain.ErrMarketExists
	} else if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("market_service.CreateMarket: check existing: %w", err)
	}

	b := s.resolveLiquidity(ctx, bOverride)

	m := &domain.Market{
		ID:         uuid.New(),
		GameID:     gameID,
		CategoryID: categoryID,
		Status:     domain.MarketPending,
		Quantities: lmsr.ZeroVector(category.OutcomeCount()),
		B:          b,
		Volume:     decimal.Zero,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.marketRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: db: %w", err)
	}
	return m, nil
}

// resolveLiquidity implements §4.2's auto-scaling-of-b rule: b = poolValue *
// sensitivityFactor, falling back to the default when the override is absent
// and the pool value is unavailable or zero.
func (s *MarketService) resolveLiquidity(ctx context.Context, bOverride *decimal.Decimal) decimal.Decimal {
	if bOverride != nil {
		return *bOverride
	}
	if s.pool != nil {
		poolValue, err := s.pool.PoolValue(ctx)
		if err == nil && poolValue.Sign() > 0 {
			return poolValue.Mul(s.cfg.Market.SensitivityFactor())
		}
	}
	return s.cfg.Market.DefaultLiquidityB
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle transitions
// ──────────────────────────────────────────────────────────────────────────────

// OpenMarket transitions a market PENDING -> OPEN.
func (s *MarketService) OpenMarket(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	m, err := s.marketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service.OpenMarket: %w", err)
	}
	if !m.CanTransitionTo(domain.MarketOpen) {
		return nil, domain.ErrIllegalMarketState
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("market_service.OpenMarket: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.marketRepo.UpdateStatus(ctx, tx, id, domain.MarketOpen); err != nil {
		return nil, fmt.Errorf("market_service.OpenMarket: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("market_service.OpenMarket: commit: %w", err)
	}

	m.Status = domain.MarketOpen
	return m, nil
}

// CloseMarket transitions a market OPEN -> CLOSED.
func (s *MarketService) CloseMarket(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	m, err := s.marketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service.CloseMarket: %w", err)
	}
	if !m.CanTransitionTo(domain.MarketClosed) {
		return nil, domain.ErrIllegalMarketState
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("market_service.CloseMarket: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.marketRepo.UpdateStatus(ctx, tx, id, domain.MarketClosed); err != nil {
		return nil, fmt.Errorf("market_service.CloseMarket: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("market_service.CloseMarket: commit: %w", err)
	}

	m.Status = domain.MarketClosed
	return m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBetResult is returned by PlaceBet.
type PlaceBetResult struct {
	Position     *domain.Position
	Shares       decimal.Decimal
	NewPrices    []decimal.Decimal
	RejectedBy   error               // non-nil when the bet was rejected; Position is nil in that case
	MarketStatus domain.MarketStatus // the market's actual status at rejection time, e.g. for a "Market is CLOSED" reason (§8)
}

// PlaceBet computes shares via the LMSR engine, mutates the market's quantity
// vector, accumulates volume, and persists a Position — all inside a single
// transaction that takes a row lock on the market, so two concurrent bets on
// the same market serialize (§5).
func (s *MarketService) PlaceBet(ctx context.Context, marketID uuid.UUID, address string, outcome int, amount decimal.Decimal, appSessionID string, appSessionVersion int64) (*PlaceBetResult, error) {
	start := time.Now()
	defer func() { metrics.BetLatency.Observe(time.Since(start).Seconds()) }()

	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("market_service.PlaceBet: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := s.marketRepo.GetByIDForUpdate(ctx, tx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market_service.PlaceBet: lock market: %w", err)
	}
	if !m.IsOpen() {
		return &PlaceBetResult{RejectedBy: domain.ErrMarketNotOpen, MarketStatus: m.Status}, nil
	}
	if outcome < 0 || outcome >= m.OutcomeCount() {
		return nil, domain.ErrInvalidOutcome
	}

	shares, err := lmsr.SharesForAmount(m.Quantities, m.B, outcome, amount)
	if err != nil {
		return nil, err
	}

	m.Quantities = lmsr.ApplyTrade(m.Quantities, outcome, shares)
	m.Volume = m.Volume.Add(amount)
	if err := s.marketRepo.UpdateQuantitiesAndVolume(ctx, tx, m); err != nil {
		return nil, fmt.Errorf("market_service.PlaceBet: persist quantities: %w", err)
	}

	prices := lmsr.Prices(m.Quantities, m.B)

	pos := &domain.Position{
		ID:                uuid.New(),
		Address:           address,
		MarketID:          marketID,
		Outcome:           outcome,
		Shares:            shares,
		CostPaid:          amount,
		AppSessionID:      appSessionID,
		AppSessionVersion: appSessionVersion,
		SessionStatus:     domain.SessionOpen,
		Mode:              domain.ModeLMSR,
		SessionData:       domain.NewSessionDataV2(domain.ModeLMSR, outcome, shares, prices, decimal.Zero),
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.positionRepo.Create(ctx, tx, pos); err != nil {
		return nil, fmt.Errorf("market_service.PlaceBet: create position: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("market_service.PlaceBet: commit: %w", err)
	}

	if s.broadcaster != nil {
		var outcomes []string
		if category, err := s.categoryRepo.GetByID(ctx, m.CategoryID); err == nil {
			outcomes = []string(category.Outcomes)
		} else {
			outcomes = make([]string, m.OutcomeCount())
		}
		s.broadcaster.BroadcastMarketSummary(&domain.MarketSummary{
			ID: m.ID, GameID: m.GameID, CategoryID: m.CategoryID, Status: m.Status,
			Outcomes: outcomes, Quantities: m.Quantities, Prices: prices, B: m.B, Volume: m.Volume,
		})
		s.broadcaster.BroadcastVolumeUpdate(m.ID, m.Volume.String())
	}

	metrics.BetsPlaced.WithLabelValues(strconv.Itoa(outcome)).Inc()

	return &PlaceBetResult{Position: pos, Shares: shares, NewPrices: prices}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetMarket fetches a market by ID.
func (s *MarketService) GetMarket(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	return s.marketRepo.GetByID(ctx, id)
}

// GetCurrentMarket returns the single non-RESOLVED market for (gameID,
// categoryID) when scoped, per §4.2's getCurrentMarket.
func (s *MarketService) GetCurrentMarket(ctx context.Context, gameID, categoryID uuid.UUID) (*domain.Market, error) {
	return s.marketRepo.GetOpenByGameAndCategory(ctx, gameID, categoryID)
}

// ListMarkets returns a paginated, optionally status-filtered market list.
func (s *MarketService) ListMarkets(ctx context.Context, limit, offset int, status string) ([]*domain.Market, int, error) {
	return s.marketRepo.List(ctx, limit, offset, status)
}

// GetSummary builds a MarketSummary (prices + outcome labels) for a market.
func (s *MarketService) GetSummary(ctx context.Context, id uuid.UUID, outcomes []string) (*domain.MarketSummary, error) {
	m, err := s.marketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetSummary: %w", err)
	}
	prices := lmsr.Prices(m.Quantities, m.B)
	return &domain.MarketSummary{
		ID: m.ID, GameID: m.GameID, CategoryID: m.CategoryID, Status: m.Status,
		Outcomes: outcomes, Quantities: m.Quantities, Prices: prices,
		B: m.B, Volume: m.Volume, Result: m.Result, ClosesAt: m.ClosesAt,
	}, nil
}

// ListExpiredOpen returns OPEN markets whose closing time has passed, the
// Oracle/Game Controller's auto-close work list.
func (s *MarketService) ListExpiredOpen(ctx context.Context) ([]*domain.Market, error) {
	return s.marketRepo.ListExpiredOpen(ctx, time.Now().UTC())
}
