package service

import (
	"context"
	"fmt"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// BalanceSource is the minimal interface LPService needs from the
// settlement-service client: the pool's live custodial balance.
type BalanceSource interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}

// LPService is the LP Manager (§4.5): ERC-4626-style share accounting over
// the pool's settlement-observed balance, plus the withdrawal-lock policy.
type LPService struct {
	db           *sqlx.DB
	lpRepo       *repository.LPRepository
	marketRepo   *repository.MarketRepository
	positionRepo *repository.PositionRepository
	balances     BalanceSource
	broadcaster  Broadcaster
}

// NewLPService creates an LPService.
func NewLPService(db *sqlx.DB, lpRepo *repository.LPRepository, marketRepo *repository.MarketRepository, positionRepo *repository.PositionRepository) *LPService {
	return &LPService{db: db, lpRepo: lpRepo, marketRepo: marketRepo, positionRepo: positionRepo}
}

// SetBalanceSource injects the settlement-service client dependency.
func (s *LPService) SetBalanceSource(b BalanceSource) { s.balances = b }

// SetBroadcaster injects the WS Hub dependency.
func (s *LPService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// PoolValue satisfies the MarketService.PoolValueSource interface, letting
// the Market Manager auto-scale b from the live pool value (§4.2).
func (s *LPService) PoolValue(ctx context.Context) (decimal.Decimal, error) {
	if s.balances == nil {
		return decimal.Zero, nil
	}
	return s.balances.GetBalance(ctx)
}

// DepositResult is returned by Deposit.
type DepositResult struct {
	Shares         decimal.Decimal
	SharePrice     decimal.Decimal
	PoolValueAfter decimal.Decimal
}

// Deposit issues LP shares for amount a against the pool value observed
// prior to the deposit arriving (§4.5).
func (s *LPService) Deposit(ctx context.Context, address string, amount decimal.Decimal) (*DepositResult, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("lp_service.Deposit: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize against concurrent Deposit/Withdraw calls before reading
	// pool value and total shares, so the share price computed here can't
	// be invalidated by another deposit/withdrawal committing in between.
	if err := s.lpRepo.LockPool(ctx, tx); err != nil {
		return nil, fmt.Errorf("lp_service.Deposit: %w", err)
	}

	poolValueBefore, err := s.PoolValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.Deposit: pool value: %w", err)
	}

	totalShares, err := s.lpRepo.TotalShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.Deposit: total shares: %w", err)
	}

	var sharePrice, issuedShares decimal.Decimal
	if totalShares.IsZero() || poolValueBefore.IsZero() {
		sharePrice = decimal.NewFromInt(1)
		issuedShares = amount
	} else {
		sharePrice = poolValueBefore.Div(totalShares)
		issuedShares = amount.Div(sharePrice)
	}

	share, err := s.lpRepo.GetByAddressForUpdate(ctx, tx, address)
	now := time.Now().UTC()
	if err != nil {
		if !domain.IsNotFound(err) {
			return nil, fmt.Errorf("lp_service.Deposit: %w", err)
		}
		share = &domain.LPShare{
			Address:        address,
			Shares:         decimal.Zero,
			TotalDeposited: decimal.Zero,
			TotalWithdrawn: decimal.Zero,
			FirstDepositAt: now,
		}
	}
	share.Shares = share.Shares.Add(issuedShares)
	share.TotalDeposited = share.TotalDeposited.Add(amount)
	share.LastActionAt = now

	if err := s.lpRepo.UpsertShares(ctx, tx, share); err != nil {
		return nil, fmt.Errorf("lp_service.Deposit: %w", err)
	}

	poolValueAfter := poolValueBefore.Add(amount)
	event := &domain.LPEvent{
		ID:              uuid.New(),
		Address:         address,
		Type:            domain.LPDeposit,
		Amount:          amount,
		Shares:          issuedShares,
		SharePrice:      sharePrice,
		PoolValueBefore: poolValueBefore,
		PoolValueAfter:  poolValueAfter,
		CreatedAt:       now,
	}
	if err := s.lpRepo.LogEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("lp_service.Deposit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("lp_service.Deposit: commit: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastVolumeUpdate(uuid.Nil, domain.ToMicroUnits(poolValueAfter))
	}

	return &DepositResult{Shares: issuedShares, SharePrice: sharePrice, PoolValueAfter: poolValueAfter}, nil
}

// WithdrawResult is returned by Withdraw.
type WithdrawResult struct {
	AmountOut      decimal.Decimal
	SharePrice     decimal.Decimal
	PoolValueAfter decimal.Decimal
}

// Withdraw redeems s shares for their current pool-share value, after
// checking the withdrawal-lock policy (§4.5, §5).
func (s *LPService) Withdraw(ctx context.Context, address string, shares decimal.Decimal) (*WithdrawResult, error) {
	if shares.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	locked, err := s.withdrawalsLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: lock check: %w", err)
	}
	if locked {
		return nil, domain.ErrWithdrawalsLocked
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Same pool-wide serialization as Deposit: acquire before reading pool
	// value/total shares so concurrent withdrawals can't race a deposit
	// (or each other) onto a stale share price.
	if err := s.lpRepo.LockPool(ctx, tx); err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: %w", err)
	}

	poolValueBefore, err := s.PoolValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: pool value: %w", err)
	}

	totalShares, err := s.lpRepo.TotalShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: total shares: %w", err)
	}
	if totalShares.IsZero() {
		return nil, domain.ErrInsufficientShares
	}
	sharePrice := poolValueBefore.Div(totalShares)

	share, err := s.lpRepo.GetByAddressForUpdate(ctx, tx, address)
	if err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: %w", err)
	}
	if share.Shares.LessThan(shares) {
		return nil, domain.ErrInsufficientShares
	}

	amountOut := shares.Mul(sharePrice)
	now := time.Now().UTC()
	share.Shares = share.Shares.Sub(shares)
	share.TotalWithdrawn = share.TotalWithdrawn.Add(amountOut)
	share.LastActionAt = now

	if err := s.lpRepo.UpsertShares(ctx, tx, share); err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: %w", err)
	}

	poolValueAfter := poolValueBefore.Sub(amountOut)
	event := &domain.LPEvent{
		ID:              uuid.New(),
		Address:         address,
		Type:            domain.LPWithdrawal,
		Amount:          amountOut,
		Shares:          shares,
		SharePrice:      sharePrice,
		PoolValueBefore: poolValueBefore,
		PoolValueAfter:  poolValueAfter,
		CreatedAt:       now,
	}
	if err := s.lpRepo.LogEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("lp_service.Withdraw: commit: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastVolumeUpdate(uuid.Nil, domain.ToMicroUnits(poolValueAfter))
	}

	return &WithdrawResult{AmountOut: amountOut, SharePrice: sharePrice, PoolValueAfter: poolValueAfter}, nil
}

// PoolStats returns the aggregate pool snapshot for the LP dashboard (§4.5).
func (s *LPService) PoolStats(ctx context.Context) (*domain.PoolStats, error) {
	poolValue, err := s.PoolValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.PoolStats: pool value: %w", err)
	}
	totalShares, err := s.lpRepo.TotalShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.PoolStats: total shares: %w", err)
	}
	lpCount, err := s.lpRepo.CountDepositors(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.PoolStats: count depositors: %w", err)
	}
	locked, err := s.withdrawalsLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("lp_service.PoolStats: lock check: %w", err)
	}

	sharePrice := decimal.NewFromInt(1)
	if !totalShares.IsZero() {
		sharePrice = poolValue.Div(totalShares)
	}

	return &domain.PoolStats{
		PoolValue:   poolValue,
		TotalShares: totalShares,
		SharePrice:  sharePrice,
		LPCount:     lpCount,
		CanWithdraw: !locked,
	}, nil
}

// GetShare fetches one depositor's current share row.
func (s *LPService) GetShare(ctx context.Context, address string) (*domain.LPShare, error) {
	share, err := s.lpRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("lp_service.GetShare: %w", err)
	}
	return share, nil
}

// GetHistory returns a depositor's deposit/withdrawal event log.
func (s *LPService) GetHistory(ctx context.Context, address string, limit, offset int) ([]*domain.LPEvent, error) {
	events, err := s.lpRepo.GetHistory(ctx, address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("lp_service.GetHistory: %w", err)
	}
	return events, nil
}

// withdrawalsLocked implements §4.5's lock policy: locked whenever any
// market is OPEN or any position's session is still open.
func (s *LPService) withdrawalsLocked(ctx context.Context) (bool, error) {
	openMarkets, err := s.marketRepo.ListOpen(ctx)
	if err != nil {
		return false, fmt.Errorf("open markets: %w", err)
	}
	if len(openMarkets) > 0 {
		return true, nil
	}
	hasOpenSession, err := s.positionRepo.AnyOpenSession(ctx)
	if err != nil {
		return false, fmt.Errorf("open sessions: %w", err)
	}
	return hasOpenSession, nil
}
