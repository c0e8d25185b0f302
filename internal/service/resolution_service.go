package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/events"
	"github.com/evetabi/prediction/internal/metrics"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/settlement"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into ResolutionService to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// SettlementClient is the minimal interface ResolutionService needs from the
// settlement-service connection (§4.6, §4.7).
type SettlementClient interface {
	SubmitAppState(ctx context.Context, p settlement.SubmitAppStateParams) (int64, error)
	CloseSession(ctx context.Context, p settlement.CloseSessionParams) error
	Transfer(ctx context.Context, p settlement.TransferParams) error
	Address() string
}

// ResolutionBroadcaster is the minimal interface ResolutionService needs from
// the WS hub.
type ResolutionBroadcaster interface {
	BroadcastSessionVersionUpdated(address, appSessionID string, positionID uuid.UUID, version int64)
	BroadcastSessionSettled(address, appSessionID string, positionID uuid.UUID)
	BroadcastBetResult(address string, positionID, marketID uuid.UUID, won bool, payout, profit string)
	BroadcastP2PBetResult(address string, orderID, marketID uuid.UUID, won bool, payout, profit string)
	BroadcastOrderCancelled(o *domain.Order)
	BroadcastMarketStatus(marketID uuid.UUID, status domain.MarketStatus, result *int)
	BroadcastPoolUpdate(stats domain.PoolStats)
}

// PoolStatsSource is the minimal interface ResolutionService needs from the
// LP Manager to broadcast the pool's freshly-observed value after a
// settlement round changes the MM's balance.
type PoolStatsSource interface {
	PoolStats(ctx context.Context) (*domain.PoolStats, error)
}

// EventPublisher is the minimal interface ResolutionService needs from the
// Kafka producer to record a durable audit trail of resolution outcomes,
// additive to and independent of slog-based logging (§10.1, §11.2).
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte)
}

// ──────────────────────────────────────────────────────────────────────────────
// ResolutionService — the Resolution Pipeline (§4.7)
// ──────────────────────────────────────────────────────────────────────────────

// ResolutionService settles every LMSR and P2P position in a market against
// the settlement service once the market transitions CLOSED -> RESOLVED.
// Phases run LMSR losers, LMSR winners, P2P losers, P2P winners, then expire
// unfilled P2P orders; within each phase, one position's RPC failure is
// logged and swallowed so the rest of the phase still runs (§4.7's
// deliberate partial-failure policy).
type ResolutionService struct {
	db           *sqlx.DB
	marketRepo   *repository.MarketRepository
	positionSvc  *PositionService
	orderbookSvc *OrderBookService
	settlement   SettlementClient
	broadcaster  ResolutionBroadcaster
	poolStats    PoolStatsSource
	events       EventPublisher
	cfg          *config.Config
	logger       *slog.Logger
}

// NewResolutionService builds a ResolutionService.
func NewResolutionService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	positionSvc *PositionService,
	orderbookSvc *OrderBookService,
	settlementClient SettlementClient,
	cfg *config.Config,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		db:           db,
		marketRepo:   marketRepo,
		positionSvc:  positionSvc,
		orderbookSvc: orderbookSvc,
		settlement:   settlementClient,
		cfg:          cfg,
		logger:       logger.With("component", "resolution_service"),
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *ResolutionService) SetBroadcaster(b ResolutionBroadcaster) { s.broadcaster = b }

// SetPoolStatsSource injects the LP Manager dependency post-construction.
func (s *ResolutionService) SetPoolStatsSource(p PoolStatsSource) { s.poolStats = p }

// SetEventPublisher injects the Kafka producer dependency post-construction.
func (s *ResolutionService) SetEventPublisher(p EventPublisher) { s.events = p }

// ──────────────────────────────────────────────────────────────────────────────
// ResolveMarket — entry point
// ──────────────────────────────────────────────────────────────────────────────

// ResolutionSummary reports the counts and aggregate payout of one
// ResolveMarket run, surfaced verbatim in the POST /api/oracle/outcome
// response (§6).
type ResolutionSummary struct {
	Winners     int
	Losers      int
	TotalPayout decimal.Decimal
}

// ResolveMarket transitions a CLOSED market to RESOLVED with the given
// winning outcome and runs the three-phase settlement pipeline (§4.7).
func (s *ResolutionService) ResolveMarket(ctx context.Context, marketID uuid.UUID, outcome int) (*ResolutionSummary, error) {
	m, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("resolution_service.ResolveMarket: get market: %w", err)
	}
	if !m.CanTransitionTo(domain.MarketResolved) {
		return nil, domain.ErrIllegalMarketState
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("resolution_service.ResolveMarket: begin tx: %w", err)
	}
	if err := s.marketRepo.Resolve(ctx, tx, marketID, outcome); err != nil {
		_ = tx.Rollback()
		s.publishResolutionEvent(ctx, events.EventResolutionFailed, marketID, outcome, nil, err)
		return nil, fmt.Errorf("resolution_service.ResolveMarket: resolve: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.publishResolutionEvent(ctx, events.EventResolutionFailed, marketID, outcome, nil, err)
		return nil, fmt.Errorf("resolution_service.ResolveMarket: commit: %w", err)
	}

	winnersA, losersA, payoutA := s.runPhaseA(ctx, marketID, outcome)
	winnersB, losersB, payoutB := s.runPhaseB(ctx, marketID, outcome)
	s.runPhaseC(ctx, marketID)

	archiveTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("begin archive tx", "market_id", marketID, "error", err)
	} else {
		if err := s.positionSvc.ClearPositions(ctx, archiveTx, marketID); err != nil {
			s.logger.Error("archive positions", "market_id", marketID, "error", err)
			_ = archiveTx.Rollback()
		} else if err := archiveTx.Commit(); err != nil {
			s.logger.Error("commit archive tx", "market_id", marketID, "error", err)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMarketStatus(marketID, domain.MarketResolved, &outcome)
		if s.poolStats != nil {
			if stats, err := s.poolStats.PoolStats(ctx); err == nil {
				s.broadcaster.BroadcastPoolUpdate(*stats)
			} else {
				s.logger.Warn("load pool stats for POOL_UPDATE", "error", err)
			}
		}
	}

	summary := &ResolutionSummary{
		Winners:     winnersA + winnersB,
		Losers:      losersA + losersB,
		TotalPayout: payoutA.Add(payoutB),
	}
	s.publishResolutionEvent(ctx, events.EventResolutionSettled, marketID, outcome, summary, nil)
	return summary, nil
}

// publishResolutionEvent records the outcome of one ResolveMarket run
// (resolution.failed on an early failure, resolution.settled at the end) to
// the Kafka audit topic. A no-op if no publisher was injected (KAFKA_ENABLED
// off) or publishing fails — this channel is additive and must never affect
// the settlement path it records (§11.2).
func (s *ResolutionService) publishResolutionEvent(ctx context.Context, eventType string, marketID uuid.UUID, outcome int, summary *ResolutionSummary, resolveErr error) {
	if s.events == nil {
		return
	}
	evt := events.ResolutionEvent{
		Type:      eventType,
		MarketID:  marketID.String(),
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
	if summary != nil {
		evt.Winners = summary.Winners
		evt.Losers = summary.Losers
		evt.TotalPayout = summary.TotalPayout.String()
	}
	if resolveErr != nil {
		evt.Error = resolveErr.Error()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("marshal resolution event", "market_id", marketID, "error", err)
		return
	}
	s.events.Publish(ctx, events.TopicResolutionEvents, []byte(marketID.String()), payload)
}

// ──────────────────────────────────────────────────────────────────────────────
// Phase A — LMSR losers, then winners
// ──────────────────────────────────────────────────────────────────────────────

func (s *ResolutionService) runPhaseA(ctx context.Context, marketID uuid.UUID, outcome int) (winners, losers int, totalPayout decimal.Decimal) {
	positions, err := s.positionSvc.GetPositionsByMarket(ctx, marketID, domain.ModeLMSR)
	if err != nil {
		s.logger.Error("phase A: load positions", "market_id", marketID, "error", err)
		return 0, 0, decimal.Zero
	}

	var loserPositions, winnerPositions []*domain.Position
	for _, p := range positions {
		if p.Outcome == outcome {
			winnerPositions = append(winnerPositions, p)
		} else {
			loserPositions = append(loserPositions, p)
		}
	}

	for _, p := range loserPositions {
		s.settleLMSRLoser(ctx, p, marketID)
	}
	totalPayout = decimal.Zero
	for _, p := range winnerPositions {
		totalPayout = totalPayout.Add(s.settleLMSRWinner(ctx, p, marketID))
	}
	return len(winnerPositions), len(loserPositions), totalPayout
}

func (s *ResolutionService) settleLMSRLoser(ctx context.Context, p *domain.Position, marketID uuid.UUID) {
	version := p.AppSessionVersion + 1
	data := domain.NewSessionDataV3(domain.ModeLMSR, false, decimal.Zero, p.CostPaid.Neg())
	allocations := []settlement.Allocation{
		{Participant: p.Address, Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(decimal.Zero)},
		{Participant: s.mmAddress(), Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(p.CostPaid)},
	}

	s.trySubmitAppState(ctx, p.AppSessionID, version, allocations, data, "phase A loser submitAppState", p.ID)
	s.markVersionAdvanced(ctx, p.ID, p.Address, p.AppSessionID, version, data)
	s.tryCloseSession(ctx, p.AppSessionID, allocations, data, "phase A loser closeSession", p.ID)
	s.markSettled(ctx, p.ID, p.Address, p.AppSessionID, decimal.Zero, data)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastBetResult(p.Address, p.ID, marketID, false, "0", p.CostPaid.Neg().String())
	}
}

func (s *ResolutionService) settleLMSRWinner(ctx context.Context, p *domain.Position, marketID uuid.UUID) decimal.Decimal {
	payout := p.Shares
	fee := payout.Mul(s.cfg.Market.FeePercent()).Div(decimal.NewFromInt(100))
	profit := payout.Sub(p.CostPaid)

	version := p.AppSessionVersion + 1
	data := domain.NewSessionDataV3(domain.ModeLMSR, true, payout, profit)
	allocations := []settlement.Allocation{
		{Participant: p.Address, Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(p.CostPaid.Sub(fee))},
		{Participant: s.mmAddress(), Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(fee)},
	}

	s.trySubmitAppState(ctx, p.AppSessionID, version, allocations, data, "phase A winner submitAppState", p.ID)
	s.markVersionAdvanced(ctx, p.ID, p.Address, p.AppSessionID, version, data)
	s.tryCloseSession(ctx, p.AppSessionID, allocations, data, "phase A winner closeSession", p.ID)

	if profit.Sign() > 0 {
		s.tryTransfer(ctx, p.Address, profit, "phase A winner profit transfer", p.ID)
	}

	s.markSettled(ctx, p.ID, p.Address, p.AppSessionID, fee, data)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastBetResult(p.Address, p.ID, marketID, true, payout.String(), profit.String())
	}

	return payout
}

// ──────────────────────────────────────────────────────────────────────────────
// Phase B — P2P losers, then winners
// ──────────────────────────────────────────────────────────────────────────────

func (s *ResolutionService) runPhaseB(ctx context.Context, marketID uuid.UUID, outcome int) (winners, losers int, totalPayout decimal.Decimal) {
	orders, err := s.orderbookSvc.GetFilledOrdersForResolution(ctx, marketID)
	if err != nil {
		s.logger.Error("phase B: load filled orders", "market_id", marketID, "error", err)
		return 0, 0, decimal.Zero
	}

	var loserOrders, winnerOrders []*domain.Order
	for _, o := range orders {
		if o.Outcome == outcome {
			winnerOrders = append(winnerOrders, o)
		} else {
			loserOrders = append(loserOrders, o)
		}
	}

	for _, o := range loserOrders {
		s.settleP2PLoser(ctx, o, marketID)
	}
	totalPayout = decimal.Zero
	for _, o := range winnerOrders {
		totalPayout = totalPayout.Add(s.settleP2PWinner(ctx, o, marketID))
	}
	return len(winnerOrders), len(loserOrders), totalPayout
}

func (s *ResolutionService) settleP2PLoser(ctx context.Context, o *domain.Order, marketID uuid.UUID) {
	version := o.AppSessionVersion + 1
	allocations := []settlement.Allocation{
		{Participant: o.UserAddress, Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(o.UnfilledAmount)},
		{Participant: s.mmAddress(), Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(o.FilledAmount)},
	}
	data := domain.NewSessionDataV3(domain.ModeP2P, false, decimal.Zero, o.FilledAmount.Neg())

	s.trySubmitAppState(ctx, o.AppSessionID, version, allocations, data, "phase B loser submitAppState", o.ID)
	s.tryCloseSession(ctx, o.AppSessionID, allocations, data, "phase B loser closeSession", o.ID)
	s.trySettleOrder(ctx, o.ID)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastP2PBetResult(o.UserAddress, o.ID, marketID, false, "0", o.FilledAmount.Neg().String())
	}
}

func (s *ResolutionService) settleP2PWinner(ctx context.Context, o *domain.Order, marketID uuid.UUID) decimal.Decimal {
	fee := o.FilledShares.Mul(s.cfg.Market.FeePercent()).Div(decimal.NewFromInt(100))
	netPayout := o.FilledShares.Sub(fee)
	// profit is the raw, fee-unadjusted gain (mirrors settleLMSRWinner's
	// payout.Sub(p.CostPaid)): the closeSession allocation below already
	// takes the fee out of FilledAmount's return, so adding a
	// fee-adjusted profit on top would take it out twice.
	profit := o.FilledShares.Sub(o.FilledAmount)

	version := o.AppSessionVersion + 1
	allocations := []settlement.Allocation{
		{Participant: o.UserAddress, Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(o.FilledAmount.Add(o.UnfilledAmount).Sub(fee))},
		{Participant: s.mmAddress(), Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(fee)},
	}
	data := domain.NewSessionDataV3(domain.ModeP2P, true, netPayout, profit)

	s.trySubmitAppState(ctx, o.AppSessionID, version, allocations, data, "phase B winner submitAppState", o.ID)
	s.tryCloseSession(ctx, o.AppSessionID, allocations, data, "phase B winner closeSession", o.ID)

	if profit.Sign() > 0 {
		s.tryTransfer(ctx, o.UserAddress, profit, "phase B winner profit transfer", o.ID)
	}

	s.trySettleOrder(ctx, o.ID)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastP2PBetResult(o.UserAddress, o.ID, marketID, true, netPayout.String(), profit.String())
	}

	return netPayout
}

// ──────────────────────────────────────────────────────────────────────────────
// Phase C — expire unfilled P2P orders
// ──────────────────────────────────────────────────────────────────────────────

func (s *ResolutionService) runPhaseC(ctx context.Context, marketID uuid.UUID) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("phase C: begin tx", "market_id", marketID, "error", err)
		return
	}
	expired, err := s.orderbookSvc.ExpireUnfilledOrders(ctx, tx, marketID)
	if err != nil {
		s.logger.Error("phase C: expire unfilled", "market_id", marketID, "error", err)
		_ = tx.Rollback()
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("phase C: commit", "market_id", marketID, "error", err)
		return
	}

	for _, o := range expired {
		allocations := []settlement.Allocation{
			{Participant: o.UserAddress, Asset: s.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(o.Amount)},
		}
		data := domain.NewSessionDataV3(domain.ModeP2P, false, decimal.Zero, decimal.Zero)
		s.tryCloseSession(ctx, o.AppSessionID, allocations, data, "phase C expire closeSession", o.ID)
		if s.broadcaster != nil {
			s.broadcaster.BroadcastOrderCancelled(o)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Per-step RPC helpers — each attempted exactly once; failures are logged
// and swallowed so the calling phase continues with the next position
// (§4.7's failure semantics).
// ──────────────────────────────────────────────────────────────────────────────

func (s *ResolutionService) mmAddress() string {
	if s.settlement == nil {
		return ""
	}
	return s.settlement.Address()
}

func (s *ResolutionService) trySubmitAppState(ctx context.Context, appSessionID string, version int64, allocations []settlement.Allocation, data []byte, step string, positionID uuid.UUID) {
	if s.settlement == nil {
		return
	}
	_, err := s.settlement.SubmitAppState(ctx, settlement.SubmitAppStateParams{
		AppSessionID: appSessionID,
		Intent:       settlement.IntentOperate,
		Version:      version,
		Allocations:  allocations,
		SessionData:  data,
	})
	if err != nil {
		s.logger.Error(step, "position_id", positionID, "app_session_id", appSessionID, "error", err)
		metrics.ResolutionFailures.WithLabelValues(step).Inc()
	}
}

func (s *ResolutionService) tryCloseSession(ctx context.Context, appSessionID string, allocations []settlement.Allocation, data []byte, step string, positionID uuid.UUID) {
	if s.settlement == nil {
		return
	}
	if err := s.settlement.CloseSession(ctx, settlement.CloseSessionParams{
		AppSessionID: appSessionID,
		Allocations:  allocations,
		SessionData:  data,
	}); err != nil {
		s.logger.Error(step, "position_id", positionID, "app_session_id", appSessionID, "error", err)
		metrics.ResolutionFailures.WithLabelValues(step).Inc()
	}
}

func (s *ResolutionService) tryTransfer(ctx context.Context, destination string, amount decimal.Decimal, step string, positionID uuid.UUID) {
	if s.settlement == nil {
		return
	}
	if err := s.settlement.Transfer(ctx, settlement.TransferParams{
		Destination: destination,
		Asset:       s.cfg.Settlement.Asset,
		Amount:      domain.ToMicroUnits(amount),
	}); err != nil {
		s.logger.Error(step, "position_id", positionID, "destination", destination, "amount", amount, "error", err)
		metrics.ResolutionFailures.WithLabelValues(step).Inc()
	}
}

// markVersionAdvanced persists the new session version/data and broadcasts
// SESSION_VERSION_UPDATED regardless of whether the settlement RPC above it
// succeeded, so the hub's own view always advances (§4.7).
func (s *ResolutionService) markVersionAdvanced(ctx context.Context, positionID uuid.UUID, address, appSessionID string, version int64, data []byte) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("mark version advanced: begin tx", "position_id", positionID, "error", err)
		return
	}
	if err := s.positionSvc.UpdateAppSessionVersion(ctx, tx, positionID, version, domain.SessionSettling, data); err != nil {
		s.logger.Error("mark version advanced: update", "position_id", positionID, "error", err)
		_ = tx.Rollback()
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("mark version advanced: commit", "position_id", positionID, "error", err)
		return
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastSessionVersionUpdated(address, appSessionID, positionID, version)
	}
}

// markSettled persists the position's final settled status, fee, and data
// blob, then broadcasts SESSION_SETTLED, whether or not the position's
// settlement RPCs succeeded (§4.7). fee is zero for a losing position.
func (s *ResolutionService) markSettled(ctx context.Context, positionID uuid.UUID, address, appSessionID string, fee decimal.Decimal, data []byte) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("mark settled: begin tx", "position_id", positionID, "error", err)
		return
	}
	if err := s.positionSvc.MarkSettled(ctx, tx, positionID, fee, data); err != nil {
		s.logger.Error("mark settled: update", "position_id", positionID, "error", err)
		_ = tx.Rollback()
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("mark settled: commit", "position_id", positionID, "error", err)
		return
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastSessionSettled(address, appSessionID, positionID)
	}
}

// trySettleOrder advances a filled P2P order's status to SETTLED.
func (s *ResolutionService) trySettleOrder(ctx context.Context, orderID uuid.UUID) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("settle order: begin tx", "order_id", orderID, "error", err)
		return
	}
	if err := s.orderbookSvc.SettleOrder(ctx, tx, orderID); err != nil {
		s.logger.Error("settle order: update", "order_id", orderID, "error", err)
		_ = tx.Rollback()
		return
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("settle order: commit", "order_id", orderID, "error", err)
	}
}
