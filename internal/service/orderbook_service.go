package service

import (
	"context"
	"fmt"
	"time"

	"strconv"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/metrics"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// OrderBookBroadcaster is the minimal interface OrderBookService needs from
// the WS hub.
type OrderBookBroadcaster interface {
	BroadcastOrderPlaced(o *domain.Order)
	BroadcastOrderFilled(o *domain.Order, fill *domain.Fill)
	BroadcastOrderCancelled(o *domain.Order)
	BroadcastOrderbookUpdate(marketID uuid.UUID)
}

// PlaceOrderResult is returned by PlaceOrder.
type PlaceOrderResult struct {
	Order *domain.Order
	Fills []*domain.Fill
}

// OrderBookService is the Order Book Manager (§4.4): maintains per-market,
// per-outcome resting-order books and performs price-time-priority matching
// on placement. Binary markets only; non-binary categories are rejected with
// ErrUnsupportedMarket before any book mutation.
type OrderBookService struct {
	db           *sqlx.DB
	orderRepo    *repository.OrderRepository
	marketRepo   *repository.MarketRepository
	categoryRepo *repository.CategoryRepository
	broadcaster  OrderBookBroadcaster
}

// NewOrderBookService creates an OrderBookService.
func NewOrderBookService(
	db *sqlx.DB,
	orderRepo *repository.OrderRepository,
	marketRepo *repository.MarketRepository,
	categoryRepo *repository.CategoryRepository,
) *OrderBookService {
	return &OrderBookService{
		db:           db,
		orderRepo:    orderRepo,
		marketRepo:   marketRepo,
		categoryRepo: categoryRepo,
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *OrderBookService) SetBroadcaster(b OrderBookBroadcaster) { s.broadcaster = b }

// ──────────────────────────────────────────────────────────────────────────────
// PlaceOrder
// ──────────────────────────────────────────────────────────────────────────────

// PlaceOrder validates the order against its category's outcome count,
// matches it against the resting book on the opposite outcome in
// price-time priority, and rests any remaining unfilled portion.
func (s *OrderBookService) PlaceOrder(ctx context.Context, marketID uuid.UUID, userAddress string, outcome int, mcps, amount decimal.Decimal, appSessionID string, appSessionVersion int64) (*PlaceOrderResult, error) {
	if mcps.Sign() <= 0 || mcps.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, domain.ErrInvalidMCPS
	}
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	m, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.PlaceOrder: get market: %w", err)
	}
	if !m.IsOpen() {
		return nil, domain.ErrMarketNotOpen
	}

	category, err := s.categoryRepo.GetByID(ctx, m.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.PlaceOrder: get category: %w", err)
	}
	if !category.IsBinary() {
		return nil, domain.ErrUnsupportedMarket
	}
	if outcome != 0 && outcome != 1 {
		return nil, domain.ErrInvalidOutcome
	}
	opposite := 1 - outcome

	maxShares := amount.Div(mcps)
	now := time.Now().UTC()
	order := &domain.Order{
		ID:                uuid.New(),
		MarketID:          marketID,
		UserAddress:       userAddress,
		Outcome:           outcome,
		MCPS:              mcps,
		Amount:            amount,
		FilledAmount:      decimal.Zero,
		UnfilledAmount:    amount,
		MaxShares:         maxShares,
		FilledShares:      decimal.Zero,
		UnfilledShares:    maxShares,
		AppSessionID:      appSessionID,
		AppSessionVersion: appSessionVersion,
		Status:            domain.OrderOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.PlaceOrder: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("orderbook_service.PlaceOrder: create: %w", err)
	}

	counterparties, err := s.orderRepo.GetRestableOpposite(ctx, tx, marketID, opposite)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.PlaceOrder: load opposite book: %w", err)
	}

	var fills []*domain.Fill
	for _, maker := range counterparties {
		if order.UnfilledShares.IsZero() {
			break
		}
		// §4.4's matching rule: p + q >= 1.
		if order.MCPS.Add(maker.MCPS).LessThan(decimal.NewFromInt(1)) {
			continue
		}

		matched := decimal.Min(order.UnfilledShares, maker.UnfilledShares)
		if matched.Sign() <= 0 {
			continue
		}

		order.ApplyFill(matched, order.MCPS)
		maker.ApplyFill(matched, maker.MCPS)

		if err := s.orderRepo.ApplyFill(ctx, tx, order); err != nil {
			return nil, fmt.Errorf("orderbook_service.PlaceOrder: apply taker fill: %w", err)
		}
		if err := s.orderRepo.ApplyFill(ctx, tx, maker); err != nil {
			return nil, fmt.Errorf("orderbook_service.PlaceOrder: apply maker fill: %w", err)
		}

		fill := &domain.Fill{
			ID:           uuid.New(),
			TakerOrderID: order.ID,
			MakerOrderID: maker.ID,
			Shares:       matched,
			Price:        maker.MCPS,
			Cost:         matched.Mul(maker.MCPS),
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.orderRepo.CreateFill(ctx, tx, fill); err != nil {
			return nil, fmt.Errorf("orderbook_service.PlaceOrder: create fill: %w", err)
		}
		fills = append(fills, fill)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("orderbook_service.PlaceOrder: commit: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastOrderPlaced(order)
		for _, f := range fills {
			s.broadcaster.BroadcastOrderFilled(order, f)
		}
		if len(fills) > 0 {
			s.broadcaster.BroadcastOrderbookUpdate(marketID)
		}
	}

	if len(fills) > 0 {
		metrics.OrdersMatched.WithLabelValues(strconv.Itoa(outcome)).Add(float64(len(fills)))
	}

	return &PlaceOrderResult{Order: order, Fills: fills}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// CancelOrder
// ──────────────────────────────────────────────────────────────────────────────

// CancelOrder transitions a resting order to CANCELLED. The unfilled portion
// is released by the Resolution Pipeline / caller instructing the
// settlement-service to return the stake; this method only flips the status.
func (s *OrderBookService) CancelOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.CancelOrder: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := s.orderRepo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.CancelOrder: %w", err)
	}
	if !order.IsRestable() {
		return nil, domain.ErrOrderNotCancelable
	}

	if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, domain.OrderCancelled); err != nil {
		return nil, fmt.Errorf("orderbook_service.CancelOrder: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("orderbook_service.CancelOrder: commit: %w", err)
	}

	order.Status = domain.OrderCancelled
	if s.broadcaster != nil {
		s.broadcaster.BroadcastOrderCancelled(order)
	}
	return order, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetDepth returns aggregated price levels per outcome, sorted descending by
// price (§4.4's getDepth).
func (s *OrderBookService) GetDepth(ctx context.Context, marketID uuid.UUID, outcomeCount int) (map[int][]domain.DepthLevel, error) {
	result := make(map[int][]domain.DepthLevel, outcomeCount)
	for outcome := 0; outcome < outcomeCount; outcome++ {
		orders, err := s.orderRepo.GetDepth(ctx, marketID, outcome)
		if err != nil {
			return nil, fmt.Errorf("orderbook_service.GetDepth: outcome %d: %w", outcome, err)
		}
		result[outcome] = aggregateDepth(orders)
	}
	return result, nil
}

// aggregateDepth groups resting orders by price into DepthLevel buckets,
// already sorted by the caller's price-descending query order.
func aggregateDepth(orders []*domain.Order) []domain.DepthLevel {
	var levels []domain.DepthLevel
	var last *domain.DepthLevel
	for _, o := range orders {
		if last != nil && last.Price.Equal(o.MCPS) {
			last.Shares = last.Shares.Add(o.UnfilledShares)
			last.OrderCount++
			continue
		}
		levels = append(levels, domain.DepthLevel{Price: o.MCPS, Shares: o.UnfilledShares, OrderCount: 1})
		last = &levels[len(levels)-1]
	}
	return levels
}

// GetOrdersByUser returns an address's order history, paged by limit and
// offset. It takes no market filter; the HTTP handler applies marketId.
func (s *OrderBookService) GetOrdersByUser(ctx context.Context, address string, limit, offset int) ([]*domain.Order, error) {
	orders, err := s.orderRepo.GetByUserAddress(ctx, address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.GetOrdersByUser: %w", err)
	}
	return orders, nil
}

// GetFilledOrdersForResolution returns every order in a market with
// filledShares > 0 and status != SETTLED, the P2P resolution phase B work
// list (§4.4, §4.7).
func (s *OrderBookService) GetFilledOrdersForResolution(ctx context.Context, marketID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.orderRepo.GetFilledForResolution(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.GetFilledOrdersForResolution: %w", err)
	}
	return orders, nil
}

// ExpireUnfilledOrders sets status=EXPIRED for every fully-unfilled resting
// order in a market, returning them for the Resolution Pipeline's phase C
// (§4.4, §4.7).
func (s *OrderBookService) ExpireUnfilledOrders(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.orderRepo.GetExpired(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service.ExpireUnfilledOrders: fetch: %w", err)
	}
	var expired []*domain.Order
	for _, o := range orders {
		if !o.IsFullyUnfilled() {
			continue
		}
		if err := s.orderRepo.UpdateStatus(ctx, tx, o.ID, domain.OrderExpired); err != nil {
			return nil, fmt.Errorf("orderbook_service.ExpireUnfilledOrders: update %s: %w", o.ID, err)
		}
		o.Status = domain.OrderExpired
		expired = append(expired, o)
	}
	return expired, nil
}

// SettleOrder advances an order's status to SETTLED inside tx.
func (s *OrderBookService) SettleOrder(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) error {
	if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, domain.OrderSettled); err != nil {
		return fmt.Errorf("orderbook_service.SettleOrder: %w", err)
	}
	return nil
}
