package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a P2P Order (§3, §4.4).
type OrderStatus string

const (
	OrderOpen             OrderStatus = "OPEN"
	OrderPartiallyFilled  OrderStatus = "PARTIALLY_FILLED"
	OrderFilled           OrderStatus = "FILLED"
	OrderCancelled        OrderStatus = "CANCELLED"
	OrderExpired          OrderStatus = "EXPIRED"
	OrderSettled          OrderStatus = "SETTLED"
)

// Order is a resting or filled P2P limit order on one outcome of a binary
// market. MaxShares = Amount / MCPS, fixed at creation.
type Order struct {
	ID                uuid.UUID       `json:"id"                db:"id"`
	MarketID          uuid.UUID       `json:"marketId"          db:"market_id"`
	UserAddress       string          `json:"userAddress"       db:"user_address"`
	Outcome           int             `json:"outcome"           db:"outcome"`
	MCPS              decimal.Decimal `json:"mcps"              db:"mcps"`
	Amount            decimal.Decimal `json:"amount"            db:"amount"`
	FilledAmount      decimal.Decimal `json:"filledAmount"      db:"filled_amount"`
	UnfilledAmount    decimal.Decimal `json:"unfilledAmount"    db:"unfilled_amount"`
	MaxShares         decimal.Decimal `json:"maxShares"         db:"max_shares"`
	FilledShares      decimal.Decimal `json:"filledShares"      db:"filled_shares"`
	UnfilledShares    decimal.Decimal `json:"unfilledShares"    db:"unfilled_shares"`
	AppSessionID      string          `json:"appSessionId"      db:"app_session_id"`
	AppSessionVersion int64           `json:"appSessionVersion" db:"app_session_version"`
	Status            OrderStatus     `json:"status"            db:"status"`
	CreatedAt         time.Time       `json:"createdAt"         db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt"         db:"updated_at"`
}

// IsRestable reports whether the order can still receive fills.
func (o *Order) IsRestable() bool {
	return o.Status == OrderOpen || o.Status == OrderPartiallyFilled
}

// IsFullyUnfilled reports whether no shares have been matched yet.
func (o *Order) IsFullyUnfilled() bool {
	return o.FilledShares.IsZero()
}

// ApplyFill mutates the order's filled/unfilled counters for a match of
// `matched` shares at execPrice and advances its status per §4.4's fill
// semantics. execPrice is the per-share price charged to this order for the
// match and is used as given rather than read from o.MCPS; the order book
// passes each side its own MCPS, so taker and maker each record filled
// shares times their own price.
func (o *Order) ApplyFill(matched, execPrice decimal.Decimal) {
	cost := matched.Mul(execPrice)
	o.FilledShares = o.FilledShares.Add(matched)
	o.UnfilledShares = o.UnfilledShares.Sub(matched)
	o.FilledAmount = o.FilledAmount.Add(cost)
	o.UnfilledAmount = o.UnfilledAmount.Sub(cost)

	if o.UnfilledShares.IsZero() || o.UnfilledShares.IsNegative() {
		o.UnfilledShares = decimal.Zero
		o.UnfilledAmount = decimal.Zero
		o.Status = OrderFilled
	} else {
		o.Status = OrderPartiallyFilled
	}
}

// Fill is an immutable record of a single match between two P2P orders.
type Fill struct {
	ID            uuid.UUID       `json:"id"            db:"id"`
	TakerOrderID  uuid.UUID       `json:"takerOrderId"  db:"taker_order_id"`
	MakerOrderID  uuid.UUID       `json:"makerOrderId"  db:"maker_order_id"`
	Shares        decimal.Decimal `json:"shares"        db:"shares"`
	Price         decimal.Decimal `json:"price"         db:"price"`
	Cost          decimal.Decimal `json:"cost"          db:"cost"`
	CreatedAt     time.Time       `json:"createdAt"     db:"created_at"`
}

// DepthLevel is one aggregated price level in an order-book depth snapshot
// (§4.4's getDepth).
type DepthLevel struct {
	Price      decimal.Decimal `json:"price"`
	Shares     decimal.Decimal `json:"shares"`
	OrderCount int             `json:"orderCount"`
}
