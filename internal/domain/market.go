package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketStatus — PENDING -> OPEN -> CLOSED -> RESOLVED only (§4.2)
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatus is the lifecycle state of a Market.
type MarketStatus string

const (
	MarketPending  MarketStatus = "PENDING"
	MarketOpen     MarketStatus = "OPEN"
	MarketClosed   MarketStatus = "CLOSED"
	MarketResolved MarketStatus = "RESOLVED"
)

// DefaultLiquidityB equals the default of DEFAULT_LIQUIDITY_B (§4.2). Market
// creation reads the liquidity parameter from config.MarketConfig, not from
// this variable.
var DefaultLiquidityB = decimal.NewFromInt(100)

// DefaultSensitivityFactor equals the default of LMSR_SENSITIVITY_FACTOR
// (§4.2). Auto-scaling b at market creation reads the factor from
// config.MarketConfig, not from this variable.
var DefaultSensitivityFactor = decimal.NewFromFloat(0.01)

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market is a single LMSR-priced, optionally P2P-tradable outcome market
// attached to a Game under a Category. Quantities[i] is the LMSR quantity
// for outcome i; its length always equals the parent category's outcome
// count.
type Market struct {
	ID         uuid.UUID            `json:"id"          db:"id"`
	GameID     uuid.UUID            `json:"game_id"     db:"game_id"`
	CategoryID uuid.UUID            `json:"category_id" db:"category_id"`
	Status     MarketStatus         `json:"status"      db:"status"`
	Result     *int                 `json:"result"      db:"result"` // winning outcome index, non-nil iff RESOLVED
	Quantities []decimal.Decimal    `json:"-"           db:"-"`      // authoritative in-memory form
	QtyRaw     pq.StringArray       `json:"-"           db:"quantities"`
	B          decimal.Decimal      `json:"b"           db:"b"`
	Volume     decimal.Decimal      `json:"volume"      db:"volume"`
	CreatedAt  time.Time            `json:"created_at"  db:"created_at"`
	OpensAt    *time.Time           `json:"opens_at"     db:"opens_at"`
	ClosesAt   *time.Time           `json:"closes_at"    db:"closes_at"`
	ResolvedAt *time.Time           `json:"resolved_at" db:"resolved_at"`
}

// IsOpen reports whether the market currently accepts bets and orders.
func (m *Market) IsOpen() bool {
	return m.Status == MarketOpen
}

// IsResolved reports whether the market has a final outcome.
func (m *Market) IsResolved() bool {
	return m.Status == MarketResolved
}

// OutcomeCount returns n, the dimensionality of the quantity vector.
func (m *Market) OutcomeCount() int {
	return len(m.Quantities)
}

// CanTransitionTo reports whether the given status is a legal next state from
// the market's current status (§4.2's state machine).
func (m *Market) CanTransitionTo(next MarketStatus) bool {
	switch m.Status {
	case MarketPending:
		return next == MarketOpen
	case MarketOpen:
		return next == MarketClosed
	case MarketClosed:
		return next == MarketResolved
	default:
		return false
	}
}

// EncodeQuantities serializes Quantities into QtyRaw for persistence.
func (m *Market) EncodeQuantities() {
	raw := make(pq.StringArray, len(m.Quantities))
	for i, q := range m.Quantities {
		raw[i] = q.String()
	}
	m.QtyRaw = raw
}

// DecodeQuantities parses QtyRaw (as loaded from the database) into
// Quantities. Malformed entries decode to zero.
func (m *Market) DecodeQuantities() {
	qs := make([]decimal.Decimal, len(m.QtyRaw))
	for i, s := range m.QtyRaw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			d = decimal.Zero
		}
		qs[i] = d
	}
	m.Quantities = qs
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketSummary — read model for API responses and WS broadcasts
// ──────────────────────────────────────────────────────────────────────────────

// MarketSummary is a derived, read-only view of a Market plus its live prices.
// Only the quantity-indexed Prices vector is exposed; there is no legacy
// qBall/qStrike-style pair of named fields (§9 open question, resolved).
type MarketSummary struct {
	ID         uuid.UUID         `json:"id"`
	GameID     uuid.UUID         `json:"gameId"`
	CategoryID uuid.UUID         `json:"categoryId"`
	Status     MarketStatus      `json:"status"`
	Outcomes   []string          `json:"outcomes"`
	Quantities []decimal.Decimal `json:"quantities"`
	Prices     []decimal.Decimal `json:"prices"`
	B          decimal.Decimal   `json:"b"`
	Volume     decimal.Decimal   `json:"volume"`
	Result     *int              `json:"result,omitempty"`
	ClosesAt   *time.Time        `json:"closesAt,omitempty"`
}
