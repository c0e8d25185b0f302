package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LPEventType distinguishes a deposit from a withdrawal in the append-only
// LP event log (§3).
type LPEventType string

const (
	LPDeposit    LPEventType = "DEPOSIT"
	LPWithdrawal LPEventType = "WITHDRAWAL"
)

// LPShare is one depositor's running position in the pool.
type LPShare struct {
	Address         string          `json:"address"         db:"address"`
	Shares          decimal.Decimal `json:"shares"          db:"shares"`
	TotalDeposited  decimal.Decimal `json:"totalDeposited"  db:"total_deposited"`
	TotalWithdrawn  decimal.Decimal `json:"totalWithdrawn"  db:"total_withdrawn"`
	FirstDepositAt  time.Time       `json:"firstDepositAt"  db:"first_deposit_at"`
	LastActionAt    time.Time       `json:"lastActionAt"    db:"last_action_at"`
}

// LPEvent is one append-only deposit or withdrawal record.
type LPEvent struct {
	ID               uuid.UUID       `json:"id"               db:"id"`
	Address          string          `json:"address"          db:"address"`
	Type             LPEventType     `json:"type"             db:"type"`
	Amount           decimal.Decimal `json:"amount"           db:"amount"`
	Shares           decimal.Decimal `json:"shares"           db:"shares"`
	SharePrice       decimal.Decimal `json:"sharePrice"       db:"share_price"`
	PoolValueBefore  decimal.Decimal `json:"poolValueBefore"  db:"pool_value_before"`
	PoolValueAfter   decimal.Decimal `json:"poolValueAfter"   db:"pool_value_after"`
	CreatedAt        time.Time       `json:"createdAt"        db:"created_at"`
}

// PoolStats is the LP Manager's read model (§4.5).
type PoolStats struct {
	PoolValue   decimal.Decimal `json:"poolValue"`
	TotalShares decimal.Decimal `json:"totalShares"`
	SharePrice  decimal.Decimal `json:"sharePrice"`
	LPCount     int             `json:"lpCount"`
	CanWithdraw bool            `json:"canWithdraw"`
}
