package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionMode distinguishes an LMSR-filled bet from a settled P2P fill. Set
// at creation and never changed (§3).
type PositionMode string

const (
	ModeLMSR PositionMode = "lmsr"
	ModeP2P  PositionMode = "p2p"
)

// SessionStatus mirrors the settlement-service session's lifecycle as the hub
// observes it.
type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionSettling SessionStatus = "settling"
	SessionSettled  SessionStatus = "settled"
)

// Position is one record per executed LMSR bet or filled P2P order (§3).
type Position struct {
	ID                uuid.UUID       `json:"id"                db:"id"`
	Address           string          `json:"address"           db:"address"`
	MarketID          uuid.UUID       `json:"marketId"          db:"market_id"`
	Outcome           int             `json:"outcome"           db:"outcome"`
	Shares            decimal.Decimal `json:"shares"            db:"shares"`
	CostPaid          decimal.Decimal `json:"costPaid"          db:"cost_paid"`
	AppSessionID      string          `json:"appSessionId"      db:"app_session_id"`
	AppSessionVersion int64           `json:"appSessionVersion" db:"app_session_version"`
	SessionStatus     SessionStatus   `json:"sessionStatus"     db:"session_status"`
	Mode              PositionMode    `json:"mode"              db:"mode"`
	Fee               *decimal.Decimal `json:"fee,omitempty"    db:"fee"`
	SessionData       json.RawMessage `json:"sessionData"       db:"session_data"`
	CreatedAt         time.Time       `json:"createdAt"         db:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Session-data blob versions (§6)
// ──────────────────────────────────────────────────────────────────────────────

// SessionDataV1 is recorded at bet/order creation time: the user's intent.
type SessionDataV1 struct {
	V        int          `json:"v"`
	Mode     PositionMode `json:"mode"`
	Outcome  int          `json:"outcome"`
	Amount   string       `json:"amount"`
}

// SessionDataV2 is recorded once the hub accepts the bet/order: computed
// prices, shares, and fee.
type SessionDataV2 struct {
	V       int               `json:"v"`
	Mode    PositionMode      `json:"mode"`
	Outcome int               `json:"outcome"`
	Shares  string            `json:"shares"`
	Prices  []decimal.Decimal `json:"prices"`
	Fee     string            `json:"fee,omitempty"`
}

// SessionDataV3 is recorded at resolution: the final result and payout.
type SessionDataV3 struct {
	V       int          `json:"v"`
	Mode    PositionMode `json:"mode"`
	Result  string       `json:"result"` // "WIN" or "LOSS"
	Payout  string       `json:"payout"`
	Profit  string       `json:"profit"`
}

// NewSessionDataV1 builds the opaque session-data blob recorded when a
// position's settlement-service session is first created.
func NewSessionDataV1(mode PositionMode, outcome int, amount decimal.Decimal) json.RawMessage {
	b, _ := json.Marshal(SessionDataV1{V: 1, Mode: mode, Outcome: outcome, Amount: amount.String()})
	return b
}

// NewSessionDataV2 builds the blob recorded once the hub accepts the trade.
func NewSessionDataV2(mode PositionMode, outcome int, shares decimal.Decimal, prices []decimal.Decimal, fee decimal.Decimal) json.RawMessage {
	feeStr := ""
	if !fee.IsZero() {
		feeStr = fee.String()
	}
	b, _ := json.Marshal(SessionDataV2{V: 2, Mode: mode, Outcome: outcome, Shares: shares.String(), Prices: prices, Fee: feeStr})
	return b
}

// NewSessionDataV3 builds the blob recorded at resolution.
func NewSessionDataV3(mode PositionMode, won bool, payout, profit decimal.Decimal) json.RawMessage {
	result := "LOSS"
	if won {
		result = "WIN"
	}
	b, _ := json.Marshal(SessionDataV3{V: 3, Mode: mode, Result: result, Payout: payout.String(), Profit: profit.String()})
	return b
}
