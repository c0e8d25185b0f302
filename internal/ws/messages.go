// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it
// (§6's discriminated message-type list).
type MsgType string

const (
	MsgTypeStateSync           MsgType = "STATE_SYNC"
	MsgTypeOddsUpdate          MsgType = "ODDS_UPDATE"
	MsgTypeMarketStatus        MsgType = "MARKET_STATUS"
	MsgTypeGameState           MsgType = "GAME_STATE"
	MsgTypeBetResult           MsgType = "BET_RESULT"
	MsgTypePositionAdded       MsgType = "POSITION_ADDED"
	MsgTypeConnectionCount     MsgType = "CONNECTION_COUNT"
	MsgTypeSessionSettled      MsgType = "SESSION_SETTLED"
	MsgTypeSessionVersionBump  MsgType = "SESSION_VERSION_UPDATED"
	MsgTypeConfigUpdated       MsgType = "CONFIG_UPDATED"
	MsgTypeGameCreated         MsgType = "GAME_CREATED"
	MsgTypeLPDeposit           MsgType = "LP_DEPOSIT"
	MsgTypeLPWithdrawal        MsgType = "LP_WITHDRAWAL"
	MsgTypePoolUpdate          MsgType = "POOL_UPDATE"
	MsgTypeVolumeUpdate        MsgType = "VOLUME_UPDATE"
	MsgTypeOrderPlaced         MsgType = "ORDER_PLACED"
	MsgTypeOrderFilled         MsgType = "ORDER_FILLED"
	MsgTypeOrderbookUpdate     MsgType = "ORDERBOOK_UPDATE"
	MsgTypeOrderCancelled      MsgType = "ORDER_CANCELLED"
	MsgTypeP2PBetResult        MsgType = "P2P_BET_RESULT"
	MsgTypeError               MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// StateSyncMessage — pushed once, immediately after connect (§6).
// ──────────────────────────────────────────────────────────────────────────────

// StateSyncMessage carries the current market snapshot and the connecting
// address's open positions, so a freshly connected client never has to poll.
type StateSyncMessage struct {
	Type      MsgType                `json:"type"`
	Markets   []domain.MarketSummary `json:"markets"`
	Positions []domain.Position      `json:"positions"`
	Timestamp time.Time              `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// OddsUpdateMessage — broadcast whenever an LMSR market's prices move.
// ──────────────────────────────────────────────────────────────────────────────

// OddsUpdateMessage carries a market's freshly recomputed price vector.
type OddsUpdateMessage struct {
	Type       MsgType           `json:"type"`
	MarketID   uuid.UUID         `json:"marketId"`
	Prices     []decimal.Decimal `json:"prices"`
	Quantities []decimal.Decimal `json:"quantities"`
	Volume     decimal.Decimal   `json:"volume"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketStatusMessage — broadcast on every market lifecycle transition,
// including resolution (status RESOLVED carries Result).
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatusMessage announces a market's new lifecycle status.
type MarketStatusMessage struct {
	Type      MsgType             `json:"type"`
	MarketID  uuid.UUID           `json:"marketId"`
	Status    domain.MarketStatus `json:"status"`
	Result    *int                `json:"result,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// GameStateMessage — broadcast when the admin kill-switch flips.
// ──────────────────────────────────────────────────────────────────────────────

// GameStateMessage announces the singleton auto-play active/paused state.
type GameStateMessage struct {
	Type      MsgType   `json:"type"`
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// BetResultMessage — sent to one address when its LMSR position resolves.
// ──────────────────────────────────────────────────────────────────────────────

// BetResultMessage carries the win/loss outcome and payout of one LMSR
// position, addressed to the position's owner only.
type BetResultMessage struct {
	Type       MsgType         `json:"type"`
	PositionID uuid.UUID       `json:"positionId"`
	MarketID   uuid.UUID       `json:"marketId"`
	Won        bool            `json:"won"`
	Payout     decimal.Decimal `json:"payout"`
	Profit     decimal.Decimal `json:"profit"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// PositionAddedMessage — sent to one address right after a fill.
// ──────────────────────────────────────────────────────────────────────────────

// PositionAddedMessage notifies the owning address that a new position
// record now exists.
type PositionAddedMessage struct {
	Type      MsgType          `json:"type"`
	Position  domain.Position  `json:"position"`
	Timestamp time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ConnectionCountMessage — broadcast whenever the connected-socket count
// changes.
// ──────────────────────────────────────────────────────────────────────────────

// ConnectionCountMessage reports the number of currently connected sockets.
type ConnectionCountMessage struct {
	Type  MsgType `json:"type"`
	Count int     `json:"count"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SessionSettledMessage / SessionVersionUpdatedMessage — settlement-service
// session lifecycle, addressed to the position's owner.
// ──────────────────────────────────────────────────────────────────────────────

// SessionSettledMessage notifies an address that its settlement-service
// session has closed.
type SessionSettledMessage struct {
	Type         MsgType   `json:"type"`
	PositionID   uuid.UUID `json:"positionId"`
	AppSessionID string    `json:"appSessionId"`
	Timestamp    time.Time `json:"timestamp"`
}

// SessionVersionUpdatedMessage notifies an address that its session version
// advanced (§8's monotonic-version invariant surfaced to the client).
type SessionVersionUpdatedMessage struct {
	Type         MsgType   `json:"type"`
	PositionID   uuid.UUID `json:"positionId"`
	AppSessionID string    `json:"appSessionId"`
	Version      int64     `json:"version"`
	Timestamp    time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ConfigUpdatedMessage — broadcast after an admin config change.
// ──────────────────────────────────────────────────────────────────────────────

// ConfigUpdatedMessage announces a runtime-tunable config change.
type ConfigUpdatedMessage struct {
	Type                  MsgType         `json:"type"`
	TransactionFeePercent decimal.Decimal `json:"transactionFeePercent"`
	LMSRSensitivityFactor decimal.Decimal `json:"lmsrSensitivityFactor"`
	Timestamp             time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// GameCreatedMessage — broadcast when the oracle/game controller opens a new
// game (and, typically, its first market).
// ──────────────────────────────────────────────────────────────────────────────

// GameCreatedMessage announces a freshly scheduled or activated game.
type GameCreatedMessage struct {
	Type      MsgType      `json:"type"`
	Game      domain.Game  `json:"game"`
	Timestamp time.Time    `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// LPDepositMessage / LPWithdrawalMessage — broadcast on LP activity.
// ──────────────────────────────────────────────────────────────────────────────

// LPDepositMessage announces a completed LP deposit.
type LPDepositMessage struct {
	Type           MsgType         `json:"type"`
	Address        string          `json:"address"`
	Amount         decimal.Decimal `json:"amount"`
	Shares         decimal.Decimal `json:"shares"`
	SharePrice     decimal.Decimal `json:"sharePrice"`
	PoolValueAfter decimal.Decimal `json:"poolValueAfter"`
	Timestamp      time.Time       `json:"timestamp"`
}

// LPWithdrawalMessage announces a completed LP withdrawal.
type LPWithdrawalMessage struct {
	Type           MsgType         `json:"type"`
	Address        string          `json:"address"`
	AmountOut      decimal.Decimal `json:"amountOut"`
	Shares         decimal.Decimal `json:"shares"`
	SharePrice     decimal.Decimal `json:"sharePrice"`
	PoolValueAfter decimal.Decimal `json:"poolValueAfter"`
	Timestamp      time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// PoolUpdateMessage / VolumeUpdateMessage — broadcast on any pool-value or
// market-volume change.
// ──────────────────────────────────────────────────────────────────────────────

// PoolUpdateMessage carries the LP pool's current read model.
type PoolUpdateMessage struct {
	Type      MsgType          `json:"type"`
	Stats     domain.PoolStats `json:"stats"`
	Timestamp time.Time        `json:"timestamp"`
}

// VolumeUpdateMessage carries one market's updated cumulative volume.
type VolumeUpdateMessage struct {
	Type      MsgType         `json:"type"`
	MarketID  uuid.UUID       `json:"marketId"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Order-book lifecycle messages — broadcast to all subscribers of a market's
// orderbook, and ORDER_PLACED/ORDER_CANCELLED additionally sent to the
// order's own owner.
// ──────────────────────────────────────────────────────────────────────────────

// OrderPlacedMessage announces a newly resting or taker order.
type OrderPlacedMessage struct {
	Type      MsgType      `json:"type"`
	Order     domain.Order `json:"order"`
	Timestamp time.Time    `json:"timestamp"`
}

// OrderFilledMessage announces one match between two orders.
type OrderFilledMessage struct {
	Type      MsgType      `json:"type"`
	Order     domain.Order `json:"order"`
	Fill      domain.Fill  `json:"fill"`
	Timestamp time.Time    `json:"timestamp"`
}

// OrderbookUpdateMessage signals that a market's depth changed; clients are
// expected to re-fetch via the depth endpoint rather than receive the full
// book inline.
type OrderbookUpdateMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  uuid.UUID `json:"marketId"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCancelledMessage announces a cancelled order.
type OrderCancelledMessage struct {
	Type      MsgType      `json:"type"`
	Order     domain.Order `json:"order"`
	Timestamp time.Time    `json:"timestamp"`
}

// P2PBetResultMessage carries the win/loss outcome of one filled P2P order,
// addressed to the order owner.
type P2PBetResultMessage struct {
	Type      MsgType         `json:"type"`
	OrderID   uuid.UUID       `json:"orderId"`
	MarketID  uuid.UUID       `json:"marketId"`
	Won       bool            `json:"won"`
	Payout    decimal.Decimal `json:"payout"`
	Profit    decimal.Decimal `json:"profit"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent directly to one socket on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client, never broadcast.
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
