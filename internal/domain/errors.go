package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Validation errors — surfaced as HTTP 400 with a short reason.
var (
	ErrValidation       = errors.New("validation failed")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidOutcome   = errors.New("unknown outcome index")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidMCPS      = errors.New("mcps must be in (0, 1)")
	ErrUnsupportedMarket = errors.New("P2P orders are only supported on binary markets")
)

// Illegal-state errors — surfaced as HTTP 400 or 403 with a reason.
var (
	ErrIllegalMarketState = errors.New("illegal market state transition")
	ErrMarketNotOpen      = errors.New("market is not open")
	ErrMarketNotClosed    = errors.New("market is not closed")
	ErrMarketNotPending   = errors.New("market is not pending")
	ErrGameNotActive      = errors.New("game is not active")
	ErrMarketExists       = errors.New("a non-resolved market already exists for this game and category")
	ErrWithdrawalsLocked  = errors.New("withdrawals are locked while a market is open or positions are unsettled")
	ErrInsufficientShares = errors.New("insufficient LP shares")
	ErrOrderNotCancelable = errors.New("order is not in a cancellable state")
	ErrGameNotScheduled   = errors.New("game is not scheduled")
)

// Not-found errors — surfaced as HTTP 404.
var (
	ErrMarketNotFound   = errors.New("market not found")
	ErrGameNotFound     = errors.New("game not found")
	ErrCategoryNotFound = errors.New("market category not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrLPShareNotFound  = errors.New("LP share not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrOperatorNotFound = errors.New("operator not found")
)

// Operator auth errors (§9's backoffice JWT session).
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrOperatorInactive   = errors.New("operator account is deactivated")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("insufficient permissions")
)

// Session invariant errors.
var (
	// ErrSessionVersionRegression is returned when an update attempts to set a
	// session's version to a value that is not strictly greater than the last
	// known version.
	ErrSessionVersionRegression = errors.New("session version regression")
)

// Engine errors — pure LMSR computation failures (§4.1).
var (
	// ErrPriceInfeasible is returned when the closed-form shares-purchased
	// formula's outer logarithm argument is non-positive: the bet amount is
	// numerically infeasible for the current quantity vector and liquidity.
	ErrPriceInfeasible = errors.New("bet amount is infeasible for the current market liquidity")
)

// Settlement-service client errors (§4.6, §7). These are returned verbatim by
// API/manager callers but are swallowed and logged (never propagated) during
// resolution — see internal/service/resolution_service.go.
var (
	ErrTimeout       = errors.New("settlement service request timed out")
	ErrNotConnected  = errors.New("settlement service is not connected")
	ErrRemoteRPCFail = errors.New("settlement service returned an error reply")
)

// Faucet errors (§4.6). 5xx/network errors are retried; 4xx is fatal.
var (
	ErrFaucetRejected  = errors.New("faucet request rejected")
	ErrFaucetExhausted = errors.New("faucet request failed after exhausting retries")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

var notFoundErrors = []error{
	ErrMarketNotFound,
	ErrGameNotFound,
	ErrCategoryNotFound,
	ErrPositionNotFound,
	ErrOrderNotFound,
	ErrLPShareNotFound,
	ErrSessionNotFound,
	ErrOperatorNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var illegalStateErrors = []error{
	ErrIllegalMarketState,
	ErrMarketNotOpen,
	ErrMarketNotClosed,
	ErrMarketNotPending,
	ErrGameNotActive,
	ErrMarketExists,
	ErrWithdrawalsLocked,
	ErrInsufficientShares,
	ErrOrderNotCancelable,
	ErrGameNotScheduled,
}

// IsIllegalState returns true for errors that represent a state-machine or
// policy conflict rather than a missing entity or bad input.
func IsIllegalState(err error) bool {
	for _, target := range illegalStateErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationErrors = []error{
	ErrValidation,
	ErrMissingField,
	ErrInvalidOutcome,
	ErrInvalidAmount,
	ErrInvalidMCPS,
	ErrUnsupportedMarket,
	ErrPriceInfeasible,
}

// IsValidation returns true for errors representing a bad request body.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var settlementFailures = []error{
	ErrTimeout,
	ErrNotConnected,
	ErrRemoteRPCFail,
}

// IsSettlementFailure returns true for errors raised by the settlement-service
// client. During resolution these are swallowed and logged; elsewhere they
// propagate to the caller.
func IsSettlementFailure(err error) bool {
	for _, target := range settlementFailures {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
