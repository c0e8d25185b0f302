package domain

import (
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrMarketNotFound) {
		t.Error("ErrMarketNotFound should classify as not-found")
	}
	if !IsNotFound(fmt.Errorf("wrapped: %w", ErrOperatorNotFound)) {
		t.Error("a wrapped not-found error should still classify as not-found")
	}
	if IsNotFound(ErrValidation) {
		t.Error("a validation error should not classify as not-found")
	}
}

func TestIsIllegalState(t *testing.T) {
	if !IsIllegalState(ErrWithdrawalsLocked) {
		t.Error("ErrWithdrawalsLocked should classify as illegal-state")
	}
	if !IsIllegalState(ErrMarketNotOpen) {
		t.Error("ErrMarketNotOpen should classify as illegal-state")
	}
	if IsIllegalState(ErrMarketNotFound) {
		t.Error("a not-found error should not classify as illegal-state")
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ErrInvalidMCPS) {
		t.Error("ErrInvalidMCPS should classify as validation")
	}
	if !IsValidation(ErrPriceInfeasible) {
		t.Error("ErrPriceInfeasible should classify as validation")
	}
	if IsValidation(ErrTimeout) {
		t.Error("a settlement error should not classify as validation")
	}
}

func TestIsSettlementFailure(t *testing.T) {
	if !IsSettlementFailure(ErrNotConnected) {
		t.Error("ErrNotConnected should classify as a settlement failure")
	}
	if !IsSettlementFailure(fmt.Errorf("rpc: %w", ErrRemoteRPCFail)) {
		t.Error("a wrapped settlement error should still classify as a settlement failure")
	}
	if IsSettlementFailure(ErrMarketNotFound) {
		t.Error("a not-found error should not classify as a settlement failure")
	}
}

func TestErrorClassesAreDisjoint(t *testing.T) {
	all := []error{ErrMarketNotFound, ErrWithdrawalsLocked, ErrInvalidMCPS, ErrTimeout}
	classifiers := map[string]func(error) bool{
		"not-found":   IsNotFound,
		"illegal":     IsIllegalState,
		"validation":  IsValidation,
		"settlement":  IsSettlementFailure,
	}
	for _, err := range all {
		matches := 0
		for _, fn := range classifiers {
			if fn(err) {
				matches++
			}
		}
		if matches != 1 {
			t.Errorf("error %q matched %d classifiers, want exactly 1", err, matches)
		}
	}
}
