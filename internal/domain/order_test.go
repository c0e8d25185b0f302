package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestOrder(maxShares, mcps string) *Order {
	ms, _ := decimal.NewFromString(maxShares)
	p, _ := decimal.NewFromString(mcps)
	return &Order{
		ID:             uuid.New(),
		MCPS:           p,
		Amount:         ms.Mul(p),
		UnfilledAmount: ms.Mul(p),
		MaxShares:      ms,
		UnfilledShares: ms,
		Status:         OrderOpen,
	}
}

func TestOrder_IsRestable(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderOpen, true},
		{OrderPartiallyFilled, true},
		{OrderFilled, false},
		{OrderCancelled, false},
		{OrderExpired, false},
		{OrderSettled, false},
	}
	for _, tt := range tests {
		o := &Order{Status: tt.status}
		if got := o.IsRestable(); got != tt.want {
			t.Errorf("Order{Status: %s}.IsRestable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestOrder_IsFullyUnfilled(t *testing.T) {
	o := newTestOrder("10", "0.5")
	if !o.IsFullyUnfilled() {
		t.Fatal("fresh order should be fully unfilled")
	}
	o.ApplyFill(decimal.NewFromInt(1), o.MCPS)
	if o.IsFullyUnfilled() {
		t.Fatal("order with a fill applied should no longer be fully unfilled")
	}
}

func TestOrder_ApplyFill_PartialLeavesStatusPartiallyFilled(t *testing.T) {
	o := newTestOrder("10", "0.5")
	o.ApplyFill(decimal.NewFromInt(4), o.MCPS)

	if o.Status != OrderPartiallyFilled {
		t.Errorf("Status = %s, want PARTIALLY_FILLED", o.Status)
	}
	if !o.FilledShares.Equal(decimal.NewFromInt(4)) {
		t.Errorf("FilledShares = %v, want 4", o.FilledShares)
	}
	if !o.UnfilledShares.Equal(decimal.NewFromInt(6)) {
		t.Errorf("UnfilledShares = %v, want 6", o.UnfilledShares)
	}
	wantFilledAmount := decimal.NewFromInt(4).Mul(decimal.NewFromFloat(0.5))
	if !o.FilledAmount.Equal(wantFilledAmount) {
		t.Errorf("FilledAmount = %v, want %v", o.FilledAmount, wantFilledAmount)
	}
}

func TestOrder_ApplyFill_ExactRemainderTransitionsToFilled(t *testing.T) {
	o := newTestOrder("10", "0.5")
	o.ApplyFill(decimal.NewFromInt(10), o.MCPS)

	if o.Status != OrderFilled {
		t.Errorf("Status = %s, want FILLED", o.Status)
	}
	if !o.UnfilledShares.IsZero() {
		t.Errorf("UnfilledShares = %v, want 0", o.UnfilledShares)
	}
	if !o.UnfilledAmount.IsZero() {
		t.Errorf("UnfilledAmount = %v, want 0", o.UnfilledAmount)
	}
}

func TestOrder_ApplyFill_OverfillClampsToZeroNotNegative(t *testing.T) {
	o := newTestOrder("10", "0.5")
	// Simulate a rounding edge case where the matched amount slightly
	// exceeds the remaining unfilled shares.
	o.ApplyFill(decimal.NewFromFloat(10.0001), o.MCPS)

	if o.Status != OrderFilled {
		t.Errorf("Status = %s, want FILLED even on a tiny overfill", o.Status)
	}
	if o.UnfilledShares.IsNegative() {
		t.Errorf("UnfilledShares must never go negative, got %v", o.UnfilledShares)
	}
	if !o.UnfilledShares.IsZero() {
		t.Errorf("UnfilledShares = %v, want clamped to 0", o.UnfilledShares)
	}
}

func TestOrder_ApplyFill_UsesExecPriceNotOwnMCPS(t *testing.T) {
	// ApplyFill charges the execPrice it is given, not o.MCPS: an order at
	// 0.60 filled with an execPrice of 0.45 records its FilledAmount at
	// 0.45, not at its own 0.60.
	taker := newTestOrder("10", "0.60")
	execPrice := decimal.NewFromFloat(0.45)
	taker.ApplyFill(decimal.NewFromInt(4), execPrice)

	wantFilledAmount := decimal.NewFromInt(4).Mul(execPrice)
	if !taker.FilledAmount.Equal(wantFilledAmount) {
		t.Errorf("FilledAmount = %v, want %v (execPrice, not taker's own MCPS of 0.60)", taker.FilledAmount, wantFilledAmount)
	}
}

func TestOrder_ApplyFill_MultipleFillsAccumulate(t *testing.T) {
	o := newTestOrder("10", "0.5")
	o.ApplyFill(decimal.NewFromInt(3), o.MCPS)
	o.ApplyFill(decimal.NewFromInt(3), o.MCPS)
	o.ApplyFill(decimal.NewFromInt(4), o.MCPS)

	if o.Status != OrderFilled {
		t.Errorf("Status = %s, want FILLED after cumulative fills reach MaxShares", o.Status)
	}
	if !o.FilledShares.Equal(decimal.NewFromInt(10)) {
		t.Errorf("FilledShares = %v, want 10", o.FilledShares)
	}
}
