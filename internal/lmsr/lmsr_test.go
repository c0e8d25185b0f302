package lmsr

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func closeEnough(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestCost_ZeroQuantitiesEqualsBLnN(t *testing.T) {
	b := dec(100)
	q := ZeroVector(2)
	got, _ := Cost(q, b).Float64()
	want := 100 * math.Log(2) // b*ln(n) at q=0
	if !closeEnough(got, want, 1e-6) {
		t.Errorf("Cost(0,0 | b=100) = %v, want %v", got, want)
	}
}

func TestPrices_SumToOne(t *testing.T) {
	b := dec(50)
	q := []decimal.Decimal{dec(10), dec(-5), dec(3)}
	prices := Prices(q, b)

	var sum decimal.Decimal
	for _, p := range prices {
		sum = sum.Add(p)
		if p.Sign() <= 0 {
			t.Errorf("price %v should be strictly positive", p)
		}
	}
	f, _ := sum.Float64()
	if !closeEnough(f, 1.0, 1e-9) {
		t.Errorf("Σ prices = %v, want 1.0", f)
	}
}

func TestPrices_EqualQuantitiesAreUniform(t *testing.T) {
	b := dec(20)
	q := ZeroVector(4)
	prices := Prices(q, b)
	for i, p := range prices {
		f, _ := p.Float64()
		if !closeEnough(f, 0.25, 1e-9) {
			t.Errorf("prices[%d] = %v, want 0.25 (uniform over 4 outcomes)", i, f)
		}
	}
}

func TestPrices_HigherQuantityMeansHigherPrice(t *testing.T) {
	b := dec(30)
	q := []decimal.Decimal{dec(50), dec(0)}
	prices := Prices(q, b)
	if !prices[0].GreaterThan(prices[1]) {
		t.Errorf("outcome with more shares bought should have higher price: %v vs %v", prices[0], prices[1])
	}
}

func TestSharesForAmount_CostRoundTrips(t *testing.T) {
	b := dec(100)
	q := ZeroVector(2)
	amount := dec(10)

	shares, err := SharesForAmount(q, b, 0, amount)
	if err != nil {
		t.Fatalf("SharesForAmount() error = %v", err)
	}

	before := Cost(q, b)
	after := Cost(ApplyTrade(q, 0, shares), b)
	gotDelta, _ := after.Sub(before).Float64()
	wantDelta, _ := amount.Float64()
	if !closeEnough(gotDelta, wantDelta, 1e-4) {
		t.Errorf("C(q+s*e0,b) - C(q,b) = %v, want %v (the requested spend)", gotDelta, wantDelta)
	}
}

func TestSharesForAmount_ZeroAmountYieldsZeroShares(t *testing.T) {
	b := dec(100)
	q := ZeroVector(3)
	shares, err := SharesForAmount(q, b, 1, decimal.Zero)
	if err != nil {
		t.Fatalf("SharesForAmount(0) error = %v", err)
	}
	if !shares.IsZero() {
		t.Errorf("SharesForAmount(amount=0) = %v, want 0", shares)
	}
}

func TestSharesForAmount_NegativeAmountIsInfeasible(t *testing.T) {
	b := dec(100)
	q := ZeroVector(2)
	_, err := SharesForAmount(q, b, 0, dec(-5))
	if err == nil {
		t.Fatal("SharesForAmount(negative amount) should return an error, shares must stay >= 0")
	}
}

func TestSharesForAmount_HighVolumeMarketDoesNotOverflow(t *testing.T) {
	// q/b well past the ~709 point where a naive exp(q/b) overflows to
	// +Inf, simulating a market that has absorbed a lot of volume.
	b := dec(100)
	q := []decimal.Decimal{dec(80000), dec(0)}
	amount := dec(10)

	shares, err := SharesForAmount(q, b, 0, amount)
	if err != nil {
		t.Fatalf("SharesForAmount() on a high-volume market returned error = %v, want a feasible trade", err)
	}
	if shares.Sign() <= 0 {
		t.Errorf("SharesForAmount() = %v, want > 0 for a positive spend", shares)
	}

	before := Cost(q, b)
	after := Cost(ApplyTrade(q, 0, shares), b)
	gotDelta, _ := after.Sub(before).Float64()
	wantDelta, _ := amount.Float64()
	if !closeEnough(gotDelta, wantDelta, 1e-3) {
		t.Errorf("C(q+s*e0,b) - C(q,b) = %v, want %v (the requested spend)", gotDelta, wantDelta)
	}
}

func TestApplyTrade_OnlyTargetOutcomeChanges(t *testing.T) {
	q := []decimal.Decimal{dec(1), dec(2), dec(3)}
	out := ApplyTrade(q, 1, dec(5))

	if !out[0].Equal(q[0]) || !out[2].Equal(q[2]) {
		t.Errorf("ApplyTrade must leave other outcomes untouched, got %v from %v", out, q)
	}
	if !out[1].Equal(dec(7)) {
		t.Errorf("ApplyTrade(q, 1, 5) outcome[1] = %v, want 7", out[1])
	}
	// original vector must not be mutated
	if !q[1].Equal(dec(2)) {
		t.Errorf("ApplyTrade must not mutate its input, q[1] became %v", q[1])
	}
}

func TestZeroVector(t *testing.T) {
	v := ZeroVector(5)
	if len(v) != 5 {
		t.Fatalf("ZeroVector(5) length = %d, want 5", len(v))
	}
	for i, x := range v {
		if !x.IsZero() {
			t.Errorf("ZeroVector(5)[%d] = %v, want 0", i, x)
		}
	}
}
