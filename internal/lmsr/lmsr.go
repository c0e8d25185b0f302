// Package lmsr implements the Logarithmic Market Scoring Rule pricing engine:
// pure, deterministic cost and price functions over an outcome quantity
// vector, with no side effects and no dependency on the rest of the hub.
package lmsr

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/evetabi/prediction/internal/domain"
)

// toFloats converts a decimal quantity vector and liquidity parameter to
// float64 for the numerically-stable log-sum-exp computation. LMSR's
// exponentials make float64 the natural working precision here; callers
// convert back to decimal.Decimal at the boundary.
func toFloats(q []decimal.Decimal, b decimal.Decimal) ([]float64, float64) {
	bf, _ := b.Float64()
	qf := make([]float64, len(q))
	for i, v := range q {
		qf[i], _ = v.Float64()
	}
	return qf, bf
}

// logSumExp computes ln(Σ exp(x[i])) in a numerically stable form by
// subtracting the maximum element before exponentiating (§4.1, §9).
func logSumExp(x []float64) (sum float64, max float64) {
	max = x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	var s float64
	for _, v := range x {
		s += math.Exp(v - max)
	}
	return s, max
}

// Cost computes C(q, b) = b * ln(Σ exp(qᵢ/b)) using the log-sum-exp trick.
func Cost(q []decimal.Decimal, b decimal.Decimal) decimal.Decimal {
	qf, bf := toFloats(q, b)
	scaled := make([]float64, len(qf))
	for i, v := range qf {
		scaled[i] = v / bf
	}
	sum, max := logSumExp(scaled)
	cost := bf * (max + math.Log(sum))
	return decimal.NewFromFloat(cost)
}

// Prices computes pᵢ(q, b) = exp(qᵢ/b) / Σⱼ exp(qⱼ/b) for every outcome.
// Every entry is strictly in (0, 1) and the vector sums to 1 within floating
// tolerance.
func Prices(q []decimal.Decimal, b decimal.Decimal) []decimal.Decimal {
	qf, bf := toFloats(q, b)
	scaled := make([]float64, len(qf))
	for i, v := range qf {
		scaled[i] = v / bf
	}
	sum, max := logSumExp(scaled)

	out := make([]decimal.Decimal, len(qf))
	for i, v := range scaled {
		p := math.Exp(v-max) / sum
		out[i] = decimal.NewFromFloat(p)
	}
	return out
}

// SharesForAmount solves for the unique s >= 0 such that
// C(q + s*e_i, b) - C(q, b) = amount, via the closed form:
//
//	s = b*ln(exp(a/b)*Σⱼ exp(qⱼ/b) - Σⱼ≠ᵢ exp(qⱼ/b)) - qᵢ
//
// Expanding Σⱼ exp(qⱼ/b) as exp(max)*sum (the same max-shift logSumExp
// uses) keeps every exponential near O(1) instead of recovering the raw
// unnormalized total — q/b growing past ~709 would otherwise overflow
// exp(max) to +Inf on a market that has simply seen a lot of volume.
// Returns domain.ErrPriceInfeasible when the argument of the outer log is
// non-positive.
func SharesForAmount(q []decimal.Decimal, b decimal.Decimal, outcome int, amount decimal.Decimal) (decimal.Decimal, error) {
	qf, bf := toFloats(q, b)
	af, _ := amount.Float64()

	scaled := make([]float64, len(qf))
	for i, v := range qf {
		scaled[i] = v / bf
	}
	sum, max := logSumExp(scaled)
	expAmt := math.Exp(af / bf)
	outcomeShiftExp := math.Exp(scaled[outcome] - max)

	// inner == (exp(a/b)*Σⱼ exp(qⱼ/b) - Σⱼ≠ᵢ exp(qⱼ/b)) / exp(max).
	inner := sum*(expAmt-1) + outcomeShiftExp
	if inner <= 0 || math.IsNaN(inner) || math.IsInf(inner, 0) {
		return decimal.Zero, domain.ErrPriceInfeasible
	}

	s := bf*max + bf*math.Log(inner) - qf[outcome]
	if s < 0 || math.IsNaN(s) {
		return decimal.Zero, domain.ErrPriceInfeasible
	}
	return decimal.NewFromFloat(s), nil
}

// ApplyTrade returns the post-trade quantity vector q' = q + s*e_i.
func ApplyTrade(q []decimal.Decimal, outcome int, shares decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(q))
	copy(out, q)
	out[outcome] = out[outcome].Add(shares)
	return out
}

// ZeroVector returns a fresh quantity vector of length n, all zero.
func ZeroVector(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}
