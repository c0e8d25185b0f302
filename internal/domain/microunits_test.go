package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMicroUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"1", "1000000"},
		{"0.5", "500000"},
		{"0", "0"},
		{"1.0000005", "1000001"}, // rounds to nearest micro-unit
		{"1.0000004", "1000000"},
	}
	for _, tt := range tests {
		amt, _ := decimal.NewFromString(tt.amount)
		if got := ToMicroUnits(amt); got != tt.want {
			t.Errorf("ToMicroUnits(%s) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestFromMicroUnits(t *testing.T) {
	tests := []struct {
		microUnits string
		want       string
	}{
		{"1000000", "1"},
		{"500000", "0.5"},
		{"0", "0"},
	}
	for _, tt := range tests {
		got := FromMicroUnits(tt.microUnits)
		want, _ := decimal.NewFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("FromMicroUnits(%s) = %s, want %s", tt.microUnits, got, want)
		}
	}
}

func TestFromMicroUnits_MalformedInputDecodesToZero(t *testing.T) {
	got := FromMicroUnits("not-a-number")
	if !got.IsZero() {
		t.Errorf("FromMicroUnits(malformed) = %v, want 0", got)
	}
}

func TestMicroUnits_RoundTrip(t *testing.T) {
	original, _ := decimal.NewFromString("42.50")
	micro := ToMicroUnits(original)
	back := FromMicroUnits(micro)
	if !back.Equal(original) {
		t.Errorf("round-trip ToMicroUnits/FromMicroUnits(%s) = %s, want %s", original, back, original)
	}
}
