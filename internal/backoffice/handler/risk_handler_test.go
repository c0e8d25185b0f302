package handler

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarketRiskIndicator(t *testing.T) {
	tests := []struct {
		name   string
		volume string
		b      string
		want   string
	}{
		{"zero liquidity parameter is always red", "100", "0", "RED"},
		{"no volume yet is green", "0", "50", "GREEN"},
		{"volume at twice b is still green", "100", "50", "GREEN"},
		{"volume just past 2x b is yellow", "101", "50", "YELLOW"},
		{"volume at 5x b is yellow", "250", "50", "YELLOW"},
		{"volume past 5x b is red", "251", "50", "RED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			volume, _ := decimal.NewFromString(tt.volume)
			b, _ := decimal.NewFromString(tt.b)
			got := marketRiskIndicator(volume, b)
			if got != tt.want {
				t.Errorf("marketRiskIndicator(%s, %s) = %s, want %s", tt.volume, tt.b, got, tt.want)
			}
		})
	}
}
