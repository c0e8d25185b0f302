package handler

import (
	"context"
	"net/http"

	"github.com/evetabi/prediction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RiskSettlementSource is the minimal settlement-service capability the risk
// view needs: custodial balance and live connection health.
type RiskSettlementSource interface {
	Address() string
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	IsConnected() bool
}

// RiskHandler serves /admin/risk endpoints: pool exposure and settlement
// connectivity health (§4.5, §4.6, §9).
type RiskHandler struct {
	marketSvc  *service.MarketService
	lpSvc      *service.LPService
	settlement RiskSettlementSource
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(marketSvc *service.MarketService, lpSvc *service.LPService, settlementClient RiskSettlementSource) *RiskHandler {
	return &RiskHandler{marketSvc: marketSvc, lpSvc: lpSvc, settlement: settlementClient}
}

// Live godoc
// GET /admin/risk/live — current pool exposure across every open market.
func (h *RiskHandler) Live(c *gin.Context) {
	ctx := c.Request.Context()

	markets, _, err := h.marketSvc.ListMarkets(ctx, 200, 0, "OPEN")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	poolStats, err := h.lpSvc.PoolStats(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	var totalExposure decimal.Decimal
	exposures := make([]gin.H, 0, len(markets))
	for _, m := range markets {
		exposures = append(exposures, gin.H{
			"marketId":      m.ID,
			"b":             m.B,
			"volume":        m.Volume,
			"riskIndicator": marketRiskIndicator(m.Volume, m.B),
		})
		totalExposure = totalExposure.Add(m.Volume)
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"pool":          poolStats,
		"totalExposure": totalExposure,
		"markets":       exposures,
	})
}

// marketRiskIndicator returns GREEN/YELLOW/RED based on how far a market's
// traded volume has run past its LMSR liquidity parameter — a rough proxy
// for worst-case payout relative to the capital backing it.
func marketRiskIndicator(volume, b decimal.Decimal) string {
	if b.IsZero() {
		return "RED"
	}
	ratio := volume.Div(b)
	switch {
	case ratio.GreaterThan(decimal.NewFromInt(5)):
		return "RED"
	case ratio.GreaterThan(decimal.NewFromInt(2)):
		return "YELLOW"
	default:
		return "GREEN"
	}
}

// SettlementStatus godoc
// GET /admin/risk/settlement-status
func (h *RiskHandler) SettlementStatus(c *gin.Context) {
	balance, err := h.settlement.GetBalance(c.Request.Context())
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"address":     h.settlement.Address(),
		"balance":     balance,
		"isConnected": h.settlement.IsConnected(),
		"error":       errMsg,
	})
}

// Alerts godoc
// GET /admin/risk/alerts
func (h *RiskHandler) Alerts(c *gin.Context) {
	ctx := c.Request.Context()

	poolStats, err := h.lpSvc.PoolStats(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	type alert struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	var alerts []alert

	if !poolStats.CanWithdraw {
		alerts = append(alerts, alert{"YELLOW", "LP withdrawals are locked: a market or a settlement session is open"})
	}
	if !h.settlement.IsConnected() {
		alerts = append(alerts, alert{"RED", "settlement-service connection is down"})
	}
	if alerts == nil {
		alerts = []alert{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"alerts": alerts, "pool": poolStats})
}
