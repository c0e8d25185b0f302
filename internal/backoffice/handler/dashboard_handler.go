package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/service"
	"github.com/evetabi/prediction/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DashboardHandler serves the /admin/dashboard summary endpoint.
type DashboardHandler struct {
	marketSvc *service.MarketService
	lpSvc     *service.LPService
	oracleSvc *service.OracleService
	hub       *ws.Hub
	cfg       *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	marketSvc *service.MarketService,
	lpSvc *service.LPService,
	oracleSvc *service.OracleService,
	hub *ws.Hub,
	cfg *config.Config,
) *DashboardHandler {
	return &DashboardHandler{marketSvc: marketSvc, lpSvc: lpSvc, oracleSvc: oracleSvc, hub: hub, cfg: cfg}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	openMarkets, openTotal, err := h.marketSvc.ListMarkets(ctx, 50, 0, "OPEN")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "dashboard_markets", err.Error())
		return
	}

	poolStats, err := h.lpSvc.PoolStats(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "dashboard_pool", err.Error())
		return
	}

	gameActive, err := h.oracleSvc.IsGameActive(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "dashboard_game_state", err.Error())
		return
	}

	var totalVolume decimal.Decimal
	for _, m := range openMarkets {
		totalVolume = totalVolume.Add(m.Volume)
	}

	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":         time.Now().UTC(),
		"gameActive":        gameActive,
		"openMarketCount":   openTotal,
		"openMarkets":       openMarkets,
		"totalOpenVolume":   totalVolume,
		"pool":              poolStats,
		"transactionFeePct": h.cfg.Market.FeePercent(),
		"sensitivityFactor": h.cfg.Market.SensitivityFactor(),
		"wsConnections":     wsConnections,
	})
}
