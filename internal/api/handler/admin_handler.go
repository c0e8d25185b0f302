package handler

import (
	"context"
	"net/http"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/scheduler"
	"github.com/evetabi/prediction/internal/service"
	"github.com/evetabi/prediction/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// AdminHandler serves the backoffice reset/config/state surface (§6, §9).
type AdminHandler struct {
	db        *sqlx.DB
	marketSvc *service.MarketService
	oracleSvc *service.OracleService
	lpSvc     *service.LPService
	scheduler *scheduler.Scheduler
	hub       *ws.Hub
	cfg       *config.Config
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *sqlx.DB,
	marketSvc *service.MarketService,
	oracleSvc *service.OracleService,
	lpSvc *service.LPService,
	sched *scheduler.Scheduler,
	hub *ws.Hub,
	cfg *config.Config,
) *AdminHandler {
	return &AdminHandler{
		db: db, marketSvc: marketSvc, oracleSvc: oracleSvc, lpSvc: lpSvc,
		scheduler: sched, hub: hub, cfg: cfg,
	}
}

// GetState godoc
// GET /api/admin/state — a snapshot dashboard for the backoffice.
func (h *AdminHandler) GetState(c *gin.Context) {
	ctx := c.Request.Context()

	gameActive, err := h.oracleSvc.IsGameActive(ctx)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	markets, _, err := h.marketSvc.ListMarkets(ctx, 200, 0, "")
	if err != nil {
		respondDomainError(c, err)
		return
	}

	poolStats, err := h.lpSvc.PoolStats(ctx)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"gameActive":        gameActive,
		"markets":           markets,
		"pool":              poolStats,
		"connectedSockets":  h.hub.ConnectedCount(),
		"transactionFeePct": h.cfg.Market.FeePercent().String(),
		"sensitivityFactor": h.cfg.Market.SensitivityFactor().String(),
	})
}

// adminTables are truncated, in dependency order, by POST /api/admin/reset.
var adminTables = []string{
	"fills", "orders", "positions", "markets",
	"lp_events", "lp_shares", "game_state", "games",
}

// Reset godoc
// POST /api/admin/reset — stops the auto-play scheduler, truncates the
// adminTables, re-inserts the game_state row as inactive, closes every
// connected WebSocket, and restarts the scheduler (§4.10, §6). Sports,
// teams and categories are neither truncated nor re-seeded.
func (h *AdminHandler) Reset(c *gin.Context) {
	if h.scheduler != nil {
		h.scheduler.Stop()
	}

	ctx := context.Background()
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range adminTables {
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO game_state (id, active) VALUES (1, false)`); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := tx.Commit(); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if h.hub != nil {
		h.hub.Clear()
	}

	if h.scheduler != nil {
		h.scheduler.Start(context.Background())
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetConfig godoc
// GET /api/admin/config
func (h *AdminHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"transactionFeePercent": h.cfg.Market.FeePercent().String(),
		"lmsrSensitivityFactor": h.cfg.Market.SensitivityFactor().String(),
	})
}

// UpdateConfig godoc
// POST /api/admin/config
// Body: {"transactionFeePercent": "2.5", "lmsrSensitivityFactor": "0.01"}
func (h *AdminHandler) UpdateConfig(c *gin.Context) {
	var body struct {
		TransactionFeePercent *string `json:"transactionFeePercent"`
		LMSRSensitivityFactor *string `json:"lmsrSensitivityFactor"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if body.TransactionFeePercent != nil {
		v, err := decimal.NewFromString(*body.TransactionFeePercent)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid transactionFeePercent")
			return
		}
		h.cfg.Market.SetFeePercent(v)
	}
	if body.LMSRSensitivityFactor != nil {
		v, err := decimal.NewFromString(*body.LMSRSensitivityFactor)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid lmsrSensitivityFactor")
			return
		}
		h.cfg.Market.SetSensitivityFactor(v)
	}

	if h.hub != nil {
		h.hub.BroadcastConfigUpdated(h.cfg.Market.FeePercent().String(), h.cfg.Market.SensitivityFactor().String())
	}

	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"transactionFeePercent": h.cfg.Market.FeePercent().String(),
		"lmsrSensitivityFactor": h.cfg.Market.SensitivityFactor().String(),
	})
}
