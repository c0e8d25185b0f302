package handler

import (
	"net/http"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// LPHandler serves the LP Manager's endpoints (§4.5, §6).
type LPHandler struct {
	lpSvc *service.LPService
}

// NewLPHandler creates an LPHandler.
func NewLPHandler(lpSvc *service.LPService) *LPHandler {
	return &LPHandler{lpSvc: lpSvc}
}

// Deposit godoc
// POST /api/lp/deposit
// Body: {"address": "0x...", "amount": "100.00"}
func (h *LPHandler) Deposit(c *gin.Context) {
	var body struct {
		Address string          `json:"address" binding:"required"`
		Amount  decimal.Decimal `json:"amount"  binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.lpSvc.Deposit(c.Request.Context(), body.Address, body.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"shares":         result.Shares.String(),
		"sharePrice":     result.SharePrice.String(),
		"poolValueAfter": result.PoolValueAfter.String(),
	})
}

// Withdraw godoc
// POST /api/lp/withdraw
// Body: {"address": "0x...", "shares": "10.00"}
func (h *LPHandler) Withdraw(c *gin.Context) {
	var body struct {
		Address string          `json:"address" binding:"required"`
		Shares  decimal.Decimal `json:"shares"  binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.lpSvc.Withdraw(c.Request.Context(), body.Address, body.Shares)
	if err != nil {
		if err == domain.ErrWithdrawalsLocked {
			respondError(c, http.StatusForbidden, err.Error())
			return
		}
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"amount":         result.AmountOut.String(),
		"sharePrice":     result.SharePrice.String(),
		"poolValueAfter": result.PoolValueAfter.String(),
	})
}

// GetStats godoc
// GET /api/lp/stats
func (h *LPHandler) GetStats(c *gin.Context) {
	stats, err := h.lpSvc.PoolStats(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetShare godoc
// GET /api/lp/share/:address
func (h *LPHandler) GetShare(c *gin.Context) {
	address := c.Param("address")
	share, err := h.lpSvc.GetShare(c.Request.Context(), address)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, share)
}

// GetEvents godoc
// GET /api/lp/events?address=...
func (h *LPHandler) GetEvents(c *gin.Context) {
	address := c.Query("address")
	page, limit := parsePagination(c)
	events, err := h.lpSvc.GetHistory(c.Request.Context(), address, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
