package handler

import (
	"net/http"

	"github.com/evetabi/prediction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OracleHandler serves the Oracle/Game Controller's endpoints (§4.10, §6).
// Every route here is operator-gated in the router (admin/ops roles only) —
// these are backoffice/automation levers, never end-user-facing.
type OracleHandler struct {
	oracleSvc *service.OracleService
}

// NewOracleHandler creates an OracleHandler.
func NewOracleHandler(oracleSvc *service.OracleService) *OracleHandler {
	return &OracleHandler{oracleSvc: oracleSvc}
}

// SetGameState godoc
// POST /api/oracle/game-state
// Body: {"active": bool}
func (h *OracleHandler) SetGameState(c *gin.Context) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.oracleSvc.SetGameActive(c.Request.Context(), body.Active); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "active": body.Active})
}

// OpenMarket godoc
// POST /api/oracle/market/open
// Body: {"gameId": "uuid", "categoryId": "uuid"}
func (h *OracleHandler) OpenMarket(c *gin.Context) {
	var body struct {
		GameID     string `json:"gameId"     binding:"required"`
		CategoryID string `json:"categoryId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	gameID, err1 := uuid.Parse(body.GameID)
	categoryID, err2 := uuid.Parse(body.CategoryID)
	if err1 != nil || err2 != nil {
		respondError(c, http.StatusBadRequest, "invalid gameId or categoryId")
		return
	}

	m, err := h.oracleSvc.OpenMarket(c.Request.Context(), gameID, categoryID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "marketId": m.ID})
}

// CloseMarket godoc
// POST /api/oracle/market/close
// Body: {"gameId": "uuid", "categoryId": "uuid"}
func (h *OracleHandler) CloseMarket(c *gin.Context) {
	var body struct {
		GameID     string `json:"gameId"`
		CategoryID string `json:"categoryId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	gameID, err1 := uuid.Parse(body.GameID)
	categoryID, err2 := uuid.Parse(body.CategoryID)
	if err1 != nil || err2 != nil {
		respondError(c, http.StatusBadRequest, "invalid gameId or categoryId")
		return
	}

	m, err := h.oracleSvc.CloseMarket(c.Request.Context(), gameID, categoryID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "marketId": m.ID})
}

// DetermineOutcome godoc
// POST /api/oracle/outcome
// Body: {"outcome": int, "gameId": "uuid", "categoryId": "uuid"}
func (h *OracleHandler) DetermineOutcome(c *gin.Context) {
	var body struct {
		Outcome    int    `json:"outcome"`
		GameID     string `json:"gameId"`
		CategoryID string `json:"categoryId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	gameID, err1 := uuid.Parse(body.GameID)
	categoryID, err2 := uuid.Parse(body.CategoryID)
	if err1 != nil || err2 != nil {
		respondError(c, http.StatusBadRequest, "invalid gameId or categoryId")
		return
	}

	m, summary, err := h.oracleSvc.DetermineOutcome(c.Request.Context(), gameID, categoryID, body.Outcome)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"marketId":    m.ID,
		"outcome":     body.Outcome,
		"winners":     summary.Winners,
		"losers":      summary.Losers,
		"totalPayout": summary.TotalPayout.String(),
	})
}
