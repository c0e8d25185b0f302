package handler

import (
	"net/http"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MarketAdminHandler serves /admin/markets, the backoffice's override surface
// for market lifecycle management outside the normal Oracle/Game Controller
// automation (§4.2, §4.10).
type MarketAdminHandler struct {
	marketSvc    *service.MarketService
	oracleSvc    *service.OracleService
	categoryRepo *repository.CategoryRepository
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(marketSvc *service.MarketService, oracleSvc *service.OracleService, categoryRepo *repository.CategoryRepository) *MarketAdminHandler {
	return &MarketAdminHandler{marketSvc: marketSvc, oracleSvc: oracleSvc, categoryRepo: categoryRepo}
}

// List godoc
// GET /admin/markets?status=OPEN&page=1&limit=20
func (h *MarketAdminHandler) List(c *gin.Context) {
	status := c.Query("status")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	markets, total, err := h.marketSvc.ListMarkets(c.Request.Context(), limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, markets, total, page, limit)
}

// Detail godoc
// GET /admin/markets/:id
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	ctx := c.Request.Context()
	market, err := h.marketSvc.GetMarket(ctx, id)
	if err != nil {
		if err == domain.ErrMarketNotFound {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	category, err := h.categoryRepo.GetByID(ctx, market.CategoryID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	summary, err := h.marketSvc.GetSummary(ctx, id, []string(category.Outcomes))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"market":   market,
		"category": category,
		"summary":  summary,
	})
}

// Close godoc
// POST /admin/markets/:id/close — forces the OPEN -> CLOSED transition ahead
// of the market's closes_at, an emergency override of the normal Oracle
// automation (§4.2).
func (h *MarketAdminHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	market, err := h.marketSvc.CloseMarket(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// Resolve godoc
// POST /admin/markets/:id/resolve
// Body: {"gameId": "uuid", "categoryId": "uuid", "outcome": 0}
func (h *MarketAdminHandler) Resolve(c *gin.Context) {
	var body struct {
		GameID     string `json:"gameId"     binding:"required"`
		CategoryID string `json:"categoryId" binding:"required"`
		Outcome    int    `json:"outcome"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	gameID, err1 := uuid.Parse(body.GameID)
	categoryID, err2 := uuid.Parse(body.CategoryID)
	if err1 != nil || err2 != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid gameId or categoryId")
		return
	}

	market, summary, err := h.oracleSvc.DetermineOutcome(c.Request.Context(), gameID, categoryID, body.Outcome)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market":      market,
		"winners":     summary.Winners,
		"losers":      summary.Losers,
		"totalPayout": summary.TotalPayout,
	})
}
