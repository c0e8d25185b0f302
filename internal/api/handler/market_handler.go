package handler

import (
	"net/http"

	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MarketHandler serves the Market Manager's read endpoints (§4.2, §6).
type MarketHandler struct {
	marketSvc    *service.MarketService
	categoryRepo *repository.CategoryRepository
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService, categoryRepo *repository.CategoryRepository) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc, categoryRepo: categoryRepo}
}

// GetMarkets godoc
// GET /api/market — the current OPEN markets.
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	markets, _, err := h.marketSvc.ListMarkets(c.Request.Context(), 200, 0, "OPEN")
	if err != nil {
		respondDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(markets))
	for _, m := range markets {
		body, err := h.buildMarketResponse(c, m.ID)
		if err != nil {
			continue
		}
		out = append(out, body)
	}
	c.JSON(http.StatusOK, out)
}

// GetMarketByID godoc
// GET /api/market/:id
func (h *MarketHandler) GetMarketByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid market id")
		return
	}
	body, err := h.buildMarketResponse(c, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

// buildMarketResponse assembles the {market, prices, outcomes} shape (§6).
func (h *MarketHandler) buildMarketResponse(c *gin.Context, id uuid.UUID) (gin.H, error) {
	m, err := h.marketSvc.GetMarket(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	category, err := h.categoryRepo.GetByID(c.Request.Context(), m.CategoryID)
	if err != nil {
		return nil, err
	}
	summary, err := h.marketSvc.GetSummary(c.Request.Context(), id, []string(category.Outcomes))
	if err != nil {
		return nil, err
	}
	return gin.H{
		"market":   m,
		"prices":   summary.Prices,
		"outcomes": summary.Outcomes,
	}, nil
}
