package handler

import (
	"net/http"

	"github.com/evetabi/prediction/internal/service"
	"github.com/gin-gonic/gin"
)

// PositionHandler serves the Position Tracker's read endpoint (§4.3, §6).
type PositionHandler struct {
	positionSvc *service.PositionService
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positionSvc *service.PositionService) *PositionHandler {
	return &PositionHandler{positionSvc: positionSvc}
}

// GetPositionsByAddress godoc
// GET /api/positions/:address
func (h *PositionHandler) GetPositionsByAddress(c *gin.Context) {
	address := c.Param("address")
	page, limit := parsePagination(c)
	positions, err := h.positionSvc.GetPositionsByAddress(c.Request.Context(), address, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}
