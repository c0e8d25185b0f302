package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MMInfoSource is the minimal settlement-service capability MMHandler needs
// to report the market maker's custodial identity and connection health.
type MMInfoSource interface {
	Address() string
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	IsConnected() bool
}

// MMHandler serves GET /api/mm/info (§6).
type MMHandler struct {
	settlement MMInfoSource
}

// NewMMHandler creates an MMHandler.
func NewMMHandler(settlementClient MMInfoSource) *MMHandler {
	return &MMHandler{settlement: settlementClient}
}

// GetInfo godoc
// GET /api/mm/info
func (h *MMHandler) GetInfo(c *gin.Context) {
	balance, err := h.settlement.GetBalance(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":     h.settlement.Address(),
		"balance":     balance.String(),
		"isConnected": h.settlement.IsConnected(),
	})
}
