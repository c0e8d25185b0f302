package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/service"
	"github.com/evetabi/prediction/internal/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionCloser is the minimal settlement-service capability BetHandler
// needs to return a rejected bet's stake when a session was already
// created client-side before the market transitioned out of OPEN (§4.9).
type SessionCloser interface {
	CloseSession(ctx context.Context, p settlement.CloseSessionParams) error
	Address() string
}

// BetHandler serves POST /api/bet, the LMSR single-market bet path (§4.2,
// §4.9, §6).
type BetHandler struct {
	marketSvc  *service.MarketService
	settlement SessionCloser
	cfg        *config.Config
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(marketSvc *service.MarketService, settlementClient SessionCloser, cfg *config.Config) *BetHandler {
	return &BetHandler{marketSvc: marketSvc, settlement: settlementClient, cfg: cfg}
}

type placeBetRequest struct {
	Address           string          `json:"address"           binding:"required"`
	MarketID          string          `json:"marketId"          binding:"required"`
	Outcome           int             `json:"outcome"`
	Amount            decimal.Decimal `json:"amount"             binding:"required"`
	AppSessionID      string          `json:"appSessionId"`
	AppSessionVersion int64           `json:"appSessionVersion"`
}

// PlaceBet godoc
// POST /api/bet
func (h *BetHandler) PlaceBet(c *gin.Context) {
	var body placeBetRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	marketID, err := uuid.Parse(body.MarketID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid marketId")
		return
	}
	if body.Amount.Sign() <= 0 {
		respondError(c, http.StatusBadRequest, domain.ErrInvalidAmount.Error())
		return
	}

	result, err := h.marketSvc.PlaceBet(c.Request.Context(), marketID, body.Address, body.Outcome, body.Amount, body.AppSessionID, body.AppSessionVersion)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if result.RejectedBy != nil {
		h.returnStakeOnRejection(c, body)
		reason := result.RejectedBy.Error()
		if result.MarketStatus != "" {
			reason = fmt.Sprintf("Market is %s", result.MarketStatus)
		}
		c.JSON(http.StatusOK, gin.H{
			"accepted": false,
			"reason":   reason,
		})
		return
	}

	resp := gin.H{"accepted": true, "shares": result.Shares.String()}
	if len(result.NewPrices) > 0 {
		resp["newPriceBall"] = result.NewPrices[0].String()
	}
	if len(result.NewPrices) > 1 {
		resp["newPriceStrike"] = result.NewPrices[1].String()
	}
	c.JSON(http.StatusOK, resp)
}

// returnStakeOnRejection closes the client-created session and returns the
// full stake when a bet is rejected after the caller already opened a
// settlement-service session for it (§4.9). Validation failures never
// reach here because they're rejected by PlaceBet's error return, not
// RejectedBy, and therefore never created a session in the first place.
func (h *BetHandler) returnStakeOnRejection(c *gin.Context, body placeBetRequest) {
	if body.AppSessionID == "" || h.settlement == nil {
		return
	}
	allocations := []settlement.Allocation{
		{Participant: body.Address, Asset: h.cfg.Settlement.Asset, Amount: domain.ToMicroUnits(body.Amount)},
	}
	_ = h.settlement.CloseSession(c.Request.Context(), settlement.CloseSessionParams{
		AppSessionID: body.AppSessionID,
		Allocations:  allocations,
	})
}
