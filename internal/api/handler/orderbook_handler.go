package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderBookHandler serves the P2P limit-order-book endpoints (§4.4, §6).
type OrderBookHandler struct {
	orderbookSvc *service.OrderBookService
	marketSvc    *service.MarketService
	categoryRepo *repository.CategoryRepository
}

// NewOrderBookHandler creates an OrderBookHandler.
func NewOrderBookHandler(orderbookSvc *service.OrderBookService, marketSvc *service.MarketService, categoryRepo *repository.CategoryRepository) *OrderBookHandler {
	return &OrderBookHandler{orderbookSvc: orderbookSvc, marketSvc: marketSvc, categoryRepo: categoryRepo}
}

type placeOrderRequest struct {
	MarketID          string          `json:"marketId"          binding:"required"`
	GameID            string          `json:"gameId"`
	UserAddress       string          `json:"userAddress"       binding:"required"`
	Outcome           int             `json:"outcome"`
	MCPS              decimal.Decimal `json:"mcps"              binding:"required"`
	Amount            decimal.Decimal `json:"amount"            binding:"required"`
	AppSessionID      string          `json:"appSessionId"`
	AppSessionVersion int64           `json:"appSessionVersion"`
}

// PlaceOrder godoc
// POST /api/orderbook/order
func (h *OrderBookHandler) PlaceOrder(c *gin.Context) {
	var body placeOrderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	marketID, err := uuid.Parse(body.MarketID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid marketId")
		return
	}

	result, err := h.orderbookSvc.PlaceOrder(c.Request.Context(), marketID, body.UserAddress, body.Outcome, body.MCPS, body.Amount, body.AppSessionID, body.AppSessionVersion)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId": result.Order.ID,
		"status":  result.Order.Status,
		"fills":   result.Fills,
		"order":   result.Order,
	})
}

// CancelOrder godoc
// DELETE /api/orderbook/order/:orderId
func (h *OrderBookHandler) CancelOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid orderId")
		return
	}
	order, err := h.orderbookSvc.CancelOrder(c.Request.Context(), orderID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// GetDepth godoc
// GET /api/orderbook/depth/:marketId
func (h *OrderBookHandler) GetDepth(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("marketId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid marketId")
		return
	}
	m, err := h.marketSvc.GetMarket(c.Request.Context(), marketID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	depthByOutcome, err := h.orderbookSvc.GetDepth(c.Request.Context(), marketID, m.OutcomeCount())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	names := make([]string, m.OutcomeCount())
	for i := range names {
		names[i] = outcomeFallbackName(i)
	}
	if category, err := h.categoryRepo.GetByID(c.Request.Context(), m.CategoryID); err == nil {
		for i, name := range category.Outcomes {
			if i < len(names) {
				names[i] = name
			}
		}
	}

	outcomes := make(map[string][]domain.DepthLevel, len(depthByOutcome))
	for idx, levels := range depthByOutcome {
		outcomes[names[idx]] = levels
	}

	c.JSON(http.StatusOK, gin.H{
		"marketId":  marketID,
		"outcomes":  outcomes,
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetOrdersByAddress godoc
// GET /api/orderbook/orders/:address?marketId=...
func (h *OrderBookHandler) GetOrdersByAddress(c *gin.Context) {
	address := c.Param("address")
	page, limit := parsePagination(c)
	orders, err := h.orderbookSvc.GetOrdersByUser(c.Request.Context(), address, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	marketID := c.Query("marketId")
	if marketID != "" {
		filtered := make([]*domain.Order, 0, len(orders))
		for _, o := range orders {
			if o.MarketID.String() == marketID {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// outcomeFallbackName covers the case where the category lookup fails; the
// vector itself always stays index-only (§9).
func outcomeFallbackName(idx int) string {
	return "outcome" + strconv.Itoa(idx)
}
