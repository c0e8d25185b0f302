package handler

import (
	"net/http"
	"time"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/gin-gonic/gin"
)

// FinanceHandler serves /admin/finance endpoints: fee-revenue reporting and
// the LP deposit/withdrawal ledger (§4.5, §9).
type FinanceHandler struct {
	positionRepo *repository.PositionRepository
	lpRepo       *repository.LPRepository
	cfg          *config.Config
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(
	positionRepo *repository.PositionRepository,
	lpRepo *repository.LPRepository,
	cfg *config.Config,
) *FinanceHandler {
	return &FinanceHandler{positionRepo: positionRepo, lpRepo: lpRepo, cfg: cfg}
}

// Report godoc
// GET /admin/finance/report?from=2024-01-01&to=2024-01-31
func (h *FinanceHandler) Report(c *gin.Context) {
	ctx := c.Request.Context()

	fromStr := c.Query("from")
	toStr := c.Query("to")

	var from, to time.Time
	var err error
	if fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "from must be YYYY-MM-DD")
			return
		}
	} else {
		from = time.Now().UTC().AddDate(0, -1, 0).Truncate(24 * time.Hour) // default: one calendar month back
	}
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "to must be YYYY-MM-DD")
			return
		}
		to = to.Add(24 * time.Hour) // inclusive
	} else {
		to = time.Now().UTC()
	}

	report, err := h.positionRepo.GetFinanceReport(ctx, from, to)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"report":            report,
		"transactionFeePct": h.cfg.Market.FeePercent(),
	})
}

// LPLedger godoc
// GET /admin/finance/lp-ledger?type=DEPOSIT&page=1&limit=50
func (h *FinanceHandler) LPLedger(c *gin.Context) {
	eventType := c.Query("type")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	events, err := h.lpRepo.ListAllEvents(c.Request.Context(), eventType, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, events, len(events), page, limit)
}
