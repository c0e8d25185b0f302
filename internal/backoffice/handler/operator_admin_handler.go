package handler

import (
	"net/http"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OperatorAdminHandler serves /admin/operators, managing backoffice staff
// accounts — the only account concept in this hub (§1, §9).
type OperatorAdminHandler struct {
	operatorRepo *repository.OperatorRepository
	authSvc      *service.AuthService
}

// NewOperatorAdminHandler creates an OperatorAdminHandler.
func NewOperatorAdminHandler(operatorRepo *repository.OperatorRepository, authSvc *service.AuthService) *OperatorAdminHandler {
	return &OperatorAdminHandler{operatorRepo: operatorRepo, authSvc: authSvc}
}

// List godoc
// GET /admin/operators
func (h *OperatorAdminHandler) List(c *gin.Context) {
	ops, err := h.operatorRepo.List(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, ops)
}

// Detail godoc
// GET /admin/operators/:id
func (h *OperatorAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid operator id")
		return
	}
	op, err := h.operatorRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == domain.ErrOperatorNotFound {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, op)
}

// Create godoc
// POST /admin/operators
// Body: {"email": "...", "password": "...", "role": "ops"}
func (h *OperatorAdminHandler) Create(c *gin.Context) {
	var req service.RegisterOperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	op, err := h.authSvc.RegisterOperator(c.Request.Context(), req)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, op)
}

// Suspend godoc
// POST /admin/operators/:id/suspend
func (h *OperatorAdminHandler) Suspend(c *gin.Context) {
	h.setActive(c, false)
}

// Activate godoc
// POST /admin/operators/:id/activate
func (h *OperatorAdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *OperatorAdminHandler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid operator id")
		return
	}
	if err = h.operatorRepo.SetActive(c.Request.Context(), id, active); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"operatorId": id, "isActive": active})
}

// SetRole godoc
// POST /admin/operators/:id/role
// Body: {"role": "finance"}
func (h *OperatorAdminHandler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid operator id")
		return
	}
	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	role := domain.OperatorRole(body.Role)
	if !role.CanAccessBackoffice() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ROLE", "unknown role")
		return
	}
	if err = h.operatorRepo.SetRole(c.Request.Context(), id, role); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"operatorId": id, "role": role})
}
