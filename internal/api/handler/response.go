package handler

import (
	"net/http"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Response helpers — §7's literal error contract: {"error": "..."} only.
// Success bodies are per-endpoint literal shapes (§6), built inline at the
// call site rather than through a generic envelope.
// ──────────────────────────────────────────────────────────────────────────────

// respondError writes {"error": msg} with the given status.
func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// statusForError maps a domain error to the HTTP status §7 assigns it:
// validation -> 400, illegal state -> 400 (403 for the withdrawal lock),
// unauthorized -> 401, forbidden -> 403, not found -> 404,
// everything else -> 500.
func statusForError(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case err == domain.ErrWithdrawalsLocked:
		return http.StatusForbidden
	case domain.IsIllegalState(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case err == domain.ErrUnauthorized:
		return http.StatusUnauthorized
	case err == domain.ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes the §7 status/body pair for a domain error.
func respondDomainError(c *gin.Context, err error) {
	respondError(c, statusForError(err), err.Error())
}
