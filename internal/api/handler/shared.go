package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// parsePagination reads page/limit query params, clamping limit to [1,100]
// and page to >=1, defaulting to 1/20.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
