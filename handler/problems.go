package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dtgate/core/service"
)

// ProblemHandler handles the filtered problem listing.
type ProblemHandler struct {
	problems  *service.ProblemService
	selection *service.SelectionStore
}

// NewProblemHandler creates a new problem handler.
func NewProblemHandler(problems *service.ProblemService, selection *service.SelectionStore) *ProblemHandler {
	return &ProblemHandler{
		problems:  problems,
		selection: selection,
	}
}

// ListProblems handles GET /api/problems
// Query parameters:
//   - time_from: relative window, -Nh or -Nd (default "-72h")
//   - status: OPEN, RESOLVED, CLOSED or ALL (default "ALL")
func (h *ProblemHandler) ListProblems(c *gin.Context) {
	timeFrom := c.DefaultQuery("time_from", "-72h")
	status := c.DefaultQuery("status", "ALL")

	records, err := h.problems.List(c.Request.Context(), h.selection.Current(), timeFrom, status)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": records,
		"count":    len(records),
	})
}
