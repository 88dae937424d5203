package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dtgate/core/service"
)

// SummaryHandler handles the one-shot environmental summary.
type SummaryHandler struct {
	summary *service.SummaryService
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(summary *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summary: summary}
}

// GetSummary handles GET /api/summary
func (h *SummaryHandler) GetSummary(c *gin.Context) {
	summary, err := h.summary.Get(c.Request.Context())
	if err != nil {
		respondAggregatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
