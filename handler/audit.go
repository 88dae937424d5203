package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dtgate/core/repository"
)

// AuditHandler exposes recent operational logs.
type AuditHandler struct {
	actionLog *repository.ActionLogRepository
	eventLog  *repository.EventLogRepository
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(actionLog *repository.ActionLogRepository, eventLog *repository.EventLogRepository) *AuditHandler {
	return &AuditHandler{actionLog: actionLog, eventLog: eventLog}
}

// GetRecentActions handles GET /api/audit/actions
// Query parameters:
//   - limit: integer (default 50)
func (h *AuditHandler) GetRecentActions(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	actions, err := h.actionLog.GetRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to load action logs",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actions": actions,
		"count":   len(actions),
	})
}

// GetRecentEvents handles GET /api/audit/events
// Query parameters:
//   - limit: integer (default 50)
func (h *AuditHandler) GetRecentEvents(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.eventLog.GetRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to load event logs",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
