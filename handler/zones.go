// Package handler provides HTTP handlers for the gateway API.
package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dtgate/core/models"
	"dtgate/core/repository"
	"dtgate/core/service"
)

// ZoneHandler handles management zone selection and catalog requests.
type ZoneHandler struct {
	zones     *service.ZoneService
	selection *service.SelectionStore
	actionLog *repository.ActionLogRepository
}

// NewZoneHandler creates a new zone handler.
func NewZoneHandler(zones *service.ZoneService, selection *service.SelectionStore, actionLog *repository.ActionLogRepository) *ZoneHandler {
	return &ZoneHandler{
		zones:     zones,
		selection: selection,
		actionLog: actionLog,
	}
}

// GetVitalForGroupMZs handles GET /api/vital-for-group-mzs
func (h *ZoneHandler) GetVitalForGroupMZs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mzs": h.zones.VitalForGroup(),
	})
}

// GetCurrentManagementZone handles GET /api/current-management-zone
func (h *ZoneHandler) GetCurrentManagementZone(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"management_zone": h.selection.Current(),
	})
}

// ListManagementZones handles GET /api/management-zones
func (h *ZoneHandler) ListManagementZones(c *gin.Context) {
	zones, err := h.zones.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "Failed to list management zones",
			"detail": err.Error(),
		})
		return
	}

	names := make([]string, 0, len(zones))
	for _, zone := range zones {
		names = append(names, zone.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"management_zones": names,
		"count":            len(names),
	})
}

// SetManagementZone handles POST /api/set-management-zone
// Body: {"name": "<zone>"}
func (h *ZoneHandler) SetManagementZone(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Management zone name is required",
		})
		return
	}

	err := h.selection.Set(body.Name)
	h.logAction("select_zone", "zone", body.Name, err)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to set management zone",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"management_zone": body.Name,
	})
}

func (h *ZoneHandler) logAction(actionType, resourceType, resourceID string, actionErr error) {
	entry := &models.ActionLog{
		ActionType:   actionType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Success:      actionErr == nil,
		ExecutedAt:   time.Now(),
	}
	if actionErr != nil {
		entry.ErrorMessage = actionErr.Error()
	}
	if err := h.actionLog.Create(entry); err != nil {
		log.Printf("Failed to store action log: %v", err)
	}
}
