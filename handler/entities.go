package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dtgate/core/service"
)

// EntityHandler handles the per-kind aggregation endpoints.
type EntityHandler struct {
	services  *service.ServiceAggregator
	hosts     *service.HostAggregator
	processes *service.ProcessAggregator
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler(services *service.ServiceAggregator, hosts *service.HostAggregator, processes *service.ProcessAggregator) *EntityHandler {
	return &EntityHandler{
		services:  services,
		hosts:     hosts,
		processes: processes,
	}
}

// GetServices handles GET /api/services
func (h *EntityHandler) GetServices(c *gin.Context) {
	records, err := h.services.List(c.Request.Context())
	if err != nil {
		respondAggregatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"services": records,
		"count":    len(records),
	})
}

// GetHosts handles GET /api/hosts
func (h *EntityHandler) GetHosts(c *gin.Context) {
	records, err := h.hosts.List(c.Request.Context())
	if err != nil {
		respondAggregatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"hosts": records,
		"count": len(records),
	})
}

// GetProcesses handles GET /api/processes
func (h *EntityHandler) GetProcesses(c *gin.Context) {
	records, err := h.processes.List(c.Request.Context())
	if err != nil {
		respondAggregatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processes": records,
		"count":     len(records),
	})
}

// respondAggregatorError maps aggregator failures to the error envelope
// the dashboard checks. A missing zone selection is not a server fault
// and keeps a 200 status.
func respondAggregatorError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrMissingZone) {
		c.JSON(http.StatusOK, gin.H{
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error": err.Error(),
	})
}
