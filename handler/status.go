package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dtgate/core/cache"
	"dtgate/core/models"
	"dtgate/core/repository"
	"dtgate/core/service"
)

// cacheTypes maps refreshable cache names to their key prefixes. An empty
// prefix clears everything.
var cacheTypes = map[string]string{
	"services":         "services:",
	"hosts":            "hosts:",
	"processes":        "processes:",
	"summary":          "summary:",
	"problems":         "problems:",
	"management_zones": "management_zones",
	"all":              "",
}

// StatusHandler exposes gateway introspection and cache refresh controls.
type StatusHandler struct {
	cache     *cache.Cache
	upstream  service.Upstream
	checkLog  *repository.UpstreamCheckLogRepository
	actionLog *repository.ActionLogRepository
	version   string
	startedAt time.Time
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(
	c *cache.Cache,
	upstream service.Upstream,
	checkLog *repository.UpstreamCheckLogRepository,
	actionLog *repository.ActionLogRepository,
	version string,
) *StatusHandler {
	return &StatusHandler{
		cache:     c,
		upstream:  upstream,
		checkLog:  checkLog,
		actionLog: actionLog,
		version:   version,
		startedAt: time.Now(),
	}
}

// GetStatus handles GET /api/status
// Reports cache freshness per aggregator namespace, upstream request
// volume, the latest connectivity probe, server time and version.
func (h *StatusHandler) GetStatus(c *gin.Context) {
	freshness := gin.H{}
	for name, prefix := range cacheTypes {
		if name == "all" {
			continue
		}
		freshness[name] = newestAgeSeconds(h.cache, prefix)
	}

	status := gin.H{
		"version":        h.version,
		"server_time":    time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"cache": gin.H{
			"ttl_seconds": int64(h.cache.TTL().Seconds()),
			"entries":     h.cache.Len(),
			"freshness":   freshness,
		},
		"upstream": gin.H{
			"requests": h.upstream.RequestCount(),
		},
	}

	if latest, err := h.checkLog.Latest(); err == nil && latest != nil {
		status["upstream"].(gin.H)["last_check"] = gin.H{
			"status":     latest.Status,
			"latency_ms": latest.LatencyMs,
			"checked_at": latest.CheckedAt,
		}
	}

	c.JSON(http.StatusOK, status)
}

// RefreshCache handles POST /api/refresh/:cache_type
// Unknown cache names get a 404; known ones are invalidated so the next
// request rebuilds them.
func (h *StatusHandler) RefreshCache(c *gin.Context) {
	cacheType := c.Param("cache_type")
	prefix, ok := cacheTypes[cacheType]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Unknown cache type: " + cacheType,
		})
		return
	}

	removed := h.cache.Invalidate(prefix)
	h.logRefresh(cacheType)
	log.Printf("Cache refresh requested for %q (%d entries invalidated)", cacheType, removed)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache invalidated; next request will refresh",
		"removed": removed,
	})
}

func (h *StatusHandler) logRefresh(cacheType string) {
	entry := &models.ActionLog{
		ActionType:   "refresh_cache",
		ResourceType: "cache",
		ResourceID:   cacheType,
		Success:      true,
		ExecutedAt:   time.Now(),
	}
	if err := h.actionLog.Create(entry); err != nil {
		log.Printf("Failed to store action log: %v", err)
	}
}

// newestAgeSeconds returns the age in seconds of the freshest entry under
// prefix, or nil when the namespace is empty.
func newestAgeSeconds(c *cache.Cache, prefix string) any {
	ages := c.AgesByPrefix(prefix)
	if len(ages) == 0 {
		return nil
	}
	var newest time.Duration = -1
	for _, age := range ages {
		if newest < 0 || age < newest {
			newest = age
		}
	}
	return int64(newest.Seconds())
}
