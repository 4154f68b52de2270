package handlers

import (
	"net/http"
	"strconv"

	"github.com/arnavshah/shift-assign-api/pkg/database"
	"github.com/gin-gonic/gin"
)

// usageDays is how much history the usage endpoints return
const usageDays = 30

func usageResponse(tenantID int64, usage []database.TenantUsage) gin.H {
	var requests, previews, applied, rejected int64
	for _, u := range usage {
		requests += int64(u.RequestCount)
		previews += int64(u.PreviewCount)
		applied += int64(u.AppliedCount)
		rejected += int64(u.RejectedCount)
	}
	return gin.H{
		"tenant_id":     tenantID,
		"usage_history": usage,
		"totals": gin.H{
			"requests": requests,
			"previews": previews,
			"applied":  applied,
			"rejected": rejected,
		},
	}
}

// GetMyUsage returns usage stats for the calling tenant
func (h *Handler) GetMyUsage(c *gin.Context) {
	tenantID := tenantOf(c)
	usage, err := h.Store.UsageHistory(c.Request.Context(), tenantID, usageDays)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := usageResponse(tenantID, usage)
	if raw, ok := c.Get(ctxAPIKey); ok {
		apiKey := raw.(*database.APIKey)
		resp["key_name"] = apiKey.Name
		resp["rate_limit"] = apiKey.RateLimit
	}
	c.JSON(http.StatusOK, resp)
}

// GetUsage returns usage stats for any tenant
func (h *Handler) GetUsage(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Param("tenant"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}
	usage, err := h.Store.UsageHistory(c.Request.Context(), tenantID, usageDays)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, usageResponse(tenantID, usage))
}
