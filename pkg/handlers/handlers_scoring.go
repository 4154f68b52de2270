package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/scoring"
	"github.com/gin-gonic/gin"
)

// GetScoringConfig returns the tenant's active weights, creating the defaults on first use
func (h *Handler) GetScoringConfig(c *gin.Context) {
	cfg, err := h.Configs.Active(c.Request.Context(), tenantOf(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateScoringConfig stores a new config version
func (h *Handler) UpdateScoringConfig(c *gin.Context) {
	var update scoring.ConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.Configs.Update(c.Request.Context(), tenantOf(c), update, actorOf(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ScoringConfigHistory lists stored versions, newest first
func (h *Handler) ScoringConfigHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	history, err := h.Store.ScoringConfigHistory(c.Request.Context(), tenantOf(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": history})
}

// OptimizeScoringConfig suggests weight changes from recent overrides. Nothing is saved.
func (h *Handler) OptimizeScoringConfig(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer", "field": "days"})
		return
	}

	analysis, err := h.Advisor.Analyze(c.Request.Context(), tenantOf(c), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}
