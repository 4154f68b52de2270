package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the index route
const Version = "1.0.0"

// Index reports the service name and the state of the database breaker
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":  "Shift Assignment API",
		"version":  Version,
		"database": h.Store.BreakerState(),
	})
}

// NewRouter wires every route onto a fresh gin engine
func NewRouter(h *Handler) *gin.Engine {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(h.RequestLogger(), gin.Recovery())

	r.GET("/", h.Index)
	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:tenant", h.GetUsage)
	}

	// Tenant Endpoints
	tenant := r.Group("/")
	tenant.Use(h.TenantMiddleware())
	{
		tenant.POST("/assign/preview", h.Preview)
		tenant.POST("/assign/preview/csv", h.PreviewCSV)
		tenant.POST("/assign/apply", h.Apply)
		tenant.POST("/assign/validate", h.ValidateAssignments)

		tenant.GET("/scoring-config", h.GetScoringConfig)
		tenant.PUT("/scoring-config", h.AdminOnly(), h.UpdateScoringConfig)
		tenant.GET("/scoring-config/history", h.ScoringConfigHistory)
		tenant.GET("/scoring-config/optimize", h.OptimizeScoringConfig)

		tenant.GET("/usage", h.GetMyUsage)
	}

	return r
}
