package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/advisor"
	"github.com/arnavshah/shift-assign-api/pkg/auth"
	"github.com/arnavshah/shift-assign-api/pkg/database"
	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/arnavshah/shift-assign-api/pkg/scheduler"
	"github.com/arnavshah/shift-assign-api/pkg/scoring"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by the middlewares
const (
	ctxTenant = "tenantID"
	ctxActor  = "actor"
	ctxAPIKey = "apiKey"
	ctxClaims = "claims"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	Store      *database.Store
	Auth       *auth.Authenticator
	Engine     *scheduler.Engine
	Reconciler *scheduler.Reconciler
	Configs    *scoring.ConfigService
	Advisor    *advisor.Advisor
	Logger     *zap.Logger
}

func bearer(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	// Strip "Bearer " if present
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// TenantMiddleware resolves the calling tenant from either an admin JWT or
// an HMAC tenant API key. API keys are tracked and rate limited per day.
func (h *Handler) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API Key required"})
			return
		}

		// JWTs have three dot separated segments, tenant keys two
		if strings.Count(token, ".") == 2 {
			claims, err := h.Auth.VerifyToken(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}
			actor := int64(claims.UserID)
			c.Set(ctxTenant, claims.TenantID)
			c.Set(ctxActor, &actor)
			c.Next()
			return
		}

		tenantID, err := h.Auth.VerifyTenantKey(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key signature"})
			return
		}

		apiKey, err := h.Store.TrackAPIKey(c.Request.Context(), tenantID, token, strconv.FormatInt(tenantID, 10))
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		if apiKey.Revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API Key revoked"})
			return
		}
		used, err := h.Store.RequestsToday(c.Request.Context(), tenantID)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		if apiKey.RateLimit > 0 && used >= apiKey.RateLimit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Daily rate limit exceeded"})
			return
		}

		c.Set(ctxTenant, tenantID)
		c.Set(ctxActor, (*int64)(nil))
		c.Set(ctxAPIKey, apiKey)
		c.Next()
	}
}

// AdminOnly rejects tenant API keys; the route needs a signed-in administrator
func (h *Handler) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorOf(c) == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator login required"})
			return
		}
		c.Next()
	}
}

// RequestLogger writes one zap line per request
func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if tenantID, ok := c.Get(ctxTenant); ok {
			fields = append(fields, zap.Int64("tenant_id", tenantID.(int64)))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			h.Logger.Warn("request failed", fields...)
			return
		}
		h.Logger.Info("request", fields...)
	}
}

func tenantOf(c *gin.Context) int64 {
	return c.MustGet(ctxTenant).(int64)
}

func actorOf(c *gin.Context) *int64 {
	actor, _ := c.Get(ctxActor)
	id, _ := actor.(*int64)
	return id
}

// fail maps engine errors onto status codes. Rejected pairs and exclusions
// are results, never errors, so they do not pass through here.
func (h *Handler) fail(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, models.ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Data source unavailable, retry later"})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		h.Logger.Error("request error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Store.FindUser(c.Request.Context(), req.Username)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Auth.CreateToken(*user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer", "tenant_id": user.TenantID})
}

// GenerateKey issues the HMAC API key of a tenant
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		TenantID  int64  `json:"tenant_id" binding:"required,gte=1"`
		Name      string `json:"name" binding:"required"`
		RateLimit int    `json:"rate_limit" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RateLimit == 0 {
		req.RateLimit = 10000
	}

	key := h.Auth.GenerateTenantKey(req.TenantID)
	apiKey := database.APIKey{
		TenantID:  req.TenantID,
		Key:       key,
		Name:      req.Name,
		RateLimit: req.RateLimit,
	}
	if err := h.Store.SaveAPIKey(c.Request.Context(), &apiKey); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":      req.Name,
		"tenant_id": req.TenantID,
		"key":       key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	keys, err := h.Store.ListAPIKeys(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func keyID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
		return 0, false
	}
	return uint(id), true
}

// RevokeKey disables an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	if err := h.Store.RevokeAPIKey(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the daily rate limit for a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	id, ok := keyID(c)
	if !ok {
		return
	}
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit is required"})
			return
		}
	}
	if req.RateLimit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate limit"})
		return
	}

	if err := h.Store.UpdateKeyLimit(c.Request.Context(), id, req.RateLimit); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rate limit updated successfully"})
}
