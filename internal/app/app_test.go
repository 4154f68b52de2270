package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/arnavshah/shift-assign-api/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuild(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Port:            "8000",
		DataPath:        filepath.Join(t.TempDir(), "test.db"),
		JWTSecret:       "jwt",
		APIMasterSecret: "master",
		AdminUsername:   "admin",
		AdminPassword:   "admin123",
		AdminTenantID:   1,
		LogLevel:        "info",
		Engine:          config.DefaultEngine(),
	}
	require.NoError(t, config.Validate(cfg))

	router, cleanup, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/assign/preview", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBuild_BadRedis(t *testing.T) {
	cfg := &config.Config{
		DataPath:      filepath.Join(t.TempDir(), "test.db"),
		AdminUsername: "admin",
		AdminPassword: "admin123",
		AdminTenantID: 1,
		RedisURL:      "not-a-url",
		Engine:        config.DefaultEngine(),
	}
	_, _, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
