package handler

import (
	"context"
	"net/http"

	"github.com/arnavshah/shift-assign-api/internal/app"
	"github.com/arnavshah/shift-assign-api/internal/config"
	"github.com/arnavshah/shift-assign-api/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	r       *gin.Engine
	initErr error
)

func init() {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel})
	if err != nil {
		initErr = err
		return
	}

	// Connections live as long as the function instance
	r, _, initErr = app.Build(context.Background(), cfg, logger)
	if initErr != nil {
		logger.Error("could not build router", zap.Error(initErr))
	}
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	if initErr != nil {
		http.Error(w, `{"error":"service misconfigured"}`, http.StatusServiceUnavailable)
		return
	}
	r.ServeHTTP(w, req)
}
