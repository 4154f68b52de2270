package main

import (
	"context"
	"log"

	"github.com/arnavshah/shift-assign-api/internal/app"
	"github.com/arnavshah/shift-assign-api/internal/config"
	"github.com/arnavshah/shift-assign-api/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("could not init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	r, cleanup, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("could not start", zap.Error(err))
	}
	defer cleanup()

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("could not run server", zap.Error(err))
	}
}
