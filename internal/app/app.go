// Package app wires the configured dependencies into a gin engine. The
// server binary and the serverless entrypoint share it.
package app

import (
	"context"
	"fmt"

	"github.com/arnavshah/shift-assign-api/internal/config"
	"github.com/arnavshah/shift-assign-api/pkg/advisor"
	"github.com/arnavshah/shift-assign-api/pkg/auth"
	"github.com/arnavshah/shift-assign-api/pkg/database"
	"github.com/arnavshah/shift-assign-api/pkg/handlers"
	"github.com/arnavshah/shift-assign-api/pkg/locks"
	"github.com/arnavshah/shift-assign-api/pkg/scheduler"
	"github.com/arnavshah/shift-assign-api/pkg/scoring"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Build opens the database, makes sure an admin exists and returns the
// router along with a function releasing its connections.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gin.Engine, func(), error) {
	db, err := database.InitDB(database.Options{
		DatabaseURL: cfg.DatabaseURL,
		DataPath:    cfg.DataPath,
		Debug:       cfg.LogLevel == "debug",
	})
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store := database.NewStore(db, cfg.Engine.Breaker, cfg.Engine.ContractRule, logger)
	if err := auth.EnsureAdminExists(ctx, store, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminTenantID, logger); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to ensure admin user: %w", err)
	}

	var locker locks.Locker = locks.NewMemoryLocker()
	if cfg.RedisURL != "" {
		client, err := locks.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		locker = locks.NewRedisLocker(client, cfg.Engine.LockNamespace, cfg.Engine.LockTTL, logger)
		logger.Info("using redis locks", zap.String("namespace", cfg.Engine.LockNamespace))
	}

	configs := scoring.NewConfigService(store, logger)
	h := &handlers.Handler{
		Store:      store,
		Auth:       auth.New(cfg.JWTSecret, cfg.APIMasterSecret),
		Engine:     scheduler.NewEngine(store, configs, logger),
		Reconciler: scheduler.NewReconciler(store, store, configs, locker, logger),
		Configs:    configs,
		Advisor:    advisor.New(store, configs, cfg.Engine.Advisor, logger),
		Logger:     logger,
	}
	return handlers.NewRouter(h), cleanup, nil
}
