package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"go.uber.org/zap"
)

// ErrConfigNotFound is returned by a ConfigStore when a tenant has no config yet
var ErrConfigNotFound = errors.New("scoring config not found")

// ConfigStore persists append-only scoring config versions
type ConfigStore interface {
	LatestScoringConfig(ctx context.Context, tenantID int64) (*models.ScoringConfig, error)
	InsertScoringConfig(ctx context.Context, cfg *models.ScoringConfig) error
}

// ConfigService is the single writer for scoring configs. Every update
// produces a new version; earlier versions stay untouched so previews can
// always name the exact weights they used.
type ConfigService struct {
	store  ConfigStore
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewConfigService creates a config service over store
func NewConfigService(store ConfigStore, logger *zap.Logger) *ConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// stamp is the creation time of a new version, at the microsecond precision
// Postgres stores, so the version returned on insert matches later reads
func (s *ConfigService) stamp() time.Time {
	return s.now().Truncate(time.Microsecond)
}

// Active returns the tenant's latest config, persisting the defaults as
// version 1 the first time a tenant asks.
func (s *ConfigService) Active(ctx context.Context, tenantID int64) (models.ScoringConfig, error) {
	cfg, err := s.store.LatestScoringConfig(ctx, tenantID)
	if err == nil {
		return *cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return models.ScoringConfig{}, fmt.Errorf("failed to load scoring config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(ctx, tenantID)
}

func (s *ConfigService) activeLocked(ctx context.Context, tenantID int64) (models.ScoringConfig, error) {
	cfg, err := s.store.LatestScoringConfig(ctx, tenantID)
	if err == nil {
		return *cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return models.ScoringConfig{}, fmt.Errorf("failed to load scoring config: %w", err)
	}

	def := DefaultConfig(tenantID)
	def.Version = 1
	def.CreatedAt = s.stamp()
	if err := s.store.InsertScoringConfig(ctx, &def); err != nil {
		return models.ScoringConfig{}, fmt.Errorf("failed to persist default scoring config: %w", err)
	}
	s.logger.Info("created default scoring config", zap.Int64("tenant_id", tenantID))
	return def, nil
}

// Update validates the merged config and stores it as the next version.
// An empty update returns the active config unchanged.
func (s *ConfigService) Update(ctx context.Context, tenantID int64, update ConfigUpdate, actor *int64) (models.ScoringConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.activeLocked(ctx, tenantID)
	if err != nil {
		return models.ScoringConfig{}, err
	}
	if update.IsEmpty() {
		return cur, nil
	}

	next := update.Merge(cur)
	if err := Validate(next); err != nil {
		return models.ScoringConfig{}, err
	}
	next.TenantID = tenantID
	next.Version = cur.Version + 1
	next.CreatedBy = actor
	next.CreatedAt = s.stamp()

	if err := s.store.InsertScoringConfig(ctx, &next); err != nil {
		return models.ScoringConfig{}, fmt.Errorf("failed to store scoring config: %w", err)
	}
	s.logger.Info("scoring config updated",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("version", next.Version),
	)
	return next, nil
}
