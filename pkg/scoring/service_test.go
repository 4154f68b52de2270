package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryConfigStore struct {
	mu       sync.Mutex
	versions map[int64][]models.ScoringConfig
	failLoad error
}

func newMemoryConfigStore() *memoryConfigStore {
	return &memoryConfigStore{versions: make(map[int64][]models.ScoringConfig)}
}

func (m *memoryConfigStore) LatestScoringConfig(_ context.Context, tenantID int64) (*models.ScoringConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad != nil {
		return nil, m.failLoad
	}
	list := m.versions[tenantID]
	if len(list) == 0 {
		return nil, ErrConfigNotFound
	}
	cfg := list[len(list)-1]
	return &cfg, nil
}

func (m *memoryConfigStore) InsertScoringConfig(_ context.Context, cfg *models.ScoringConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.versions[cfg.TenantID] {
		if existing.Version == cfg.Version {
			return errors.New("duplicate version")
		}
	}
	m.versions[cfg.TenantID] = append(m.versions[cfg.TenantID], *cfg)
	return nil
}

func TestConfigService_ActiveCreatesDefaults(t *testing.T) {
	store := newMemoryConfigStore()
	svc := NewConfigService(store, zap.NewNop())

	cfg, err := svc.Active(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.Version)
	assert.Equal(t, DefaultAvailabilityWeight, cfg.Availability)
	assert.Len(t, store.versions[7], 1)

	again, err := svc.Active(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
	assert.Len(t, store.versions[7], 1)
}

func TestConfigService_UpdateAppendsVersion(t *testing.T) {
	store := newMemoryConfigStore()
	svc := NewConfigService(store, nil)
	actor := int64(42)

	updated, err := svc.Update(context.Background(), 1, ConfigUpdate{RestMargin: floatPtr(30)}, &actor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 30.0, updated.RestMargin)
	assert.Equal(t, &actor, updated.CreatedBy)

	require.Len(t, store.versions[1], 2)
	assert.Equal(t, DefaultRestMarginWeight, store.versions[1][0].RestMargin, "earlier versions are immutable")
}

func TestConfigService_UpdateRejectsInvalid(t *testing.T) {
	store := newMemoryConfigStore()
	svc := NewConfigService(store, nil)

	_, err := svc.Update(context.Background(), 1, ConfigUpdate{Availability: floatPtr(-5)}, nil)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	cfg, err := svc.Active(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.Version)
}

func TestConfigService_EmptyUpdateKeepsVersion(t *testing.T) {
	svc := NewConfigService(newMemoryConfigStore(), nil)

	cfg, err := svc.Update(context.Background(), 1, ConfigUpdate{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.Version)
}

func TestConfigService_ConcurrentUpdatesGetDistinctVersions(t *testing.T) {
	store := newMemoryConfigStore()
	svc := NewConfigService(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Update(context.Background(), 1, ConfigUpdate{Preference: floatPtr(float64(i))}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, store.versions[1], 21)
	for i, cfg := range store.versions[1] {
		assert.Equal(t, int64(i+1), cfg.Version)
	}
}

func TestConfigService_LoadFailure(t *testing.T) {
	store := newMemoryConfigStore()
	store.failLoad = models.ErrUpstreamUnavailable
	svc := NewConfigService(store, nil)

	_, err := svc.Active(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

// microsecondStore drops sub-microsecond precision the way Postgres does
type microsecondStore struct {
	*memoryConfigStore
}

func (m microsecondStore) InsertScoringConfig(ctx context.Context, cfg *models.ScoringConfig) error {
	stored := *cfg
	stored.CreatedAt = stored.CreatedAt.Truncate(time.Microsecond)
	return m.memoryConfigStore.InsertScoringConfig(ctx, &stored)
}

func TestConfigService_FirstActiveMatchesStoredRow(t *testing.T) {
	svc := NewConfigService(microsecondStore{newMemoryConfigStore()}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC) }

	first, err := svc.Active(context.Background(), 7)
	require.NoError(t, err)
	again, err := svc.Active(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, again, first)
	assert.Equal(t, 123456000, first.CreatedAt.Nanosecond())

	next, err := svc.Update(context.Background(), 7, ConfigUpdate{}, nil)
	require.NoError(t, err)
	assert.Equal(t, first, next)
}
