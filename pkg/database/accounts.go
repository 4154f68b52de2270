package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageDelta is what one request adds to a tenant's daily counters
type UsageDelta struct {
	Previews int
	Applied  int
	Rejected int
}

// RecordUsage bumps today's counters for the tenant with a single upsert
func (s *Store) RecordUsage(ctx context.Context, tenantID int64, delta UsageDelta) error {
	today := s.now().Format(time.DateOnly)
	return s.run(ctx, "record usage", func(db *gorm.DB) error {
		// OnConflict works on both Postgres and SQLite
		return db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"request_count":  gorm.Expr("tenant_usage.request_count + ?", 1),
				"preview_count":  gorm.Expr("tenant_usage.preview_count + ?", delta.Previews),
				"applied_count":  gorm.Expr("tenant_usage.applied_count + ?", delta.Applied),
				"rejected_count": gorm.Expr("tenant_usage.rejected_count + ?", delta.Rejected),
			}),
		}).Create(&TenantUsage{
			TenantID:      tenantID,
			Date:          today,
			RequestCount:  1,
			PreviewCount:  delta.Previews,
			AppliedCount:  delta.Applied,
			RejectedCount: delta.Rejected,
		}).Error
	})
}

// UsageHistory returns the most recent days of usage, newest first
func (s *Store) UsageHistory(ctx context.Context, tenantID int64, days int) ([]TenantUsage, error) {
	usage := []TenantUsage{}
	err := s.run(ctx, "usage history", func(db *gorm.DB) error {
		return db.Where("tenant_id = ?", tenantID).Order("date desc").Limit(days).Find(&usage).Error
	})
	return usage, err
}

// RequestsToday is the tenant's request count for the current day
func (s *Store) RequestsToday(ctx context.Context, tenantID int64) (int, error) {
	var rows []TenantUsage
	today := s.now().Format(time.DateOnly)
	err := s.run(ctx, "requests today", func(db *gorm.DB) error {
		return db.Where("tenant_id = ? AND date = ?", tenantID, today).Limit(1).Find(&rows).Error
	})
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].RequestCount, nil
}

// TrackAPIKey fetches the record for a verified key, creating it on first use,
// and stamps LastUsed.
func (s *Store) TrackAPIKey(ctx context.Context, tenantID int64, key, name string) (*APIKey, error) {
	var apiKey APIKey
	err := s.run(ctx, "track api key", func(db *gorm.DB) error {
		if err := db.Where(APIKey{Key: key}).FirstOrCreate(&apiKey, APIKey{
			TenantID:   tenantID,
			Key:        key,
			KeyPreview: KeyPreview(key),
			Name:       name,
			RateLimit:  10000,
		}).Error; err != nil {
			return err
		}
		now := s.now()
		apiKey.LastUsed = &now
		return db.Model(&apiKey).Update("last_used", now).Error
	})
	if err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// SaveAPIKey stores a newly issued key. Issuing a key that was revoked
// reinstates it with the new name and limit.
func (s *Store) SaveAPIKey(ctx context.Context, apiKey *APIKey) error {
	apiKey.KeyPreview = KeyPreview(apiKey.Key)
	return s.run(ctx, "save api key", func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "rate_limit", "revoked"}),
		}).Create(apiKey).Error
	})
}

// ListAPIKeys returns every key record
func (s *Store) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	keys := []APIKey{}
	err := s.run(ctx, "list api keys", func(db *gorm.DB) error {
		return db.Order("id").Find(&keys).Error
	})
	return keys, err
}

// RevokeAPIKey marks a key unusable. It returns ErrNotFound for unknown ids.
func (s *Store) RevokeAPIKey(ctx context.Context, id uint) error {
	return s.updateKey(ctx, "revoke api key", id, "revoked", true)
}

// UpdateKeyLimit changes a key's daily request limit
func (s *Store) UpdateKeyLimit(ctx context.Context, id uint, limit int) error {
	return s.updateKey(ctx, "update key limit", id, "rate_limit", limit)
}

func (s *Store) updateKey(ctx context.Context, op string, id uint, column string, value any) error {
	return s.run(ctx, op, func(db *gorm.DB) error {
		res := db.Model(&APIKey{}).Where("id = ?", id).Update(column, value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// KeyPreview masks all but the ends of a key
func KeyPreview(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// FindUser looks up an admin by username
func (s *Store) FindUser(ctx context.Context, username string) (*MasterUser, error) {
	var users []MasterUser
	err := s.run(ctx, "find user", func(db *gorm.DB) error {
		if err := db.Where("username = ?", username).Limit(1).Find(&users).Error; err != nil {
			return err
		}
		if len(users) == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &users[0], nil
}

// CountUsers returns the number of admin accounts
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.run(ctx, "count users", func(db *gorm.DB) error {
		return db.Model(&MasterUser{}).Count(&count).Error
	})
	return count, err
}

// CreateUser inserts an admin account
func (s *Store) CreateUser(ctx context.Context, user *MasterUser) error {
	return s.run(ctx, "create user", func(db *gorm.DB) error {
		return db.Create(user).Error
	})
}
