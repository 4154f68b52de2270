package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/advisor"
	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/arnavshah/shift-assign-api/pkg/scheduler"
	"github.com/arnavshah/shift-assign-api/pkg/scoring"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned for lookups of rows that do not exist
var ErrNotFound = errors.New("record not found")

// ActionDraftAssigned is the audit action written for every committed pair
const ActionDraftAssigned = "draft_assigned"

var (
	_ scheduler.Store        = (*Store)(nil)
	_ scheduler.ShiftLookup  = (*Store)(nil)
	_ scoring.ConfigStore    = (*Store)(nil)
	_ advisor.FeedbackSource = (*Store)(nil)
)

// BreakerSettings tune the circuit breaker in front of the database
type BreakerSettings struct {
	MaxRequests      uint32        `yaml:"maxRequests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `yaml:"failureThreshold" validate:"gte=1"`
}

// DefaultBreakerSettings trip after five consecutive failures and probe again after 30s
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Store is the gorm backed persistence for the engine, the config service
// and the advisor. Every call goes through one circuit breaker; database
// failures and an open breaker both surface as models.ErrUpstreamUnavailable.
type Store struct {
	db          *gorm.DB
	breaker     *gobreaker.CircuitBreaker[any]
	defaultRule models.ContractRule
	logger      *zap.Logger
	now         func() time.Time
}

// NewStore wraps db. defaultRule applies to tenants without a contract_rules row.
func NewStore(db *gorm.DB, settings BreakerSettings, defaultRule models.ContractRule, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		db:          db,
		defaultRule: defaultRule,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "database",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isOutcome(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s
}

// DB exposes the underlying connection for migrations and tests
func (s *Store) DB() *gorm.DB { return s.db }

// BreakerState reports the breaker state for health checks
func (s *Store) BreakerState() string { return s.breaker.State().String() }

// isOutcome reports errors that describe data, not a broken database
func isOutcome(err error) bool {
	return errors.Is(err, scheduler.ErrStaleShift) ||
		errors.Is(err, scheduler.ErrEmployeeOverlap) ||
		errors.Is(err, scoring.ErrConfigNotFound) ||
		errors.Is(err, ErrNotFound)
}

// run executes fn behind the breaker
func (s *Store) run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, fn(s.db.WithContext(ctx))
	})
	if err == nil || isOutcome(err) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Warn("database call short-circuited", zap.String("op", op))
	} else {
		s.logger.Error("database call failed", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%s: %w: %v", op, models.ErrUpstreamUnavailable, err)
}

func (s *Store) readOnly() []*sql.TxOptions {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

// LoadWeek reads everything scoring the week depends on in one transaction
func (s *Store) LoadWeek(ctx context.Context, tenantID int64, week scheduler.Week) (*scheduler.Snapshot, error) {
	snap := &scheduler.Snapshot{
		TenantID:    tenantID,
		Week:        week,
		Preferences: map[int64]models.EmployeePreference{},
		Rule:        s.defaultRule,
		Settings:    models.TenantSettings{OpenShiftMode: models.OpenShiftRecommendOnly},
	}
	from, until := week.LoadFrom().UTC(), week.LoadUntil().UTC()

	err := s.run(ctx, "load week", func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var shifts []Shift
			if err := tx.Where("tenant_id = ? AND start_time < ? AND end_time > ?", tenantID, until, from).
				Order("start_time, id").Find(&shifts).Error; err != nil {
				return err
			}
			snap.Shifts = make([]models.Shift, 0, len(shifts))
			for _, sh := range shifts {
				snap.Shifts = append(snap.Shifts, sh.toModel())
			}

			var employees []Employee
			if err := tx.Where("tenant_id = ? AND active = ?", tenantID, true).Order("id").Find(&employees).Error; err != nil {
				return err
			}
			snap.Employees = make([]models.Employee, 0, len(employees))
			for _, e := range employees {
				m, err := e.toModel()
				if err != nil {
					return err
				}
				snap.Employees = append(snap.Employees, m)
			}

			var availability []Availability
			if err := tx.Where("tenant_id = ? AND date >= ? AND date < ?", tenantID, from, until).
				Order("employee_id, date").Find(&availability).Error; err != nil {
				return err
			}
			for _, a := range availability {
				snap.Availability = append(snap.Availability, a.toModel())
			}

			var timeOff []TimeOffRequest
			if err := tx.Where("tenant_id = ? AND status = ? AND start_time < ? AND end_time > ?", tenantID, TimeOffApproved, until, from).
				Order("employee_id, start_time").Find(&timeOff).Error; err != nil {
				return err
			}
			for _, t := range timeOff {
				snap.TimeOff = append(snap.TimeOff, t.toModel())
			}

			var prefs []EmployeePreference
			if err := tx.Where("tenant_id = ?", tenantID).Find(&prefs).Error; err != nil {
				return err
			}
			for _, p := range prefs {
				snap.Preferences[p.EmployeeID] = p.toModel()
			}

			var rules []ContractRule
			if err := tx.Where("tenant_id = ?", tenantID).Limit(1).Find(&rules).Error; err != nil {
				return err
			}
			if len(rules) == 1 {
				snap.Rule = models.ContractRule{
					MinRestHours: rules[0].MinRestHours,
					MaxHoursDay:  rules[0].MaxHoursDay,
					MaxHoursWeek: rules[0].MaxHoursWeek,
				}
			}

			var settings []TenantSetting
			if err := tx.Where("tenant_id = ?", tenantID).Limit(1).Find(&settings).Error; err != nil {
				return err
			}
			if len(settings) == 1 && settings[0].OpenShiftMode != "" {
				snap.Settings.OpenShiftMode = models.OpenShiftMode(settings[0].OpenShiftMode)
			}
			return nil
		}, s.readOnly()...)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// auditDetails is stored as JSON next to every committed pair
type auditDetails struct {
	Week          string                 `json:"week"`
	ConfigVersion int64                  `json:"config_version"`
	Score         *models.CandidateScore `json:"score,omitempty"`
	Override      bool                   `json:"override"`
}

// CommitDraft writes one validated pair. The update only matches while the
// shift is still empty at the expected version, so a concurrent writer makes
// it return scheduler.ErrStaleShift.
func (s *Store) CommitDraft(ctx context.Context, c scheduler.DraftCommit) error {
	return s.run(ctx, "commit draft", func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&Shift{}).
				Where("id = ? AND tenant_id = ? AND version = ? AND employee_id IS NULL", c.ShiftID, c.TenantID, c.ExpectedVersion).
				Updates(map[string]any{
					"employee_id": c.EmployeeID,
					"status":      string(models.ShiftDraft),
					"version":     gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return scheduler.ErrStaleShift
			}

			var shift Shift
			if err := tx.Where("id = ?", c.ShiftID).First(&shift).Error; err != nil {
				return err
			}
			var clashes int64
			if err := tx.Model(&Shift{}).
				Where("tenant_id = ? AND employee_id = ? AND id <> ? AND start_time < ? AND end_time > ?",
					c.TenantID, c.EmployeeID, c.ShiftID, shift.EndTime, shift.StartTime).
				Count(&clashes).Error; err != nil {
				return err
			}
			if clashes > 0 {
				return scheduler.ErrEmployeeOverlap
			}

			details, err := json.Marshal(auditDetails{
				Week:          c.Week,
				ConfigVersion: c.ConfigVersion,
				Score:         c.Score,
				Override:      c.Feedback != nil,
			})
			if err != nil {
				return err
			}
			if err := tx.Create(&AssignmentAudit{
				TenantID:   c.TenantID,
				BatchID:    c.BatchID,
				ShiftID:    c.ShiftID,
				EmployeeID: c.EmployeeID,
				Action:     ActionDraftAssigned,
				Actor:      c.Actor,
				Details:    datatypes.JSON(details),
			}).Error; err != nil {
				return err
			}

			if c.Feedback == nil {
				return nil
			}
			row, err := feedbackRow(c.Feedback)
			if err != nil {
				return err
			}
			return tx.Create(&row).Error
		})
	})
}

// ShiftExists reports whether the tenant owns a shift with this id
func (s *Store) ShiftExists(ctx context.Context, tenantID, shiftID int64) (bool, error) {
	var count int64
	err := s.run(ctx, "shift exists", func(db *gorm.DB) error {
		return db.Model(&Shift{}).Where("id = ? AND tenant_id = ?", shiftID, tenantID).Count(&count).Error
	})
	return count > 0, err
}

// LatestScoringConfig returns the highest version stored for the tenant
func (s *Store) LatestScoringConfig(ctx context.Context, tenantID int64) (*models.ScoringConfig, error) {
	var rows []ScoringConfig
	err := s.run(ctx, "latest scoring config", func(db *gorm.DB) error {
		if err := db.Where("tenant_id = ?", tenantID).Order("version desc").Limit(1).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return scoring.ErrConfigNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cfg := rows[0].toModel()
	return &cfg, nil
}

// InsertScoringConfig appends a config version
func (s *Store) InsertScoringConfig(ctx context.Context, cfg *models.ScoringConfig) error {
	row := scoringConfigRow(cfg)
	return s.run(ctx, "insert scoring config", func(db *gorm.DB) error {
		return db.Create(&row).Error
	})
}

// ScoringConfigHistory lists every stored version, newest first
func (s *Store) ScoringConfigHistory(ctx context.Context, tenantID int64, limit int) ([]models.ScoringConfig, error) {
	var rows []ScoringConfig
	err := s.run(ctx, "scoring config history", func(db *gorm.DB) error {
		return db.Where("tenant_id = ?", tenantID).Order("version desc").Limit(limit).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.ScoringConfig, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// OverridesSince returns the feedback captured at or after since, oldest first
func (s *Store) OverridesSince(ctx context.Context, tenantID int64, since time.Time) ([]models.OverrideFeedback, error) {
	var rows []OverrideFeedback
	err := s.run(ctx, "overrides since", func(db *gorm.DB) error {
		return db.Where("tenant_id = ? AND created_at >= ?", tenantID, since.UTC()).
			Order("created_at, id").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.OverrideFeedback, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
