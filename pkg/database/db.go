package database

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Shift represents the shifts table
type Shift struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	TenantID     int64     `gorm:"index:idx_shift_tenant_start;not null" json:"tenant_id"`
	StartTime    time.Time `gorm:"index:idx_shift_tenant_start;not null" json:"start_time"`
	EndTime      time.Time `gorm:"not null" json:"end_time"`
	RequiredRole string    `json:"required_role"`
	Status       string    `gorm:"not null" json:"status"`
	EmployeeID   *int64    `gorm:"index" json:"employee_id"`
	Version      int64     `gorm:"not null" json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Employee represents the employees table. Skills is a JSON array of names.
type Employee struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	TenantID  int64          `gorm:"index;not null" json:"tenant_id"`
	FullName  string         `json:"full_name"`
	Email     string         `json:"email"`
	Role      string         `json:"role"`
	Skills    datatypes.JSON `json:"skills"`
	Active    bool           `gorm:"not null" json:"active"`
	CreatedAt time.Time      `json:"created_at"`
}

// Availability represents the availability table, one row per employee and day
type Availability struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   int64     `gorm:"index;not null" json:"tenant_id"`
	EmployeeID int64     `gorm:"uniqueIndex:idx_availability_day;not null" json:"employee_id"`
	Date       time.Time `gorm:"uniqueIndex:idx_availability_day;not null" json:"date"`
	State      string    `gorm:"not null" json:"state"`
}

// Time off request states
const (
	TimeOffPending  = "pending"
	TimeOffApproved = "approved"
	TimeOffRejected = "rejected"
)

// TimeOffRequest represents the time_off_requests table
type TimeOffRequest struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   int64     `gorm:"index;not null" json:"tenant_id"`
	EmployeeID int64     `gorm:"index;not null" json:"employee_id"`
	StartTime  time.Time `gorm:"not null" json:"start_time"`
	EndTime    time.Time `gorm:"not null" json:"end_time"`
	Status     string    `gorm:"not null" json:"status"`
}

// EmployeePreference represents the employee_preferences table
type EmployeePreference struct {
	EmployeeID         int64  `gorm:"primaryKey;autoIncrement:false" json:"employee_id"`
	TenantID           int64  `gorm:"index;not null" json:"tenant_id"`
	PreferredStartHour *int   `json:"preferred_start_hour"`
	PreferredEndHour   *int   `json:"preferred_end_hour"`
	SecondaryRole      string `json:"secondary_role"`
	OpenShiftOptIn     bool   `gorm:"not null" json:"open_shift_opt_in"`
	AutoAssignOptIn    bool   `gorm:"not null" json:"auto_assign_opt_in"`
}

// ContractRule represents the contract_rules table
type ContractRule struct {
	TenantID     int64   `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	MinRestHours float64 `json:"min_rest_hours"`
	MaxHoursDay  float64 `json:"max_hours_day"`
	MaxHoursWeek float64 `json:"max_hours_week"`
}

// TenantSetting represents the tenant_settings table
type TenantSetting struct {
	TenantID      int64  `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	OpenShiftMode string `json:"open_shift_mode"`
}

// ScoringConfig represents the scoring_configs table. Rows are never updated.
type ScoringConfig struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	TenantID             int64     `gorm:"uniqueIndex:idx_config_version;not null" json:"tenant_id"`
	Version              int64     `gorm:"uniqueIndex:idx_config_version;not null" json:"version"`
	AvailabilityWeight   float64   `json:"availability_weight"`
	SkillMatchWeight     float64   `json:"skill_match_weight"`
	HoursBalanceWeight   float64   `json:"hours_balance_weight"`
	RestMarginWeight     float64   `json:"rest_margin_weight"`
	WeekendBalanceWeight float64   `json:"weekend_balance_weight"`
	NightBalanceWeight   float64   `json:"night_balance_weight"`
	PreferenceWeight     float64   `json:"preference_weight"`
	MinScoreThreshold    *float64  `json:"min_score_threshold"`
	CreatedBy            *int64    `json:"created_by"`
	CreatedAt            time.Time `json:"created_at"`
}

// AssignmentAudit represents the assignment_audits table
type AssignmentAudit struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	TenantID   int64          `gorm:"index;not null" json:"tenant_id"`
	BatchID    string         `gorm:"index;not null" json:"batch_id"`
	ShiftID    int64          `gorm:"not null" json:"shift_id"`
	EmployeeID int64          `gorm:"not null" json:"employee_id"`
	Action     string         `gorm:"not null" json:"action"`
	Actor      *int64         `json:"actor"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

// OverrideFeedback represents the override_feedback table
type OverrideFeedback struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	TenantID           int64          `gorm:"index:idx_feedback_tenant_created;not null" json:"tenant_id"`
	ShiftID            int64          `gorm:"not null" json:"shift_id"`
	ConfigVersion      int64          `json:"config_version"`
	OriginalEmployeeID int64          `json:"original_employee_id"`
	FinalEmployeeID    int64          `json:"final_employee_id"`
	OriginalSubScores  datatypes.JSON `json:"original_sub_scores"`
	FinalSubScores     datatypes.JSON `json:"final_sub_scores"`
	CreatedAt          time.Time      `gorm:"index:idx_feedback_tenant_created" json:"created_at"`
}

// TableName keeps the feedback table singular
func (OverrideFeedback) TableName() string { return "override_feedback" }

// APIKey represents the api_keys table
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TenantID   int64      `gorm:"index;not null" json:"tenant_id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	KeyPreview string     `json:"key_preview"`
	Name       string     `gorm:"not null" json:"name"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"`
	Revoked    bool       `gorm:"not null" json:"revoked"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// TenantUsage represents the tenant_usage table
type TenantUsage struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	TenantID      int64  `gorm:"uniqueIndex:idx_tenant_date;not null" json:"tenant_id"`
	Date          string `gorm:"uniqueIndex:idx_tenant_date;not null" json:"date"`
	RequestCount  int    `gorm:"default:0" json:"request_count"`
	PreviewCount  int    `gorm:"default:0" json:"preview_count"`
	AppliedCount  int    `gorm:"default:0" json:"applied_count"`
	RejectedCount int    `gorm:"default:0" json:"rejected_count"`
}

// TableName keeps the usage table singular
func (TenantUsage) TableName() string { return "tenant_usage" }

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	TenantID     int64     `gorm:"not null" json:"tenant_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Options selects the database backend
type Options struct {
	// DatabaseURL selects Postgres when set
	DatabaseURL string
	// DataPath is the SQLite file used otherwise
	DataPath string
	Debug    bool
}

// InitDB opens the database connection and migrates the schema
func InitDB(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if opts.Debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	if opts.DatabaseURL != "" {
		dialector = postgres.New(postgres.Config{
			DSN:                  opts.DatabaseURL,
			PreferSimpleProtocol: true,
		})
	} else {
		path := opts.DataPath
		if path == "" {
			path = "shift_assign.db"
		}
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Shift{},
		&Employee{},
		&Availability{},
		&TimeOffRequest{},
		&EmployeePreference{},
		&ContractRule{},
		&TenantSetting{},
		&ScoringConfig{},
		&AssignmentAudit{},
		&OverrideFeedback{},
		&APIKey{},
		&TenantUsage{},
		&MasterUser{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
