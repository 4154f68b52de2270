package models

import "time"

// ShiftStatus is the assignment state of a shift
type ShiftStatus string

const (
	ShiftUnassigned ShiftStatus = "unassigned"
	ShiftOpen       ShiftStatus = "open"
	ShiftDraft      ShiftStatus = "draft"
	ShiftAssigned   ShiftStatus = "assigned"
)

// Shift represents a time slot that needs filling
type Shift struct {
	ID           int64       `json:"id"`
	TenantID     int64       `json:"tenant_id"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	RequiredRole string      `json:"required_role,omitempty"`
	Status       ShiftStatus `json:"status"`
	EmployeeID   *int64      `json:"employee_id"`
	Version      int64       `json:"version"`
}

// IsEmpty reports whether no employee holds the shift, draft or committed
func (s Shift) IsEmpty() bool {
	return s.EmployeeID == nil
}

// Hours is the shift length in hours
func (s Shift) Hours() float64 {
	if !s.End.After(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start).Hours()
}

// Employee represents a person that can be assigned to shifts
type Employee struct {
	ID       int64    `json:"id"`
	TenantID int64    `json:"tenant_id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Skills   []string `json:"skills,omitempty"`
	Active   bool     `json:"active"`
}

// DisplayName falls back to the email address when no name is recorded
func (e Employee) DisplayName() string {
	if e.FullName != "" {
		return e.FullName
	}
	return e.Email
}

// AvailabilityState is what an employee declared for a given date
type AvailabilityState string

const (
	Available   AvailabilityState = "available"
	PreferNot   AvailabilityState = "prefer_not"
	Unavailable AvailabilityState = "unavailable"
)

// AvailabilityEntry is a single availability declaration for one calendar day
type AvailabilityEntry struct {
	EmployeeID int64             `json:"employee_id"`
	Date       time.Time         `json:"date"`
	State      AvailabilityState `json:"state"`
}

// TimeOff is an approved absence window
type TimeOff struct {
	EmployeeID int64     `json:"employee_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// EmployeePreference holds the optional scheduling preferences of an employee
type EmployeePreference struct {
	EmployeeID         int64  `json:"employee_id"`
	PreferredStartHour *int   `json:"preferred_start_hour"`
	PreferredEndHour   *int   `json:"preferred_end_hour"`
	SecondaryRole      string `json:"secondary_role,omitempty"`
	OpenShiftOptIn     bool   `json:"open_shift_opt_in"`
	AutoAssignOptIn    bool   `json:"auto_assign_opt_in"`
}

// DefaultPreference is used for employees that never saved preferences
func DefaultPreference(employeeID int64) EmployeePreference {
	return EmployeePreference{EmployeeID: employeeID, OpenShiftOptIn: true}
}

// ContractRule holds the tenant's working-time limits
type ContractRule struct {
	MinRestHours float64 `json:"min_rest_hours" yaml:"minRestHours" validate:"gte=0"`
	MaxHoursDay  float64 `json:"max_hours_day" yaml:"maxHoursDay" validate:"gt=0"`
	MaxHoursWeek float64 `json:"max_hours_week" yaml:"maxHoursWeek" validate:"gt=0"`
}

// DefaultContractRule mirrors the statutory defaults used when a tenant has none
func DefaultContractRule() ContractRule {
	return ContractRule{MinRestHours: 11, MaxHoursDay: 12, MaxHoursWeek: 48}
}

// OpenShiftMode controls how published open shifts may be filled
type OpenShiftMode string

const (
	OpenShiftRecommendOnly OpenShiftMode = "RECOMMEND_ONLY"
	OpenShiftAutoAssign    OpenShiftMode = "AUTO_ASSIGN"
)

// TenantSettings are tenant-wide scheduling switches
type TenantSettings struct {
	OpenShiftMode OpenShiftMode `json:"open_shift_mode"`
}

// ScoringConfig is a versioned weight vector for candidate scoring
type ScoringConfig struct {
	TenantID          int64     `json:"tenant_id"`
	Version           int64     `json:"version"`
	Availability      float64   `json:"availability_weight" validate:"gte=0"`
	SkillMatch        float64   `json:"skill_match_weight" validate:"gte=0"`
	HoursBalance      float64   `json:"hours_balance_weight" validate:"gte=0"`
	RestMargin        float64   `json:"rest_margin_weight" validate:"gte=0"`
	WeekendBalance    float64   `json:"weekend_balance_weight" validate:"gte=0"`
	NightBalance      float64   `json:"night_balance_weight" validate:"gte=0"`
	Preference        float64   `json:"preference_weight" validate:"gte=0"`
	MinScoreThreshold *float64  `json:"min_score_threshold" validate:"omitempty,gte=0"`
	CreatedBy         *int64    `json:"created_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// EmployeeContext is everything the evaluator needs to know about one
// employee relative to one shift. It is derived from a read snapshot.
type EmployeeContext struct {
	EmployeeID      int64             `json:"employee_id"`
	Name            string            `json:"name"`
	Availability    AvailabilityState `json:"availability"`
	Skills          []string          `json:"skills"`
	SecondarySkills []string          `json:"secondary_skills,omitempty"`
	OnTimeOff       bool              `json:"on_time_off"`
	Overlapping     bool              `json:"overlapping"`
	DayHours        float64           `json:"day_hours"`
	WeekHours       float64           `json:"week_hours"`
	RecentHours     float64           `json:"recent_hours"`
	WeekendCount    int               `json:"weekend_count"`
	NightCount      int               `json:"night_count"`

	// Hours between the neighbouring committed shifts and this one; nil when there is none.
	GapBeforeHours *float64           `json:"gap_before_hours"`
	GapAfterHours  *float64           `json:"gap_after_hours"`
	MinRestHours   float64            `json:"min_rest_hours"`
	Preference     EmployeePreference `json:"preference"`
}

// Reason explains an exclusion, an unfilled shift or a rejected assignment
type Reason string

const (
	ReasonUnavailable          Reason = "unavailable"
	ReasonNoSkill              Reason = "no qualifying skill"
	ReasonInsufficientRest     Reason = "insufficient rest"
	ReasonOverlap              Reason = "overlapping assignment"
	ReasonTimeOff              Reason = "approved time off"
	ReasonMaxDailyHours        Reason = "max daily hours exceeded"
	ReasonMaxWeeklyHours       Reason = "max weekly hours exceeded"
	ReasonOpenShiftOptOut      Reason = "open shift participation disabled"
	ReasonAutoAssignNotAllowed Reason = "open shift auto-assign not allowed"
	ReasonBelowThreshold       Reason = "below score threshold"
	ReasonNoEligibleCandidates Reason = "no eligible candidates"
	ReasonShiftNotFound        Reason = "shift not found"
	ReasonEmployeeNotFound     Reason = "employee not found"
	ReasonOutsideWeek          Reason = "shift outside target week"
	ReasonDuplicateShift       Reason = "duplicate shift in request"
	ReasonStaleNotOpen         Reason = "stale state: shift no longer open"
	ReasonStaleLocked          Reason = "stale state: shift locked by concurrent apply"
	ReasonStaleEmployeeLocked  Reason = "stale state: employee locked by concurrent apply"
	ReasonStaleVersion         Reason = "stale state: shift changed since validation"
)

// Candidate flags
const (
	FlagPreferNot      = "PREFER_NOT"
	FlagSecondarySkill = "SECONDARY_SKILL_MATCH"
)

// ScoreBreakdown holds one value per scoring factor
type ScoreBreakdown struct {
	Availability   float64 `json:"availability"`
	SkillMatch     float64 `json:"skill_match"`
	HoursBalance   float64 `json:"hours_balance"`
	RestMargin     float64 `json:"rest_margin"`
	WeekendBalance float64 `json:"weekend_balance"`
	NightBalance   float64 `json:"night_balance"`
	Preference     float64 `json:"preference"`
}

// CandidateScore is the scored result for one (shift, employee) pair
type CandidateScore struct {
	ShiftID      int64          `json:"shift_id"`
	EmployeeID   int64          `json:"employee_id"`
	EmployeeName string         `json:"employee_name"`
	TotalScore   float64        `json:"total_score"`
	SubScores    ScoreBreakdown `json:"sub_scores"`
	Weighted     ScoreBreakdown `json:"score_breakdown"`

	// Raw tie-break inputs
	RestMarginHours float64  `json:"rest_margin_hours"`
	WeekendCount    int      `json:"weekend_count"`
	Flags           []string `json:"flags"`
}

// ExcludedCandidate is an employee removed by a hard constraint
type ExcludedCandidate struct {
	EmployeeID int64    `json:"employee_id"`
	Reasons    []Reason `json:"reasons"`
}

// ShiftSuggestion is the ranked outcome for a single shift
type ShiftSuggestion struct {
	ShiftID               int64               `json:"shift_id"`
	RecommendedEmployeeID *int64              `json:"recommended_employee_id"`
	RecommendedScore      *float64            `json:"recommended_score"`
	Candidates            []CandidateScore    `json:"candidates"`
	BelowThreshold        []CandidateScore    `json:"below_threshold"`
	Excluded              []ExcludedCandidate `json:"excluded"`
	Notes                 []string            `json:"notes"`
}

// UnfilledShift is a shift for which no candidate could be recommended
type UnfilledShift struct {
	ShiftID int64    `json:"shift_id"`
	Reasons []Reason `json:"reasons"`
}

// FairnessRow aggregates recommended, not yet applied, work per employee
type FairnessRow struct {
	EmployeeID            int64   `json:"employee_id"`
	EmployeeName          string  `json:"employee_name"`
	RecommendedShiftCount int     `json:"recommended_shift_count"`
	RecommendedHours      float64 `json:"recommended_hours"`
}

// FairnessBasisRecommended labels fairness figures that only count pending recommendations
const FairnessBasisRecommended = "recommended"

// PreviewRequest is the body of a preview call
type PreviewRequest struct {
	WeekStart         string `json:"week_start" binding:"required"`
	IncludeOpenShifts *bool  `json:"include_open_shifts"`
}

// PreviewResult is the full read-only preview for one week
type PreviewResult struct {
	WeekStart         string            `json:"week_start"`
	ScoringConfigUsed ScoringConfig     `json:"scoring_config_used"`
	ShiftSuggestions  []ShiftSuggestion `json:"shift_suggestions"`
	UnfilledShifts    []UnfilledShift   `json:"unfilled_shifts"`
	FairnessBasis     string            `json:"fairness_basis"`
	FairnessSummary   []FairnessRow     `json:"fairness_summary"`
	FairnessScore     float64           `json:"fairness_score"`
}

// Assignment represents an employee-shift pairing
type Assignment struct {
	ShiftID    int64 `json:"shift_id" binding:"required"`
	EmployeeID int64 `json:"employee_id" binding:"required"`
}

// ApplyTargetDraft is the only supported commit target
const ApplyTargetDraft = "DRAFT"

// ApplyRequest is the body of an apply or validate call
type ApplyRequest struct {
	WeekStart   string       `json:"week_start" binding:"required"`
	Assignments []Assignment `json:"assignments"`
	ApplyTarget string       `json:"apply_target"`
}

// RejectedAssignment is a submitted pair that was not committed
type RejectedAssignment struct {
	ShiftID    int64    `json:"shift_id"`
	EmployeeID int64    `json:"employee_id"`
	Reasons    []Reason `json:"reasons"`
}

// ApplyResult splits a submitted batch into committed and rejected pairs
type ApplyResult struct {
	BatchID  string               `json:"batch_id,omitempty"`
	Applied  []Assignment         `json:"applied"`
	Rejected []RejectedAssignment `json:"rejected"`
}

// OverrideFeedback records an applied assignment that differs from the model's top pick
type OverrideFeedback struct {
	TenantID           int64          `json:"tenant_id"`
	ShiftID            int64          `json:"shift_id"`
	ConfigVersion      int64          `json:"config_version"`
	OriginalEmployeeID int64          `json:"original_employee_id"`
	FinalEmployeeID    int64          `json:"final_employee_id"`
	OriginalSubScores  ScoreBreakdown `json:"original_sub_scores"`
	FinalSubScores     ScoreBreakdown `json:"final_sub_scores"`
	CreatedAt          time.Time      `json:"created_at"`
}
