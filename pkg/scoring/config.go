package scoring

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Default weights, applied when a tenant has never saved a scoring config
const (
	DefaultAvailabilityWeight   = 25.0
	DefaultSkillMatchWeight     = 25.0
	DefaultHoursBalanceWeight   = 20.0
	DefaultRestMarginWeight     = 15.0
	DefaultWeekendBalanceWeight = 10.0
	DefaultNightBalanceWeight   = 10.0
	DefaultPreferenceWeight     = 5.0
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// DefaultConfig returns the unversioned default weight vector for a tenant
func DefaultConfig(tenantID int64) models.ScoringConfig {
	return models.ScoringConfig{
		TenantID:       tenantID,
		Availability:   DefaultAvailabilityWeight,
		SkillMatch:     DefaultSkillMatchWeight,
		HoursBalance:   DefaultHoursBalanceWeight,
		RestMargin:     DefaultRestMarginWeight,
		WeekendBalance: DefaultWeekendBalanceWeight,
		NightBalance:   DefaultNightBalanceWeight,
		Preference:     DefaultPreferenceWeight,
	}
}

// Weights exposes the weight vector in the same shape as a score breakdown
func Weights(cfg models.ScoringConfig) models.ScoreBreakdown {
	return models.ScoreBreakdown{
		Availability:   cfg.Availability,
		SkillMatch:     cfg.SkillMatch,
		HoursBalance:   cfg.HoursBalance,
		RestMargin:     cfg.RestMargin,
		WeekendBalance: cfg.WeekendBalance,
		NightBalance:   cfg.NightBalance,
		Preference:     cfg.Preference,
	}
}

// Factor names, in the order they are reported
var Factors = []string{
	"availability",
	"skill_match",
	"hours_balance",
	"rest_margin",
	"weekend_balance",
	"night_balance",
	"preference",
}

// FactorValues lists the breakdown values in Factors order
func FactorValues(b models.ScoreBreakdown) []float64 {
	return []float64{
		b.Availability,
		b.SkillMatch,
		b.HoursBalance,
		b.RestMargin,
		b.WeekendBalance,
		b.NightBalance,
		b.Preference,
	}
}

// Validate checks that every weight and the optional threshold are finite and non-negative
func Validate(cfg models.ScoringConfig) error {
	for i, w := range FactorValues(Weights(cfg)) {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return models.NewValidationError(Factors[i]+"_weight", "must be a finite number")
		}
	}
	if t := cfg.MinScoreThreshold; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		return models.NewValidationError("min_score_threshold", "must be a finite number")
	}

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.NewValidationError(fe.Field(), "must be %s %s", fe.Tag(), fe.Param())
		}
		return models.NewValidationError("", "%v", err)
	}
	return nil
}

// ConfigUpdate is a partial change to the active scoring config
type ConfigUpdate struct {
	Availability           *float64 `json:"availability_weight"`
	SkillMatch             *float64 `json:"skill_match_weight"`
	HoursBalance           *float64 `json:"hours_balance_weight"`
	RestMargin             *float64 `json:"rest_margin_weight"`
	WeekendBalance         *float64 `json:"weekend_balance_weight"`
	NightBalance           *float64 `json:"night_balance_weight"`
	Preference             *float64 `json:"preference_weight"`
	MinScoreThreshold      *float64 `json:"min_score_threshold"`
	ClearMinScoreThreshold bool     `json:"clear_min_score_threshold"`
}

// IsEmpty reports whether the update would change nothing
func (u ConfigUpdate) IsEmpty() bool {
	return u.Availability == nil && u.SkillMatch == nil && u.HoursBalance == nil &&
		u.RestMargin == nil && u.WeekendBalance == nil && u.NightBalance == nil &&
		u.Preference == nil && u.MinScoreThreshold == nil && !u.ClearMinScoreThreshold
}

// Merge returns cur with the update's fields applied. Version metadata is left untouched.
func (u ConfigUpdate) Merge(cur models.ScoringConfig) models.ScoringConfig {
	next := cur
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&next.Availability, u.Availability)
	set(&next.SkillMatch, u.SkillMatch)
	set(&next.HoursBalance, u.HoursBalance)
	set(&next.RestMargin, u.RestMargin)
	set(&next.WeekendBalance, u.WeekendBalance)
	set(&next.NightBalance, u.NightBalance)
	set(&next.Preference, u.Preference)

	switch {
	case u.ClearMinScoreThreshold:
		next.MinScoreThreshold = nil
	case u.MinScoreThreshold != nil:
		t := *u.MinScoreThreshold
		next.MinScoreThreshold = &t
	}
	return next
}
