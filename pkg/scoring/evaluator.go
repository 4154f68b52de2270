package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/arnavshah/shift-assign-api/pkg/models"
)

const (
	// PreferNotCredit is the availability credit for a "prefer not" declaration
	PreferNotCredit = 0.5
	// SecondarySkillCredit is the skill credit for an acceptable secondary skill
	SecondarySkillCredit = 0.7
	// MaxRestMarginHours caps the rest margin; anything beyond scores the same
	MaxRestMarginHours = 24.0
)

// SkillLevel is how well an employee's skills cover a shift's requirement
type SkillLevel int

const (
	SkillNone SkillLevel = iota
	SkillSecondary
	SkillExact
)

// Outcome is the result of evaluating one employee for one shift:
// either Eligible or Excluded, never a sentinel score.
type Outcome interface {
	Employee() int64
	isOutcome()
}

// Candidate carries the raw, weight-independent inputs of an eligible employee
type Candidate struct {
	EmployeeID      int64
	Name            string
	Availability    models.AvailabilityState
	Skill           SkillLevel
	RecentHours     float64
	RestMarginHours float64
	WeekendCount    int
	NightCount      int
	PreferenceMatch bool
	Flags           []string
}

// Eligible means the employee survived every hard constraint
type Eligible struct {
	Candidate Candidate
}

// Excluded means at least one hard constraint removed the employee
type Excluded struct {
	EmployeeID int64
	Reasons    []models.Reason
}

func (e Eligible) Employee() int64 { return e.Candidate.EmployeeID }
func (e Eligible) isOutcome()      {}
func (e Excluded) Employee() int64 { return e.EmployeeID }
func (e Excluded) isOutcome()      {}

// Evaluate applies the hard constraints to one (shift, employee) pair and,
// when none fire, extracts the candidate's scoring inputs. It is pure.
func Evaluate(shift models.Shift, ec models.EmployeeContext, rule models.ContractRule, settings models.TenantSettings) Outcome {
	var reasons []models.Reason
	var flags []string

	switch ec.Availability {
	case models.Unavailable:
		reasons = append(reasons, models.ReasonUnavailable)
	case models.PreferNot:
		flags = append(flags, models.FlagPreferNot)
	}

	if ec.OnTimeOff {
		reasons = append(reasons, models.ReasonTimeOff)
	}
	if ec.Overlapping {
		reasons = append(reasons, models.ReasonOverlap)
	}

	hours := shift.Hours()
	if ec.DayHours+hours > rule.MaxHoursDay {
		reasons = append(reasons, models.ReasonMaxDailyHours)
	}
	if ec.WeekHours+hours > rule.MaxHoursWeek {
		reasons = append(reasons, models.ReasonMaxWeeklyHours)
	}

	if restViolated(ec.GapBeforeHours, ec.MinRestHours) || restViolated(ec.GapAfterHours, ec.MinRestHours) {
		reasons = append(reasons, models.ReasonInsufficientRest)
	}

	skill := MatchSkill(shift.RequiredRole, ec)
	switch skill {
	case SkillNone:
		reasons = append(reasons, models.ReasonNoSkill)
	case SkillSecondary:
		flags = append(flags, models.FlagSecondarySkill)
	}

	if shift.Status == models.ShiftOpen {
		if !ec.Preference.OpenShiftOptIn {
			reasons = append(reasons, models.ReasonOpenShiftOptOut)
		}
		if settings.OpenShiftMode == models.OpenShiftAutoAssign && !ec.Preference.AutoAssignOptIn {
			reasons = append(reasons, models.ReasonAutoAssignNotAllowed)
		}
	}

	if len(reasons) > 0 {
		return Excluded{EmployeeID: ec.EmployeeID, Reasons: SortReasons(reasons)}
	}

	sort.Strings(flags)
	return Eligible{Candidate: Candidate{
		EmployeeID:      ec.EmployeeID,
		Name:            ec.Name,
		Availability:    ec.Availability,
		Skill:           skill,
		RecentHours:     ec.RecentHours,
		RestMarginHours: RestMargin(ec.GapBeforeHours, ec.GapAfterHours, ec.MinRestHours),
		WeekendCount:    ec.WeekendCount,
		NightCount:      ec.NightCount,
		PreferenceMatch: MatchesPreferredTime(shift, ec.Preference),
		Flags:           flags,
	}}
}

func restViolated(gap *float64, minRest float64) bool {
	return gap != nil && *gap < minRest
}

// RestMargin is the unused rest beyond the contractual minimum, capped at
// MaxRestMarginHours. A missing neighbour counts as a full margin.
func RestMargin(gapBefore, gapAfter *float64, minRest float64) float64 {
	margin := MaxRestMarginHours
	for _, gap := range []*float64{gapBefore, gapAfter} {
		if gap != nil {
			margin = math.Min(margin, *gap-minRest)
		}
	}
	return math.Max(margin, 0)
}

// MatchSkill grades the employee's skills against the shift's required role
func MatchSkill(requiredRole string, ec models.EmployeeContext) SkillLevel {
	required := normalize(requiredRole)
	if required == "" {
		return SkillExact
	}
	for _, s := range ec.Skills {
		if normalize(s) == required {
			return SkillExact
		}
	}
	for _, s := range ec.SecondarySkills {
		if normalize(s) == required {
			return SkillSecondary
		}
	}
	return SkillNone
}

// MatchesPreferredTime checks the shift against the employee's preferred
// hours. Windows whose start is after their end wrap past midnight.
func MatchesPreferredTime(shift models.Shift, pref models.EmployeePreference) bool {
	if pref.PreferredStartHour == nil || pref.PreferredEndHour == nil {
		return false
	}
	shiftStart := float64(shift.Start.Hour()) + float64(shift.Start.Minute())/60
	shiftEnd := float64(shift.End.Hour()) + float64(shift.End.Minute())/60
	from := float64(*pref.PreferredStartHour)
	to := float64(*pref.PreferredEndHour)

	if from <= to {
		return from <= shiftStart && shiftEnd <= to
	}
	return shiftStart >= from || shiftEnd <= to
}

// Cohort holds the peer ranges used to normalise the balance factors
type Cohort struct {
	minHours, maxHours     float64
	minWeekend, maxWeekend float64
	minNight, maxNight     float64
}

// NewCohort computes the peer ranges over the eligible candidates of one shift
func NewCohort(cands []Candidate) Cohort {
	var c Cohort
	for i, cand := range cands {
		h, w, n := cand.RecentHours, float64(cand.WeekendCount), float64(cand.NightCount)
		if i == 0 {
			c = Cohort{h, h, w, w, n, n}
			continue
		}
		c.minHours, c.maxHours = math.Min(c.minHours, h), math.Max(c.maxHours, h)
		c.minWeekend, c.maxWeekend = math.Min(c.minWeekend, w), math.Max(c.maxWeekend, w)
		c.minNight, c.maxNight = math.Min(c.minNight, n), math.Max(c.maxNight, n)
	}
	return c
}

// SubScores maps a candidate's raw inputs onto [0,1] per factor
func SubScores(cand Candidate, cohort Cohort) models.ScoreBreakdown {
	sub := models.ScoreBreakdown{
		Availability:   1,
		SkillMatch:     1,
		HoursBalance:   inverseNormalize(cand.RecentHours, cohort.minHours, cohort.maxHours),
		RestMargin:     math.Min(cand.RestMarginHours, MaxRestMarginHours) / MaxRestMarginHours,
		WeekendBalance: inverseNormalize(float64(cand.WeekendCount), cohort.minWeekend, cohort.maxWeekend),
		NightBalance:   inverseNormalize(float64(cand.NightCount), cohort.minNight, cohort.maxNight),
	}
	if cand.Availability == models.PreferNot {
		sub.Availability = PreferNotCredit
	}
	if cand.Skill == SkillSecondary {
		sub.SkillMatch = SecondarySkillCredit
	}
	if cand.PreferenceMatch {
		sub.Preference = 1
	}
	return sub
}

// Score weights a candidate's sub-scores with cfg. Output is rounded so
// that identical inputs always serialise identically.
func Score(shift models.Shift, cand Candidate, cohort Cohort, cfg models.ScoringConfig) models.CandidateScore {
	sub := SubScores(cand, cohort)
	w := Weights(cfg)
	weighted := models.ScoreBreakdown{
		Availability:   w.Availability * sub.Availability,
		SkillMatch:     w.SkillMatch * sub.SkillMatch,
		HoursBalance:   w.HoursBalance * sub.HoursBalance,
		RestMargin:     w.RestMargin * sub.RestMargin,
		WeekendBalance: w.WeekendBalance * sub.WeekendBalance,
		NightBalance:   w.NightBalance * sub.NightBalance,
		Preference:     w.Preference * sub.Preference,
	}

	var total float64
	for _, v := range FactorValues(weighted) {
		total += v
	}

	flags := cand.Flags
	if flags == nil {
		flags = []string{}
	}
	return models.CandidateScore{
		ShiftID:         shift.ID,
		EmployeeID:      cand.EmployeeID,
		EmployeeName:    cand.Name,
		TotalScore:      Round(total),
		SubScores:       roundBreakdown(sub),
		Weighted:        roundBreakdown(weighted),
		RestMarginHours: Round(cand.RestMarginHours),
		WeekendCount:    cand.WeekendCount,
		Flags:           flags,
	}
}

func inverseNormalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 1
	}
	return (hi - v) / (hi - lo)
}

// Round keeps four decimals
func Round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func roundBreakdown(b models.ScoreBreakdown) models.ScoreBreakdown {
	return models.ScoreBreakdown{
		Availability:   Round(b.Availability),
		SkillMatch:     Round(b.SkillMatch),
		HoursBalance:   Round(b.HoursBalance),
		RestMargin:     Round(b.RestMargin),
		WeekendBalance: Round(b.WeekendBalance),
		NightBalance:   Round(b.NightBalance),
		Preference:     Round(b.Preference),
	}
}

// SortReasons de-duplicates and orders reasons
func SortReasons(reasons []models.Reason) []models.Reason {
	seen := make(map[models.Reason]bool, len(reasons))
	out := make([]models.Reason, 0, len(reasons))
	for _, r := range reasons {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
