package scheduler

import (
	"sort"
	"strings"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/arnavshah/shift-assign-api/pkg/scoring"
)

// genericRole is the catch-all role given to employees without a trade
const genericRole = "employee"

// DurationHours calculates the duration between two times in hours
func DurationHours(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

// Overlap checks if two time ranges overlap
func Overlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func overlapHours(aStart, aEnd, bStart, bEnd time.Time) float64 {
	start, end := aStart, aEnd
	if bStart.After(start) {
		start = bStart
	}
	if bEnd.Before(end) {
		end = bEnd
	}
	return DurationHours(start, end)
}

// IsWeekend reports whether a shift starts on a Saturday or Sunday
func IsWeekend(s models.Shift) bool {
	wd := s.Start.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsNight reports whether a shift starts late at night or runs into the early morning
func IsNight(s models.Shift) bool {
	if h := s.Start.Hour(); h >= 22 || h < 6 {
		return true
	}
	return s.End.Hour() <= 6 && dayStart(s.End).After(dayStart(s.Start))
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// calendar week (Monday based) containing t
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return dayStart(t).AddDate(0, 0, -offset)
}

// snapshotIndex groups a snapshot's rows by employee so that contexts can
// be built without rescanning the whole snapshot per pair.
type snapshotIndex struct {
	snap         *Snapshot
	employees    []models.Employee
	employeeByID map[int64]models.Employee
	shiftByID    map[int64]models.Shift
	committed    map[int64][]models.Shift
	availability map[int64][]models.AvailabilityEntry
	timeOff      map[int64][]models.TimeOff
	roleHistory  map[int64][]string
}

func newIndex(snap *Snapshot) *snapshotIndex {
	ix := &snapshotIndex{
		snap:         snap,
		employeeByID: make(map[int64]models.Employee, len(snap.Employees)),
		shiftByID:    make(map[int64]models.Shift, len(snap.Shifts)),
		committed:    make(map[int64][]models.Shift),
		availability: make(map[int64][]models.AvailabilityEntry),
		timeOff:      make(map[int64][]models.TimeOff),
		roleHistory:  make(map[int64][]string),
	}

	for _, e := range snap.Employees {
		if !e.Active {
			continue
		}
		ix.employees = append(ix.employees, e)
		ix.employeeByID[e.ID] = e
	}
	sort.Slice(ix.employees, func(i, j int) bool { return ix.employees[i].ID < ix.employees[j].ID })

	for _, s := range snap.Shifts {
		ix.shiftByID[s.ID] = s
		if s.EmployeeID == nil {
			continue
		}
		ix.committed[*s.EmployeeID] = append(ix.committed[*s.EmployeeID], s)
		if s.RequiredRole != "" {
			ix.roleHistory[*s.EmployeeID] = append(ix.roleHistory[*s.EmployeeID], s.RequiredRole)
		}
	}
	for _, a := range snap.Availability {
		ix.availability[a.EmployeeID] = append(ix.availability[a.EmployeeID], a)
	}
	for _, t := range snap.TimeOff {
		ix.timeOff[t.EmployeeID] = append(ix.timeOff[t.EmployeeID], t)
	}
	return ix
}

func (ix *snapshotIndex) preference(employeeID int64) models.EmployeePreference {
	if p, ok := ix.snap.Preferences[employeeID]; ok {
		return p
	}
	return models.DefaultPreference(employeeID)
}

// availabilityFor picks the most restrictive declaration on the days the shift touches
func (ix *snapshotIndex) availabilityFor(shift models.Shift, employeeID int64) models.AvailabilityState {
	from := dayStart(shift.Start)
	to := dayStart(shift.End).AddDate(0, 0, 1)

	state := models.Available
	for _, a := range ix.availability[employeeID] {
		if a.Date.Before(from) || !a.Date.Before(to) {
			continue
		}
		switch a.State {
		case models.Unavailable:
			return models.Unavailable
		case models.PreferNot:
			state = models.PreferNot
		}
	}
	return state
}

func (ix *snapshotIndex) skills(shift models.Shift, e models.Employee) []string {
	history := ix.roleHistory[e.ID]
	skills := make([]string, 0, 1+len(e.Skills)+len(history))
	skills = append(skills, e.Role)
	skills = append(skills, e.Skills...)
	skills = append(skills, history...)

	// Employees still on the generic role with no recorded trade are not
	// held back from any role until their history says otherwise.
	if strings.EqualFold(strings.TrimSpace(e.Role), genericRole) && len(e.Skills) == 0 && len(history) == 0 {
		skills = append(skills, shift.RequiredRole)
	}
	return skills
}

// context derives the scoring inputs of one employee for one shift. Shifts
// that overlap the target are reported as Overlapping and left out of the
// hour totals and rest gaps.
func (ix *snapshotIndex) context(shift models.Shift, e models.Employee) models.EmployeeContext {
	pref := ix.preference(e.ID)
	ec := models.EmployeeContext{
		EmployeeID:   e.ID,
		Name:         e.DisplayName(),
		Availability: ix.availabilityFor(shift, e.ID),
		Skills:       ix.skills(shift, e),
		MinRestHours: ix.snap.Rule.MinRestHours,
		Preference:   pref,
	}
	if pref.SecondaryRole != "" {
		ec.SecondarySkills = []string{pref.SecondaryRole}
	}

	for _, t := range ix.timeOff[e.ID] {
		if Overlap(t.Start, t.End, shift.Start, shift.End) {
			ec.OnTimeOff = true
			break
		}
	}

	day := dayStart(shift.Start)
	week := weekStart(shift.Start)
	historyFrom := shift.Start.Add(-HistoryWindow)

	for _, other := range ix.committed[e.ID] {
		if other.ID == shift.ID {
			continue
		}
		if Overlap(other.Start, other.End, shift.Start, shift.End) {
			ec.Overlapping = true
			continue
		}

		ec.DayHours += overlapHours(other.Start, other.End, day, day.AddDate(0, 0, 1))
		ec.WeekHours += overlapHours(other.Start, other.End, week, week.AddDate(0, 0, 7))

		if !other.Start.Before(historyFrom) && other.Start.Before(shift.Start) {
			ec.RecentHours += other.Hours()
			if IsWeekend(other) {
				ec.WeekendCount++
			}
			if IsNight(other) {
				ec.NightCount++
			}
		}

		if !other.End.After(shift.Start) {
			gap := DurationHours(other.End, shift.Start)
			if ec.GapBeforeHours == nil || gap < *ec.GapBeforeHours {
				ec.GapBeforeHours = &gap
			}
		}
		if !other.Start.Before(shift.End) {
			gap := DurationHours(shift.End, other.Start)
			if ec.GapAfterHours == nil || gap < *ec.GapAfterHours {
				ec.GapAfterHours = &gap
			}
		}
	}
	return ec
}

// evaluate runs the hard constraints for one pair
func (ix *snapshotIndex) evaluate(shift models.Shift, e models.Employee) scoring.Outcome {
	return scoring.Evaluate(shift, ix.context(shift, e), ix.snap.Rule, ix.snap.Settings)
}

// rank evaluates every active employee for a shift
func (ix *snapshotIndex) rank(shift models.Shift, cfg models.ScoringConfig) scoring.Ranking {
	outcomes := make([]scoring.Outcome, 0, len(ix.employees))
	for _, e := range ix.employees {
		outcomes = append(outcomes, ix.evaluate(shift, e))
	}
	return scoring.Rank(shift, outcomes, cfg)
}

// unfilledReasons aggregates why nobody could be recommended for a shift
func unfilledReasons(r scoring.Ranking) []models.Reason {
	var reasons []models.Reason
	for _, ex := range r.Excluded {
		reasons = append(reasons, ex.Reasons...)
	}
	if len(r.BelowThreshold) > 0 {
		reasons = append(reasons, models.ReasonBelowThreshold)
	}
	if len(reasons) == 0 {
		return []models.Reason{models.ReasonNoEligibleCandidates}
	}
	return scoring.SortReasons(reasons)
}
