package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/arnavshah/shift-assign-api/pkg/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenant = int64(1)

// The target week starts Monday 3 March 2025
var weekStart0 = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return weekStart0.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

func idPtr(id int64) *int64 { return &id }

func shiftAt(id int64, day, startHour, hours int, role string) models.Shift {
	start := at(day, startHour)
	return models.Shift{
		ID:           id,
		TenantID:     tenant,
		Start:        start,
		End:          start.Add(time.Duration(hours) * time.Hour),
		RequiredRole: role,
		Status:       models.ShiftUnassigned,
		Version:      1,
	}
}

func heldBy(s models.Shift, employeeID int64) models.Shift {
	s.EmployeeID = idPtr(employeeID)
	s.Status = models.ShiftAssigned
	return s
}

func nurse(id int64, name string) models.Employee {
	return models.Employee{ID: id, TenantID: tenant, FullName: name, Role: "nurse", Active: true}
}

// fakeStore keeps the schedule in memory and enforces the same commit
// checks the database adapter does.
type fakeStore struct {
	mu           sync.Mutex
	shifts       []models.Shift
	employees    []models.Employee
	availability []models.AvailabilityEntry
	timeOff      []models.TimeOff
	preferences  map[int64]models.EmployeePreference
	rule         models.ContractRule
	settings     models.TenantSettings

	commits      []DraftCommit
	loads        int
	loadErr      error
	beforeCommit func(*fakeStore)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		preferences: map[int64]models.EmployeePreference{},
		rule:        models.DefaultContractRule(),
		settings:    models.TenantSettings{OpenShiftMode: models.OpenShiftRecommendOnly},
	}
}

func (f *fakeStore) LoadWeek(_ context.Context, tenantID int64, week Week) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}

	snap := &Snapshot{
		TenantID:     tenantID,
		Week:         week,
		Employees:    append([]models.Employee(nil), f.employees...),
		Availability: append([]models.AvailabilityEntry(nil), f.availability...),
		TimeOff:      append([]models.TimeOff(nil), f.timeOff...),
		Preferences:  make(map[int64]models.EmployeePreference, len(f.preferences)),
		Rule:         f.rule,
		Settings:     f.settings,
	}
	for id, p := range f.preferences {
		snap.Preferences[id] = p
	}
	for _, s := range f.shifts {
		if Overlap(s.Start, s.End, week.LoadFrom(), week.LoadUntil()) {
			snap.Shifts = append(snap.Shifts, s)
		}
	}
	return snap, nil
}

func (f *fakeStore) CommitDraft(_ context.Context, c DraftCommit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeCommit != nil {
		f.beforeCommit(f)
	}

	idx := -1
	for i, s := range f.shifts {
		if s.ID == c.ShiftID {
			idx = i
		}
	}
	if idx < 0 {
		return ErrStaleShift
	}
	target := f.shifts[idx]
	if target.Version != c.ExpectedVersion || target.EmployeeID != nil {
		return ErrStaleShift
	}
	for _, s := range f.shifts {
		if s.ID != target.ID && s.EmployeeID != nil && *s.EmployeeID == c.EmployeeID &&
			Overlap(s.Start, s.End, target.Start, target.End) {
			return ErrEmployeeOverlap
		}
	}

	target.EmployeeID = idPtr(c.EmployeeID)
	target.Status = models.ShiftDraft
	target.Version++
	f.shifts[idx] = target
	f.commits = append(f.commits, c)
	return nil
}

func (f *fakeStore) ShiftExists(_ context.Context, _ int64, shiftID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.shifts {
		if s.ID == shiftID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) shift(id int64) models.Shift {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.shifts {
		if s.ID == id {
			return s
		}
	}
	return models.Shift{}
}

type fixedConfig struct {
	cfg models.ScoringConfig
	err error
}

func (f fixedConfig) Active(context.Context, int64) (models.ScoringConfig, error) {
	return f.cfg, f.err
}

func defaultConfigSource() fixedConfig {
	cfg := scoring.DefaultConfig(tenant)
	cfg.Version = 3
	return fixedConfig{cfg: cfg}
}

func TestOverlap(t *testing.T) {
	assert.True(t, Overlap(at(0, 9), at(0, 17), at(0, 16), at(0, 20)))
	assert.False(t, Overlap(at(0, 9), at(0, 17), at(0, 17), at(0, 20)), "touching ends do not overlap")
	assert.False(t, Overlap(at(0, 9), at(0, 17), at(1, 9), at(1, 17)))
}

func TestDurationHours(t *testing.T) {
	assert.Equal(t, 8.0, DurationHours(at(0, 9), at(0, 17)))
	assert.Equal(t, 0.0, DurationHours(at(0, 17), at(0, 9)))
}

func TestIsNightAndWeekend(t *testing.T) {
	assert.True(t, IsNight(shiftAt(1, 0, 22, 8, "")))
	assert.True(t, IsNight(shiftAt(1, 0, 2, 6, "")))
	assert.False(t, IsNight(shiftAt(1, 0, 9, 8, "")))
	assert.True(t, IsNight(models.Shift{Start: at(0, 20), End: at(1, 4)}))

	assert.True(t, IsWeekend(shiftAt(1, 5, 9, 8, "")))
	assert.True(t, IsWeekend(shiftAt(1, 6, 9, 8, "")))
	assert.False(t, IsWeekend(shiftAt(1, 4, 9, 8, "")))
}

func TestParseWeek(t *testing.T) {
	w, err := ParseWeek("2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, weekStart0, w.Start)
	assert.Equal(t, weekStart0.AddDate(0, 0, 7), w.End)
	assert.Equal(t, "2025-03-03", w.String())

	_, err = ParseWeek("03/03/2025")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestContext(t *testing.T) {
	target := shiftAt(10, 1, 9, 8, "nurse") // Tuesday 09-17
	snap := &Snapshot{
		TenantID: tenant,
		Week:     Week{Start: weekStart0, End: weekStart0.AddDate(0, 0, 7)},
		Shifts: []models.Shift{
			target,
			heldBy(shiftAt(11, 0, 9, 8, "nurse"), 1),    // Monday, 16h before
			heldBy(shiftAt(12, -2, 9, 6, "triage"), 1),  // previous Saturday
			heldBy(shiftAt(13, -9, 23, 8, "nurse"), 1),  // two Saturdays ago, nights
			heldBy(shiftAt(14, -40, 9, 8, "nurse"), 1),  // outside the 28 day window
			heldBy(shiftAt(15, 2, 8, 8, "nurse"), 1),    // Wednesday, 15h after
			heldBy(shiftAt(16, 1, 14, 4, "nurse"), 2),   // overlaps for employee 2
			heldBy(shiftAt(17, 1, 0, 4, "nurse"), 2),    // same day, no overlap
		},
		Employees: []models.Employee{nurse(1, "Ana"), nurse(2, "Ben")},
		Availability: []models.AvailabilityEntry{
			{EmployeeID: 1, Date: at(1, 0), State: models.PreferNot},
			{EmployeeID: 2, Date: at(2, 0), State: models.Unavailable},
		},
		TimeOff: []models.TimeOff{{EmployeeID: 2, Start: at(1, 16), End: at(3, 0)}},
		Preferences: map[int64]models.EmployeePreference{
			1: {EmployeeID: 1, SecondaryRole: "porter", OpenShiftOptIn: true},
		},
		Rule: models.DefaultContractRule(),
	}
	ix := newIndex(snap)

	ec := ix.context(target, nurse(1, "Ana"))
	assert.Equal(t, models.PreferNot, ec.Availability)
	assert.False(t, ec.OnTimeOff)
	assert.False(t, ec.Overlapping)
	assert.Equal(t, 0.0, ec.DayHours)
	assert.Equal(t, 16.0, ec.WeekHours)
	assert.Equal(t, 8.0+6.0+8.0, ec.RecentHours)
	assert.Equal(t, 2, ec.WeekendCount)
	assert.Equal(t, 1, ec.NightCount)
	require.NotNil(t, ec.GapBeforeHours)
	assert.Equal(t, 16.0, *ec.GapBeforeHours)
	require.NotNil(t, ec.GapAfterHours)
	assert.Equal(t, 15.0, *ec.GapAfterHours)
	assert.Contains(t, ec.Skills, "triage")
	assert.Equal(t, []string{"porter"}, ec.SecondarySkills)
	assert.Equal(t, 11.0, ec.MinRestHours)

	ec = ix.context(target, nurse(2, "Ben"))
	assert.Equal(t, models.Available, ec.Availability, "the declaration is for another day")
	assert.True(t, ec.OnTimeOff)
	assert.True(t, ec.Overlapping)
	assert.Equal(t, 4.0, ec.DayHours, "overlapping shifts are not counted again")
	assert.True(t, ec.Preference.OpenShiftOptIn)
}

func TestContext_GenericRoleWithoutHistory(t *testing.T) {
	target := shiftAt(10, 1, 9, 8, "barista")
	newcomer := models.Employee{ID: 5, FullName: "New", Role: "Employee", Active: true}
	snap := &Snapshot{Week: Week{Start: weekStart0, End: weekStart0.AddDate(0, 0, 7)}, Rule: models.DefaultContractRule()}

	ec := newIndex(snap).context(target, newcomer)
	assert.Equal(t, scoring.SkillExact, scoring.MatchSkill(target.RequiredRole, ec))

	newcomer.Skills = []string{"cook"}
	ec = newIndex(snap).context(target, newcomer)
	assert.Equal(t, scoring.SkillNone, scoring.MatchSkill(target.RequiredRole, ec))
}

func TestFairnessScore(t *testing.T) {
	assert.Equal(t, 100.0, FairnessScore(nil))
	assert.Equal(t, 100.0, FairnessScore([]float64{0, 0}))
	assert.Equal(t, 100.0, FairnessScore([]float64{8, 8, 8}))
	assert.Equal(t, 0.0, FairnessScore([]float64{16, 0}))
	assert.InDelta(t, 50.0, FairnessScore([]float64{12, 4}), 0.0001)
}
