package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/models"
)

// Errors a Store reports from CommitDraft when the shift moved under us
var (
	ErrStaleShift      = errors.New("shift changed since it was read")
	ErrEmployeeOverlap = errors.New("employee already holds an overlapping shift")
)

const (
	weekLength = 7 * 24 * time.Hour
	// HistoryWindow is the trailing period used for hours, weekend and night balance
	HistoryWindow = 28 * 24 * time.Hour
	// lookahead covers the next-day neighbours of shifts at the end of the week
	lookahead = 2 * 24 * time.Hour
)

// Week is the half-open interval [Start, End) a preview or apply targets
type Week struct {
	Start time.Time
	End   time.Time
}

// ParseWeek reads a YYYY-MM-DD week start as a UTC midnight
func ParseWeek(s string) (Week, error) {
	start, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Week{}, models.NewValidationError("week_start", "must be a date in YYYY-MM-DD form")
	}
	return Week{Start: start, End: start.Add(weekLength)}, nil
}

// String formats the week by its first day
func (w Week) String() string {
	return w.Start.Format(time.DateOnly)
}

// Overlaps reports whether a shift intersects the week
func (w Week) Overlaps(s models.Shift) bool {
	return Overlap(s.Start, s.End, w.Start, w.End)
}

// LoadFrom is the earliest instant a snapshot has to cover
func (w Week) LoadFrom() time.Time { return w.Start.Add(-HistoryWindow) }

// LoadUntil is the latest instant a snapshot has to cover
func (w Week) LoadUntil() time.Time { return w.End.Add(lookahead) }

// Snapshot is one consistent read of everything a week's scoring depends on
type Snapshot struct {
	TenantID int64
	Week     Week
	// Every shift intersecting [Week.LoadFrom, Week.LoadUntil), assigned or not
	Shifts       []models.Shift
	Employees    []models.Employee
	Availability []models.AvailabilityEntry
	TimeOff      []models.TimeOff
	Preferences  map[int64]models.EmployeePreference
	Rule         models.ContractRule
	Settings     models.TenantSettings
}

// DraftCommit is a single validated pair handed to the store
type DraftCommit struct {
	TenantID        int64
	BatchID         string
	ShiftID         int64
	EmployeeID      int64
	ExpectedVersion int64
	Actor           *int64
	Week            string
	ConfigVersion   int64
	Score           *models.CandidateScore
	Feedback        *models.OverrideFeedback
}

// Store is the persistence boundary of the engine. LoadWeek must read from a
// single transaction. CommitDraft must re-check the expected version, that the
// shift is still empty and that the employee has no overlapping shift, and
// write the audit row and optional feedback in the same transaction.
type Store interface {
	LoadWeek(ctx context.Context, tenantID int64, week Week) (*Snapshot, error)
	CommitDraft(ctx context.Context, commit DraftCommit) error
}
