package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/locks"
	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/arnavshah/shift-assign-api/pkg/scoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ShiftLookup tells a missing shift apart from one outside the loaded week
type ShiftLookup interface {
	ShiftExists(ctx context.Context, tenantID, shiftID int64) (bool, error)
}

// ShiftLockKey names the lock taken on a shift while it is committed
func ShiftLockKey(id int64) string { return fmt.Sprintf("shift:%d", id) }

// EmployeeLockKey names an employee's lock for the calendar week starting at week
func EmployeeLockKey(employeeID int64, week time.Time) string {
	return fmt.Sprintf("employee:%d:%s", employeeID, week.Format(time.DateOnly))
}

// EmployeeLockKeys lists the employee week locks a commit of shift needs:
// every calendar week the shift, padded by the minimum rest on both sides,
// touches. Commits in those weeks can interact through overlap, rest or
// weekly hours; commits elsewhere cannot.
func EmployeeLockKeys(employeeID int64, shift models.Shift, minRest time.Duration) []string {
	var keys []string
	last := weekStart(shift.End.Add(minRest))
	for w := weekStart(shift.Start.Add(-minRest)); !w.After(last); w = w.AddDate(0, 0, 7) {
		keys = append(keys, EmployeeLockKey(employeeID, w))
	}
	return keys
}

// Reconciler commits caller-approved pairs as draft assignments, checking
// each one again against the current state.
type Reconciler struct {
	store   Store
	lookup  ShiftLookup
	configs ConfigSource
	locker  locks.Locker
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// NewReconciler creates a reconciler. lookup may be nil, in which case every
// shift missing from the snapshot is reported as not found.
func NewReconciler(store Store, lookup ShiftLookup, configs ConfigSource, locker locks.Locker, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:   store,
		lookup:  lookup,
		configs: configs,
		locker:  locker,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// pairCheck is the outcome of re-validating one submitted pair
type pairCheck struct {
	reasons  []models.Reason
	shift    models.Shift
	score    *models.CandidateScore
	feedback *models.OverrideFeedback
}

func parseApply(req models.ApplyRequest) (Week, error) {
	if !strings.EqualFold(strings.TrimSpace(req.ApplyTarget), models.ApplyTargetDraft) {
		return Week{}, models.NewValidationError("apply_target", "only %s is supported", models.ApplyTargetDraft)
	}
	return ParseWeek(req.WeekStart)
}

// Apply processes the pairs in request order. Each pair is applied or
// rejected on its own; the batch as a whole is not atomic. An upstream
// failure aborts the call and leaves already committed pairs in place.
// Cancelling ctx does not stop a batch once it has started.
func (r *Reconciler) Apply(ctx context.Context, tenantID int64, actor *int64, req models.ApplyRequest) (*models.ApplyResult, error) {
	ctx = context.WithoutCancel(ctx)

	week, err := parseApply(req)
	if err != nil {
		return nil, err
	}
	cfg, err := r.configs.Active(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &models.ApplyResult{
		BatchID:  r.newID(),
		Applied:  []models.Assignment{},
		Rejected: []models.RejectedAssignment{},
	}
	seen := make(map[int64]bool, len(req.Assignments))

	for _, a := range req.Assignments {
		if seen[a.ShiftID] {
			result.Rejected = append(result.Rejected, reject(a, models.ReasonDuplicateShift))
			continue
		}
		seen[a.ShiftID] = true

		reasons, err := r.applyOne(ctx, tenantID, actor, week, cfg, result.BatchID, a)
		if err != nil {
			return nil, err
		}
		if len(reasons) > 0 {
			result.Rejected = append(result.Rejected, reject(a, reasons...))
			continue
		}
		result.Applied = append(result.Applied, a)
	}

	r.logger.Info("assignments applied",
		zap.Int64("tenant_id", tenantID),
		zap.String("batch_id", result.BatchID),
		zap.String("week_start", week.String()),
		zap.Int("applied", len(result.Applied)),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

func (r *Reconciler) applyOne(ctx context.Context, tenantID int64, actor *int64, week Week, cfg models.ScoringConfig, batchID string, a models.Assignment) ([]models.Reason, error) {
	unlockShift, ok, err := r.locker.TryLock(ctx, ShiftLockKey(a.ShiftID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	if !ok {
		return []models.Reason{models.ReasonStaleLocked}, nil
	}
	defer unlockShift()

	// Read again under the shift lock; whatever the caller previewed may be stale
	snap, err := r.store.LoadWeek(ctx, tenantID, week)
	if err != nil {
		return nil, err
	}
	check, err := r.check(ctx, newIndex(snap), cfg, a)
	if err != nil {
		return nil, err
	}
	if len(check.reasons) > 0 {
		return check.reasons, nil
	}

	minRest := time.Duration(snap.Rule.MinRestHours * float64(time.Hour))
	for _, key := range EmployeeLockKeys(a.EmployeeID, check.shift, minRest) {
		unlock, ok, err := r.locker.TryLock(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
		}
		if !ok {
			return []models.Reason{models.ReasonStaleEmployeeLocked}, nil
		}
		defer unlock()
	}

	// The employee's other work may have moved before their weeks were locked
	if snap, err = r.store.LoadWeek(ctx, tenantID, week); err != nil {
		return nil, err
	}
	if check, err = r.check(ctx, newIndex(snap), cfg, a); err != nil {
		return nil, err
	}
	if len(check.reasons) > 0 {
		return check.reasons, nil
	}

	commit := DraftCommit{
		TenantID:        tenantID,
		BatchID:         batchID,
		ShiftID:         a.ShiftID,
		EmployeeID:      a.EmployeeID,
		ExpectedVersion: check.shift.Version,
		Actor:           actor,
		Week:            week.String(),
		ConfigVersion:   cfg.Version,
		Score:           check.score,
		Feedback:        check.feedback,
	}
	if commit.Feedback != nil {
		commit.Feedback.CreatedAt = r.now()
	}

	switch err := r.store.CommitDraft(ctx, commit); {
	case err == nil:
		return nil, nil
	case errors.Is(err, ErrStaleShift):
		return []models.Reason{models.ReasonStaleVersion}, nil
	case errors.Is(err, ErrEmployeeOverlap):
		return []models.Reason{models.ReasonOverlap}, nil
	default:
		return nil, err
	}
}

// Validate is a dry run of Apply: the same checks against one snapshot,
// without locks or writes. Applied lists the pairs that would go through.
func (r *Reconciler) Validate(ctx context.Context, tenantID int64, req models.ApplyRequest) (*models.ApplyResult, error) {
	week, err := parseApply(req)
	if err != nil {
		return nil, err
	}
	cfg, err := r.configs.Active(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snap, err := r.store.LoadWeek(ctx, tenantID, week)
	if err != nil {
		return nil, err
	}
	ix := newIndex(snap)

	result := &models.ApplyResult{
		Applied:  []models.Assignment{},
		Rejected: []models.RejectedAssignment{},
	}
	seen := make(map[int64]bool, len(req.Assignments))
	for _, a := range req.Assignments {
		if seen[a.ShiftID] {
			result.Rejected = append(result.Rejected, reject(a, models.ReasonDuplicateShift))
			continue
		}
		seen[a.ShiftID] = true

		check, err := r.check(ctx, ix, cfg, a)
		if err != nil {
			return nil, err
		}
		if len(check.reasons) > 0 {
			result.Rejected = append(result.Rejected, reject(a, check.reasons...))
			continue
		}
		result.Applied = append(result.Applied, a)
	}
	return result, nil
}

// check re-runs the shift state checks and the hard constraints for one pair
func (r *Reconciler) check(ctx context.Context, ix *snapshotIndex, cfg models.ScoringConfig, a models.Assignment) (pairCheck, error) {
	week := ix.snap.Week
	shift, ok := ix.shiftByID[a.ShiftID]
	if !ok {
		if r.lookup != nil {
			exists, err := r.lookup.ShiftExists(ctx, ix.snap.TenantID, a.ShiftID)
			if err != nil {
				return pairCheck{}, err
			}
			if exists {
				return pairCheck{reasons: []models.Reason{models.ReasonOutsideWeek}}, nil
			}
		}
		return pairCheck{reasons: []models.Reason{models.ReasonShiftNotFound}}, nil
	}
	if !week.Overlaps(shift) {
		return pairCheck{reasons: []models.Reason{models.ReasonOutsideWeek}}, nil
	}

	emp, ok := ix.employeeByID[a.EmployeeID]
	if !ok {
		return pairCheck{reasons: []models.Reason{models.ReasonEmployeeNotFound}}, nil
	}
	if !shift.IsEmpty() {
		return pairCheck{reasons: []models.Reason{models.ReasonStaleNotOpen}}, nil
	}

	if ex, excluded := ix.evaluate(shift, emp).(scoring.Excluded); excluded {
		return pairCheck{reasons: ex.Reasons}, nil
	}

	check := pairCheck{shift: shift}
	ranking := ix.rank(shift, cfg)
	if chosen, ok := ranking.Find(emp.ID); ok {
		check.score = &chosen
		if top, ok := ranking.Top(); ok && top.EmployeeID != emp.ID {
			check.feedback = &models.OverrideFeedback{
				TenantID:           ix.snap.TenantID,
				ShiftID:            shift.ID,
				ConfigVersion:      cfg.Version,
				OriginalEmployeeID: top.EmployeeID,
				FinalEmployeeID:    emp.ID,
				OriginalSubScores:  top.SubScores,
				FinalSubScores:     chosen.SubScores,
			}
		}
	}
	return check, nil
}

func reject(a models.Assignment, reasons ...models.Reason) models.RejectedAssignment {
	return models.RejectedAssignment{ShiftID: a.ShiftID, EmployeeID: a.EmployeeID, Reasons: reasons}
}
