package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/locks"
	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(f *fakeStore, locker locks.Locker) *Reconciler {
	r := NewReconciler(f, f, defaultConfigSource(), locker, zap.NewNop())
	r.now = func() time.Time { return fixedNow }
	return r
}

func draftRequest(pairs ...models.Assignment) models.ApplyRequest {
	return models.ApplyRequest{WeekStart: "2025-03-03", Assignments: pairs, ApplyTarget: models.ApplyTargetDraft}
}

func pair(shiftID, employeeID int64) models.Assignment {
	return models.Assignment{ShiftID: shiftID, EmployeeID: employeeID}
}

type failingLocker struct{}

func (failingLocker) TryLock(context.Context, string) (func(), bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestApply_CommitsDraft(t *testing.T) {
	f := weekFixture()
	r := newTestReconciler(f, locks.NewMemoryLocker())
	actor := int64(77)

	res, err := r.Apply(context.Background(), tenant, &actor, draftRequest(pair(5, 1)))
	require.NoError(t, err)

	assert.Equal(t, []models.Assignment{pair(5, 1)}, res.Applied)
	assert.Empty(t, res.Rejected)
	assert.NotEmpty(t, res.BatchID)

	shift := f.shift(5)
	require.NotNil(t, shift.EmployeeID)
	assert.Equal(t, int64(1), *shift.EmployeeID)
	assert.Equal(t, models.ShiftDraft, shift.Status)

	require.Len(t, f.commits, 1)
	c := f.commits[0]
	assert.Equal(t, res.BatchID, c.BatchID)
	assert.Equal(t, int64(1), c.ExpectedVersion)
	assert.Equal(t, int64(3), c.ConfigVersion)
	assert.Equal(t, &actor, c.Actor)
	assert.Equal(t, "2025-03-03", c.Week)
	require.NotNil(t, c.Score)
	assert.Equal(t, 105.0, c.Score.TotalScore)
	assert.Nil(t, c.Feedback, "the top pick is not an override")
}

func TestApply_RecordsOverride(t *testing.T) {
	f := weekFixture()
	r := newTestReconciler(f, locks.NewMemoryLocker())

	res, err := r.Apply(context.Background(), tenant, nil, draftRequest(pair(5, 2)))
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)

	require.Len(t, f.commits, 1)
	fb := f.commits[0].Feedback
	require.NotNil(t, fb)
	assert.Equal(t, int64(1), fb.OriginalEmployeeID)
	assert.Equal(t, int64(2), fb.FinalEmployeeID)
	assert.Equal(t, int64(3), fb.ConfigVersion)
	assert.Equal(t, 1.0, fb.OriginalSubScores.HoursBalance)
	assert.Equal(t, 0.0, fb.FinalSubScores.HoursBalance)
	assert.Equal(t, fixedNow, fb.CreatedAt)
}

func TestApply_Rejections(t *testing.T) {
	tests := []struct {
		name string
		pair models.Assignment
		want []models.Reason
	}{
		{"unknown shift", pair(999, 1), []models.Reason{models.ReasonShiftNotFound}},
		{"shift next week", pair(30, 1), []models.Reason{models.ReasonOutsideWeek}},
		{"shift not loaded", pair(31, 1), []models.Reason{models.ReasonOutsideWeek}},
		{"unknown employee", pair(5, 404), []models.Reason{models.ReasonEmployeeNotFound}},
		{"inactive employee", pair(5, 20), []models.Reason{models.ReasonEmployeeNotFound}},
		{"already held", pair(6, 1), []models.Reason{models.ReasonStaleNotOpen}},
		{"unavailable", pair(5, 3), []models.Reason{models.ReasonUnavailable}},
		{"overlap", pair(5, 9), []models.Reason{models.ReasonOverlap}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := weekFixture()
			f.shifts = append(f.shifts, shiftAt(30, 8, 9, 8, "nurse"), shiftAt(31, 60, 9, 8, "nurse"))
			r := newTestReconciler(f, locks.NewMemoryLocker())

			res, err := r.Apply(context.Background(), tenant, nil, draftRequest(tt.pair))
			require.NoError(t, err)
			assert.Empty(t, res.Applied)
			assert.Equal(t, []models.RejectedAssignment{{ShiftID: tt.pair.ShiftID, EmployeeID: tt.pair.EmployeeID, Reasons: tt.want}}, res.Rejected)
			assert.Empty(t, f.commits)
		})
	}
}

func TestApply_SecondApplyIsStale(t *testing.T) {
	f := weekFixture()
	r := newTestReconciler(f, locks.NewMemoryLocker())

	_, err := r.Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
	require.NoError(t, err)

	res, err := r.Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, []models.Reason{models.ReasonStaleNotOpen}, res.Rejected[0].Reasons)
}

func TestApply_DuplicateShiftInBatch(t *testing.T) {
	f := weekFixture()
	r := newTestReconciler(f, locks.NewMemoryLocker())

	res, err := r.Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1), pair(5, 2)))
	require.NoError(t, err)
	assert.Equal(t, []models.Assignment{pair(5, 1)}, res.Applied)
	assert.Equal(t, []models.RejectedAssignment{{ShiftID: 5, EmployeeID: 2, Reasons: []models.Reason{models.ReasonDuplicateShift}}}, res.Rejected)
}

func TestApply_Target(t *testing.T) {
	r := newTestReconciler(weekFixture(), locks.NewMemoryLocker())

	for _, target := range []string{"", "PUBLISHED", "live"} {
		req := draftRequest(pair(5, 1))
		req.ApplyTarget = target
		_, err := r.Apply(context.Background(), tenant, nil, req)
		require.Error(t, err, target)
		assert.True(t, models.IsValidation(err))
	}

	req := draftRequest(pair(5, 1))
	req.ApplyTarget = "draft"
	res, err := r.Apply(context.Background(), tenant, nil, req)
	require.NoError(t, err)
	assert.Len(t, res.Applied, 1)
}

func TestApply_Locks(t *testing.T) {
	t.Run("shift held elsewhere", func(t *testing.T) {
		locker := locks.NewMemoryLocker()
		unlock, ok, err := locker.TryLock(context.Background(), ShiftLockKey(5))
		require.NoError(t, err)
		require.True(t, ok)
		defer unlock()

		res, err := newTestReconciler(weekFixture(), locker).Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
		require.NoError(t, err)
		assert.Equal(t, []models.Reason{models.ReasonStaleLocked}, res.Rejected[0].Reasons)
	})

	t.Run("employee held elsewhere", func(t *testing.T) {
		locker := locks.NewMemoryLocker()
		unlock, ok, err := locker.TryLock(context.Background(), EmployeeLockKey(1, weekStart0))
		require.NoError(t, err)
		require.True(t, ok)
		defer unlock()

		res, err := newTestReconciler(weekFixture(), locker).Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
		require.NoError(t, err)
		assert.Equal(t, []models.Reason{models.ReasonStaleEmployeeLocked}, res.Rejected[0].Reasons)
		assert.False(t, locker.Held(ShiftLockKey(5)), "shift lock released after rejection")
	})

	t.Run("released after commit", func(t *testing.T) {
		locker := locks.NewMemoryLocker()
		_, err := newTestReconciler(weekFixture(), locker).Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
		require.NoError(t, err)
		assert.False(t, locker.Held(ShiftLockKey(5)))
		assert.False(t, locker.Held(EmployeeLockKey(1, weekStart0)))
	})

	t.Run("employee busy in another week", func(t *testing.T) {
		locker := locks.NewMemoryLocker()
		unlock, ok, err := locker.TryLock(context.Background(), EmployeeLockKey(1, weekStart0.AddDate(0, 0, 14)))
		require.NoError(t, err)
		require.True(t, ok)
		defer unlock()

		res, err := newTestReconciler(weekFixture(), locker).Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
		require.NoError(t, err)
		assert.Equal(t, []models.Assignment{pair(5, 1)}, res.Applied)
	})
}

func TestEmployeeLockKeys(t *testing.T) {
	rest := 11 * time.Hour
	tests := []struct {
		name  string
		shift models.Shift
		want  []string
	}{
		{"midweek", shiftAt(1, 2, 9, 8, "nurse"), []string{"employee:4:2025-03-03"}},
		{"monday morning reaches back", shiftAt(2, 0, 6, 8, "nurse"), []string{"employee:4:2025-02-24", "employee:4:2025-03-03"}},
		{"sunday night reaches forward", shiftAt(3, 6, 20, 8, "nurse"), []string{"employee:4:2025-03-03", "employee:4:2025-03-10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmployeeLockKeys(4, tt.shift, rest))
		})
	}
}

// cancelAfterCommit cancels the caller's context once the first pair is stored
type cancelAfterCommit struct {
	*fakeStore
	cancel context.CancelFunc
}

func (c cancelAfterCommit) CommitDraft(ctx context.Context, commit DraftCommit) error {
	err := c.fakeStore.CommitDraft(ctx, commit)
	c.cancel()
	return err
}

func TestApply_CancelledMidBatch(t *testing.T) {
	f := weekFixture()
	f.shifts = append(f.shifts, shiftAt(40, 3, 9, 8, "nurse"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := cancelAfterCommit{fakeStore: f, cancel: cancel}
	r := NewReconciler(store, f, defaultConfigSource(), locks.NewMemoryLocker(), zap.NewNop())

	res, err := r.Apply(ctx, tenant, nil, draftRequest(pair(5, 1), pair(40, 2)))
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, []models.Assignment{pair(5, 1), pair(40, 2)}, res.Applied)
	assert.Empty(t, res.Rejected)
	assert.Len(t, f.commits, 2)
}

func TestApply_StoreDetectsConcurrentChange(t *testing.T) {
	t.Run("version moved", func(t *testing.T) {
		f := weekFixture()
		f.beforeCommit = func(f *fakeStore) { f.shifts[0].Version++ }

		res, err := newTestReconciler(f, locks.NewMemoryLocker()).Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
		require.NoError(t, err)
		assert.Equal(t, []models.Reason{models.ReasonStaleVersion}, res.Rejected[0].Reasons)
	})

	t.Run("employee booked meanwhile", func(t *testing.T) {
		f := weekFixture()
		f.beforeCommit = func(f *fakeStore) {
			f.shifts = append(f.shifts, heldBy(shiftAt(50, 1, 10, 2, "nurse"), 1))
		}

		res, err := newTestReconciler(f, locks.NewMemoryLocker()).Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
		require.NoError(t, err)
		assert.Equal(t, []models.Reason{models.ReasonOverlap}, res.Rejected[0].Reasons)
		assert.Empty(t, f.commits)
	})
}

func TestApply_UpstreamFailureAborts(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		f := weekFixture()
		f.loadErr = models.ErrUpstreamUnavailable
		_, err := newTestReconciler(f, locks.NewMemoryLocker()).Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
		assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	})

	t.Run("lock backend", func(t *testing.T) {
		_, err := newTestReconciler(weekFixture(), failingLocker{}).Apply(context.Background(), tenant, nil, draftRequest(pair(5, 1)))
		assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	})
}

func TestApply_ConcurrentSameShift(t *testing.T) {
	for i := 0; i < 25; i++ {
		f := weekFixture()
		locker := locks.NewMemoryLocker()
		first := newTestReconciler(f, locker)
		second := newTestReconciler(f, locker)

		var wg sync.WaitGroup
		results := make([]*models.ApplyResult, 2)
		start := make(chan struct{})
		for n, job := range []struct {
			r *Reconciler
			a models.Assignment
		}{{first, pair(5, 1)}, {second, pair(5, 2)}} {
			wg.Add(1)
			go func(n int, r *Reconciler, a models.Assignment) {
				defer wg.Done()
				<-start
				res, err := r.Apply(context.Background(), tenant, nil, draftRequest(a))
				assert.NoError(t, err)
				results[n] = res
			}(n, job.r, job.a)
		}
		close(start)
		wg.Wait()

		applied, rejected := 0, 0
		for _, res := range results {
			require.NotNil(t, res)
			applied += len(res.Applied)
			for _, rej := range res.Rejected {
				rejected++
				assert.Contains(t, []models.Reason{models.ReasonStaleLocked, models.ReasonStaleNotOpen}, rej.Reasons[0])
			}
		}
		assert.Equal(t, 1, applied)
		assert.Equal(t, 1, rejected)
		assert.Len(t, f.commits, 1)
	}
}

func TestApply_ConcurrentSameEmployee(t *testing.T) {
	for i := 0; i < 25; i++ {
		f := weekFixture()
		f.shifts = append(f.shifts, shiftAt(60, 1, 10, 4, "nurse"))
		locker := locks.NewMemoryLocker()
		r := newTestReconciler(f, locker)

		var wg sync.WaitGroup
		results := make(chan *models.ApplyResult, 2)
		for _, a := range []models.Assignment{pair(5, 1), pair(60, 1)} {
			wg.Add(1)
			go func(a models.Assignment) {
				defer wg.Done()
				res, err := r.Apply(context.Background(), tenant, nil, draftRequest(a))
				assert.NoError(t, err)
				results <- res
			}(a)
		}
		wg.Wait()
		close(results)

		applied := 0
		for res := range results {
			applied += len(res.Applied)
			for _, rej := range res.Rejected {
				assert.Contains(t, []models.Reason{models.ReasonStaleEmployeeLocked, models.ReasonOverlap}, rej.Reasons[0])
			}
		}
		assert.Equal(t, 1, applied, "an employee never ends up on two overlapping shifts")
	}
}

func TestValidate_MatchesApply(t *testing.T) {
	req := draftRequest(pair(5, 3), pair(5, 1), pair(999, 1), pair(40, 1), pair(41, 9))

	build := func() *fakeStore {
		f := weekFixture()
		f.shifts = append(f.shifts, shiftAt(40, 3, 9, 8, "nurse"), shiftAt(41, 1, 18, 4, "nurse"))
		return f
	}

	f := build()
	validated, err := newTestReconciler(f, locks.NewMemoryLocker()).Validate(context.Background(), tenant, req)
	require.NoError(t, err)
	assert.Empty(t, f.commits, "validate never writes")
	assert.Empty(t, validated.BatchID)

	applied, err := newTestReconciler(build(), locks.NewMemoryLocker()).Apply(context.Background(), tenant, nil, req)
	require.NoError(t, err)

	assert.Equal(t, validated.Applied, applied.Applied)
	assert.Equal(t, validated.Rejected, applied.Rejected)
	assert.Equal(t, []models.Assignment{pair(40, 1)}, applied.Applied)
	assert.Equal(t, []models.RejectedAssignment{
		{ShiftID: 5, EmployeeID: 3, Reasons: []models.Reason{models.ReasonUnavailable}},
		{ShiftID: 5, EmployeeID: 1, Reasons: []models.Reason{models.ReasonDuplicateShift}},
		{ShiftID: 999, EmployeeID: 1, Reasons: []models.Reason{models.ReasonShiftNotFound}},
		{ShiftID: 41, EmployeeID: 9, Reasons: []models.Reason{models.ReasonOverlap}},
	}, applied.Rejected)
}
