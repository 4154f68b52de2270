package scheduler

import (
	"context"
	"sort"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"go.uber.org/zap"
)

// NoteOpenShiftRecommendOnly marks open shifts the tenant only wants recommended
const NoteOpenShiftRecommendOnly = "open shift: recommend only"

// ConfigSource resolves the scoring config a tenant is currently on
type ConfigSource interface {
	Active(ctx context.Context, tenantID int64) (models.ScoringConfig, error)
}

// Engine produces read-only assignment previews
type Engine struct {
	store   Store
	configs ConfigSource
	logger  *zap.Logger
}

// NewEngine creates a preview engine
func NewEngine(store Store, configs ConfigSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, configs: configs, logger: logger}
}

// Preview ranks candidates for every empty shift of the requested week.
// Nothing is written; the result only depends on the snapshot and config.
func (e *Engine) Preview(ctx context.Context, tenantID int64, req models.PreviewRequest) (*models.PreviewResult, error) {
	week, err := ParseWeek(req.WeekStart)
	if err != nil {
		return nil, err
	}
	includeOpen := req.IncludeOpenShifts == nil || *req.IncludeOpenShifts

	cfg, err := e.configs.Active(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	snap, err := e.store.LoadWeek(ctx, tenantID, week)
	if err != nil {
		return nil, err
	}

	result := BuildPreview(snap, cfg, includeOpen)
	e.logger.Debug("preview built",
		zap.Int64("tenant_id", tenantID),
		zap.String("week_start", week.String()),
		zap.Int64("config_version", cfg.Version),
		zap.Int("shifts", len(result.ShiftSuggestions)),
		zap.Int("unfilled", len(result.UnfilledShifts)),
	)
	return result, nil
}

// BuildPreview is the pure part of Preview
func BuildPreview(snap *Snapshot, cfg models.ScoringConfig, includeOpen bool) *models.PreviewResult {
	ix := newIndex(snap)
	result := &models.PreviewResult{
		WeekStart:         snap.Week.String(),
		ScoringConfigUsed: cfg,
		ShiftSuggestions:  []models.ShiftSuggestion{},
		UnfilledShifts:    []models.UnfilledShift{},
		FairnessBasis:     models.FairnessBasisRecommended,
	}

	for _, shift := range targetShifts(snap, includeOpen) {
		ranking := ix.rank(shift, cfg)
		sug := models.ShiftSuggestion{
			ShiftID:        shift.ID,
			Candidates:     ranking.Candidates,
			BelowThreshold: ranking.BelowThreshold,
			Excluded:       ranking.Excluded,
			Notes:          ranking.Notes,
		}
		if shift.Status == models.ShiftOpen && snap.Settings.OpenShiftMode != models.OpenShiftAutoAssign {
			sug.Notes = append([]string{NoteOpenShiftRecommendOnly}, sug.Notes...)
		}

		if top, ok := ranking.Top(); ok {
			id, score := top.EmployeeID, top.TotalScore
			sug.RecommendedEmployeeID = &id
			sug.RecommendedScore = &score
		} else {
			result.UnfilledShifts = append(result.UnfilledShifts, models.UnfilledShift{
				ShiftID: shift.ID,
				Reasons: unfilledReasons(ranking),
			})
		}
		result.ShiftSuggestions = append(result.ShiftSuggestions, sug)
	}

	result.FairnessSummary, result.FairnessScore = fairnessSummary(ix, result.ShiftSuggestions)
	return result
}

// targetShifts picks the week's shifts nobody holds, in start order
func targetShifts(snap *Snapshot, includeOpen bool) []models.Shift {
	var out []models.Shift
	for _, s := range snap.Shifts {
		if !s.IsEmpty() || !snap.Week.Overlaps(s) {
			continue
		}
		if s.Status == models.ShiftOpen && !includeOpen {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
