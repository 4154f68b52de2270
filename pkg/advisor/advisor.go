// Package advisor looks at manual overrides of recommendations and proposes
// weight nudges. It only suggests; applying a suggestion goes through the
// normal scoring config update.
package advisor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/arnavshah/shift-assign-api/pkg/scoring"
	"go.uber.org/zap"
)

// Directions a factor's weight may be nudged in
const (
	Increase = "increase"
	Decrease = "decrease"
)

// Settings tune when a pattern counts as consistent
type Settings struct {
	MinSamples  int     `yaml:"minSamples" validate:"gte=1"`
	Consistency float64 `yaml:"consistency" validate:"gt=0,lte=1"`
	Step        float64 `yaml:"step" validate:"gt=0"`
	MaxWeight   float64 `yaml:"maxWeight" validate:"gt=0"`
}

// DefaultSettings require five overrides, 60% of which agree on a direction
func DefaultSettings() Settings {
	return Settings{MinSamples: 5, Consistency: 0.6, Step: 5, MaxWeight: 100}
}

// FeedbackSource reads captured overrides
type FeedbackSource interface {
	OverridesSince(ctx context.Context, tenantID int64, since time.Time) ([]models.OverrideFeedback, error)
}

// ConfigSource resolves the tenant's active weights
type ConfigSource interface {
	Active(ctx context.Context, tenantID int64) (models.ScoringConfig, error)
}

// Change is one proposed weight move
type Change struct {
	Factor    string  `json:"factor"`
	Field     string  `json:"field"`
	Direction string  `json:"direction"`
	Current   float64 `json:"current"`
	Suggested float64 `json:"suggested"`
	Delta     float64 `json:"delta"`
	// Share of overrides that moved this factor in Direction
	Support float64 `json:"support"`
}

// Analysis is the advisor's report for one tenant and window
type Analysis struct {
	AnalysisPeriodDays     int                `json:"analysis_period_days"`
	TotalOverrides         int                `json:"total_overrides"`
	ConfigVersion          int64              `json:"config_version"`
	SuggestionText         string             `json:"suggestion_text"`
	SuggestedWeightChanges map[string]float64 `json:"suggested_weight_changes"`
	Changes                []Change           `json:"changes"`
}

// Advisor compares what managers picked against what the model picked
type Advisor struct {
	source   FeedbackSource
	configs  ConfigSource
	settings Settings
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an advisor
func New(source FeedbackSource, configs ConfigSource, settings Settings, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{
		source:   source,
		configs:  configs,
		settings: settings,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Analyze reads the overrides captured in the last window and proposes a
// nudge for every factor where the chosen employee consistently scored
// higher (or lower) than the model's pick.
func (a *Advisor) Analyze(ctx context.Context, tenantID int64, window time.Duration) (*Analysis, error) {
	if window <= 0 {
		return nil, models.NewValidationError("days", "must be positive")
	}
	days := int(math.Ceil(window.Hours() / 24))

	overrides, err := a.source.OverridesSince(ctx, tenantID, a.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}
	cfg, err := a.configs.Active(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		AnalysisPeriodDays:     days,
		TotalOverrides:         len(overrides),
		ConfigVersion:          cfg.Version,
		SuggestedWeightChanges: map[string]float64{},
		Changes:                []Change{},
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Analyzed %d overrides in the last %d days.", len(overrides), days)

	if len(overrides) < a.settings.MinSamples {
		fmt.Fprintf(&text, " Not enough overrides to suggest changes (need at least %d).", a.settings.MinSamples)
		analysis.SuggestionText = text.String()
		return analysis, nil
	}

	if changes := a.propose(overrides, cfg); len(changes) > 0 {
		analysis.Changes = changes
	} else {
		text.WriteString(" No consistent pattern detected; model performance is stable.")
	}
	for _, c := range analysis.Changes {
		analysis.SuggestedWeightChanges[c.Field] = c.Suggested
		fmt.Fprintf(&text, " %s %s from %g to %g (%.0f%% of overrides).",
			capitalize(c.Direction), c.Field, c.Current, c.Suggested, c.Support*100)
	}
	analysis.SuggestionText = text.String()

	a.logger.Info("override analysis",
		zap.Int64("tenant_id", tenantID),
		zap.Int("overrides", len(overrides)),
		zap.Int("changes", len(analysis.Changes)),
	)
	return analysis, nil
}

func (a *Advisor) propose(overrides []models.OverrideFeedback, cfg models.ScoringConfig) []Change {
	weights := scoring.FactorValues(scoring.Weights(cfg))
	up := make([]int, len(scoring.Factors))
	down := make([]int, len(scoring.Factors))

	for _, o := range overrides {
		final := scoring.FactorValues(o.FinalSubScores)
		original := scoring.FactorValues(o.OriginalSubScores)
		for i := range scoring.Factors {
			switch {
			case final[i] > original[i]:
				up[i]++
			case final[i] < original[i]:
				down[i]++
			}
		}
	}

	n := float64(len(overrides))
	var changes []Change
	for i, factor := range scoring.Factors {
		c := Change{Factor: factor, Field: factor + "_weight", Current: weights[i]}
		switch {
		case float64(up[i])/n >= a.settings.Consistency:
			c.Direction = Increase
			c.Support = float64(up[i]) / n
			c.Suggested = math.Min(weights[i]+a.settings.Step, a.settings.MaxWeight)
		case float64(down[i])/n >= a.settings.Consistency:
			c.Direction = Decrease
			c.Support = float64(down[i]) / n
			c.Suggested = math.Max(weights[i]-a.settings.Step, 0)
		default:
			continue
		}
		if c.Suggested == c.Current {
			continue
		}
		c.Delta = scoring.Round(c.Suggested - c.Current)
		c.Support = scoring.Round(c.Support)
		changes = append(changes, c)
	}
	return changes
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
