package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.ScoringConfig)
		wantField string
	}{
		{name: "defaults", mutate: func(*models.ScoringConfig) {}},
		{name: "all zero", mutate: func(c *models.ScoringConfig) { *c = models.ScoringConfig{} }},
		{name: "negative weight", mutate: func(c *models.ScoringConfig) { c.NightBalance = -1 }, wantField: "night_balance_weight"},
		{name: "nan weight", mutate: func(c *models.ScoringConfig) { c.SkillMatch = math.NaN() }, wantField: "skill_match_weight"},
		{name: "infinite weight", mutate: func(c *models.ScoringConfig) { c.Preference = math.Inf(1) }, wantField: "preference_weight"},
		{name: "negative threshold", mutate: func(c *models.ScoringConfig) { c.MinScoreThreshold = floatPtr(-0.1) }, wantField: "min_score_threshold"},
		{name: "nan threshold", mutate: func(c *models.ScoringConfig) { c.MinScoreThreshold = floatPtr(math.NaN()) }, wantField: "min_score_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(1)
			tt.mutate(&cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestConfigUpdate_Merge(t *testing.T) {
	cur := DefaultConfig(1)
	cur.Version = 4
	cur.MinScoreThreshold = floatPtr(30)

	next := ConfigUpdate{HoursBalance: floatPtr(40)}.Merge(cur)
	assert.Equal(t, 40.0, next.HoursBalance)
	assert.Equal(t, cur.Availability, next.Availability)
	assert.Equal(t, int64(4), next.Version)
	require.NotNil(t, next.MinScoreThreshold)
	assert.Equal(t, 30.0, *next.MinScoreThreshold)

	cleared := ConfigUpdate{ClearMinScoreThreshold: true}.Merge(cur)
	assert.Nil(t, cleared.MinScoreThreshold)

	// cur must not share the threshold pointer with the merged copy
	raised := ConfigUpdate{MinScoreThreshold: floatPtr(50)}.Merge(cur)
	assert.Equal(t, 50.0, *raised.MinScoreThreshold)
	assert.Equal(t, 30.0, *cur.MinScoreThreshold)
}

func TestConfigUpdate_IsEmpty(t *testing.T) {
	assert.True(t, ConfigUpdate{}.IsEmpty())
	assert.False(t, ConfigUpdate{Preference: floatPtr(0)}.IsEmpty())
	assert.False(t, ConfigUpdate{ClearMinScoreThreshold: true}.IsEmpty())
}

func TestFactorValuesOrder(t *testing.T) {
	vals := FactorValues(Weights(DefaultConfig(1)))
	require.Len(t, vals, len(Factors))
	assert.Equal(t, []float64{25, 25, 20, 15, 10, 10, 5}, vals)
}
