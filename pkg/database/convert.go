package database

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"gorm.io/datatypes"
)

func (s Shift) toModel() models.Shift {
	return models.Shift{
		ID:           s.ID,
		TenantID:     s.TenantID,
		Start:        s.StartTime.UTC(),
		End:          s.EndTime.UTC(),
		RequiredRole: s.RequiredRole,
		Status:       models.ShiftStatus(s.Status),
		EmployeeID:   s.EmployeeID,
		Version:      s.Version,
	}
}

func (e Employee) toModel() (models.Employee, error) {
	m := models.Employee{
		ID:       e.ID,
		TenantID: e.TenantID,
		FullName: e.FullName,
		Email:    e.Email,
		Role:     e.Role,
		Active:   e.Active,
	}
	if len(e.Skills) > 0 && string(e.Skills) != "null" {
		if err := json.Unmarshal(e.Skills, &m.Skills); err != nil {
			return m, fmt.Errorf("employee %d skills: %w", e.ID, err)
		}
	}
	return m, nil
}

// SkillsJSON encodes a skill list for the employees table
func SkillsJSON(skills []string) datatypes.JSON {
	if skills == nil {
		skills = []string{}
	}
	data, _ := json.Marshal(skills)
	return datatypes.JSON(data)
}

func (a Availability) toModel() models.AvailabilityEntry {
	return models.AvailabilityEntry{
		EmployeeID: a.EmployeeID,
		Date:       a.Date.UTC(),
		State:      models.AvailabilityState(strings.ToLower(a.State)),
	}
}

func (t TimeOffRequest) toModel() models.TimeOff {
	return models.TimeOff{EmployeeID: t.EmployeeID, Start: t.StartTime.UTC(), End: t.EndTime.UTC()}
}

func (p EmployeePreference) toModel() models.EmployeePreference {
	return models.EmployeePreference{
		EmployeeID:         p.EmployeeID,
		PreferredStartHour: p.PreferredStartHour,
		PreferredEndHour:   p.PreferredEndHour,
		SecondaryRole:      p.SecondaryRole,
		OpenShiftOptIn:     p.OpenShiftOptIn,
		AutoAssignOptIn:    p.AutoAssignOptIn,
	}
}

func (c ScoringConfig) toModel() models.ScoringConfig {
	return models.ScoringConfig{
		TenantID:          c.TenantID,
		Version:           c.Version,
		Availability:      c.AvailabilityWeight,
		SkillMatch:        c.SkillMatchWeight,
		HoursBalance:      c.HoursBalanceWeight,
		RestMargin:        c.RestMarginWeight,
		WeekendBalance:    c.WeekendBalanceWeight,
		NightBalance:      c.NightBalanceWeight,
		Preference:        c.PreferenceWeight,
		MinScoreThreshold: c.MinScoreThreshold,
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.CreatedAt.UTC(),
	}
}

func scoringConfigRow(c *models.ScoringConfig) ScoringConfig {
	return ScoringConfig{
		TenantID:             c.TenantID,
		Version:              c.Version,
		AvailabilityWeight:   c.Availability,
		SkillMatchWeight:     c.SkillMatch,
		HoursBalanceWeight:   c.HoursBalance,
		RestMarginWeight:     c.RestMargin,
		WeekendBalanceWeight: c.WeekendBalance,
		NightBalanceWeight:   c.NightBalance,
		PreferenceWeight:     c.Preference,
		MinScoreThreshold:    c.MinScoreThreshold,
		CreatedBy:            c.CreatedBy,
		CreatedAt:            c.CreatedAt,
	}
}

func feedbackRow(f *models.OverrideFeedback) (OverrideFeedback, error) {
	original, err := json.Marshal(f.OriginalSubScores)
	if err != nil {
		return OverrideFeedback{}, err
	}
	final, err := json.Marshal(f.FinalSubScores)
	if err != nil {
		return OverrideFeedback{}, err
	}
	return OverrideFeedback{
		TenantID:           f.TenantID,
		ShiftID:            f.ShiftID,
		ConfigVersion:      f.ConfigVersion,
		OriginalEmployeeID: f.OriginalEmployeeID,
		FinalEmployeeID:    f.FinalEmployeeID,
		OriginalSubScores:  datatypes.JSON(original),
		FinalSubScores:     datatypes.JSON(final),
		CreatedAt:          f.CreatedAt,
	}, nil
}

func (f OverrideFeedback) toModel() (models.OverrideFeedback, error) {
	m := models.OverrideFeedback{
		TenantID:           f.TenantID,
		ShiftID:            f.ShiftID,
		ConfigVersion:      f.ConfigVersion,
		OriginalEmployeeID: f.OriginalEmployeeID,
		FinalEmployeeID:    f.FinalEmployeeID,
		CreatedAt:          f.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(f.OriginalSubScores, &m.OriginalSubScores); err != nil {
		return m, fmt.Errorf("feedback %d original scores: %w", f.ID, err)
	}
	if err := json.Unmarshal(f.FinalSubScores, &m.FinalSubScores); err != nil {
		return m, fmt.Errorf("feedback %d final scores: %w", f.ID, err)
	}
	return m, nil
}
