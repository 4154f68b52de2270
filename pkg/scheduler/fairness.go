package scheduler

import (
	"math"
	"sort"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/arnavshah/shift-assign-api/pkg/scoring"
)

// FairnessScore returns a percentage (0-100) representing how evenly
// hours are spread. 100% is perfectly fair (Standard Deviation = 0).
func FairnessScore(hours []float64) float64 {
	if len(hours) == 0 {
		return 100.0
	}

	var sum float64
	for _, h := range hours {
		sum += h
	}

	if sum == 0 {
		return 100.0 // Nobody recommended is trivially fair
	}

	mean := sum / float64(len(hours))

	var varianceSum float64
	for _, h := range hours {
		diff := h - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(hours)))

	// 100% means SD is 0. 0% means SD is >= mean.
	score := (1.0 - (stdDev / mean)) * 100.0
	if score < 0 {
		return 0.0
	}
	return scoring.Round(score)
}

// fairnessSummary tallies the recommended, not yet applied, shifts per
// employee. Rows are ordered by shift count, busiest first.
func fairnessSummary(ix *snapshotIndex, suggestions []models.ShiftSuggestion) ([]models.FairnessRow, float64) {
	rows := make(map[int64]*models.FairnessRow)
	for _, sug := range suggestions {
		if sug.RecommendedEmployeeID == nil {
			continue
		}
		shift, okShift := ix.shiftByID[sug.ShiftID]
		emp, okEmp := ix.employeeByID[*sug.RecommendedEmployeeID]
		if !okShift || !okEmp {
			continue
		}
		row, ok := rows[emp.ID]
		if !ok {
			row = &models.FairnessRow{EmployeeID: emp.ID, EmployeeName: emp.DisplayName()}
			rows[emp.ID] = row
		}
		row.RecommendedShiftCount++
		row.RecommendedHours += shift.Hours()
	}

	summary := make([]models.FairnessRow, 0, len(rows))
	for _, row := range rows {
		row.RecommendedHours = math.Round(row.RecommendedHours*100) / 100
		summary = append(summary, *row)
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].RecommendedShiftCount != summary[j].RecommendedShiftCount {
			return summary[i].RecommendedShiftCount > summary[j].RecommendedShiftCount
		}
		return summary[i].EmployeeID < summary[j].EmployeeID
	})

	// Every active employee counts towards the spread, recommended or not
	hours := make([]float64, 0, len(ix.employees))
	for _, e := range ix.employees {
		if row, ok := rows[e.ID]; ok {
			hours = append(hours, row.RecommendedHours)
		} else {
			hours = append(hours, 0)
		}
	}
	return summary, FairnessScore(hours)
}
