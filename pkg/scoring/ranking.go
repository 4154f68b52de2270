package scoring

import (
	"sort"

	"github.com/arnavshah/shift-assign-api/pkg/models"
)

// Notes attached to a suggestion when the top two candidates tie on total score
const (
	NoteTieRestMargin = "tie broken by larger rest margin"
	NoteTieWeekend    = "tie broken by fewer weekend shifts"
	NoteTieEmployeeID = "tie broken by lower employee id"
)

// Ranking is the ordered result of scoring every employee for one shift
type Ranking struct {
	Candidates     []models.CandidateScore
	BelowThreshold []models.CandidateScore
	Excluded       []models.ExcludedCandidate
	Notes          []string
}

// Top returns the recommended candidate, if any
func (r Ranking) Top() (models.CandidateScore, bool) {
	if len(r.Candidates) == 0 {
		return models.CandidateScore{}, false
	}
	return r.Candidates[0], true
}

// Find looks up an employee among the ranked and below-threshold candidates
func (r Ranking) Find(employeeID int64) (models.CandidateScore, bool) {
	for _, list := range [][]models.CandidateScore{r.Candidates, r.BelowThreshold} {
		for _, c := range list {
			if c.EmployeeID == employeeID {
				return c, true
			}
		}
	}
	return models.CandidateScore{}, false
}

// Rank scores the eligible outcomes, drops those under the threshold into
// diagnostics and orders the rest.
func Rank(shift models.Shift, outcomes []Outcome, cfg models.ScoringConfig) Ranking {
	r := Ranking{
		Candidates:     []models.CandidateScore{},
		BelowThreshold: []models.CandidateScore{},
		Excluded:       []models.ExcludedCandidate{},
		Notes:          []string{},
	}

	var eligible []Candidate
	for _, o := range outcomes {
		switch v := o.(type) {
		case Eligible:
			eligible = append(eligible, v.Candidate)
		case Excluded:
			r.Excluded = append(r.Excluded, models.ExcludedCandidate{EmployeeID: v.EmployeeID, Reasons: v.Reasons})
		}
	}
	sort.Slice(r.Excluded, func(i, j int) bool { return r.Excluded[i].EmployeeID < r.Excluded[j].EmployeeID })

	cohort := NewCohort(eligible)
	for _, cand := range eligible {
		score := Score(shift, cand, cohort, cfg)
		if cfg.MinScoreThreshold != nil && score.TotalScore < *cfg.MinScoreThreshold {
			r.BelowThreshold = append(r.BelowThreshold, score)
			continue
		}
		r.Candidates = append(r.Candidates, score)
	}

	sort.Slice(r.Candidates, func(i, j int) bool { return ranksBefore(r.Candidates[i], r.Candidates[j]) })
	sort.Slice(r.BelowThreshold, func(i, j int) bool { return ranksBefore(r.BelowThreshold[i], r.BelowThreshold[j]) })

	if len(r.Candidates) > 1 {
		if note := tieNote(r.Candidates[0], r.Candidates[1]); note != "" {
			r.Notes = append(r.Notes, note)
		}
	}
	return r
}

// ranksBefore orders by total score, then rest margin, then weekend load, then id
func ranksBefore(a, b models.CandidateScore) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	if a.RestMarginHours != b.RestMarginHours {
		return a.RestMarginHours > b.RestMarginHours
	}
	if a.WeekendCount != b.WeekendCount {
		return a.WeekendCount < b.WeekendCount
	}
	return a.EmployeeID < b.EmployeeID
}

func tieNote(first, second models.CandidateScore) string {
	switch {
	case first.TotalScore != second.TotalScore:
		return ""
	case first.RestMarginHours != second.RestMarginHours:
		return NoteTieRestMargin
	case first.WeekendCount != second.WeekendCount:
		return NoteTieWeekend
	default:
		return NoteTieEmployeeID
	}
}
