package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/arnavshah/shift-assign-api/pkg/database"
	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// recordUsage never fails the request; a lost counter is only logged
func (h *Handler) recordUsage(ctx context.Context, tenantID int64, delta database.UsageDelta) {
	if err := h.Store.RecordUsage(ctx, tenantID, delta); err != nil {
		h.Logger.Warn("could not record usage", zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
}

func (h *Handler) preview(c *gin.Context) (*models.PreviewResult, bool) {
	var req models.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	tenantID := tenantOf(c)
	res, err := h.Engine.Preview(c.Request.Context(), tenantID, req)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	h.recordUsage(c.Request.Context(), tenantID, database.UsageDelta{Previews: 1})
	return res, true
}

// Preview returns ranked candidates for every empty shift of a week
func (h *Handler) Preview(c *gin.Context) {
	res, ok := h.preview(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

// PreviewCSV returns the same preview flattened to one CSV row per shift
func (h *Handler) PreviewCSV(c *gin.Context) {
	res, ok := h.preview(c)
	if !ok {
		return
	}

	var out strings.Builder
	writer := csv.NewWriter(&out)
	writer.Write([]string{"shift_id", "recommended_employee_id", "employee_name", "score", "candidates", "excluded", "notes", "unfilled_reasons"})

	unfilled := make(map[int64][]models.Reason, len(res.UnfilledShifts))
	for _, u := range res.UnfilledShifts {
		unfilled[u.ShiftID] = u.Reasons
	}

	for _, s := range res.ShiftSuggestions {
		var employeeID, name, score string
		if s.RecommendedEmployeeID != nil {
			employeeID = strconv.FormatInt(*s.RecommendedEmployeeID, 10)
			name = s.Candidates[0].EmployeeName
		}
		if s.RecommendedScore != nil {
			score = fmt.Sprintf("%.2f", *s.RecommendedScore)
		}
		reasons := make([]string, 0, len(unfilled[s.ShiftID]))
		for _, r := range unfilled[s.ShiftID] {
			reasons = append(reasons, string(r))
		}
		writer.Write([]string{
			strconv.FormatInt(s.ShiftID, 10),
			employeeID,
			name,
			score,
			strconv.Itoa(len(s.Candidates)),
			strconv.Itoa(len(s.Excluded)),
			strings.Join(s.Notes, "|"),
			strings.Join(reasons, "|"),
		})
	}
	writer.Flush()

	c.JSON(http.StatusOK, gin.H{
		"week_start":     res.WeekStart,
		"config_version": res.ScoringConfigUsed.Version,
		"csv":            out.String(),
	})
}

// Apply commits the submitted pairs as draft assignments
func (h *Handler) Apply(c *gin.Context) {
	var req models.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID := tenantOf(c)
	res, err := h.Reconciler.Apply(c.Request.Context(), tenantID, actorOf(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.recordUsage(c.Request.Context(), tenantID, database.UsageDelta{
		Applied:  len(res.Applied),
		Rejected: len(res.Rejected),
	})
	c.JSON(http.StatusOK, res)
}
