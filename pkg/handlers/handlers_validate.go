package handlers

import (
	"net/http"

	"github.com/arnavshah/shift-assign-api/pkg/models"
	"github.com/gin-gonic/gin"
)

type validateResponse struct {
	Valid bool `json:"valid"`
	*models.ApplyResult
}

// ValidateAssignments runs every apply check without writing anything
func (h *Handler) ValidateAssignments(c *gin.Context) {
	var req models.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	res, err := h.Reconciler.Validate(c.Request.Context(), tenantOf(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, validateResponse{
		Valid:       len(res.Rejected) == 0,
		ApplyResult: res,
	})
}
