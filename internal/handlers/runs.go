package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/buildwise/takeoff-backend/internal/services"
)

type RunsHandler struct {
	calc services.CalculationService
}

func NewRunsHandler(calc services.CalculationService) *RunsHandler {
	return &RunsHandler{calc: calc}
}

// POST /api/runs
func (h *RunsHandler) Submit(c *gin.Context) {
	var input services.SubmitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	run, err := h.calc.Submit(c.Request.Context(), input)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondCreated(c, gin.H{"run": run})
}

// GET /api/runs/:id
func (h *RunsHandler) Get(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, lines, err := h.calc.Get(c.Request.Context(), runID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"run": run, "lines": lines})
}

// POST /api/runs/:id/cancel
func (h *RunsHandler) Cancel(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, err := h.calc.Cancel(c.Request.Context(), runID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"run": run})
}
