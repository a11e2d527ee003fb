package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buildwise/takeoff-backend/internal/services"
)

type EstimateHandler struct {
	estimates services.EstimateService
}

func NewEstimateHandler(estimates services.EstimateService) *EstimateHandler {
	return &EstimateHandler{estimates: estimates}
}

// POST /api/estimates
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var input services.EstimateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	est, err := h.estimates.Estimate(c.Request.Context(), input)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"estimate": est})
}
