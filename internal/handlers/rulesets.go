package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/buildwise/takeoff-backend/internal/services"
)

type RuleSetsHandler struct {
	registry services.RuleSetRegistry
}

func NewRuleSetsHandler(registry services.RuleSetRegistry) *RuleSetsHandler {
	return &RuleSetsHandler{registry: registry}
}

// GET /api/rulesets/current
func (h *RuleSetsHandler) GetCurrent(c *gin.Context) {
	current, err := h.registry.Current(c.Request.Context())
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"rule_set": current})
}

// GET /api/rulesets/:version
func (h *RuleSetsHandler) GetVersion(c *gin.Context) {
	rs, err := h.registry.Version(c.Request.Context(), c.Param("version"))
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"rule_set": rs})
}

// POST /api/rulesets/:version/promote
func (h *RuleSetsHandler) Promote(c *gin.Context) {
	promoted, err := h.registry.Promote(c.Request.Context(), c.Param("version"))
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"rule_set": promoted})
}
