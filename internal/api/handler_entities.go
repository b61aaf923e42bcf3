package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mute-schedule-backend/internal/parse"
)

// entityStateResponse is the API shape of one persisted entity state.
type entityStateResponse struct {
	EntityID       string    `json:"entity_id"`
	Muted          bool      `json:"muted"`
	UpdatedAt      time.Time `json:"updated_at"`
	AppliedGroupID string    `json:"applied_group_id"`
}

// ListEntityStates handles GET /api/entities.
func (h *Handler) ListEntityStates(c *gin.Context) {
	states, err := h.store.ListEntityStates(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve entity states"})
		return
	}

	response := make([]entityStateResponse, 0, len(states))
	for _, st := range states {
		response = append(response, entityStateResponse{
			EntityID:       st.EntityID,
			Muted:          st.Muted,
			UpdatedAt:      time.UnixMilli(st.UpdatedAtMs).UTC(),
			AppliedGroupID: st.AppliedGroupID,
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetEntityState handles GET /api/entities/{entity_id}/state.
func (h *Handler) GetEntityState(c *gin.Context) {
	entityID := c.Param("entity_id")

	st, err := h.store.GetEntityState(c.Request.Context(), entityID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve entity state"})
		return
	}
	if st == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No persisted state for entity"})
		return
	}

	c.JSON(http.StatusOK, entityStateResponse{
		EntityID:       st.EntityID,
		Muted:          st.Muted,
		UpdatedAt:      time.UnixMilli(st.UpdatedAtMs).UTC(),
		AppliedGroupID: st.AppliedGroupID,
	})
}

// transitionResponse is the API shape of one historical transition.
type transitionResponse struct {
	Muted         bool      `json:"muted"`
	TriggerTime   string    `json:"trigger_time"` // "HH:MM"
	SourceGroupID string    `json:"source_group_id"`
	LookedBack    bool      `json:"looked_back"`
	AppliedAt     time.Time `json:"applied_at"`
}

// ListTransitions handles GET /api/entities/{entity_id}/transitions.
func (h *Handler) ListTransitions(c *gin.Context) {
	entityID := c.Param("entity_id")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	trs, err := h.store.ListTransitions(c.Request.Context(), entityID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve transitions"})
		return
	}

	response := make([]transitionResponse, 0, len(trs))
	for _, tr := range trs {
		response = append(response, transitionResponse{
			Muted:         tr.Muted,
			TriggerTime:   parse.FormatTimeOfDay(tr.TriggerMinute),
			SourceGroupID: tr.SourceGroupID,
			LookedBack:    tr.LookedBack,
			AppliedAt:     tr.AppliedAt,
		})
	}
	c.JSON(http.StatusOK, response)
}

// CheckEntity handles POST /api/entities/{entity_id}/check. It routes
// through the same resolver/reconciler sequence as the heartbeat.
func (h *Handler) CheckEntity(c *gin.Context) {
	entityID := c.Param("entity_id")

	expected, outcome, err := h.driver.CheckEntity(c.Request.Context(), entityID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"entity_id": entityID,
			"outcome":   string(outcome),
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entity_id": entityID,
		"outcome":   string(outcome),
		"expected": gin.H{
			"muted":           expected.Muted,
			"trigger_time":    parse.FormatTimeOfDay(expected.TriggerMinute),
			"source_group_id": expected.SourceGroupID,
			"looked_back":     expected.LookedBack,
		},
	})
}
