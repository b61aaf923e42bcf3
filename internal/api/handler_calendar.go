package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mute-schedule-backend/internal/calendar"
)

// GetCalendarClassification handles GET /api/calendar/{date}?mode=.
// The optional mode overrides the configured classification method so
// operators can compare sources for one date.
func (h *Handler) GetCalendarClassification(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD."})
		return
	}

	method := h.calendar.Method()
	switch mode := c.Query("mode"); mode {
	case "":
	case "offline", "online", "hybrid":
		method = calendar.Method(mode)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid mode. Use offline, online or hybrid."})
		return
	}

	cls, err := h.calendar.ClassifyWith(c.Request.Context(), date, method)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":           c.Param("date"),
		"mode":           string(method),
		"classification": cls,
	})
}
