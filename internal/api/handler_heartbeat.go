package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerHeartbeat handles POST /api/heartbeat: it runs one full
// reconciliation pass synchronously.
func (h *Handler) TriggerHeartbeat(c *gin.Context) {
	h.driver.TickOnce(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}
