package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"langvote/internal/services"
)

type HealthHandler struct {
	ledger *services.Ledger
}

func NewHealthHandler(ledger *services.Ledger) *HealthHandler {
	return &HealthHandler{ledger: ledger}
}

// Health 通过一次只读查询确认存储可用
func (h *HealthHandler) Health(c *gin.Context) {
	if _, err := h.ledger.Options(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
