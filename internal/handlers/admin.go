package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"langvote/internal/services"
)

// AdminHandler 重置与播种。鉴权由部署方在外层处理
type AdminHandler struct {
	ledger *services.Ledger
	seeder *services.Seeder
	trend  *TrendHandler
}

func NewAdminHandler(ledger *services.Ledger, seeder *services.Seeder, trend *TrendHandler) *AdminHandler {
	return &AdminHandler{ledger: ledger, seeder: seeder, trend: trend}
}

func (h *AdminHandler) Reset(c *gin.Context) {
	if err := h.ledger.ResetAll(c.Request.Context()); err != nil {
		RenderError(c, err)
		return
	}
	h.trend.Invalidate()
	c.JSON(http.StatusOK, gin.H{"reset": true, "timestamp": time.Now().UTC()})
}

// Seed 用合成数据替换全部选项和事件，空请求体使用默认参数
func (h *AdminHandler) Seed(c *gin.Context) {
	params := services.DefaultSeedParams
	if err := c.ShouldBindJSON(&params); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "seed params", err.Error())
		return
	}

	result, err := h.seeder.Generate(c.Request.Context(), params)
	if err != nil {
		RenderError(c, err)
		return
	}
	h.trend.Invalidate()
	c.JSON(http.StatusOK, result)
}
