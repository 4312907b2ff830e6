package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"langvote/internal/services"
)

type LanguageHandler struct {
	ledger *services.Ledger
}

func NewLanguageHandler(ledger *services.Ledger) *LanguageHandler {
	return &LanguageHandler{ledger: ledger}
}

type addLanguageRequest struct {
	Name string `json:"name" binding:"required"`
}

// List 返回所有选项，按票数降序
func (h *LanguageHandler) List(c *gin.Context) {
	options, err := h.ledger.Options(c.Request.Context())
	if err != nil {
		RenderError(c, err)
		return
	}

	var total int64
	for _, o := range options {
		total += o.Votes
	}
	c.JSON(http.StatusOK, gin.H{"options": options, "total": total})
}

// Add 注册一个新语言
func (h *LanguageHandler) Add(c *gin.Context) {
	var req addLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name", "a JSON body with a name is required")
		return
	}

	option, err := h.ledger.AddLanguage(c.Request.Context(), req.Name)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, option)
}
