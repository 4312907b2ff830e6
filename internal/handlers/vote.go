package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"langvote/internal/services"
)

type VoteHandler struct {
	ledger *services.Ledger
}

func NewVoteHandler(ledger *services.Ledger) *VoteHandler {
	return &VoteHandler{ledger: ledger}
}

// Vote 给指定选项投一票，返回投票后的计数
func (h *VoteHandler) Vote(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "option id", "must be a positive integer")
		return
	}

	result, err := h.ledger.CastVote(c.Request.Context(), uint(id))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
