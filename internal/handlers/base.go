package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"langvote/internal/errs"
)

// RenderError 把领域错误映射成 HTTP 状态码和 JSON 错误体
func RenderError(c *gin.Context, err error) {
	_ = c.Error(err)

	var dup *errs.DuplicateLanguageError
	switch {
	case errors.As(err, &dup):
		suggestions := dup.Suggestions
		if suggestions == nil {
			suggestions = []string{}
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":       msg(err),
			"existing":    dup.Existing,
			"suggestions": suggestions,
		})
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": msg(err)})
	case errors.Is(err, errs.ErrOptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msg(err)})
	case errors.Is(err, errs.ErrTransactionAborted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, field, reason string) {
	RenderError(c, &errs.ValidationError{Field: field, Reason: reason})
}

func msg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
