package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"langvote/internal/models"
	"langvote/internal/services"
	"langvote/internal/utils"
)

// MaxTrendWindow 最大可查询的时间窗口
const MaxTrendWindow = 30 * 24 * time.Hour

type TrendHandler struct {
	trend         *services.TrendAggregator
	cache         *utils.TTLCache[[]models.TrendSnapshot]
	ttl           time.Duration
	defaultWindow time.Duration
}

// NewTrendHandler caches each window's snapshots for ttl; zero disables caching.
func NewTrendHandler(trend *services.TrendAggregator, cache *utils.TTLCache[[]models.TrendSnapshot], ttl, defaultWindow time.Duration) *TrendHandler {
	return &TrendHandler{trend: trend, cache: cache, ttl: ttl, defaultWindow: defaultWindow}
}

// Trend handles GET /api/trend?window=<seconds>.
func (h *TrendHandler) Trend(c *gin.Context) {
	window := h.defaultWindow
	if raw := c.Query("window"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds <= 0 || time.Duration(seconds)*time.Second > MaxTrendWindow {
			badRequest(c, "window", "must be a number of seconds between 1 and 2592000")
			return
		}
		window = time.Duration(seconds) * time.Second
	}

	key := strconv.FormatInt(int64(window/time.Second), 10)
	snapshots, ok := h.cache.Get(key)
	if !ok {
		var err error
		snapshots, err = h.trend.CalculateTrend(c.Request.Context(), window)
		if err != nil {
			RenderError(c, err)
			return
		}
		h.cache.Set(key, snapshots, h.ttl)
	}

	c.JSON(http.StatusOK, services.TrendUpdate{
		WindowSeconds: int64(window / time.Second),
		Snapshots:     snapshots,
	})
}

// Invalidate drops every cached window. Called after resets and seeds.
func (h *TrendHandler) Invalidate() {
	h.cache.Purge()
}
