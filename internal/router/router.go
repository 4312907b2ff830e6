package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"

	"langvote/internal/handlers"
	"langvote/internal/metrics"
	"langvote/internal/middleware"
)

// New builds the engine with recovery, request ids and request logging installed.
func New(h Handlers, logger *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger, m))
	RegisterRoutes(r, h, m.Registry)
	return r
}

// Handlers 路由需要的全部 handler
type Handlers struct {
	Language *handlers.LanguageHandler
	Vote     *handlers.VoteHandler
	Trend    *handlers.TrendHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers, gatherer prometheus.Gatherer) {
	r.GET("/healthz", h.Health.Health)                                                  // 存活检查
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))) // Prometheus 指标

	api := r.Group("/api")
	{
		api.GET("/options", h.Language.List)   // 当前计数
		api.POST("/languages", h.Language.Add) // 新增语言
		api.POST("/votes/:id", h.Vote.Vote)    // 投票
		api.GET("/trend", h.Trend.Trend)       // 趋势快照
	}

	// 管理路由，鉴权由外层负责
	admin := r.Group("/api/admin")
	{
		admin.POST("/reset", h.Admin.Reset) // 清空计数和事件
		admin.POST("/seed", h.Admin.Seed)   // 生成合成历史
	}
}
