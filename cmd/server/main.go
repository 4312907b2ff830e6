package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"langvote/internal/config"
	"langvote/internal/db"
	"langvote/internal/handlers"
	"langvote/internal/metrics"
	"langvote/internal/models"
	"langvote/internal/notify"
	"langvote/internal/router"
	"langvote/internal/services"
	"langvote/internal/store"
	"langvote/internal/store/gormstore"
	"langvote/internal/store/memstore"
	"langvote/internal/utils"
)

// 首次启动时写入的语言
var defaultLanguages = []string{"Python", "JavaScript", "TypeScript", "Java", "Go", "Rust", "C#", "C++"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := utils.DefaultLogConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.OutputPath = cfg.LogFile
	logger, err := utils.NewLogger(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	m := metrics.New()

	// 下游通知：配置了 Redis 就发布到 Redis，同时写日志
	var downstream notify.Notifier = notify.LogNotifier{Logger: logger.Named("events")}
	if cfg.RedisURL != "" {
		redisNotifier, err := notify.NewRedisNotifier(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, events are only logged", zap.Error(err))
		} else {
			defer redisNotifier.Close()
			downstream = notify.Multi{redisNotifier, downstream}
			logger.Info("publishing events to redis", zap.String("channel", notify.DefaultChannel))
		}
	}

	trend := services.NewTrendAggregator(st, logger, m)
	publisher := services.NewTrendPublisher(trend, downstream, logger, cfg.TrendWindow)
	// 写路径只入队，Redis 发布和趋势刷新在后台 worker 中完成
	notifier := notify.NewAsync(notify.Multi{downstream, publisher}, logger, notify.DefaultQueueSize)
	defer notifier.Close()

	ledger := services.NewLedger(st, notifier, logger, m)
	seeder := services.NewSeeder(st, notifier, logger, m, nil)

	if cfg.SeedOnStart {
		if _, err := seeder.Generate(ctx, services.DefaultSeedParams); err != nil {
			logger.Fatal("initial seed failed", zap.Error(err))
		}
	} else if _, err := ledger.EnsureLanguages(ctx, defaultLanguages...); err != nil {
		logger.Fatal("failed to create initial languages", zap.Error(err))
	}

	if err := publisher.Start(cfg.TrendSpec()); err != nil {
		logger.Fatal("failed to start trend publisher", zap.Error(err))
	}
	defer publisher.Stop()

	cache, err := utils.NewTTLCache[[]models.TrendSnapshot](64)
	if err != nil {
		logger.Fatal("failed to create trend cache", zap.Error(err))
	}
	trendHandler := handlers.NewTrendHandler(trend, cache, cfg.TrendCacheTTL, cfg.TrendWindow)

	gin.SetMode(gin.ReleaseMode)
	engine := router.New(router.Handlers{
		Language: handlers.NewLanguageHandler(ledger),
		Vote:     handlers.NewVoteHandler(ledger),
		Trend:    trendHandler,
		Admin:    handlers.NewAdminHandler(ledger, seeder, trendHandler),
		Health:   handlers.NewHealthHandler(ledger),
	}, logger, m)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("langvote server starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}
	conn, err := db.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	return gormstore.New(conn), nil
}
