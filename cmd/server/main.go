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

	_ "campus_wall/internal/domain/audit"
	_ "campus_wall/internal/domain/common"
	_ "campus_wall/internal/domain/wall"
	"campus_wall/internal/pkg/config"
	"campus_wall/internal/pkg/events"
	"campus_wall/internal/pkg/middleware"
	"campus_wall/internal/pkg/registry"
	"campus_wall/pkg/cache"
	"campus_wall/pkg/database"
	"campus_wall/pkg/logger"
	"campus_wall/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// 1. 配置与日志
	config.LoadConfig()
	cfg := &config.GlobalConfig

	if err := logger.Init(cfg.App.Env, cfg.App.Debug); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	gin.SetMode(cfg.Server.Mode)

	// 2. 基础设施
	db := database.InitDatabase()
	defer database.Close(db)

	rdb := database.InitRedis()
	defer rdb.Close()

	publisher := events.New(cfg.Kafka)
	defer publisher.Close()

	collector := metrics.NewMetricsCollector(nil)

	lifetime, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 路由与中间件
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.QPS), cfg.RateLimit.Burst)
	go cleanupLimiter(lifetime, limiter)

	r := gin.New()
	r.Use(
		middleware.RecoveryMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(collector),
		cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
		middleware.RateLimitMiddleware(limiter),
	)

	// 4. 模块初始化
	moduleCtx := &registry.ModuleContext{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Cache:     cache.NewRedisCache(rdb, cfg.App.Env),
		Publisher: publisher,
		Metrics:   collector,
		Logger:    logger.L(),
		Router:    r,
		Lifetime:  lifetime,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.L().Fatal("Failed to init modules", zap.Error(err))
	}

	// 5. 启动与优雅退出
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.L().Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info("Shutting down server...")

	// 先停后台任务，再等待在途请求
	stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.L().Error("Server forced to shutdown", zap.Error(err))
	}
	logger.L().Info("Server exited")
}

// cleanupLimiter 定期回收长时间不活跃的 IP 限流器
func cleanupLimiter(ctx context.Context, limiter *middleware.IPRateLimiter) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := limiter.Cleanup(10 * time.Minute); n > 0 {
				logger.L().Debug("rate limiters evicted", zap.Int("count", n))
			}
		}
	}
}
