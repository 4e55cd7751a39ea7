package common

import (
	"context"
	"net/http"
	"time"

	"campus_wall/internal/pkg/registry"
	"campus_wall/pkg/database"
	"campus_wall/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// CommonModule 运维接口：健康检查、指标与连接池监控
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	setupRoutes(ctx.Router, ctx.DB)

	if ctx.DB == nil || ctx.Lifetime == nil {
		return nil
	}
	sqlDB, err := ctx.DB.DB()
	if err != nil {
		return err
	}
	monitor := database.NewPoolMonitor(sqlDB, database.PoolMonitorConfig{AlertThreshold: 80})
	if err := monitor.Register(prometheus.DefaultRegisterer, "campus_wall"); err != nil {
		return err
	}
	monitor.Start(ctx.Lifetime)
	return nil
}

func setupRoutes(r *gin.Engine, db *gorm.DB) {
	r.GET("/health", healthHandler(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthHandler 数据库不可达时返回 503
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, "database unavailable")
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	}
}
