package audit

import (
	"errors"

	"campus_wall/internal/pkg/registry"
	"campus_wall/internal/pkg/worker"

	"github.com/jmoiron/sqlx"
)

// AuditModule 计数对账模块
type AuditModule struct{}

func init() {
	registry.Register(&AuditModule{})
}

func (m *AuditModule) Name() string {
	return "audit"
}

func (m *AuditModule) Priority() int {
	return 20
}

func (m *AuditModule) Init(ctx *registry.ModuleContext) error {
	if ctx.Config == nil || !ctx.Config.Audit.Enabled || ctx.Lifetime == nil {
		return nil
	}
	if ctx.DB == nil {
		return errors.New("audit requires a database")
	}
	cfg := ctx.Config.Audit

	sqlDB, err := ctx.DB.DB()
	if err != nil {
		return err
	}
	// 与 gorm 共用连接池
	store := NewStore(sqlx.NewDb(sqlDB, "pgx"))

	pool := worker.NewWorkerPool(cfg.Workers, cfg.BatchSize)
	pool.Start(ctx.Lifetime)

	reconciler := NewReconciler(store, pool, ctx.Metrics, cfg.Interval, cfg.BatchSize)
	if ctx.Config.Wall.EnablePostCache {
		reconciler.Cache = ctx.Cache
	}
	go reconciler.Run(ctx.Lifetime)

	return nil
}
