package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"campus_wall/internal/pkg/config"
	"campus_wall/internal/pkg/events"
	"campus_wall/pkg/cache"
	"campus_wall/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client // 可为 nil
	Cache     cache.CacheService
	Publisher events.Publisher
	Metrics   *metrics.MetricsCollector
	Logger    *zap.Logger
	Router    *gin.Engine
	// Lifetime 进程级上下文，后台任务随它退出
	Lifetime context.Context
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	Priority() int
}

var (
	mu             sync.Mutex
	moduleRegistry = make(map[string]Module)
)

// Register 注册模块，重名时后注册的覆盖先注册的
func Register(module Module) {
	mu.Lock()
	defer mu.Unlock()
	moduleRegistry[module.Name()] = module
}

// GetModules 按初始化顺序返回所有已注册的模块
func GetModules() []Module {
	mu.Lock()
	defer mu.Unlock()

	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	// 优先级相同按名称排序，保证启动顺序稳定
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})
	return modules
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	for _, module := range GetModules() {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
		if ctx.Logger != nil {
			ctx.Logger.Info("module initialized", zap.String("module", module.Name()))
		}
	}
	return nil
}
