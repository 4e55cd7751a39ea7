package wall

import (
	"campus_wall/internal/domain/wall/handler"
	"campus_wall/internal/domain/wall/repository"
	"campus_wall/internal/domain/wall/service"
	"campus_wall/internal/pkg/middleware"
	"campus_wall/internal/pkg/registry"
)

// WallModule 墙模块：帖子、评论、点赞与隐藏
type WallModule struct{}

func init() {
	registry.Register(&WallModule{})
}

func (m *WallModule) Name() string {
	return "wall"
}

func (m *WallModule) Priority() int {
	return 10
}

func (m *WallModule) Init(ctx *registry.ModuleContext) error {
	if err := handler.RegisterValidators(); err != nil {
		return err
	}

	// 1. 依赖注入
	opts := service.Options{
		Publisher: ctx.Publisher,
		Metrics:   ctx.Metrics,
		Logger:    ctx.Logger,
	}
	if cfg := ctx.Config; cfg != nil {
		opts.PageDefault = cfg.Wall.PageDefault
		opts.PageMax = cfg.Wall.PageMax
		opts.MaxTextLength = cfg.Wall.MaxTextLength
		opts.ConflictRetry = cfg.Wall.ConflictRetry
		opts.CacheTTL = cfg.Wall.PostCacheTTL
		if cfg.Wall.EnablePostCache {
			opts.Cache = ctx.Cache
		}
	}

	wRepo := repository.NewWallRepository(ctx.DB)
	wService := service.NewWallService(wRepo, opts)
	wHandler := handler.NewWallHandler(wService)

	// 2. 路由注册，全部接口需要登录
	handler.RegisterRoutes(ctx.Router.Group("/posts", middleware.AuthMiddleware()), wHandler)

	return nil
}
