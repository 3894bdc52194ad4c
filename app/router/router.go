package router

import (
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/aihub/flora-search/app/controllers"
	"github.com/aihub/flora-search/app/middleware"
)

// Deps 路由注入控制器的依赖
type Deps struct {
	Searcher       controllers.Searcher
	Catalog        controllers.Catalog
	MaxUploadBytes int64
	DefaultResults int
	Logger         *zap.Logger
}

// Register 注册过滤器和路由
func Register(h *web.ControllerRegister, deps Deps) {
	h.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)
	if deps.Logger != nil {
		h.InsertFilter("/*", web.BeforeRouter, middleware.RequestStart)
		h.InsertFilter("/*", web.FinishRouter, middleware.RequestLogger(deps.Logger), web.WithReturnOnOutput(false))
	}

	root := &controllers.RootController{}
	h.Add("/", root, web.WithRouterMethods(root, "get:Index"))
	health := &controllers.HealthController{}
	h.Add("/health", health, web.WithRouterMethods(health, "get:Health"))
	metricsController := &controllers.MetricsController{}
	h.Add("/metrics", metricsController, web.WithRouterMethods(metricsController, "get:Metrics"))

	flowers := &controllers.FlowerController{
		Searcher:       deps.Searcher,
		Catalog:        deps.Catalog,
		MaxUploadBytes: deps.MaxUploadBytes,
		DefaultResults: deps.DefaultResults,
	}
	h.Add("/flowers/search/", flowers, web.WithRouterMethods(flowers, "post:Search"))
	h.Add("/flowers/search", flowers, web.WithRouterMethods(flowers, "post:Search"))
	// 具体路由必须在参数路由之前，否则stats会被:id匹配
	h.Add("/flowers/stats", flowers, web.WithRouterMethods(flowers, "get:Stats"))
	h.Add("/flowers/:id", flowers, web.WithRouterMethods(flowers, "get:Get"))
}

// Init 在默认Beego应用上注册路由
func Init(deps Deps) {
	Register(web.BeeApp.Handlers, deps)
}
