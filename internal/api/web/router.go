package web

import (
	"net/http"

	"github.com/JrMarcco/jsignage/internal/api/web/handler"
	"github.com/JrMarcco/jsignage/internal/api/web/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	SockJSPrefix = "/realtime"
	WsPath       = "/ws"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

type Handlers struct {
	Config *handler.ConfigHandler
	Order  *handler.OrderHandler
	Admin  *handler.AdminHandler

	// SockJS 与 Ws 为实时推送入口，为 nil 时不注册
	SockJS http.Handler
	Ws     http.Handler
}

type Middlewares struct {
	Auth        *middleware.AuthBuilder
	RateLimiter *middleware.RateLimiter
	Cors        middleware.CorsConfig
}

func NewRouter(engine *gin.Engine, hs Handlers, mws Middlewares, logger *zap.Logger) {
	setupMiddleware(engine, mws, logger)
	setupRoutes(engine, hs, mws)
}

func setupMiddleware(engine *gin.Engine, mws Middlewares, logger *zap.Logger) {
	// recovery 放在最外层
	engine.Use(middleware.Recovery(logger))
	engine.Use(middleware.Cors(mws.Cors))
	engine.Use(middleware.Logging(logger))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(engine *gin.Engine, hs Handlers, mws Middlewares) {
	engine.GET("/healthz", healthCheck)

	if hs.SockJS != nil {
		engine.Any(SockJSPrefix+"/*any", gin.WrapH(hs.SockJS))
	}
	if hs.Ws != nil {
		engine.GET(WsPath, gin.WrapH(hs.Ws))
	}

	apiGroup := engine.Group("/api")
	{
		addRoutes(apiGroup, []route{
			{Method: http.MethodGet, Path: "/status", Handler: hs.Config.Status},
			{Method: http.MethodGet, Path: "/check-birthday", Handler: hs.Config.CheckBirthday},
		})

		orders := apiGroup.Group("/orders")
		{
			addRoutes(orders, []route{
				{Method: http.MethodPost, Path: "/reconcile", Handler: hs.Order.Reconcile},
			})

			authRequired := orders.Group("")
			authRequired.Use(mws.Auth.RequireAuth())
			addRoutes(authRequired, []route{
				{Method: http.MethodPost, Path: "", Handler: hs.Order.Submit, Mw: []gin.HandlerFunc{mws.RateLimiter.Build()}},
				{Method: http.MethodGet, Path: "/:queue_number", Handler: hs.Order.Lookup},
			})
		}

		admin := apiGroup.Group("/admin")
		admin.Use(mws.Auth.RequireAuth(), mws.Auth.RequireAdmin())
		{
			addRoutes(admin, []route{
				{Method: http.MethodPut, Path: "/config", Handler: hs.Config.Update},
				{Method: http.MethodGet, Path: "/config/history", Handler: hs.Config.History},
				{Method: http.MethodGet, Path: "/stats", Handler: hs.Admin.Stats},
				{Method: http.MethodGet, Path: "/nodes", Handler: hs.Admin.Nodes},
			})
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

// chainHandlers 把路由级中间件与处理器合并为一个处理器，中间件中断后不再继续
func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
