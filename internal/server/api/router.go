package api

import (
	"net/http"

	"watcher/internal/server/api/middleware"
	"watcher/internal/server/config"
	"watcher/internal/server/service"
	"watcher/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Router handles all routing logic
type Router struct {
	engine *gin.Engine
	config *config.Config
	logger *zap.Logger
}

// NewRouter creates and configures a new router
func NewRouter(cfg *config.Config, svc *service.Service, logger *zap.Logger) *Router {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	registerValidators()

	r := &Router{
		engine: gin.New(),
		config: cfg,
		logger: logger,
	}

	r.setupMiddleware()
	r.setupRoutes(svc)

	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// registerValidators registers the enum validators used in binding tags
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return types.Severity(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("agentstatus", func(fl validator.FieldLevel) bool {
		return types.AgentStatus(fl.Field().String()).Valid()
	})
}

// setupMiddleware configures all middleware
func (r *Router) setupMiddleware() {
	m := middleware.New(r.config, r.logger)

	r.engine.Use(m.RequestID())
	r.engine.Use(m.Logger())
	r.engine.Use(m.Recovery())
	r.engine.Use(m.Secure())

	if r.config.API.CORS.Enabled {
		r.engine.Use(m.Cors())
	}

	if r.config.API.RateLimit.Enabled {
		r.engine.Use(m.RateLimit())
	}
}

// setupRoutes configures the API routes
func (r *Router) setupRoutes(svc *service.Service) {
	api := NewAPI(svc, r.logger)
	m := middleware.New(r.config, r.logger)

	r.engine.GET("/", api.index)
	r.engine.GET("/health", api.health)

	root := r.engine.Group("/api")
	{
		root.POST("/agents/register", api.registerAgent)
		root.GET("/applications/:id/metrics", api.getMetrics)
		root.GET("/downtimes", api.getDowntimes)
		root.PATCH("/downtimes/:id", api.resolveDowntime)

		dashboard := root.Group("/dashboard")
		{
			dashboard.GET("/agents", api.getDashboardAgents)
			dashboard.GET("/summary", api.getSummary)
		}

		// agent-scoped endpoints require the credential pair
		agents := root.Group("/agents/:id", m.AgentAuth(svc))
		{
			agents.GET("", api.getAgent)
			agents.POST("/heartbeat", api.heartbeat)
			agents.POST("/applications", api.createApplication)
			agents.GET("/applications", api.getApplications)
			agents.POST("/metrics", api.submitMetric)
			agents.POST("/downtimes", api.reportDowntime)
		}
	}
}
