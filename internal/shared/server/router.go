package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/audit"
	"docextract-backend/internal/documents"
	"docextract-backend/internal/extractions"
	"docextract-backend/internal/processing"
	"docextract-backend/internal/settings"
	"docextract-backend/internal/shared/config"
	"docextract-backend/internal/shared/metrics"
	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers and middleware state the router wires up.
type RouterDeps struct {
	Config             config.Config
	Limiter            *middleware.Limiter
	AuditSink          *audit.Sink
	DocumentsHandler   *documents.Handler
	ProcessingHandler  *processing.Handler
	SettingsHandler    *settings.Handler
	ExtractionsHandler *extractions.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// The rate limiter runs before authentication and applies only to the
// processing endpoint.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	if deps.Limiter != nil {
		api.Use(middleware.RateLimit(deps.Limiter, deps.AuditSink, func(c *gin.Context) bool {
			return c.FullPath() == "/api/v1/process"
		}))
	}
	api.Use(middleware.Auth())

	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.ProcessingHandler != nil {
		deps.ProcessingHandler.RegisterRoutes(api)
	}
	if deps.SettingsHandler != nil {
		deps.SettingsHandler.RegisterRoutes(api)
	}
	if deps.ExtractionsHandler != nil {
		deps.ExtractionsHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
