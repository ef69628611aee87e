// Package server assembles the gin engine: middleware chain, route table,
// and the handler set each route dispatches to.
package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/batchcoord/internal/http/handlers"
	"github.com/yungbote/batchcoord/internal/http/middleware"
	"github.com/yungbote/batchcoord/internal/platform/logger"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Nodes    *handlers.NodeHandler
	Tasks    *handlers.TaskHandler
	Folders  *handlers.FolderHandler
	Locks    *handlers.FileLockHandler
	Health   *handlers.HealthHandler
	Realtime *handlers.RealtimeHandler
}

// NewRouter wires §6's full route table behind the middleware chain:
// trace propagation, structured request logging, CORS, optional otel
// tracing, then auth enforcement on everything except auth and health
// (the /events stream sits behind RequireAuth in its own group).
func NewRouter(h Handlers, auth *middleware.AuthMiddleware, log *logger.Logger, corsOrigins string, otelEnabled bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(corsOrigins))
	if otelEnabled {
		r.Use(otelgin.Middleware("batchcoord"))
	}

	r.GET("/api/health", h.Health.Get)

	api := r.Group("/api")
	{
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
	}

	protected := r.Group("/api")
	protected.Use(auth.RequireAuth())
	{
		protected.POST("/nodes/heartbeat", h.Nodes.Heartbeat)
		protected.GET("/nodes", h.Nodes.List)

		protected.GET("/tasks", h.Tasks.List)
		protected.GET("/tasks/:id", h.Tasks.Get)
		protected.POST("/tasks", h.Tasks.Create)
		protected.PUT("/tasks/:id", h.Tasks.Update)
		protected.DELETE("/tasks/:id", h.Tasks.Delete)

		protected.GET("/tasks/:id/folders", h.Folders.List)
		protected.POST("/tasks/:id/folders", h.Folders.Create)
		protected.PUT("/folders/:id", h.Folders.Update)

		protected.POST("/filelocks/acquire", h.Locks.Acquire)
		protected.POST("/filelocks/release", h.Locks.Release)
		protected.GET("/filelocks", h.Locks.List)
		protected.POST("/filelocks/reset", auth.RequireAdmin(), h.Locks.Reset)
	}

	events := r.Group("/events")
	events.Use(auth.RequireAuth())
	events.GET("", h.Realtime.Stream)

	return r
}
