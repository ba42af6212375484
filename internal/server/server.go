// Package server is the HTTP facade over the store, the draft engine, and the
// apply engine. Handlers bind input, call into the engines, and map typed
// errors onto the response envelope; no business logic lives here.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/draftboard/draftboard/internal/agent"
	"github.com/draftboard/draftboard/internal/apply"
	"github.com/draftboard/draftboard/internal/draft"
	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/tools"
)

// AgentRunner is the slice of the agent used by the /api/ai endpoint.
type AgentRunner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// Server wires the engines behind the REST surface.
type Server struct {
	store    storage.Store
	drafts   *draft.Engine
	applier  *apply.Engine
	registry *tools.Registry
	agent    AgentRunner
	echo     *echo.Echo
}

// New builds the echo instance with standard middleware and all routes
// registered. agentRunner may be nil when no AI backend is configured.
func New(store storage.Store, drafts *draft.Engine, applier *apply.Engine, registry *tools.Registry, agentRunner AgentRunner) *Server {
	s := &Server{
		store:    store,
		drafts:   drafts,
		applier:  applier,
		registry: registry,
		agent:    agentRunner,
		echo:     newEcho(),
	}
	s.routes()
	return s
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
		},
	}))
	return e
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)

	api := s.echo.Group("/api")

	api.GET("/projects", s.listProjects)
	api.GET("/projects/:id", s.getProject)
	api.POST("/projects", s.createProject)
	api.PATCH("/projects/:id", s.updateProject)
	api.DELETE("/projects/:id", s.deleteProject)

	api.GET("/tasks", s.listTasks)
	api.GET("/tasks/:id", s.getTask)
	api.POST("/tasks", s.createTask)
	api.PATCH("/tasks/:id", s.updateTask)
	api.DELETE("/tasks/:id", s.deleteTask)

	api.GET("/drafts", s.listDrafts)
	api.GET("/drafts/:id", s.getDraft)
	api.POST("/drafts", s.submitDraft)
	api.POST("/drafts/:id/apply", s.applyDraft)
	api.POST("/drafts/:id/discard", s.discardDraft)

	api.GET("/audit", s.listAudit)
	api.GET("/audit/:id/diff", s.auditDiff)
	api.POST("/audit/:id/rollback", s.rollbackAudit)

	api.POST("/ai", s.aiDispatch)
	api.GET("/ai/tools", s.aiTools)
}

// Echo exposes the underlying echo instance for serving and for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start begins serving on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
