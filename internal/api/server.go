// Package api is the HTTP surface over the ingestion-and-retrieval core:
// search, connector/webhook/ontology CRUD, and the federated retrieval
// endpoint, built on labstack/echo the way the rest of the core builds
// on the retrieved pack's ecosystem libraries rather than net/http alone.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/federails/corequery/internal/connector"
	"github.com/federails/corequery/internal/frpei"
	"github.com/federails/corequery/internal/ontology"
	"github.com/federails/corequery/internal/preflight"
	"github.com/federails/corequery/internal/scheduler"
	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
	"github.com/federails/corequery/internal/webhook"
)

// Deps bundles every dependency a route handler needs. Built once by the
// composition root and never mutated afterward; handlers only read it.
type Deps struct {
	Engine     search.SearchEngine
	Metadata   store.MetadataStore
	Enrichment store.EnrichmentStore
	Connectors store.ConnectorStore
	Runs       store.RunStore
	Registry   *connector.Registry
	Scheduler  *scheduler.Scheduler
	Webhooks   webhook.Store
	Ontology   *ontology.Expander
	FRPEI      *frpei.Orchestrator
	Feedback   *frpei.FeedbackRecorder
	FRPEILog   store.FRPEIStore
	Preflight  *preflight.Checker
	DataDir    string
	Logger     *slog.Logger
}

// Server wraps an echo.Echo instance configured with every route group
// the core exposes.
type Server struct {
	echo *echo.Echo
	deps Deps
}

// New builds a Server with its full route table registered. Nil
// optional dependencies (Webhooks, Ontology, FRPEI, Scheduler) simply
// make their corresponding routes answer 503 DEGRADED instead of
// panicking, so a partially-configured deployment (e.g. no FRPEI
// providers configured) still serves search traffic.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(deps.Logger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(slogRequestLogger(deps.Logger))

	s := &Server{echo: e, deps: deps}
	s.registerRoutes()
	return s
}

// Start serves on addr until the process is signaled to stop; returns
// http.ErrServerClosed on a clean Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and closes listeners within ctx's
// deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	e := s.echo

	e.GET("/health", s.handleHealth)

	api := e.Group("/api")

	api.GET("/search", s.handleSearch)
	api.POST("/ask", s.handleAsk)
	api.GET("/search/facets", s.handleSearchFacets)

	docs := api.Group("/documents")
	docs.GET("/:id", s.handleGetDocument)
	docs.POST("", s.handleIngestDocument)
	docs.PUT("/:id", s.handleIngestDocument)
	docs.DELETE("/:id", s.handleDeleteDocument)

	conns := api.Group("/connectors")
	conns.GET("", s.handleListConnectors)
	conns.POST("", s.handleCreateConnector)
	conns.GET("/:id", s.handleGetConnector)
	conns.PUT("/:id", s.handleUpdateConnector)
	conns.DELETE("/:id", s.handleDeleteConnector)
	conns.POST("/:id/run", s.handleRunConnector)
	conns.POST("/:id/stop", s.handleStopConnector)
	conns.GET("/:id/status", s.handleConnectorStatus)

	hooks := api.Group("/webhooks")
	hooks.GET("", s.handleListWebhooks)
	hooks.POST("", s.handleCreateWebhook)
	hooks.DELETE("/:id", s.handleDeleteWebhook)

	onto := api.Group("/ontology")
	onto.GET("", s.handleListConcepts)
	onto.PUT("/:id", s.handlePutConcept)
	onto.DELETE("/:id", s.handleDeleteConcept)

	dict := api.Group("/dictionary")
	dict.GET("", s.handleListConcepts) // dictionary and ontology share the concept table, per spec.md §3

	triggers := api.Group("/triggers")
	triggers.GET("", s.handleListTriggers)
	triggers.PUT("/:id", s.handlePutTrigger)
	triggers.DELETE("/:id", s.handleDeleteTrigger)

	tags := api.Group("/tags")
	tags.GET("/cloud", s.handleTagCloud)
	tags.GET("/cooccurrence", s.handleTagCooccurrence)

	fr := api.Group("/frpei")
	fr.POST("/retrieve", s.handleFRPEIRetrieve)
	fr.POST("/enrich", s.handleFRPEIEnrich)
	fr.POST("/rank", s.handleFRPEIRank)
	fr.POST("/explain", s.handleFRPEIExplain)
	fr.POST("/feedback", s.handleFRPEIFeedback)
	fr.GET("/status", s.handleFRPEIStatus)
	fr.GET("/metrics", s.handleFRPEIMetrics)
}

func slogRequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return err
		}
	}
}
