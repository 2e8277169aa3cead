package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/connector"
	"github.com/federails/corequery/internal/corerrors"
	"github.com/federails/corequery/internal/scheduler"
	"github.com/federails/corequery/internal/store"
)

func (s *Server) handleListConnectors(c echo.Context) error {
	if s.deps.Connectors == nil {
		return corerrors.Degraded("connector.store_unavailable", "connector store not configured", nil)
	}
	list, err := s.deps.Connectors.ListConnectors(c.Request().Context())
	if err != nil {
		return corerrors.Internal("connector.list_failed", "list failed", err)
	}
	return c.JSON(http.StatusOK, list)
}

type connectorRequest struct {
	Name            string            `json:"name"`
	ConnectorType   string            `json:"connector_type"`
	Config          map[string]string `json:"config"`
	PortalURL       string            `json:"portal_url"`
	ItemURLTemplate string            `json:"item_url_template"`
	IsActive        bool              `json:"is_active"`
	ScheduleExpr    string            `json:"schedule_expression"`
}

// handleCreateConnector validates the connector_type-specific config via
// the same Connector implementation Run() will use, per spec.md §4.5's
// `ValidateConfig(config) -> {ok | [errors]}` contract, before persisting.
func (s *Server) handleCreateConnector(c echo.Context) error {
	if s.deps.Connectors == nil || s.deps.Registry == nil {
		return corerrors.Degraded("connector.store_unavailable", "connector store not configured", nil)
	}

	var body connectorRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("connector.invalid_body", "malformed request body", err)
	}
	kind := connector.Kind(body.ConnectorType)

	conn, err := s.deps.Registry.New(kind)
	if err != nil {
		return corerrors.Validation("connector.unknown_kind", err.Error(), err)
	}
	if err := conn.ValidateConfig(body.Config); err != nil {
		return corerrors.Validation("connector.invalid_config", err.Error(), err)
	}

	rec := store.ConnectorRecord{
		ID:              uuid.NewString(),
		Name:            body.Name,
		Kind:            string(kind),
		Config:          body.Config,
		PortalURL:       body.PortalURL,
		ItemURLTemplate: body.ItemURLTemplate,
		IsActive:        body.IsActive,
	}
	if err := s.deps.Connectors.SaveConnector(c.Request().Context(), rec); err != nil {
		return corerrors.Internal("connector.save_failed", "save failed", err)
	}

	if body.ScheduleExpr != "" && s.deps.Scheduler != nil {
		if err := s.deps.Scheduler.SetSchedule(c.Request().Context(), rec.ID, body.ScheduleExpr); err != nil {
			return corerrors.Validation("connector.invalid_schedule", err.Error(), err)
		}
	}

	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleGetConnector(c echo.Context) error {
	rec, err := s.getConnectorOr404(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleUpdateConnector(c echo.Context) error {
	if s.deps.Connectors == nil || s.deps.Registry == nil {
		return corerrors.Degraded("connector.store_unavailable", "connector store not configured", nil)
	}
	existing, err := s.getConnectorOr404(c)
	if err != nil {
		return err
	}

	var body connectorRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("connector.invalid_body", "malformed request body", err)
	}
	kind := connector.Kind(body.ConnectorType)
	if kind == "" {
		kind = connector.Kind(existing.Kind)
	}
	conn, err := s.deps.Registry.New(kind)
	if err != nil {
		return corerrors.Validation("connector.unknown_kind", err.Error(), err)
	}
	if err := conn.ValidateConfig(body.Config); err != nil {
		return corerrors.Validation("connector.invalid_config", err.Error(), err)
	}

	existing.Name = body.Name
	existing.Kind = string(kind)
	existing.Config = body.Config
	existing.PortalURL = body.PortalURL
	existing.ItemURLTemplate = body.ItemURLTemplate
	existing.IsActive = body.IsActive

	if err := s.deps.Connectors.SaveConnector(c.Request().Context(), *existing); err != nil {
		return corerrors.Internal("connector.save_failed", "save failed", err)
	}
	return c.JSON(http.StatusOK, existing)
}

func (s *Server) handleDeleteConnector(c echo.Context) error {
	if s.deps.Connectors == nil {
		return corerrors.Degraded("connector.store_unavailable", "connector store not configured", nil)
	}
	if err := s.deps.Connectors.DeleteConnector(c.Request().Context(), c.Param("id")); err != nil {
		return corerrors.Internal("connector.delete_failed", "delete failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleRunConnector triggers an immediate out-of-schedule run. A run
// already in flight is a 409 CONFLICT rather than a silent skip. The run
// itself is detached from the request: Trigger blocks for the run's full
// duration, and the trigger acknowledgment must not.
func (s *Server) handleRunConnector(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return corerrors.Degraded("connector.scheduler_unavailable", "scheduler not configured", nil)
	}
	id := c.Param("id")
	if s.deps.Scheduler.IsRunning(id) {
		return corerrors.Conflict("connector.already_running", "a run for this connector is already in flight", nil)
	}
	go func() {
		if err := s.deps.Scheduler.Trigger(context.Background(), id); err != nil && err != scheduler.ErrAlreadyRunning {
			s.deps.Logger.Error("connector run failed", "connector_id", id, "error", err)
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"connector_id": id, "status": "triggered"})
}

func (s *Server) handleStopConnector(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return corerrors.Degraded("connector.scheduler_unavailable", "scheduler not configured", nil)
	}
	if err := s.deps.Scheduler.Stop(c.Param("id")); err != nil {
		return corerrors.Conflict("connector.not_running", err.Error(), err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleConnectorStatus(c echo.Context) error {
	if s.deps.Runs == nil {
		return corerrors.Degraded("connector.runs_unavailable", "run store not configured", nil)
	}
	run, err := s.deps.Runs.LatestRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return corerrors.Internal("connector.status_failed", "status lookup failed", err)
	}
	if run == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "never_run"})
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) getConnectorOr404(c echo.Context) (*store.ConnectorRecord, error) {
	if s.deps.Connectors == nil {
		return nil, corerrors.Degraded("connector.store_unavailable", "connector store not configured", nil)
	}
	rec, err := s.deps.Connectors.GetConnector(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, corerrors.Internal("connector.fetch_failed", "fetch failed", err)
	}
	if rec == nil {
		return nil, corerrors.NotFound("connector.not_found", "no connector with that id", nil)
	}
	return rec, nil
}
