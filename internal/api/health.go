package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/preflight"
)

type healthResponse struct {
	Status string                  `json:"status"` // "ok", "degraded"
	Checks []preflight.CheckResult `json:"checks,omitempty"`
}

// handleHealth runs the startup preflight suite (disk space, file
// descriptors, memory, embedder model availability) against the data
// directory and reports degraded (still 200, per spec.md §6's liveness
// contract) rather than failing the probe outright on a warning.
func (s *Server) handleHealth(c echo.Context) error {
	if s.deps.Preflight == nil {
		return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
	}

	results := s.deps.Preflight.RunAll(c.Request().Context(), s.deps.DataDir)
	status := "ok"
	if s.deps.Preflight.SummaryStatus(results) != "ready" {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, healthResponse{Status: status, Checks: results})
}
