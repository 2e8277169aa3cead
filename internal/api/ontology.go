package api

import (
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/corerrors"
	"github.com/federails/corequery/internal/ontology"
)

// persistOntology writes the in-memory snapshot back to disk after a
// CRUD mutation so an edit survives a restart. Best-effort: the mutation
// already took effect in memory, so a failed write logs and the request
// still succeeds.
func (s *Server) persistOntology() {
	if s.deps.DataDir == "" {
		return
	}
	path := filepath.Join(s.deps.DataDir, "ontology.json")
	if err := ontology.SaveSnapshot(path, s.deps.Ontology.Snapshot()); err != nil {
		s.deps.Logger.Warn("ontology: failed to persist snapshot", "path", path, "error", err)
	}
}

func (s *Server) handleListConcepts(c echo.Context) error {
	if s.deps.Ontology == nil {
		return corerrors.Degraded("ontology.unavailable", "ontology not configured", nil)
	}
	snap := s.deps.Ontology.Snapshot()
	out := make([]*ontology.Concept, 0, len(snap.Concepts))
	for _, concept := range snap.Concepts {
		out = append(out, concept)
	}
	return c.JSON(http.StatusOK, out)
}

// handlePutConcept inserts or replaces a dictionary/ontology concept and
// rebuilds the in-memory term index the Search Engine's query expansion
// reads from, taking effect on the very next search (spec.md §4.7's
// determinism requirement — no restart needed).
func (s *Server) handlePutConcept(c echo.Context) error {
	if s.deps.Ontology == nil {
		return corerrors.Degraded("ontology.unavailable", "ontology not configured", nil)
	}
	var concept ontology.Concept
	if err := c.Bind(&concept); err != nil {
		return corerrors.Validation("ontology.invalid_body", "malformed request body", err)
	}
	concept.ID = c.Param("id")
	if concept.Term == "" {
		return corerrors.Validation("ontology.missing_term", "term is required", nil)
	}
	s.deps.Ontology.PutConcept(&concept)
	s.persistOntology()
	return c.JSON(http.StatusOK, concept)
}

func (s *Server) handleDeleteConcept(c echo.Context) error {
	if s.deps.Ontology == nil {
		return corerrors.Degraded("ontology.unavailable", "ontology not configured", nil)
	}
	s.deps.Ontology.DeleteConcept(c.Param("id"))
	s.persistOntology()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListTriggers(c echo.Context) error {
	if s.deps.Ontology == nil {
		return corerrors.Degraded("ontology.unavailable", "ontology not configured", nil)
	}
	return c.JSON(http.StatusOK, s.deps.Ontology.Snapshot().Triggers)
}

// triggerBody mirrors ontology.Trigger with a pointer Enabled so an
// omitted field defaults to enabled rather than silently disabling the
// trigger on create.
type triggerBody struct {
	Pattern        string             `json:"pattern"`
	Keywords       []string           `json:"keywords"`
	DocTypeBoost   map[string]float64 `json:"doc_type_boost"`
	TermInjections []string           `json:"term_injections"`
	Priority       int                `json:"priority"`
	Enabled        *bool              `json:"enabled"`
}

func (s *Server) handlePutTrigger(c echo.Context) error {
	if s.deps.Ontology == nil {
		return corerrors.Degraded("ontology.unavailable", "ontology not configured", nil)
	}
	var body triggerBody
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("trigger.invalid_body", "malformed request body", err)
	}
	if body.Pattern == "" && len(body.Keywords) == 0 {
		return corerrors.Validation("trigger.missing_condition", "a pattern or at least one keyword is required", nil)
	}
	if body.Pattern != "" {
		if _, err := regexp.Compile(body.Pattern); err != nil {
			return corerrors.Validation("trigger.invalid_pattern", "pattern is not a valid regular expression", err)
		}
	}
	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	trig := ontology.Trigger{
		ID:             c.Param("id"),
		Pattern:        body.Pattern,
		Keywords:       body.Keywords,
		DocTypeBoost:   body.DocTypeBoost,
		TermInjections: body.TermInjections,
		Priority:       body.Priority,
		Enabled:        enabled,
	}
	s.deps.Ontology.PutTrigger(&trig)
	s.persistOntology()
	return c.JSON(http.StatusOK, trig)
}

func (s *Server) handleDeleteTrigger(c echo.Context) error {
	if s.deps.Ontology == nil {
		return corerrors.Degraded("ontology.unavailable", "ontology not configured", nil)
	}
	s.deps.Ontology.DeleteTrigger(c.Param("id"))
	s.persistOntology()
	return c.NoContent(http.StatusNoContent)
}
