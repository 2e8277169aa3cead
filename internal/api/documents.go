package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/corerrors"
	"github.com/federails/corequery/internal/store"
)

func (s *Server) handleGetDocument(c echo.Context) error {
	id := c.Param("id")
	doc, err := s.deps.Metadata.Get(c.Request().Context(), id)
	if err != nil {
		return corerrors.Internal("document.fetch_failed", "fetch failed", err)
	}
	if doc == nil {
		return corerrors.NotFound("document.not_found", "no document with that id", nil)
	}
	return c.JSON(http.StatusOK, doc)
}

type ingestDocumentRequest struct {
	Title            string            `json:"title"`
	Content          string            `json:"content"`
	URL              string            `json:"url"`
	DocumentType     string            `json:"document_type"`
	Attributes       map[string]string `json:"attributes"`
	PermissionGroups []string          `json:"permission_groups"`
	Tags             []string          `json:"tags"`
}

// handleIngestDocument creates or replaces a manually-ingested document
// (source_id empty, per spec.md §3's "created by Connector or HTTP
// ingest" lifecycle clause), indexing it through the same Engine.Index
// path a connector run uses so embedding/enrichment proceed identically.
func (s *Server) handleIngestDocument(c echo.Context) error {
	var body ingestDocumentRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("document.invalid_body", "malformed request body", err)
	}
	if body.Title == "" && body.Content == "" {
		return corerrors.Validation("document.empty", "title or content is required", nil)
	}

	id := c.Param("id")
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	doc := &store.Document{
		ID:               id,
		Title:            body.Title,
		Content:          body.Content,
		URL:              body.URL,
		DocumentType:     body.DocumentType,
		CreatedAt:        now,
		UpdatedAt:        now,
		IndexedAt:        now,
		LastModified:     now,
		Attributes:       body.Attributes,
		PermissionGroups: body.PermissionGroups,
		Tags:             body.Tags,
	}
	if doc.DocumentType == "" {
		doc.DocumentType = "manual"
	}

	if err := s.deps.Engine.Index(c.Request().Context(), []*store.Document{doc}); err != nil {
		return corerrors.Internal("document.index_failed", "indexing failed", err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	if err := s.deps.Engine.Delete(c.Request().Context(), []string{id}); err != nil {
		return corerrors.Internal("document.delete_failed", "delete failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
