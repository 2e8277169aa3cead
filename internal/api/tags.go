package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/corerrors"
	"github.com/federails/corequery/internal/store"
)

// maxTagScanDocs bounds how many documents the tag-cloud/co-occurrence
// endpoints will page through, so a large corpus doesn't turn an admin
// dashboard call into an unbounded full-table scan.
const maxTagScanDocs = 20000

type tagCloudResponse struct {
	Tags      map[string]int `json:"tags"`
	Scanned   int            `json:"documents_scanned"`
	Truncated bool           `json:"truncated"`
}

// handleTagCloud aggregates Document.Tags frequency across the corpus
// by paging through MetadataStore.Query, since no dedicated tag-count
// table exists — the same approach the Search Engine's facet
// computation uses, just over the whole corpus instead of one query's
// result pool.
func (s *Server) handleTagCloud(c echo.Context) error {
	docs, scanned, truncated, err := s.scanDocuments(c)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, doc := range docs {
		for _, tag := range doc.Tags {
			counts[tag]++
		}
	}
	return c.JSON(http.StatusOK, tagCloudResponse{Tags: counts, Scanned: scanned, Truncated: truncated})
}

type cooccurrenceResponse struct {
	Pairs     map[string]int `json:"pairs"` // "tagA|tagB" (sorted) -> co-occurrence count
	Scanned   int            `json:"documents_scanned"`
	Truncated bool           `json:"truncated"`
}

func (s *Server) handleTagCooccurrence(c echo.Context) error {
	docs, scanned, truncated, err := s.scanDocuments(c)
	if err != nil {
		return err
	}

	pairs := make(map[string]int)
	for _, doc := range docs {
		for i := 0; i < len(doc.Tags); i++ {
			for j := i + 1; j < len(doc.Tags); j++ {
				a, b := doc.Tags[i], doc.Tags[j]
				if a > b {
					a, b = b, a
				}
				pairs[a+"|"+b]++
			}
		}
	}
	return c.JSON(http.StatusOK, cooccurrenceResponse{Pairs: pairs, Scanned: scanned, Truncated: truncated})
}

func (s *Server) scanDocuments(c echo.Context) ([]*store.Document, int, bool, error) {
	ctx := c.Request().Context()
	var all []*store.Document
	cursor := ""
	for {
		page, next, err := s.deps.Metadata.Query(ctx, store.FilterExpr{}, cursor, 500)
		if err != nil {
			return nil, 0, false, corerrors.Internal("tags.scan_failed", "document scan failed", err)
		}
		all = append(all, page...)
		if next == "" || len(all) >= maxTagScanDocs {
			return all, len(all), next != "", nil
		}
		cursor = next
	}
}
