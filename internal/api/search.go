package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/corerrors"
	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
)

// searchResultDTO is the wire shape for one result, per spec.md §6's
// `{id,title,content,url,score,quality_score,document_type,attributes,explain?}`.
type searchResultDTO struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	URL          string            `json:"url,omitempty"`
	Score        float64           `json:"score"`
	QualityScore float64           `json:"quality_score"`
	DocumentType string            `json:"document_type"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Explain      *search.ExplainData `json:"explain,omitempty"`
}

type searchResponseDTO struct {
	Query   string            `json:"query"`
	Mode    string            `json:"mode"`
	Count   int               `json:"count"`
	Total   int               `json:"total"`
	Results []searchResultDTO `json:"results"`
	Facets  *search.Facets    `json:"facets,omitempty"`
}

func toResultDTO(r *search.SearchResult) searchResultDTO {
	dto := searchResultDTO{Score: r.Score, Explain: r.Explain}
	if r.Document != nil {
		dto.ID = r.Document.ID
		dto.Title = r.Document.Title
		dto.Content = r.Document.Content
		dto.URL = r.Document.URL
		dto.QualityScore = r.Document.QualityScore
		dto.DocumentType = r.Document.DocumentType
		dto.Attributes = r.Document.Attributes
		dto.Tags = r.Document.Tags
	}
	return dto
}

// parseSearchRequest builds a search.SearchRequest from GET /api/search's
// query string, per spec.md §6's `?q&mode&limit&offset&user_pubkey&
// type&source&minQuality&tags&expand&explain`.
func parseSearchRequest(c echo.Context) search.SearchRequest {
	q := c.QueryParam("q")
	mode := search.Mode(c.QueryParam("mode"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	var filters store.FilterExpr
	if dt := c.QueryParam("type"); dt != "" {
		filters.DocumentTypes = []string{dt}
	}
	if src := c.QueryParam("source"); src != "" {
		filters.SourceIDs = []string{src}
	}
	if mq := c.QueryParam("minQuality"); mq != "" {
		filters.MinQuality, _ = strconv.ParseFloat(mq, 64)
	}
	if tags := c.QueryParam("tags"); tags != "" {
		filters.TagsAny = strings.Split(tags, ",")
	}

	return search.SearchRequest{
		Query:       q,
		Mode:        mode,
		Limit:       limit,
		Offset:      offset,
		Filters:     filters,
		UserContext: search.UserContext{UserPubkey: c.QueryParam("user_pubkey")},
		Expand:      c.QueryParam("expand") != "false",
		Explain:     c.QueryParam("explain") == "true",
	}
}

func (s *Server) handleSearch(c echo.Context) error {
	req := parseSearchRequest(c)
	if err := search.ValidateRequest(req); err != nil {
		return corerrors.Validation("search.invalid_request", err.Error(), err)
	}

	resp, err := s.deps.Engine.Search(c.Request().Context(), req)
	if err != nil {
		return corerrors.Internal("search.failed", "search failed", err)
	}

	results := make([]searchResultDTO, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, toResultDTO(r))
	}

	mode := string(req.Mode)
	if mode == "" {
		mode = string(search.ModeHybrid)
	}
	return c.JSON(http.StatusOK, searchResponseDTO{
		Query:   req.Query,
		Mode:    mode,
		Count:   len(results),
		Total:   resp.Total,
		Results: results,
		Facets:  &resp.Facets,
	})
}

func (s *Server) handleSearchFacets(c echo.Context) error {
	req := parseSearchRequest(c)
	req.Limit = 0
	resp, err := s.deps.Engine.Search(c.Request().Context(), req)
	if err != nil {
		return corerrors.Internal("search.facets_failed", "facet computation failed", err)
	}
	return c.JSON(http.StatusOK, resp.Facets)
}

type askRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type askResponse struct {
	Query   string            `json:"query"`
	Answer  string            `json:"answer"`
	Context []searchResultDTO `json:"context"`
	Note    string            `json:"note,omitempty"`
}

// handleAsk runs a Search and hands the top results back as RAG
// context. Generation itself is delegated to an external LLM per
// spec.md §6 — this endpoint assembles the context bundle and leaves
// Answer empty for the caller's LLM integration to fill in.
func (s *Server) handleAsk(c echo.Context) error {
	var body askRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("ask.invalid_body", "malformed request body", err)
	}
	if strings.TrimSpace(body.Query) == "" {
		return corerrors.Validation("ask.empty_query", "query is required", nil)
	}
	limit := body.Limit
	if limit <= 0 {
		limit = 5
	}

	resp, err := s.deps.Engine.Search(c.Request().Context(), search.SearchRequest{
		Query: body.Query,
		Mode:  search.ModeHybrid,
		Limit: limit,
		Expand: true,
	})
	if err != nil {
		return corerrors.Internal("ask.search_failed", "search failed", err)
	}

	ctxDocs := make([]searchResultDTO, 0, len(resp.Results))
	for _, r := range resp.Results {
		ctxDocs = append(ctxDocs, toResultDTO(r))
	}

	return c.JSON(http.StatusOK, askResponse{
		Query:   body.Query,
		Context: ctxDocs,
		Note:    "generation is delegated to an external LLM; this response carries retrieved context only",
	})
}
