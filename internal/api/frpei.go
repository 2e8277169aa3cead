package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/corerrors"
	"github.com/federails/corequery/internal/frpei"
)

type frpeiRetrieveRequest struct {
	Query      string   `json:"query"`
	Limit      int      `json:"limit"`
	Providers  []string `json:"providers"`
	Types      []string `json:"types"`
	Mode       string   `json:"mode"`
	Expand     bool     `json:"expand"`
	Explain    bool     `json:"explain"`
	Dedupe     bool     `json:"dedupe"`
	TimeoutMs  int      `json:"timeoutMs"`
	UserPubkey string   `json:"user_pubkey"`
}

// handleFRPEIRetrieve runs the Plan -> Canonicalize -> Deduplicate ->
// Enrich -> Rank -> Return pipeline spec.md §4.10 describes, per the
// `POST /api/frpei/retrieve` contract in §6.
func (s *Server) handleFRPEIRetrieve(c echo.Context) error {
	if s.deps.FRPEI == nil {
		return corerrors.Degraded("frpei.unavailable", "no federated providers configured", nil)
	}
	var body frpeiRetrieveRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("frpei.invalid_body", "malformed request body", err)
	}
	if strings.TrimSpace(body.Query) == "" {
		return corerrors.Validation("frpei.empty_query", "query is required", nil)
	}

	req := frpei.Request{
		Query:      body.Query,
		Limit:      body.Limit,
		Providers:  body.Providers,
		Types:      body.Types,
		Mode:       body.Mode,
		Expand:     body.Expand,
		Explain:    body.Explain,
		Dedupe:     body.Dedupe,
		TimeoutMs:  body.TimeoutMs,
		UserPubkey: body.UserPubkey,
	}
	resp, err := s.deps.FRPEI.Retrieve(c.Request().Context(), req)
	if err != nil {
		return corerrors.ResourceExhausted("frpei.providers_exhausted", err.Error(), err)
	}

	if s.deps.FRPEILog != nil {
		if logErr := s.deps.FRPEILog.RecordRetrieval(c.Request().Context(), req, resp); logErr != nil {
			s.deps.Logger.Warn("frpei: failed to persist retrieval observability rows", "error", logErr)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

type frpeiEnrichRequest struct {
	Candidates []frpei.RawCandidate `json:"candidates"`
}

// handleFRPEIEnrich runs the Canonicalize -> Enrich stages of §4.10 in
// isolation over caller-supplied raw candidates, without a provider
// fan-out — useful for a client that already has candidates from
// somewhere else and only wants the core's canonicalization/enrichment.
func (s *Server) handleFRPEIEnrich(c echo.Context) error {
	var body frpeiEnrichRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("frpei.invalid_body", "malformed request body", err)
	}

	out := make([]frpei.Candidate, 0, len(body.Candidates))
	for _, raw := range body.Candidates {
		out = append(out, frpei.Enrich(frpei.Canonicalize(raw)))
	}
	return c.JSON(http.StatusOK, map[string]any{"candidates": out})
}

type frpeiRankRequest struct {
	Candidates []frpei.Candidate `json:"candidates"`
	Explain    bool              `json:"explain"`
}

// handleFRPEIRank runs the Rank stage of §4.10 over caller-supplied
// already-enriched candidates, using the orchestrator's configured
// signal weights.
func (s *Server) handleFRPEIRank(c echo.Context) error {
	if s.deps.FRPEI == nil {
		return corerrors.Degraded("frpei.unavailable", "no federated providers configured", nil)
	}
	var body frpeiRankRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("frpei.invalid_body", "malformed request body", err)
	}
	ranked := frpei.Rank(body.Candidates, s.deps.FRPEI.Weights(), body.Explain)
	return c.JSON(http.StatusOK, map[string]any{"candidates": ranked})
}

// handleFRPEIExplain runs the full retrieve pipeline with explain forced
// on, returning the same merged/ranked results `/retrieve` would but
// guaranteeing every candidate carries its `why` signal breakdown.
func (s *Server) handleFRPEIExplain(c echo.Context) error {
	if s.deps.FRPEI == nil {
		return corerrors.Degraded("frpei.unavailable", "no federated providers configured", nil)
	}
	var body frpeiRetrieveRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("frpei.invalid_body", "malformed request body", err)
	}
	if strings.TrimSpace(body.Query) == "" {
		return corerrors.Validation("frpei.empty_query", "query is required", nil)
	}

	req := frpei.Request{
		Query:      body.Query,
		Limit:      body.Limit,
		Providers:  body.Providers,
		Types:      body.Types,
		Mode:       body.Mode,
		Expand:     body.Expand,
		Explain:    true,
		Dedupe:     body.Dedupe,
		TimeoutMs:  body.TimeoutMs,
		UserPubkey: body.UserPubkey,
	}
	resp, err := s.deps.FRPEI.Retrieve(c.Request().Context(), req)
	if err != nil {
		return corerrors.ResourceExhausted("frpei.providers_exhausted", err.Error(), err)
	}
	if s.deps.FRPEILog != nil {
		if logErr := s.deps.FRPEILog.RecordRetrieval(c.Request().Context(), req, resp); logErr != nil {
			s.deps.Logger.Warn("frpei: failed to persist explain observability rows", "error", logErr)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFRPEIFeedback(c echo.Context) error {
	if s.deps.Feedback == nil {
		return corerrors.Degraded("frpei.feedback_unavailable", "feedback store not configured", nil)
	}
	var fb frpei.FeedbackRecord
	if err := c.Bind(&fb); err != nil {
		return corerrors.Validation("frpei.invalid_feedback", "malformed request body", err)
	}
	if fb.Query == "" || fb.CandidateID == "" {
		return corerrors.Validation("frpei.missing_fields", "query and candidate_id are required", nil)
	}
	fb.RecordedAt = time.Now()

	if err := s.deps.Feedback.Record(c.Request().Context(), fb); err != nil {
		return corerrors.Internal("frpei.feedback_failed", "feedback recording failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleFRPEIStatus(c echo.Context) error {
	if s.deps.FRPEI == nil {
		return corerrors.Degraded("frpei.unavailable", "no federated providers configured", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"providers": s.deps.FRPEI.ProviderNames(),
	})
}

func (s *Server) handleFRPEIMetrics(c echo.Context) error {
	if s.deps.FRPEI == nil {
		return corerrors.Degraded("frpei.unavailable", "no federated providers configured", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"weights": s.deps.FRPEI.Weights(),
	})
}
