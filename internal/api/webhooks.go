package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/corerrors"
	"github.com/federails/corequery/internal/webhook"
)

func (s *Server) handleListWebhooks(c echo.Context) error {
	if s.deps.Webhooks == nil {
		return corerrors.Degraded("webhook.store_unavailable", "webhook store not configured", nil)
	}
	subs, err := s.deps.Webhooks.ListSubscriptions(c.Request().Context())
	if err != nil {
		return corerrors.Internal("webhook.list_failed", "list failed", err)
	}
	return c.JSON(http.StatusOK, subs)
}

type webhookRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

func (s *Server) handleCreateWebhook(c echo.Context) error {
	if s.deps.Webhooks == nil {
		return corerrors.Degraded("webhook.store_unavailable", "webhook store not configured", nil)
	}
	var body webhookRequest
	if err := c.Bind(&body); err != nil {
		return corerrors.Validation("webhook.invalid_body", "malformed request body", err)
	}
	if body.URL == "" || body.Secret == "" {
		return corerrors.Validation("webhook.missing_fields", "url and secret are required", nil)
	}

	sub := webhook.Subscription{ID: uuid.NewString(), URL: body.URL, Secret: body.Secret, Events: body.Events}
	if err := s.deps.Webhooks.SaveSubscription(c.Request().Context(), sub); err != nil {
		return corerrors.Internal("webhook.save_failed", "save failed", err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (s *Server) handleDeleteWebhook(c echo.Context) error {
	if s.deps.Webhooks == nil {
		return corerrors.Degraded("webhook.store_unavailable", "webhook store not configured", nil)
	}
	if err := s.deps.Webhooks.DeleteSubscription(c.Request().Context(), c.Param("id")); err != nil {
		return corerrors.Internal("webhook.delete_failed", "delete failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
