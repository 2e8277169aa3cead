package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/federails/corequery/internal/corerrors"
)

// errorResponse is the JSON envelope every error response shares:
// `{"error": {"code", "message", "kind", "details"}}`.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Kind    string            `json:"kind,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// errorHandler maps a *corerrors.Error to its §7 HTTP status and a
// stable JSON body; anything else is treated as an unclassified
// INTERNAL error. Installed as echo's HTTPErrorHandler so handlers can
// simply `return err`.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if cerr, ok := corerrors.As(err); ok {
			status := corerrors.HTTPStatus(cerr.Kind)
			if status >= 500 {
				logger.Error("request failed", "code", cerr.Code, "kind", cerr.Kind, "error", err)
			}
			_ = c.JSON(status, errorResponse{Error: errorBody{
				Code:    cerr.Code,
				Message: cerr.Message,
				Kind:    string(cerr.Kind),
				Details: cerr.Details,
			}})
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, errorResponse{Error: errorBody{
				Code:    "http_error",
				Message: he.Error(),
			}})
			return
		}

		logger.Error("unhandled request error", "error", err)
		_ = c.JSON(http.StatusInternalServerError, errorResponse{Error: errorBody{
			Code:    "internal",
			Message: "internal error",
		}})
	}
}
