package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bluewise/pkg/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the error taxonomy to an HTTP status
func statusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest
	case models.IsResolution(err):
		return http.StatusNotFound
	case models.IsExternal(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the user-facing message; the wrapped detail only reaches the log
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	event := zerolog.Ctx(c.Request().Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(c.Request().Context()).Error()
	}
	event.Err(err).Int("status", status).Msg("Request failed")
	return c.JSON(status, errorResponse{Error: models.UserMessage(err)})
}
