package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bluewise/internal/tools"
	"github.com/bluewise/pkg/models"
)

type askRequest struct {
	Question string         `json:"question"`
	Session  models.Session `json:"session"`
}

// askResponse echoes the question next to the envelope fields
type askResponse struct {
	Question   string        `json:"question"`
	Intent     string        `json:"intent"`
	ResultType string        `json:"resultType"`
	Title      string        `json:"title"`
	AISummary  string        `json:"aiSummary"`
	Items      []models.Item `json:"items"`
}

func newAskResponse(question string, env models.Envelope) askResponse {
	items := env.Items
	if items == nil {
		items = []models.Item{}
	}
	return askResponse{
		Question:   question,
		Intent:     env.Intent,
		ResultType: env.ResultType,
		Title:      env.Title,
		AISummary:  env.AISummary,
		Items:      items,
	}
}

func (s *Server) ask(c echo.Context) error {
	tenant, err := s.tenant(c)
	if err != nil {
		return err
	}

	var req askRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body."))
	}

	env, err := s.deps.Orchestrator.Ask(c.Request().Context(), tenant, req.Question, req.Session)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newAskResponse(req.Question, env))
}

// send delivers a message the user has already reviewed; a provider failure is a 200 with a failed send_result
func (s *Server) send(c echo.Context) error {
	tenant, err := s.tenant(c)
	if err != nil {
		return err
	}

	var req tools.SendRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body."))
	}

	env, err := s.deps.Registry.Send(c.Request().Context(), tenant, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, env)
}
