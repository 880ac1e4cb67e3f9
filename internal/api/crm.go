package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bluewise/internal/tools"
	"github.com/bluewise/pkg/models"
)

// queryArgs copies the non-empty query parameters named in keys
func queryArgs(c echo.Context, keys ...string) tools.Args {
	args := tools.Args{}
	for _, k := range keys {
		if v := c.QueryParam(k); v != "" {
			args[k] = v
		}
	}
	return args
}

func (s *Server) dispatch(c echo.Context, name string, args tools.Args) error {
	tenant, err := s.tenant(c)
	if err != nil {
		return err
	}
	env, err := s.deps.Registry.Dispatch(c.Request().Context(), tenant, name, args)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, env)
}

func (s *Server) listLeads(c echo.Context) error {
	return s.dispatch(c, tools.ListLeads,
		queryArgs(c, "status", "source", "no_reply_hours", "missed_calls_only", "limit"))
}

func (s *Server) listTasks(c echo.Context) error {
	return s.dispatch(c, tools.GetTasks, queryArgs(c, "status", "lead_id"))
}

func (s *Server) completeTask(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return respondError(c, models.NewValidationError("task id must be a number."))
	}
	return s.dispatch(c, tools.UpdateTask, tools.Args{
		"task_id":    id,
		"new_status": models.TaskCompleted,
	})
}
