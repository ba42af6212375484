package server

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/draftboard/draftboard/internal/types"
)

func (s *Server) listTasks(c echo.Context) error {
	filter := types.TaskFilter{
		ProjectID: c.QueryParam("projectId"),
		Q:         c.QueryParam("q"),
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "pageSize"),
	}
	if v := c.QueryParam("status"); v != "" {
		status := types.Status(strings.ToUpper(v))
		if !status.IsValid() {
			return validationf(c, "unknown status %q", v)
		}
		filter.Status = &status
	}
	if v := c.QueryParam("assignee"); v != "" {
		filter.Assignee = &v
	}

	page, err := s.store.ListTasks(c.Request().Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, page)
}

func (s *Server) getTask(c echo.Context) error {
	t, err := s.store.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, t)
}

func (s *Server) createTask(c echo.Context) error {
	body := map[string]interface{}{}
	if err := c.Bind(&body); err != nil {
		return validationf(c, "malformed request body")
	}
	projectID, _ := body["projectId"].(string)

	entries, err := s.applyImplicit(c.Request().Context(), projectID, types.DraftAction{
		EntityType: types.EntityTask,
		Action:     types.ActionCreate,
		After:      body,
	})
	if err != nil {
		return fail(c, err)
	}

	t, err := s.store.GetTask(c.Request().Context(), entries[0].EntityID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, t)
}

func (s *Server) updateTask(c echo.Context) error {
	id := c.Param("id")
	body := map[string]interface{}{}
	if err := c.Bind(&body); err != nil {
		return validationf(c, "malformed request body")
	}

	_, err := s.applyImplicit(c.Request().Context(), "", types.DraftAction{
		EntityType: types.EntityTask,
		Action:     types.ActionUpdate,
		EntityID:   id,
		After:      body,
	})
	if err != nil {
		return fail(c, err)
	}

	t, err := s.store.GetTask(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, t)
}

func (s *Server) deleteTask(c echo.Context) error {
	id := c.Param("id")
	_, err := s.applyImplicit(c.Request().Context(), "", types.DraftAction{
		EntityType: types.EntityTask,
		Action:     types.ActionDelete,
		EntityID:   id,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, map[string]interface{}{"id": id})
}

// queryInt parses an integer query parameter; absent or malformed values
// resolve to zero and fall through to the store's defaults.
func queryInt(c echo.Context, name string) int {
	v := c.QueryParam(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
