package server

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/draftboard/draftboard/internal/apply"
	"github.com/draftboard/draftboard/internal/types"
)

func (s *Server) listAudit(c echo.Context) error {
	filter := types.AuditFilter{
		ProjectID: c.QueryParam("projectId"),
		TaskID:    c.QueryParam("taskId"),
		Q:         c.QueryParam("q"),
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "pageSize"),
	}

	if v := c.QueryParam("actor"); v != "" {
		actor := types.Actor(strings.ToLower(v))
		if !actor.IsValid() {
			return validationf(c, "unknown actor %q", v)
		}
		filter.Actor = &actor
	}
	if v := c.QueryParam("action"); v != "" {
		action := types.ActionKind(strings.ToLower(v))
		if !action.IsValid() && action != types.ActionRollback {
			return validationf(c, "unknown action %q", v)
		}
		filter.Action = &action
	}
	if v := c.QueryParam("entityType"); v != "" {
		et := types.EntityType(strings.ToLower(v))
		if !et.IsValid() {
			return validationf(c, "unknown entityType %q", v)
		}
		filter.EntityType = &et
	}
	if v := c.QueryParam("from"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return validationf(c, "from must be epoch milliseconds")
		}
		filter.From = &ts
	}
	if v := c.QueryParam("to"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return validationf(c, "to must be epoch milliseconds")
		}
		filter.To = &ts
	}

	page, err := s.store.ListAuditLogs(c.Request().Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, page)
}

func (s *Server) auditDiff(c echo.Context) error {
	entry, err := s.store.GetAuditLog(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, map[string]interface{}{
		"auditId": entry.ID,
		"diff":    apply.Diff(entry.Before, entry.After),
	})
}

func (s *Server) rollbackAudit(c echo.Context) error {
	var body actorBody
	if err := c.Bind(&body); err != nil {
		return validationf(c, "malformed request body")
	}

	entry, err := s.applier.RollbackAudit(c.Request().Context(), c.Param("id"), body.resolve())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, entry)
}
