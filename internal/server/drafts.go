package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/draftboard/draftboard/internal/draft"
	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/types"
)

func (s *Server) listDrafts(c echo.Context) error {
	filter := storage.DraftFilter{ProjectID: c.QueryParam("projectId")}
	if v := c.QueryParam("status"); v != "" {
		status := types.DraftStatus(strings.ToLower(v))
		if !status.IsValid() {
			return validationf(c, "unknown draft status %q", v)
		}
		filter.Status = &status
	}

	drafts, err := s.store.ListDrafts(c.Request().Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, drafts)
}

func (s *Server) getDraft(c echo.Context) error {
	d, err := s.store.GetDraft(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, d)
}

func (s *Server) submitDraft(c echo.Context) error {
	var req draft.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return validationf(c, "malformed request body")
	}

	d, warnings, err := s.drafts.Submit(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, map[string]interface{}{"draft": d, "warnings": warnings})
}

// actorBody is the body of apply and rollback requests. An absent actor
// defaults to user.
type actorBody struct {
	Actor types.Actor `json:"actor"`
}

func (b *actorBody) resolve() types.Actor {
	if b.Actor == "" {
		return types.ActorUser
	}
	return b.Actor
}

func (s *Server) applyDraft(c echo.Context) error {
	var body actorBody
	if err := c.Bind(&body); err != nil {
		return validationf(c, "malformed request body")
	}

	d, entries, err := s.applier.ApplyDraft(c.Request().Context(), c.Param("id"), body.resolve())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, map[string]interface{}{"draft": d, "auditEntries": entries})
}

func (s *Server) discardDraft(c echo.Context) error {
	d, err := s.drafts.Discard(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, d)
}
