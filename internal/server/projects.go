package server

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/draftboard/draftboard/internal/draft"
	"github.com/draftboard/draftboard/internal/types"
)

func (s *Server) listProjects(c echo.Context) error {
	projects, err := s.store.ListProjects(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, projects)
}

func (s *Server) getProject(c echo.Context) error {
	p, err := s.store.GetProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, p)
}

func (s *Server) createProject(c echo.Context) error {
	body := map[string]interface{}{}
	if err := c.Bind(&body); err != nil {
		return validationf(c, "malformed request body")
	}

	entries, err := s.applyImplicit(c.Request().Context(), "", types.DraftAction{
		EntityType: types.EntityProject,
		Action:     types.ActionCreate,
		After:      body,
	})
	if err != nil {
		return fail(c, err)
	}

	p, err := s.store.GetProject(c.Request().Context(), entries[0].EntityID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, p)
}

func (s *Server) updateProject(c echo.Context) error {
	id := c.Param("id")
	body := map[string]interface{}{}
	if err := c.Bind(&body); err != nil {
		return validationf(c, "malformed request body")
	}

	_, err := s.applyImplicit(c.Request().Context(), id, types.DraftAction{
		EntityType: types.EntityProject,
		Action:     types.ActionUpdate,
		EntityID:   id,
		After:      body,
	})
	if err != nil {
		return fail(c, err)
	}

	p, err := s.store.GetProject(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, p)
}

func (s *Server) deleteProject(c echo.Context) error {
	id := c.Param("id")
	entries, err := s.applyImplicit(c.Request().Context(), id, types.DraftAction{
		EntityType: types.EntityProject,
		Action:     types.ActionDelete,
		EntityID:   id,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, map[string]interface{}{"id": id, "auditEntries": len(entries)})
}

// applyImplicit runs a direct mutation as the equivalent one-action draft:
// submit, then apply immediately as the user. Every mutation therefore carries
// a sourceDraftId. If apply fails the implicit draft is discarded so it does
// not linger in the pending list.
func (s *Server) applyImplicit(ctx context.Context, projectID string, action types.DraftAction) ([]*types.AuditLog, error) {
	d, _, err := s.drafts.Submit(ctx, draft.SubmitRequest{
		ProjectID: projectID,
		CreatedBy: types.ActorUser,
		Actions:   []types.DraftAction{action},
	})
	if err != nil {
		return nil, err
	}

	_, entries, err := s.applier.ApplyDraft(ctx, d.ID, types.ActorUser)
	if err != nil {
		// Best effort; the draft stays pending if discard also fails.
		_, _ = s.drafts.Discard(ctx, d.ID)
		return nil, err
	}
	return entries, nil
}
