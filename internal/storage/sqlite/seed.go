package sqlite

import (
	"context"

	"github.com/draftboard/draftboard/internal/types"
)

// Seed inserts demo rows if absent, keyed by fixed ids, so startup seeding is
// idempotent across restarts. Seed rows do not emit audit entries; they model
// pre-existing state, not mutations.
func (s *Store) Seed(ctx context.Context) error {
	const seededAt = int64(1735689600000) // 2025-01-01T00:00:00Z

	project := &types.Project{
		ID:          "prj-demo01",
		Name:        "Getting Started",
		Description: "A sample project demonstrating the draft workflow.",
		Icon:        "rocket",
		CreatedAt:   seededAt,
	}

	start := seededAt
	due := seededAt + 14*24*60*60*1000
	tasks := []*types.Task{
		{
			ID:           "tsk-demo01",
			ProjectID:    project.ID,
			Title:        "Plan the milestones",
			Description:  "Sketch the major phases before creating detail tasks.",
			Status:       types.StatusDone,
			Priority:     types.PriorityHigh,
			CreatedAt:    seededAt,
			StartDate:    &start,
			DueDate:      &due,
			Completion:   100,
			WBS:          "1",
			Predecessors: []string{},
		},
		{
			ID:           "tsk-demo02",
			ProjectID:    project.ID,
			Title:        "Draft the first change batch",
			Description:  "Submit a draft, review its warnings, then apply it.",
			Status:       types.StatusInProgress,
			Priority:     types.PriorityMedium,
			CreatedAt:    seededAt + 1,
			Completion:   40,
			WBS:          "1.1",
			Predecessors: []string{"1"},
		},
		{
			ID:           "tsk-demo03",
			ProjectID:    project.ID,
			Title:        "Roll back a mistake",
			Description:  "Use the audit log to invert an applied change.",
			Status:       types.StatusTodo,
			Priority:     types.PriorityLow,
			CreatedAt:    seededAt + 2,
			WBS:          "1.2",
			Predecessors: []string{"tsk-demo02"},
		},
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO projects (id, name, description, icon, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Description, project.Icon, project.CreatedAt); err != nil {
		return wrapDBError("seed project", err)
	}

	for _, t := range tasks {
		t.SetDefaults()
		args, err := taskInsertArgs(t)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
			return wrapDBError("seed task", err)
		}
	}
	return nil
}
