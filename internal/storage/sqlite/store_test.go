package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustProject(t *testing.T, s *Store, id, name string) *types.Project {
	t.Helper()
	p := &types.Project{ID: id, Name: name, CreatedAt: types.NowMillis()}
	require.NoError(t, s.RunInTransaction(context.Background(), func(tx storage.Tx) error {
		return tx.InsertProject(context.Background(), p)
	}))
	return p
}

func mustTask(t *testing.T, s *Store, task *types.Task) *types.Task {
	t.Helper()
	task.SetDefaults()
	require.NoError(t, s.RunInTransaction(context.Background(), func(tx storage.Tx) error {
		return tx.InsertTask(context.Background(), task)
	}))
	return task
}

func TestProjectCRUD(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	mustProject(t, store, "prj-aaa111", "Alpha")

	got, err := store.GetProject(ctx, "prj-aaa111")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)

	// Update
	got.Name = "Alpha 2"
	got.Icon = "rocket"
	require.NoError(t, store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.UpdateProject(ctx, got)
	}))
	got, err = store.GetProject(ctx, "prj-aaa111")
	require.NoError(t, err)
	assert.Equal(t, "Alpha 2", got.Name)
	assert.Equal(t, "rocket", got.Icon)

	// Delete
	require.NoError(t, store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.DeleteProject(ctx, "prj-aaa111")
	}))
	_, err = store.GetProject(ctx, "prj-aaa111")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetProjectNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetProject(context.Background(), "prj-nonono")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInsertProjectDuplicateConflict(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	mustProject(t, store, "prj-dup001", "First")

	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.InsertProject(ctx, &types.Project{ID: "prj-dup001", Name: "Second", CreatedAt: 1})
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestInsertProjectValidation(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.InsertProject(ctx, &types.Project{ID: "prj-bad001", CreatedAt: 1})
	})
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	mustProject(t, store, "prj-aaa111", "Alpha")

	start := int64(1735689600000)
	due := start + 86400000
	mustTask(t, store, &types.Task{
		ID:           "tsk-aaa111",
		ProjectID:    "prj-aaa111",
		Title:        "Foundations",
		Status:       types.StatusInProgress,
		Priority:     types.PriorityHigh,
		StartDate:    &start,
		DueDate:      &due,
		Completion:   30,
		Assignee:     "dana",
		WBS:          "1.2",
		IsMilestone:  true,
		Predecessors: []string{"tsk-zzz999", "1.1"},
	})

	got, err := store.GetTask(ctx, "tsk-aaa111")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, got.Status)
	assert.Equal(t, types.PriorityHigh, got.Priority)
	assert.Equal(t, start, *got.StartDate)
	assert.Equal(t, due, *got.DueDate)
	assert.Equal(t, 30, got.Completion)
	assert.Equal(t, "1.2", got.WBS)
	assert.True(t, got.IsMilestone)
	assert.Equal(t, []string{"tsk-zzz999", "1.1"}, got.Predecessors)
}

func TestTaskPredecessorsNeverNull(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	mustProject(t, store, "prj-aaa111", "Alpha")
	mustTask(t, store, &types.Task{ID: "tsk-aaa111", ProjectID: "prj-aaa111", Title: "x"})

	got, err := store.GetTask(ctx, "tsk-aaa111")
	require.NoError(t, err)
	assert.NotNil(t, got.Predecessors)
	assert.Empty(t, got.Predecessors)
}

func seedTaskList(t *testing.T, store *Store) {
	t.Helper()
	mustProject(t, store, "prj-aaa111", "Alpha")
	mustProject(t, store, "prj-bbb222", "Beta")

	base := int64(1735689600000)
	specs := []struct {
		id, project, title, desc, assignee string
		status                             types.Status
		offset                             int64
	}{
		{"tsk-aaa111", "prj-aaa111", "Pour foundation", "concrete work", "dana", types.StatusDone, 0},
		{"tsk-bbb222", "prj-aaa111", "Frame walls", "lumber and nails", "lee", types.StatusInProgress, 1},
		{"tsk-ccc333", "prj-aaa111", "Install windows", "glass panes", "dana", types.StatusTodo, 2},
		{"tsk-ddd444", "prj-bbb222", "Write proposal", "draft the PROPOSAL text", "lee", types.StatusTodo, 3},
	}
	for _, spec := range specs {
		mustTask(t, store, &types.Task{
			ID:          spec.id,
			ProjectID:   spec.project,
			Title:       spec.title,
			Description: spec.desc,
			Assignee:    spec.assignee,
			Status:      spec.status,
			CreatedAt:   base + spec.offset,
		})
	}
}

func TestListTasksFilters(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedTaskList(t, store)

	t.Run("by project ordered by createdAt", func(t *testing.T) {
		page, err := store.ListTasks(ctx, types.TaskFilter{ProjectID: "prj-aaa111"})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		ids := []string{page.Data[0].ID, page.Data[1].ID, page.Data[2].ID}
		assert.Equal(t, []string{"tsk-aaa111", "tsk-bbb222", "tsk-ccc333"}, ids)
	})

	t.Run("by status", func(t *testing.T) {
		status := types.StatusTodo
		page, err := store.ListTasks(ctx, types.TaskFilter{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("by assignee", func(t *testing.T) {
		assignee := "dana"
		page, err := store.ListTasks(ctx, types.TaskFilter{Assignee: &assignee})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("q matches title case-insensitively", func(t *testing.T) {
		page, err := store.ListTasks(ctx, types.TaskFilter{Q: "FRAME"})
		require.NoError(t, err)
		require.Equal(t, 1, page.Total)
		assert.Equal(t, "tsk-bbb222", page.Data[0].ID)
	})

	t.Run("q matches description case-insensitively", func(t *testing.T) {
		page, err := store.ListTasks(ctx, types.TaskFilter{Q: "proposal"})
		require.NoError(t, err)
		require.Equal(t, 1, page.Total)
		assert.Equal(t, "tsk-ddd444", page.Data[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := store.ListTasks(ctx, types.TaskFilter{Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, page.Total)
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 2, page.PageSize)
		require.Len(t, page.Data, 2)
		assert.Equal(t, "tsk-ccc333", page.Data[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		page, err := store.ListTasks(ctx, types.TaskFilter{Q: "zzzzzz"})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.Empty(t, page.Data)
	})
}

func TestTransactionRollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		if err := tx.InsertProject(ctx, &types.Project{ID: "prj-roll01", Name: "Doomed", CreatedAt: 1}); err != nil {
			return err
		}
		return fmt.Errorf("abort on purpose")
	})
	require.Error(t, err)

	_, err = store.GetProject(ctx, "prj-roll01")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionRollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	require.Panics(t, func() {
		_ = store.RunInTransaction(ctx, func(tx storage.Tx) error {
			if err := tx.InsertProject(ctx, &types.Project{ID: "prj-panic1", Name: "Doomed", CreatedAt: 1}); err != nil {
				return err
			}
			panic("boom")
		})
	})

	_, err := store.GetProject(ctx, "prj-panic1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSeedIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	require.NoError(t, store.Seed(ctx))
	require.NoError(t, store.Seed(ctx))

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	page, err := store.ListTasks(ctx, types.TaskFilter{ProjectID: "prj-demo01"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	// Seed rows model pre-existing state; they carry no audit entries.
	audit, err := store.ListAuditLogs(ctx, types.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, audit.Total)
}
