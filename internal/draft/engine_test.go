package draft

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/storage/sqlite"
	"github.com/draftboard/draftboard/internal/types"
)

func setupEngine(t *testing.T) (*Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewEngine(store), store
}

func insertProject(t *testing.T, store *sqlite.Store, id, name string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.InsertProject(ctx, &types.Project{ID: id, Name: name, CreatedAt: types.NowMillis()})
	}))
}

func insertTask(t *testing.T, store *sqlite.Store, task *types.Task) {
	t.Helper()
	ctx := context.Background()
	task.SetDefaults()
	require.NoError(t, store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.InsertTask(ctx, task)
	}))
}

func createAction(after map[string]interface{}) types.DraftAction {
	return types.DraftAction{EntityType: types.EntityTask, Action: types.ActionCreate, After: after}
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestSubmitPersistsPendingDraft(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)
	insertProject(t, store, "prj-aaa111", "Alpha")

	d, warnings, err := engine.Submit(ctx, SubmitRequest{
		ProjectID: "prj-aaa111",
		CreatedBy: types.ActorAgent,
		Reason:    "plan the build",
		Actions: []types.DraftAction{
			createAction(map[string]interface{}{"title": "Foundations", "projectId": "prj-aaa111"}),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, strings.HasPrefix(d.ID, "drf-"))
	assert.Equal(t, types.DraftPending, d.Status)
	assert.Equal(t, d.ID+".1", d.Actions[0].ID)

	stored, err := store.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DraftPending, stored.Status)
	assert.Equal(t, "plan the build", stored.Reason)
}

func TestSubmitHardValidation(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	t.Run("empty actions", func(t *testing.T) {
		_, _, err := engine.Submit(ctx, SubmitRequest{CreatedBy: types.ActorUser})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("invalid createdBy", func(t *testing.T) {
		_, _, err := engine.Submit(ctx, SubmitRequest{
			CreatedBy: "robot",
			Actions:   []types.DraftAction{createAction(map[string]interface{}{"title": "x"})},
		})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})

	t.Run("update without entityId", func(t *testing.T) {
		_, _, err := engine.Submit(ctx, SubmitRequest{
			CreatedBy: types.ActorUser,
			Actions: []types.DraftAction{{
				EntityType: types.EntityTask,
				Action:     types.ActionUpdate,
				After:      map[string]interface{}{"title": "x"},
			}},
		})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})
}

func TestSubmitWarnsOnMissingEntity(t *testing.T) {
	ctx := context.Background()
	engine, _ := setupEngine(t)

	d, warnings, err := engine.Submit(ctx, SubmitRequest{
		CreatedBy: types.ActorUser,
		Actions: []types.DraftAction{{
			EntityType: types.EntityTask,
			Action:     types.ActionDelete,
			EntityID:   "tsk-nonono",
		}},
	})
	require.NoError(t, err)
	assert.True(t, hasWarning(warnings, "task/tsk-nonono not found"))
	assert.Equal(t, types.DraftPending, d.Status)
}

func TestSubmitWarnsOnDuplicateTargets(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)
	insertProject(t, store, "prj-aaa111", "Alpha")
	insertTask(t, store, &types.Task{ID: "tsk-aaa111", ProjectID: "prj-aaa111", Title: "x"})

	update := types.DraftAction{
		EntityType: types.EntityTask,
		Action:     types.ActionUpdate,
		EntityID:   "tsk-aaa111",
		After:      map[string]interface{}{"title": "y"},
	}
	_, warnings, err := engine.Submit(ctx, SubmitRequest{
		CreatedBy: types.ActorUser,
		Actions:   []types.DraftAction{update, update},
	})
	require.NoError(t, err)
	assert.True(t, hasWarning(warnings, "targeted by multiple actions"))
}

func TestSubmitWarnsOnDatesAndRanges(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)
	insertProject(t, store, "prj-aaa111", "Alpha")

	_, warnings, err := engine.Submit(ctx, SubmitRequest{
		ProjectID: "prj-aaa111",
		CreatedBy: types.ActorAgent,
		Actions: []types.DraftAction{
			createAction(map[string]interface{}{
				"title":     "Backwards",
				"startDate": float64(1735689600000),
				"dueDate":   float64(1735689000000),
			}),
			createAction(map[string]interface{}{
				"title":      "Overdone",
				"completion": float64(150),
			}),
			createAction(map[string]interface{}{
				"title":  "Odd enums",
				"status": "BLOCKED",
			}),
		},
	})
	require.NoError(t, err)
	assert.True(t, hasWarning(warnings, "due before start"))
	assert.True(t, hasWarning(warnings, "completion 150 outside [0,100]"))
	assert.True(t, hasWarning(warnings, `unknown status "BLOCKED"`))
}

func TestSubmitFillsProjectIDFromDraft(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)
	insertProject(t, store, "prj-aaa111", "Alpha")

	d, warnings, err := engine.Submit(ctx, SubmitRequest{
		ProjectID: "prj-aaa111",
		CreatedBy: types.ActorAgent,
		Actions:   []types.DraftAction{createAction(map[string]interface{}{"title": "Inherit"})},
	})
	require.NoError(t, err)
	assert.False(t, hasWarning(warnings, "missing projectId"))
	assert.Equal(t, "prj-aaa111", d.Actions[0].After["projectId"])

	_, warnings, err = engine.Submit(ctx, SubmitRequest{
		CreatedBy: types.ActorAgent,
		Actions:   []types.DraftAction{createAction(map[string]interface{}{"title": "Orphan"})},
	})
	require.NoError(t, err)
	assert.True(t, hasWarning(warnings, "missing projectId"))
}

func TestSubmitPredecessorResolution(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)
	insertProject(t, store, "prj-aaa111", "Alpha")
	insertTask(t, store, &types.Task{ID: "tsk-aaa111", ProjectID: "prj-aaa111", Title: "Existing", WBS: "1"})

	t.Run("existing id and wbs resolve", func(t *testing.T) {
		_, warnings, err := engine.Submit(ctx, SubmitRequest{
			ProjectID: "prj-aaa111",
			CreatedBy: types.ActorAgent,
			Actions: []types.DraftAction{
				createAction(map[string]interface{}{
					"title":        "Dependent",
					"predecessors": []interface{}{"tsk-aaa111", "1"},
				}),
			},
		})
		require.NoError(t, err)
		assert.False(t, hasWarning(warnings, "predecessors not found"))
	})

	t.Run("wbs introduced earlier in the batch resolves", func(t *testing.T) {
		_, warnings, err := engine.Submit(ctx, SubmitRequest{
			ProjectID: "prj-aaa111",
			CreatedBy: types.ActorAgent,
			Actions: []types.DraftAction{
				createAction(map[string]interface{}{"title": "Phase two", "wbs": "2"}),
				createAction(map[string]interface{}{
					"title":        "After phase two",
					"predecessors": []interface{}{"2"},
				}),
			},
		})
		require.NoError(t, err)
		assert.False(t, hasWarning(warnings, "predecessors not found"))
	})

	t.Run("dangling reference warns", func(t *testing.T) {
		_, warnings, err := engine.Submit(ctx, SubmitRequest{
			ProjectID: "prj-aaa111",
			CreatedBy: types.ActorAgent,
			Actions: []types.DraftAction{
				createAction(map[string]interface{}{
					"title":        "Dangling",
					"predecessors": []interface{}{"tsk-ghost1"},
				}),
			},
		})
		require.NoError(t, err)
		assert.True(t, hasWarning(warnings, "predecessors not found: tsk-ghost1"))
	})
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)
	insertProject(t, store, "prj-aaa111", "Alpha")

	d, _, err := engine.Submit(ctx, SubmitRequest{
		ProjectID: "prj-aaa111",
		CreatedBy: types.ActorUser,
		Actions:   []types.DraftAction{createAction(map[string]interface{}{"title": "x", "projectId": "prj-aaa111"})},
	})
	require.NoError(t, err)

	discarded, err := engine.Discard(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DraftDiscarded, discarded.Status)

	// Idempotent on already-discarded drafts.
	again, err := engine.Discard(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DraftDiscarded, again.Status)

	// Unknown draft.
	_, err = engine.Discard(ctx, "drf-nonono")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDiscardAppliedDraftConflicts(t *testing.T) {
	ctx := context.Background()
	engine, store := setupEngine(t)
	insertProject(t, store, "prj-aaa111", "Alpha")

	d, _, err := engine.Submit(ctx, SubmitRequest{
		ProjectID: "prj-aaa111",
		CreatedBy: types.ActorUser,
		Actions:   []types.DraftAction{createAction(map[string]interface{}{"title": "x", "projectId": "prj-aaa111"})},
	})
	require.NoError(t, err)

	now := types.NowMillis()
	require.NoError(t, store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.SetDraftStatus(ctx, d.ID, types.DraftApplied, &now)
	}))

	_, err = engine.Discard(ctx, d.ID)
	assert.ErrorIs(t, err, storage.ErrConflict)
}
