// Package apply is the only subsystem allowed to mutate projects and tasks.
//
// It executes approved drafts atomically, emitting one audit entry per
// effected entity mutation with full before/after snapshots, and can invert
// any single committed audit entry (recorded as a rollback entry, keeping the
// log append-only).
package apply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/draftboard/draftboard/internal/idgen"
	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/telemetry"
	"github.com/draftboard/draftboard/internal/types"
)

// Engine applies drafts and rolls back audit entries.
type Engine struct {
	store storage.Store
}

// NewEngine creates an apply engine backed by store.
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// ApplyDraft executes all actions of a pending draft inside one transaction,
// in declared order, and transitions the draft to applied. Any per-action
// failure aborts the whole transaction: the draft stays pending and no
// partial writes or audit entries survive.
func (e *Engine) ApplyDraft(ctx context.Context, draftID string, actor types.Actor) (*types.Draft, []*types.AuditLog, error) {
	if !actor.IsValid() {
		return nil, nil, fmt.Errorf("%w: invalid actor %q", storage.ErrValidation, actor)
	}

	var applied *types.Draft
	var entries []*types.AuditLog

	err := e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		d, err := tx.GetDraft(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != types.DraftPending {
			return fmt.Errorf("draft %s is %s, not pending: %w", d.ID, d.Status, storage.ErrConflict)
		}

		// Transaction start time, shared by every entry the draft emits.
		ts := types.NowMillis()
		emit := func(a *types.AuditLog) error {
			a.ID = uuid.NewString()
			a.Actor = actor
			a.Reason = d.Reason
			a.Timestamp = ts
			a.SourceDraftID = d.ID
			if err := tx.AppendAuditLog(ctx, a); err != nil {
				return err
			}
			entries = append(entries, a)
			return nil
		}

		for i := range d.Actions {
			if err := e.applyAction(ctx, tx, &d.Actions[i], ts, emit); err != nil {
				return fmt.Errorf("action %d (%s %s): %w", i, d.Actions[i].Action, d.Actions[i].EntityType, err)
			}
		}

		if err := tx.SetDraftStatus(ctx, d.ID, types.DraftApplied, &ts); err != nil {
			return err
		}
		d.Status = types.DraftApplied
		d.AppliedAt = &ts
		applied = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	telemetry.CountDraftApplied(ctx, len(applied.Actions))
	return applied, entries, nil
}

// emitFn appends one audit entry; the engine fills actor/reason/timestamp.
type emitFn func(*types.AuditLog) error

func (e *Engine) applyAction(ctx context.Context, tx storage.Tx, action *types.DraftAction, ts int64, emit emitFn) error {
	switch action.EntityType {
	case types.EntityProject:
		return e.applyProjectAction(ctx, tx, action, ts, emit)
	case types.EntityTask:
		return e.applyTaskAction(ctx, tx, action, ts, emit)
	}
	return fmt.Errorf("%w: unknown entity type %q", storage.ErrValidation, action.EntityType)
}

func (e *Engine) applyProjectAction(ctx context.Context, tx storage.Tx, action *types.DraftAction, ts int64, emit emitFn) error {
	switch action.Action {
	case types.ActionCreate:
		p := &types.Project{CreatedAt: ts}
		types.ApplyProjectPatch(p, action.After)
		if p.ID == "" {
			id, err := freeProjectID(ctx, tx, p.Name, ts)
			if err != nil {
				return err
			}
			p.ID = id
		}
		if err := tx.InsertProject(ctx, p); err != nil {
			return err
		}
		return emit(&types.AuditLog{
			ProjectID:  p.ID,
			EntityType: types.EntityProject,
			EntityID:   p.ID,
			Action:     types.ActionCreate,
			After:      snapshot(p),
		})

	case types.ActionUpdate:
		p, err := tx.GetProject(ctx, action.EntityID)
		if err != nil {
			return err
		}
		before := snapshot(p)
		types.ApplyProjectPatch(p, action.After)
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		return emit(&types.AuditLog{
			ProjectID:  p.ID,
			EntityType: types.EntityProject,
			EntityID:   p.ID,
			Action:     types.ActionUpdate,
			Before:     before,
			After:      snapshot(p),
		})

	case types.ActionDelete:
		p, err := tx.GetProject(ctx, action.EntityID)
		if err != nil {
			return err
		}
		// Cascade: the project's tasks go first, one audit entry each.
		// Children carry their own entries; the project entry does not
		// encode them (rollback restores one entity per call).
		tasks, err := tx.ListProjectTasks(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if err := tx.DeleteTask(ctx, t.ID); err != nil {
				return err
			}
			if err := emit(&types.AuditLog{
				ProjectID:  p.ID,
				EntityType: types.EntityTask,
				EntityID:   t.ID,
				Action:     types.ActionDelete,
				Before:     snapshot(t),
			}); err != nil {
				return err
			}
		}
		if err := tx.DeleteProject(ctx, p.ID); err != nil {
			return err
		}
		return emit(&types.AuditLog{
			ProjectID:  p.ID,
			EntityType: types.EntityProject,
			EntityID:   p.ID,
			Action:     types.ActionDelete,
			Before:     snapshot(p),
		})
	}
	return fmt.Errorf("%w: unknown action %q", storage.ErrValidation, action.Action)
}

func (e *Engine) applyTaskAction(ctx context.Context, tx storage.Tx, action *types.DraftAction, ts int64, emit emitFn) error {
	switch action.Action {
	case types.ActionCreate:
		t := &types.Task{}
		types.ApplyTaskPatch(t, action.After)
		if t.CreatedAt == 0 {
			t.CreatedAt = ts
		}
		t.SetDefaults()
		// P-1: the owning project must exist at commit time.
		if t.ProjectID != "" {
			if _, err := tx.GetProject(ctx, t.ProjectID); err != nil {
				return fmt.Errorf("project %s: %w", t.ProjectID, err)
			}
		}
		if t.ID == "" {
			id, err := freeTaskID(ctx, tx, t.Title, ts)
			if err != nil {
				return err
			}
			t.ID = id
		}
		if err := tx.InsertTask(ctx, t); err != nil {
			return err
		}
		return emit(&types.AuditLog{
			ProjectID:  t.ProjectID,
			EntityType: types.EntityTask,
			EntityID:   t.ID,
			Action:     types.ActionCreate,
			After:      snapshot(t),
		})

	case types.ActionUpdate:
		t, err := tx.GetTask(ctx, action.EntityID)
		if err != nil {
			return err
		}
		before := snapshot(t)
		types.ApplyTaskPatch(t, action.After)
		t.Completion = types.ClampCompletion(t.Completion)
		if err := tx.UpdateTask(ctx, t); err != nil {
			return err
		}
		return emit(&types.AuditLog{
			ProjectID:  t.ProjectID,
			EntityType: types.EntityTask,
			EntityID:   t.ID,
			Action:     types.ActionUpdate,
			Before:     before,
			After:      snapshot(t),
		})

	case types.ActionDelete:
		t, err := tx.GetTask(ctx, action.EntityID)
		if err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, t.ID); err != nil {
			return err
		}
		return emit(&types.AuditLog{
			ProjectID:  t.ProjectID,
			EntityType: types.EntityTask,
			EntityID:   t.ID,
			Action:     types.ActionDelete,
			Before:     snapshot(t),
		})
	}
	return fmt.Errorf("%w: unknown action %q", storage.ErrValidation, action.Action)
}

// RollbackAudit synthesizes and applies the inverse of one committed audit
// entry inside one transaction, and records it as a rollback entry pointing
// at the original. Exactly one entry is rolled back per call; cascaded
// children must be rolled back individually by the caller.
func (e *Engine) RollbackAudit(ctx context.Context, auditID string, actor types.Actor) (*types.AuditLog, error) {
	if !actor.IsValid() {
		return nil, fmt.Errorf("%w: invalid actor %q", storage.ErrValidation, actor)
	}

	// The audit log is append-only, so reading the target outside the
	// transaction is safe.
	orig, err := e.store.GetAuditLog(ctx, auditID)
	if err != nil {
		return nil, err
	}
	if orig.Action == types.ActionRollback {
		return nil, fmt.Errorf("%w: cannot roll back a rollback entry", storage.ErrValidation)
	}

	var entry *types.AuditLog
	err = e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		entry = &types.AuditLog{
			ID:                uuid.NewString(),
			ProjectID:         orig.ProjectID,
			EntityType:        orig.EntityType,
			EntityID:          orig.EntityID,
			Action:            types.ActionRollback,
			Actor:             actor,
			Timestamp:         types.NowMillis(),
			RollbackOfAuditID: orig.ID,
		}

		switch orig.Action {
		case types.ActionCreate:
			// Inverse: delete the created entity.
			current, err := e.currentSnapshot(ctx, tx, orig.EntityType, orig.EntityID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("entity %s/%s already removed: %w", orig.EntityType, orig.EntityID, storage.ErrConflict)
				}
				return err
			}
			entry.Before = current
			if err := e.deleteEntity(ctx, tx, orig.EntityType, orig.EntityID); err != nil {
				return err
			}

		case types.ActionDelete:
			// Inverse: re-insert the before snapshot under its original id.
			if _, err := e.currentSnapshot(ctx, tx, orig.EntityType, orig.EntityID); err == nil {
				return fmt.Errorf("entity %s/%s already exists: %w", orig.EntityType, orig.EntityID, storage.ErrConflict)
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			restored, err := e.insertSnapshot(ctx, tx, orig.EntityType, orig.EntityID, orig.Before)
			if err != nil {
				return err
			}
			entry.After = restored

		case types.ActionUpdate:
			// Inverse: write the before snapshot back over the current row.
			current, err := e.currentSnapshot(ctx, tx, orig.EntityType, orig.EntityID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("entity %s/%s no longer exists: %w", orig.EntityType, orig.EntityID, storage.ErrConflict)
				}
				return err
			}
			entry.Before = current
			restored, err := e.writeSnapshot(ctx, tx, orig.EntityType, orig.EntityID, orig.Before)
			if err != nil {
				return err
			}
			entry.After = restored

		default:
			return fmt.Errorf("%w: cannot invert action %q", storage.ErrValidation, orig.Action)
		}

		return tx.AppendAuditLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	telemetry.CountRollback(ctx)
	return entry, nil
}

func (e *Engine) currentSnapshot(ctx context.Context, tx storage.Tx, et types.EntityType, id string) (map[string]interface{}, error) {
	switch et {
	case types.EntityProject:
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		return snapshot(p), nil
	case types.EntityTask:
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		return snapshot(t), nil
	}
	return nil, fmt.Errorf("%w: unknown entity type %q", storage.ErrValidation, et)
}

func (e *Engine) deleteEntity(ctx context.Context, tx storage.Tx, et types.EntityType, id string) error {
	switch et {
	case types.EntityProject:
		return tx.DeleteProject(ctx, id)
	case types.EntityTask:
		return tx.DeleteTask(ctx, id)
	}
	return fmt.Errorf("%w: unknown entity type %q", storage.ErrValidation, et)
}

// insertSnapshot rebuilds an entity from an audit snapshot and inserts it
// under its original id.
func (e *Engine) insertSnapshot(ctx context.Context, tx storage.Tx, et types.EntityType, id string, snap map[string]interface{}) (map[string]interface{}, error) {
	switch et {
	case types.EntityProject:
		p := &types.Project{ID: id}
		types.ApplyProjectPatch(p, snap)
		if err := tx.InsertProject(ctx, p); err != nil {
			return nil, err
		}
		return snapshot(p), nil
	case types.EntityTask:
		t := &types.Task{ID: id}
		types.ApplyTaskPatch(t, snap)
		t.SetDefaults()
		if err := tx.InsertTask(ctx, t); err != nil {
			return nil, err
		}
		return snapshot(t), nil
	}
	return nil, fmt.Errorf("%w: unknown entity type %q", storage.ErrValidation, et)
}

// writeSnapshot overwrites the current row with an audit snapshot.
func (e *Engine) writeSnapshot(ctx context.Context, tx storage.Tx, et types.EntityType, id string, snap map[string]interface{}) (map[string]interface{}, error) {
	switch et {
	case types.EntityProject:
		p := &types.Project{ID: id}
		types.ApplyProjectPatch(p, snap)
		if err := tx.UpdateProject(ctx, p); err != nil {
			return nil, err
		}
		return snapshot(p), nil
	case types.EntityTask:
		t := &types.Task{ID: id}
		types.ApplyTaskPatch(t, snap)
		t.SetDefaults()
		if err := tx.UpdateTask(ctx, t); err != nil {
			return nil, err
		}
		return snapshot(t), nil
	}
	return nil, fmt.Errorf("%w: unknown entity type %q", storage.ErrValidation, et)
}

// freeProjectID generates a slug id not currently taken by any project row.
func freeProjectID(ctx context.Context, tx storage.Tx, name string, ts int64) (string, error) {
	for nonce := 0; nonce < 10; nonce++ {
		id := idgen.NewSlug(idgen.PrefixProject, ts, nonce, name)
		if _, err := tx.GetProject(ctx, id); errors.Is(err, storage.ErrNotFound) {
			return id, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a free project id: %w", storage.ErrConflict)
}

// freeTaskID generates a slug id not currently taken by any task row.
func freeTaskID(ctx context.Context, tx storage.Tx, title string, ts int64) (string, error) {
	for nonce := 0; nonce < 10; nonce++ {
		id := idgen.NewSlug(idgen.PrefixTask, ts, nonce, title)
		if _, err := tx.GetTask(ctx, id); errors.Is(err, storage.ErrNotFound) {
			return id, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a free task id: %w", storage.ErrConflict)
}

// snapshot converts an entity to its complete post-serialization JSON shape.
// Snapshots, not diffs: the entry alone suffices for display and reversal.
func snapshot(v interface{}) map[string]interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
