// Package draft validates and persists batches of proposed mutations.
//
// Validation is soft by design: the agent is a noisy source, so risks are
// surfaced as free-text warnings for human review rather than rejections.
// Only structural errors (missing discriminator fields, empty batch) are hard
// failures. Warnings are persisted on the draft row alongside the actions.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/draftboard/draftboard/internal/idgen"
	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/telemetry"
	"github.com/draftboard/draftboard/internal/types"
)

// Engine accepts proposed action batches and manages the pending/discarded
// side of the draft state machine. Applying drafts is the apply engine's job.
type Engine struct {
	store storage.Store
}

// NewEngine creates a draft engine backed by store.
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// SubmitRequest is the input to Submit.
type SubmitRequest struct {
	ProjectID string              `json:"projectId,omitempty"`
	CreatedBy types.Actor         `json:"createdBy"`
	Reason    string              `json:"reason,omitempty"`
	Actions   []types.DraftAction `json:"actions"`
}

// Submit validates the batch, persists it as a pending draft, and returns the
// draft together with the collected warnings. Structural problems return a
// validation error; everything else becomes a warning on the draft.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*types.Draft, []string, error) {
	if len(req.Actions) == 0 {
		return nil, nil, fmt.Errorf("%w: actions array is empty", storage.ErrValidation)
	}
	if !req.CreatedBy.IsValid() {
		return nil, nil, fmt.Errorf("%w: invalid createdBy %q", storage.ErrValidation, req.CreatedBy)
	}
	for i := range req.Actions {
		if err := req.Actions[i].Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: action %d: %s", storage.ErrValidation, i, err)
		}
	}

	now := types.NowMillis()
	d := &types.Draft{
		ProjectID: req.ProjectID,
		CreatedBy: req.CreatedBy,
		Status:    types.DraftPending,
		Reason:    req.Reason,
		Actions:   make([]types.DraftAction, len(req.Actions)),
		CreatedAt: now,
	}
	copy(d.Actions, req.Actions)

	warnings := e.validate(ctx, d)
	d.Warnings = warnings

	// Persist with collision retry on the generated slug.
	err := e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		for nonce := 0; ; nonce++ {
			d.ID = idgen.NewSlug(idgen.PrefixDraft, now, nonce, string(d.CreatedBy), d.Reason)
			assignActionIDs(d)
			insertErr := tx.InsertDraft(ctx, d)
			if insertErr == nil {
				return nil
			}
			if errors.Is(insertErr, storage.ErrConflict) && nonce < 5 {
				continue
			}
			return insertErr
		}
	})
	if err != nil {
		return nil, nil, err
	}

	telemetry.CountDraftSubmitted(ctx, string(d.CreatedBy))
	return d, warnings, nil
}

// assignActionIDs gives each action a stable id derived from the draft id.
// Caller-provided ids are kept.
func assignActionIDs(d *types.Draft) {
	for i := range d.Actions {
		if d.Actions[i].ID == "" {
			d.Actions[i].ID = fmt.Sprintf("%s.%d", d.ID, i+1)
		}
	}
}

// validate runs the soft checks and returns the collected warnings.
func (e *Engine) validate(ctx context.Context, d *types.Draft) []string {
	warnings := []string{}

	// Same entity targeted by more than one action: apply-time order decides
	// the outcome, which is usually not what the author intended.
	seen := map[string]int{}
	for i := range d.Actions {
		if id := d.Actions[i].EntityID; id != "" {
			seen[id]++
			if seen[id] == 2 {
				warnings = append(warnings, fmt.Sprintf("entity %s targeted by multiple actions", id))
			}
		}
	}

	// Known references for predecessor resolution: current tasks plus the ids
	// and WBS codes introduced earlier in this same batch.
	known := e.knownTaskRefs(ctx, d.ProjectID)

	for i := range d.Actions {
		action := &d.Actions[i]
		switch action.Action {
		case types.ActionUpdate, types.ActionDelete:
			if !e.entityExists(ctx, action.EntityType, action.EntityID) {
				warnings = append(warnings,
					fmt.Sprintf("entity %s/%s not found; action may fail at apply time",
						action.EntityType, action.EntityID))
			}
		}

		if action.EntityType != types.EntityTask {
			continue
		}

		switch action.Action {
		case types.ActionCreate:
			if _, ok := action.After["projectId"]; !ok {
				if d.ProjectID != "" {
					action.After["projectId"] = d.ProjectID
				} else {
					warnings = append(warnings, "task create missing projectId")
				}
			}
			merged := &types.Task{}
			types.ApplyTaskPatch(merged, action.After)
			warnings = append(warnings, e.taskWarnings(action.ID, merged, action.After, known)...)
			if merged.WBS != "" {
				known[merged.WBS] = true
			}

		case types.ActionUpdate:
			merged, err := e.store.GetTask(ctx, action.EntityID)
			if err != nil {
				merged = &types.Task{}
			}
			types.ApplyTaskPatch(merged, action.After)
			warnings = append(warnings, e.taskWarnings(action.EntityID, merged, action.After, known)...)
		}
	}

	return warnings
}

// taskWarnings checks a merged task state for the soft-invariant violations of
// the data model: date ordering, completion range, enum values, and dangling
// predecessor references.
func (e *Engine) taskWarnings(label string, merged *types.Task, after map[string]interface{}, known map[string]bool) []string {
	var warnings []string

	if merged.StartDate != nil && merged.DueDate != nil && *merged.DueDate < *merged.StartDate {
		warnings = append(warnings, fmt.Sprintf("%s: due before start", label))
	}
	if merged.Completion < 0 || merged.Completion > 100 {
		warnings = append(warnings,
			fmt.Sprintf("%s: completion %d outside [0,100]; will be clamped at apply time", label, merged.Completion))
	}
	if merged.Status != "" && !merged.Status.IsValid() {
		warnings = append(warnings, fmt.Sprintf("%s: unknown status %q", label, merged.Status))
	}
	if merged.Priority != "" && !merged.Priority.IsValid() {
		warnings = append(warnings, fmt.Sprintf("%s: unknown priority %q", label, merged.Priority))
	}

	if _, touched := after["predecessors"]; touched {
		var missing []string
		for _, ref := range merged.Predecessors {
			if !known[ref] {
				missing = append(missing, ref)
			}
		}
		if len(missing) > 0 {
			warnings = append(warnings,
				fmt.Sprintf("%s: predecessors not found: %s", label, strings.Join(missing, ", ")))
		}
	}

	return warnings
}

// knownTaskRefs collects the ids and WBS codes a predecessor entry may
// legitimately reference. Scoped to the draft's project when one is set.
func (e *Engine) knownTaskRefs(ctx context.Context, projectID string) map[string]bool {
	known := map[string]bool{}
	page, err := e.store.ListTasks(ctx, types.TaskFilter{ProjectID: projectID, PageSize: 10000})
	if err != nil {
		return known
	}
	for _, t := range page.Data {
		known[t.ID] = true
		if t.WBS != "" {
			known[t.WBS] = true
		}
	}
	return known
}

func (e *Engine) entityExists(ctx context.Context, et types.EntityType, id string) bool {
	var err error
	switch et {
	case types.EntityProject:
		_, err = e.store.GetProject(ctx, id)
	case types.EntityTask:
		_, err = e.store.GetTask(ctx, id)
	default:
		return false
	}
	return err == nil
}

// Discard transitions a pending draft to discarded. Discarding an already
// discarded draft is a no-op; discarding an applied draft is a conflict.
func (e *Engine) Discard(ctx context.Context, id string) (*types.Draft, error) {
	var result *types.Draft
	err := e.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		d, err := tx.GetDraft(ctx, id)
		if err != nil {
			return err
		}
		switch d.Status {
		case types.DraftDiscarded:
			result = d
			return nil
		case types.DraftApplied:
			return fmt.Errorf("draft %s already applied: %w", id, storage.ErrConflict)
		}
		if err := tx.SetDraftStatus(ctx, id, types.DraftDiscarded, nil); err != nil {
			return err
		}
		d.Status = types.DraftDiscarded
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.CountDraftDiscarded(ctx)
	return result, nil
}
