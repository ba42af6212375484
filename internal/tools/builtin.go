package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/draftboard/draftboard/internal/apply"
	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/types"
)

// Deps are the collaborators the built-in tools close over.
type Deps struct {
	Store storage.Store
	Apply *apply.Engine
}

// PlannedActions is the result shape of every write tool: proposed draft
// actions for the caller to submit, never applied directly.
type PlannedActions struct {
	Actions []types.DraftAction `json:"actions"`
}

// NewBuiltinRegistry builds the standard tool table over the given deps.
func NewBuiltinRegistry(deps Deps) *Registry {
	r := NewRegistry()
	registerReadTools(r, deps)
	registerWriteTools(r)
	registerActionTools(r, deps)
	return r
}

// --- schema helpers ---

func schemaObject(props map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func schemaString(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func schemaNumber(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

func schemaBool(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc}
}

func schemaStringArray(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": desc,
	}
}

// --- argument helpers ---

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}

// pick copies the recognized keys out of the wire arguments, dropping
// everything else silently so an over-eager agent stays unblocked.
func pick(args map[string]interface{}, keys ...string) map[string]interface{} {
	out := map[string]interface{}{}
	for _, k := range keys {
		if v, ok := args[k]; ok && v != nil {
			out[k] = v
		}
	}
	return out
}

var projectFields = []string{"name", "description", "icon"}

var taskFields = []string{
	"projectId", "title", "description", "status", "priority",
	"startDate", "dueDate", "completion", "assignee", "wbs",
	"isMilestone", "predecessors",
}

// --- read tools ---

func registerReadTools(r *Registry, deps Deps) {
	r.Register(&Tool{
		Name:        "list_projects",
		Description: "List all projects.",
		Category:    CategoryRead,
		Parameters:  schemaObject(map[string]interface{}{}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return deps.Store.ListProjects(ctx)
		},
	})

	r.Register(&Tool{
		Name:        "get_project",
		Description: "Fetch a single project by id.",
		Category:    CategoryRead,
		Parameters: schemaObject(map[string]interface{}{
			"projectId": schemaString("Project id"),
		}, "projectId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id := argString(args, "projectId")
			if id == "" {
				return nil, fmt.Errorf("%w: projectId is required", storage.ErrValidation)
			}
			return deps.Store.GetProject(ctx, id)
		},
	})

	r.Register(&Tool{
		Name:        "list_tasks",
		Description: "List tasks with optional filters, paginated.",
		Category:    CategoryRead,
		Parameters: schemaObject(map[string]interface{}{
			"projectId": schemaString("Filter by owning project"),
			"status":    schemaString("Filter by status: TODO, IN_PROGRESS, or DONE"),
			"assignee":  schemaString("Filter by assignee"),
			"page":      schemaNumber("Page number, starting at 1"),
			"pageSize":  schemaNumber("Results per page"),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			filter, err := taskFilterFromArgs(args)
			if err != nil {
				return nil, err
			}
			return deps.Store.ListTasks(ctx, filter)
		},
	})

	r.Register(&Tool{
		Name:        "search_tasks",
		Description: "Search tasks by a case-insensitive substring of title or description.",
		Category:    CategoryRead,
		Parameters: schemaObject(map[string]interface{}{
			"q":         schemaString("Search text"),
			"projectId": schemaString("Restrict to one project"),
			"page":      schemaNumber("Page number, starting at 1"),
			"pageSize":  schemaNumber("Results per page"),
		}, "q"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			filter, err := taskFilterFromArgs(args)
			if err != nil {
				return nil, err
			}
			if filter.Q == "" {
				return nil, fmt.Errorf("%w: q is required", storage.ErrValidation)
			}
			return deps.Store.ListTasks(ctx, filter)
		},
	})

	r.Register(&Tool{
		Name:        "get_task",
		Description: "Fetch a single task by id.",
		Category:    CategoryRead,
		Parameters: schemaObject(map[string]interface{}{
			"taskId": schemaString("Task id"),
		}, "taskId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id := argString(args, "taskId")
			if id == "" {
				return nil, fmt.Errorf("%w: taskId is required", storage.ErrValidation)
			}
			return deps.Store.GetTask(ctx, id)
		},
	})
}

func taskFilterFromArgs(args map[string]interface{}) (types.TaskFilter, error) {
	filter := types.TaskFilter{
		ProjectID: argString(args, "projectId"),
		Q:         argString(args, "q"),
		Page:      argInt(args, "page"),
		PageSize:  argInt(args, "pageSize"),
	}
	if s := argString(args, "status"); s != "" {
		status := types.Status(strings.ToUpper(s))
		if !status.IsValid() {
			return filter, fmt.Errorf("%w: unknown status %q", storage.ErrValidation, s)
		}
		filter.Status = &status
	}
	if a := argString(args, "assignee"); a != "" {
		filter.Assignee = &a
	}
	return filter, nil
}

// --- write tools (proposal only) ---

func registerWriteTools(r *Registry) {
	r.Register(&Tool{
		Name:        "create_project",
		Description: "Propose creating a project. Returns draft actions; nothing is written until the draft is applied.",
		Category:    CategoryWrite,
		Parameters: schemaObject(map[string]interface{}{
			"name":        schemaString("Project name"),
			"description": schemaString("Project description"),
			"icon":        schemaString("Icon identifier"),
		}, "name"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return PlannedActions{Actions: []types.DraftAction{{
				EntityType: types.EntityProject,
				Action:     types.ActionCreate,
				After:      pick(args, projectFields...),
			}}}, nil
		},
	})

	r.Register(&Tool{
		Name:        "update_project",
		Description: "Propose updating a project. Only provided fields change.",
		Category:    CategoryWrite,
		Parameters: schemaObject(map[string]interface{}{
			"projectId":   schemaString("Project id"),
			"name":        schemaString("New name"),
			"description": schemaString("New description"),
			"icon":        schemaString("New icon identifier"),
		}, "projectId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return plannedMutation(types.EntityProject, types.ActionUpdate, args, projectFields)
		},
	})

	r.Register(&Tool{
		Name:        "delete_project",
		Description: "Propose deleting a project. Its tasks are deleted with it when applied.",
		Category:    CategoryWrite,
		Parameters: schemaObject(map[string]interface{}{
			"projectId": schemaString("Project id"),
		}, "projectId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return plannedDelete(types.EntityProject, argString(args, "projectId"))
		},
	})

	r.Register(&Tool{
		Name:        "create_task",
		Description: "Propose creating a task in a project.",
		Category:    CategoryWrite,
		Parameters: schemaObject(map[string]interface{}{
			"projectId":    schemaString("Owning project id"),
			"title":        schemaString("Task title"),
			"description":  schemaString("Task description"),
			"status":       schemaString("TODO, IN_PROGRESS, or DONE"),
			"priority":     schemaString("LOW, MEDIUM, or HIGH"),
			"startDate":    schemaNumber("Start date in epoch milliseconds"),
			"dueDate":      schemaNumber("Due date in epoch milliseconds"),
			"completion":   schemaNumber("Completion percentage 0-100"),
			"assignee":     schemaString("Assignee"),
			"wbs":          schemaString("Work breakdown structure code, e.g. 1.2.3"),
			"isMilestone":  schemaBool("Whether the task is a milestone"),
			"predecessors": schemaStringArray("Task ids or WBS codes this task depends on"),
		}, "title"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return PlannedActions{Actions: []types.DraftAction{{
				EntityType: types.EntityTask,
				Action:     types.ActionCreate,
				After:      pick(args, taskFields...),
			}}}, nil
		},
	})

	r.Register(&Tool{
		Name:        "update_task",
		Description: "Propose updating a task. Only provided fields change.",
		Category:    CategoryWrite,
		Parameters: schemaObject(map[string]interface{}{
			"taskId":       schemaString("Task id"),
			"title":        schemaString("New title"),
			"description":  schemaString("New description"),
			"status":       schemaString("TODO, IN_PROGRESS, or DONE"),
			"priority":     schemaString("LOW, MEDIUM, or HIGH"),
			"startDate":    schemaNumber("Start date in epoch milliseconds"),
			"dueDate":      schemaNumber("Due date in epoch milliseconds"),
			"completion":   schemaNumber("Completion percentage 0-100"),
			"assignee":     schemaString("New assignee"),
			"wbs":          schemaString("New WBS code"),
			"isMilestone":  schemaBool("Whether the task is a milestone"),
			"predecessors": schemaStringArray("Task ids or WBS codes this task depends on"),
		}, "taskId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return plannedMutation(types.EntityTask, types.ActionUpdate, args, taskFields)
		},
	})

	r.Register(&Tool{
		Name:        "delete_task",
		Description: "Propose deleting a task.",
		Category:    CategoryWrite,
		Parameters: schemaObject(map[string]interface{}{
			"taskId": schemaString("Task id"),
		}, "taskId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return plannedDelete(types.EntityTask, argString(args, "taskId"))
		},
	})

	r.Register(&Tool{
		Name:        "plan_changes",
		Description: "Propose a pre-built batch of draft actions across projects and tasks.",
		Category:    CategoryWrite,
		Parameters: schemaObject(map[string]interface{}{
			"actions": map[string]interface{}{
				"type":        "array",
				"description": "Draft actions with entityType, action, entityId, after",
				"items": schemaObject(map[string]interface{}{
					"entityType": schemaString("project or task"),
					"action":     schemaString("create, update, or delete"),
					"entityId":   schemaString("Target entity id for update and delete"),
					"after":      map[string]interface{}{"type": "object", "description": "Field values for create and update"},
				}, "entityType", "action"),
			},
		}, "actions"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			raw, ok := args["actions"].([]interface{})
			if !ok || len(raw) == 0 {
				return nil, fmt.Errorf("%w: actions must be a non-empty array", storage.ErrValidation)
			}
			actions := make([]types.DraftAction, 0, len(raw))
			for i, item := range raw {
				obj, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("%w: action %d is not an object", storage.ErrValidation, i)
				}
				action := types.DraftAction{
					EntityType: types.EntityType(argString(obj, "entityType")),
					Action:     types.ActionKind(argString(obj, "action")),
					EntityID:   argString(obj, "entityId"),
				}
				if after, ok := obj["after"].(map[string]interface{}); ok {
					switch action.EntityType {
					case types.EntityProject:
						action.After = pick(after, projectFields...)
					default:
						action.After = pick(after, taskFields...)
					}
				}
				if err := action.Validate(); err != nil {
					return nil, fmt.Errorf("%w: action %d: %s", storage.ErrValidation, i, err)
				}
				actions = append(actions, action)
			}
			return PlannedActions{Actions: actions}, nil
		},
	})
}

func plannedMutation(et types.EntityType, kind types.ActionKind, args map[string]interface{}, fields []string) (interface{}, error) {
	idKey := "taskId"
	if et == types.EntityProject {
		idKey = "projectId"
	}
	id := argString(args, idKey)
	if id == "" {
		return nil, fmt.Errorf("%w: %s is required", storage.ErrValidation, idKey)
	}
	after := pick(args, fields...)
	if et == types.EntityTask {
		// projectId identifies the target only for task tools; moving a task
		// between projects is not proposed through update_task.
		delete(after, "projectId")
	}
	if len(after) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", storage.ErrValidation)
	}
	return PlannedActions{Actions: []types.DraftAction{{
		EntityType: et,
		Action:     kind,
		EntityID:   id,
		After:      after,
	}}}, nil
}

func plannedDelete(et types.EntityType, id string) (interface{}, error) {
	idKey := "taskId"
	if et == types.EntityProject {
		idKey = "projectId"
	}
	if id == "" {
		return nil, fmt.Errorf("%w: %s is required", storage.ErrValidation, idKey)
	}
	return PlannedActions{Actions: []types.DraftAction{{
		EntityType: et,
		Action:     types.ActionDelete,
		EntityID:   id,
	}}}, nil
}

// --- action tools ---

func registerActionTools(r *Registry, deps Deps) {
	r.Register(&Tool{
		Name:        "apply_changes",
		Description: "Apply an already-created pending draft by id.",
		Category:    CategoryAction,
		Parameters: schemaObject(map[string]interface{}{
			"draftId": schemaString("Draft id to apply"),
		}, "draftId"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id := argString(args, "draftId")
			if id == "" {
				return nil, fmt.Errorf("%w: draftId is required", storage.ErrValidation)
			}
			applied, entries, err := deps.Apply.ApplyDraft(ctx, id, types.ActorAgent)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"draft":        applied,
				"auditEntries": len(entries),
			}, nil
		},
	})
}
