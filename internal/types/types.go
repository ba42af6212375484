// Package types defines core data structures for the draftboard change-control core.
package types

import (
	"fmt"
	"regexp"
	"time"
)

// Project is the top-level container for tasks.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// Validate checks that the project has valid field values.
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > 500 {
		return fmt.Errorf("name must be 500 characters or less (got %d)", len(p.Name))
	}
	return nil
}

// Task is a unit of work owned by exactly one project.
type Task struct {
	ID           string   `json:"id"`
	ProjectID    string   `json:"projectId"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Status       Status   `json:"status"`
	Priority     Priority `json:"priority"`
	CreatedAt    int64    `json:"createdAt"`
	StartDate    *int64   `json:"startDate,omitempty"`
	DueDate      *int64   `json:"dueDate,omitempty"`
	Completion   int      `json:"completion"`
	Assignee     string   `json:"assignee,omitempty"`
	WBS          string   `json:"wbs,omitempty"`
	IsMilestone  bool     `json:"isMilestone,omitempty"`
	Predecessors []string `json:"predecessors"`
}

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.ProjectID == "" {
		return fmt.Errorf("projectId is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	if t.Completion < 0 || t.Completion > 100 {
		return fmt.Errorf("completion must be between 0 and 100 (got %d)", t.Completion)
	}
	return nil
}

// SetDefaults applies default values for fields omitted at creation time:
// status TODO, priority MEDIUM, completion clamped to [0,100], createdAt now.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	t.Completion = ClampCompletion(t.Completion)
	if t.CreatedAt == 0 {
		t.CreatedAt = NowMillis()
	}
	if t.Predecessors == nil {
		t.Predecessors = []string{}
	}
}

// ClampCompletion clamps a completion percentage into [0,100].
func ClampCompletion(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Status represents the workflow state of a task.
type Status string

// Task status constants
const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// IsValid checks if the status value is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority represents the urgency of a task.
type Priority string

// Task priority constants
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// IsValid checks if the priority value is valid.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Actor identifies who initiated an operation.
type Actor string

// Actor constants
const (
	ActorUser   Actor = "user"
	ActorAgent  Actor = "agent"
	ActorSystem Actor = "system"
)

// IsValid checks if the actor value is valid.
func (a Actor) IsValid() bool {
	switch a {
	case ActorUser, ActorAgent, ActorSystem:
		return true
	}
	return false
}

// EntityType discriminates which table a draft action or audit entry targets.
type EntityType string

// Entity type constants
const (
	EntityProject EntityType = "project"
	EntityTask    EntityType = "task"
)

// IsValid checks if the entity type value is valid.
func (e EntityType) IsValid() bool {
	switch e {
	case EntityProject, EntityTask:
		return true
	}
	return false
}

// ActionKind is the mutation class of a draft action or audit entry.
type ActionKind string

// Action kind constants. Rollback appears only in audit entries, never in drafts.
const (
	ActionCreate   ActionKind = "create"
	ActionUpdate   ActionKind = "update"
	ActionDelete   ActionKind = "delete"
	ActionRollback ActionKind = "rollback"
)

// IsValid checks if the action kind is valid for a draft action.
func (a ActionKind) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// DraftStatus tracks the one-shot lifecycle of a draft.
type DraftStatus string

// Draft status constants. Transitions are terminal: pending->applied or
// pending->discarded. Applied drafts are immutable thereafter.
const (
	DraftPending   DraftStatus = "pending"
	DraftApplied   DraftStatus = "applied"
	DraftDiscarded DraftStatus = "discarded"
)

// IsValid checks if the draft status value is valid.
func (s DraftStatus) IsValid() bool {
	switch s {
	case DraftPending, DraftApplied, DraftDiscarded:
		return true
	}
	return false
}

// DraftAction is one proposed mutation inside a draft. Actions are evaluated
// in array order at apply time.
type DraftAction struct {
	ID         string                 `json:"id"`
	EntityType EntityType             `json:"entityType"`
	Action     ActionKind             `json:"action"`
	EntityID   string                 `json:"entityId,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
}

// Validate checks the structural discriminator fields of an action.
// Anything beyond structure is soft-validated into warnings by the draft engine.
func (a *DraftAction) Validate() error {
	if !a.EntityType.IsValid() {
		return fmt.Errorf("invalid entityType: %q", a.EntityType)
	}
	if !a.Action.IsValid() {
		return fmt.Errorf("invalid action: %q", a.Action)
	}
	if (a.Action == ActionUpdate || a.Action == ActionDelete) && a.EntityID == "" {
		return fmt.Errorf("%s action requires entityId", a.Action)
	}
	if (a.Action == ActionCreate || a.Action == ActionUpdate) && a.After == nil {
		return fmt.Errorf("%s action requires after object", a.Action)
	}
	return nil
}

// Draft is a persisted batch of proposed mutations, not yet applied.
type Draft struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"projectId,omitempty"`
	CreatedBy Actor         `json:"createdBy"`
	Status    DraftStatus   `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Actions   []DraftAction `json:"actions"`
	Warnings  []string      `json:"warnings"`
	CreatedAt int64         `json:"createdAt"`
	AppliedAt *int64        `json:"appliedAt,omitempty"`
}

// AuditLog is an append-only record of one entity mutation. Before and after
// are full post-serialization snapshots (not diffs) so the entry alone is
// sufficient for display and reversal.
type AuditLog struct {
	ID                string                 `json:"id"`
	Seq               int64                  `json:"-"`
	ProjectID         string                 `json:"projectId,omitempty"`
	EntityType        EntityType             `json:"entityType"`
	EntityID          string                 `json:"entityId"`
	Action            ActionKind             `json:"action"`
	Actor             Actor                  `json:"actor"`
	Before            map[string]interface{} `json:"before,omitempty"`
	After             map[string]interface{} `json:"after,omitempty"`
	Reason            string                 `json:"reason,omitempty"`
	Timestamp         int64                  `json:"timestamp"`
	SourceDraftID     string                 `json:"sourceDraftId,omitempty"`
	RollbackOfAuditID string                 `json:"rollbackOfAuditId,omitempty"`
}

// TaskFilter narrows ListTasks queries. Q is a case-insensitive substring
// matched against title and description.
type TaskFilter struct {
	ProjectID string
	Status    *Status
	Assignee  *string
	Q         string
	Page      int
	PageSize  int
}

// AuditFilter narrows ListAuditLogs queries.
type AuditFilter struct {
	ProjectID  string
	TaskID     string
	Actor      *Actor
	Action     *ActionKind
	EntityType *EntityType
	Q          string
	From       *int64
	To         *int64
	Page       int
	PageSize   int
}

// TaskPage is a paginated ListTasks result.
type TaskPage struct {
	Data     []*Task `json:"data"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// AuditPage is a paginated ListAuditLogs result.
type AuditPage struct {
	Data     []*AuditLog `json:"data"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

var wbsPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// IsWBS reports whether s is a dotted-numeric WBS code like "1.2.3".
// WBS codes are informational locators, not unique keys.
func IsWBS(s string) bool {
	return wbsPattern.MatchString(s)
}

// NowMillis returns the current time as integer milliseconds since epoch,
// the timestamp representation used across all persisted records.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
