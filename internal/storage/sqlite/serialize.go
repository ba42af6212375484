package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/draftboard/draftboard/internal/types"
)

// dbtx is the subset of database/sql methods shared by *sql.DB and *sql.Conn,
// letting row helpers serve both pooled reads and in-transaction access.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner matches both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const projectColumns = "id, name, description, icon, created_at"

func scanProject(row rowScanner) (*types.Project, error) {
	var p types.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Icon, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func insertProject(ctx context.Context, conn dbtx, p *types.Project) error {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, icon, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Icon, p.CreatedAt)
	return err
}

func updateProject(ctx context.Context, conn dbtx, p *types.Project) error {
	res, err := conn.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, icon = ? WHERE id = ?`,
		p.Name, p.Description, p.Icon, p.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

const taskColumns = "id, project_id, title, description, status, priority, created_at, " +
	"start_date, due_date, completion, assignee, wbs, is_milestone, predecessors"

func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var status, priority, predecessors string
	var isMilestone int
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority,
		&t.CreatedAt, &t.StartDate, &t.DueDate, &t.Completion, &t.Assignee, &t.WBS,
		&isMilestone, &predecessors); err != nil {
		return nil, err
	}
	t.Status = types.Status(strings.ToUpper(status))
	t.Priority = types.Priority(strings.ToUpper(priority))
	t.IsMilestone = isMilestone != 0
	// Predecessors is always an array on read, never null.
	t.Predecessors = []string{}
	if predecessors != "" {
		if err := json.Unmarshal([]byte(predecessors), &t.Predecessors); err != nil {
			return nil, fmt.Errorf("task %s: malformed predecessors: %w", t.ID, err)
		}
		if t.Predecessors == nil {
			t.Predecessors = []string{}
		}
	}
	return &t, nil
}

func taskInsertArgs(t *types.Task) ([]any, error) {
	preds := t.Predecessors
	if preds == nil {
		preds = []string{}
	}
	predJSON, err := json.Marshal(preds)
	if err != nil {
		return nil, fmt.Errorf("marshal predecessors: %w", err)
	}
	return []any{
		t.ID, t.ProjectID, t.Title, t.Description,
		strings.ToUpper(string(t.Status)), strings.ToUpper(string(t.Priority)),
		t.CreatedAt, t.StartDate, t.DueDate, t.Completion, t.Assignee, t.WBS,
		boolToInt(t.IsMilestone), string(predJSON),
	}, nil
}

func insertTask(ctx context.Context, conn dbtx, t *types.Task) error {
	args, err := taskInsertArgs(t)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	return err
}

func updateTask(ctx context.Context, conn dbtx, t *types.Task) error {
	preds := t.Predecessors
	if preds == nil {
		preds = []string{}
	}
	predJSON, err := json.Marshal(preds)
	if err != nil {
		return fmt.Errorf("marshal predecessors: %w", err)
	}
	res, err := conn.ExecContext(ctx, `
		UPDATE tasks SET project_id = ?, title = ?, description = ?, status = ?,
			priority = ?, start_date = ?, due_date = ?, completion = ?,
			assignee = ?, wbs = ?, is_milestone = ?, predecessors = ?
		WHERE id = ?`,
		t.ProjectID, t.Title, t.Description,
		strings.ToUpper(string(t.Status)), strings.ToUpper(string(t.Priority)),
		t.StartDate, t.DueDate, t.Completion, t.Assignee, t.WBS,
		boolToInt(t.IsMilestone), string(predJSON), t.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

const draftColumns = "id, project_id, created_by, status, reason, actions, warnings, created_at, applied_at"

func scanDraft(row rowScanner) (*types.Draft, error) {
	var d types.Draft
	var actions, warnings string
	if err := row.Scan(&d.ID, &d.ProjectID, (*string)(&d.CreatedBy), (*string)(&d.Status),
		&d.Reason, &actions, &warnings, &d.CreatedAt, &d.AppliedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(actions), &d.Actions); err != nil {
		return nil, fmt.Errorf("draft %s: malformed actions: %w", d.ID, err)
	}
	if err := json.Unmarshal([]byte(warnings), &d.Warnings); err != nil {
		return nil, fmt.Errorf("draft %s: malformed warnings: %w", d.ID, err)
	}
	if d.Warnings == nil {
		d.Warnings = []string{}
	}
	return &d, nil
}

func insertDraft(ctx context.Context, conn dbtx, d *types.Draft) error {
	actions, err := json.Marshal(d.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	warnings := d.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warnJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO drafts (`+draftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, string(d.CreatedBy), string(d.Status), d.Reason,
		string(actions), string(warnJSON), d.CreatedAt, d.AppliedAt)
	return err
}

const auditColumns = "seq, id, project_id, entity_type, entity_id, action, actor, " +
	"before_json, after_json, reason, timestamp, source_draft_id, rollback_of_audit_id"

func scanAuditLog(row rowScanner) (*types.AuditLog, error) {
	var a types.AuditLog
	var before, after sql.NullString
	if err := row.Scan(&a.Seq, &a.ID, &a.ProjectID, (*string)(&a.EntityType), &a.EntityID,
		(*string)(&a.Action), (*string)(&a.Actor), &before, &after, &a.Reason,
		&a.Timestamp, &a.SourceDraftID, &a.RollbackOfAuditID); err != nil {
		return nil, err
	}
	if before.Valid && before.String != "" {
		if err := json.Unmarshal([]byte(before.String), &a.Before); err != nil {
			return nil, fmt.Errorf("audit %s: malformed before snapshot: %w", a.ID, err)
		}
	}
	if after.Valid && after.String != "" {
		if err := json.Unmarshal([]byte(after.String), &a.After); err != nil {
			return nil, fmt.Errorf("audit %s: malformed after snapshot: %w", a.ID, err)
		}
	}
	return &a, nil
}

func appendAuditLog(ctx context.Context, conn dbtx, a *types.AuditLog) error {
	var before, after any
	if a.Before != nil {
		b, err := json.Marshal(a.Before)
		if err != nil {
			return fmt.Errorf("marshal before snapshot: %w", err)
		}
		before = string(b)
	}
	if a.After != nil {
		b, err := json.Marshal(a.After)
		if err != nil {
			return fmt.Errorf("marshal after snapshot: %w", err)
		}
		after = string(b)
	}
	res, err := conn.ExecContext(ctx, `
		INSERT INTO audit_logs (id, project_id, entity_type, entity_id, action, actor,
			before_json, after_json, reason, timestamp, source_draft_id, rollback_of_audit_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, string(a.EntityType), a.EntityID, string(a.Action),
		string(a.Actor), before, after, a.Reason, a.Timestamp,
		a.SourceDraftID, a.RollbackOfAuditID)
	if err != nil {
		return err
	}
	if seq, err := res.LastInsertId(); err == nil {
		a.Seq = seq
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRowAffected converts a zero-row UPDATE/DELETE into sql.ErrNoRows so
// wrapDBError surfaces it as not found.
func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
