package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/types"
)

// Compile-time interface check.
var _ storage.Tx = (*txStore)(nil)

// txStore implements storage.Tx. It wraps a dedicated database connection
// with an active transaction.
type txStore struct {
	conn dbtx
}

const beginRetryMaxElapsed = 2 * time.Second

// RunInTransaction executes fn within a database transaction.
//
// The transaction uses BEGIN IMMEDIATE to acquire the write lock early,
// preventing deadlocks when multiple goroutines compete for it. SQLITE_BUSY
// on BEGIN is retried with exponential backoff.
//
// Lifecycle:
//  1. Acquire a dedicated connection from the pool
//  2. BEGIN IMMEDIATE with retry on SQLITE_BUSY
//  3. Execute fn with the Tx interface
//  4. On success: COMMIT. On error or panic: ROLLBACK.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	begin := func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = beginRetryMaxElapsed
	if err := backoff.Retry(begin, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback completes even if ctx is cancelled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&txStore{conn: conn}); err != nil {
		return err // rollback happens in defer
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// --- Projects ---

func (t *txStore) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := t.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, wrapDBError("get project", err)
	}
	return p, nil
}

func (t *txStore) InsertProject(ctx context.Context, p *types.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", storage.ErrValidation, err)
	}
	return wrapDBError("insert project", insertProject(ctx, t.conn, p))
}

func (t *txStore) UpdateProject(ctx context.Context, p *types.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", storage.ErrValidation, err)
	}
	return wrapDBError("update project", updateProject(ctx, t.conn, p))
}

func (t *txStore) DeleteProject(ctx context.Context, id string) error {
	res, err := t.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("delete project", err)
	}
	return wrapDBError("delete project", requireRowAffected(res))
}

// --- Tasks ---

func (t *txStore) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := t.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, wrapDBError("get task", err)
	}
	return task, nil
}

// ListProjectTasks returns all tasks of a project in creation order.
// Used by the apply engine for cascade deletes.
func (t *txStore) ListProjectTasks(ctx context.Context, projectID string) ([]*types.Task, error) {
	rows, err := t.conn.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at ASC, id ASC`,
		projectID)
	if err != nil {
		return nil, wrapDBError("list project tasks", err)
	}
	defer rows.Close()

	tasks := []*types.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list project tasks", err)
	}
	return tasks, nil
}

func (t *txStore) InsertTask(ctx context.Context, task *types.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %s", storage.ErrValidation, err)
	}
	return wrapDBError("insert task", insertTask(ctx, t.conn, task))
}

func (t *txStore) UpdateTask(ctx context.Context, task *types.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %s", storage.ErrValidation, err)
	}
	return wrapDBError("update task", updateTask(ctx, t.conn, task))
}

func (t *txStore) DeleteTask(ctx context.Context, id string) error {
	res, err := t.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("delete task", err)
	}
	return wrapDBError("delete task", requireRowAffected(res))
}

// --- Drafts ---

func (t *txStore) GetDraft(ctx context.Context, id string) (*types.Draft, error) {
	row := t.conn.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if err != nil {
		return nil, wrapDBError("get draft", err)
	}
	return d, nil
}

func (t *txStore) InsertDraft(ctx context.Context, d *types.Draft) error {
	return wrapDBError("insert draft", insertDraft(ctx, t.conn, d))
}

// SetDraftStatus transitions a draft out of pending. The WHERE clause guards
// the one-shot state machine: a non-pending draft is never modified.
func (t *txStore) SetDraftStatus(ctx context.Context, id string, status types.DraftStatus, appliedAt *int64) error {
	res, err := t.conn.ExecContext(ctx,
		`UPDATE drafts SET status = ?, applied_at = ? WHERE id = ? AND status = ?`,
		string(status), appliedAt, id, string(types.DraftPending))
	if err != nil {
		return wrapDBError("set draft status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("set draft status", err)
	}
	if n == 0 {
		// Either missing or already applied/discarded. Disambiguate.
		if _, err := t.GetDraft(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("draft %s is not pending: %w", id, storage.ErrConflict)
	}
	return nil
}

// --- Audit ---

func (t *txStore) AppendAuditLog(ctx context.Context, entry *types.AuditLog) error {
	return wrapDBError("append audit log", appendAuditLog(ctx, t.conn, entry))
}
