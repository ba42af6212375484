package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/draftboard/draftboard/internal/types"
)

// defaultPageSize bounds unpaginated task and audit queries.
const defaultPageSize = 50

// GetTask fetches a single task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, wrapDBError("get task", err)
	}
	return t, nil
}

// ListTasks returns a page of tasks matching the filter, ordered by creation
// time ascending with id as tiebreak. Q matches title and description
// case-insensitively.
func (s *Store) ListTasks(ctx context.Context, filter types.TaskFilter) (*types.TaskPage, error) {
	where, args := buildTaskWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, wrapDBError("count tasks", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, wrapDBError("list tasks", err)
	}
	defer rows.Close()

	tasks := []*types.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list tasks", err)
	}

	return &types.TaskPage{Data: tasks, Total: total, Page: page, PageSize: pageSize}, nil
}

func buildTaskWhere(filter types.TaskFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, strings.ToUpper(string(*filter.Status)))
	}
	if filter.Assignee != nil {
		conds = append(conds, "assignee = ?")
		args = append(args, *filter.Assignee)
	}
	if filter.Q != "" {
		conds = append(conds, "(instr(lower(title), lower(?)) > 0 OR instr(lower(description), lower(?)) > 0)")
		args = append(args, filter.Q, filter.Q)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return fmt.Sprintf(" WHERE %s", strings.Join(conds, " AND ")), args
}
