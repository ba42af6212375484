package sqlite

import (
	"context"
	"strings"

	"github.com/draftboard/draftboard/internal/types"
)

// GetAuditLog fetches a single audit entry by id.
func (s *Store) GetAuditLog(ctx context.Context, id string) (*types.AuditLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE id = ?`, id)
	a, err := scanAuditLog(row)
	if err != nil {
		return nil, wrapDBError("get audit log", err)
	}
	return a, nil
}

// ListAuditLogs returns a page of audit entries matching the filter, newest
// first. Ties on timestamp are broken by insertion order (seq).
func (s *Store) ListAuditLogs(ctx context.Context, filter types.AuditFilter) (*types.AuditPage, error) {
	var conds []string
	var args []any

	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.TaskID != "" {
		conds = append(conds, "(entity_type = 'task' AND entity_id = ?)")
		args = append(args, filter.TaskID)
	}
	if filter.Actor != nil {
		conds = append(conds, "actor = ?")
		args = append(args, string(*filter.Actor))
	}
	if filter.Action != nil {
		conds = append(conds, "action = ?")
		args = append(args, string(*filter.Action))
	}
	if filter.EntityType != nil {
		conds = append(conds, "entity_type = ?")
		args = append(args, string(*filter.EntityType))
	}
	if filter.Q != "" {
		conds = append(conds, `(instr(lower(reason), lower(?)) > 0
			OR instr(lower(entity_id), lower(?)) > 0
			OR instr(lower(COALESCE(before_json, '')), lower(?)) > 0
			OR instr(lower(COALESCE(after_json, '')), lower(?)) > 0)`)
		args = append(args, filter.Q, filter.Q, filter.Q, filter.Q)
	}
	if filter.From != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, *filter.To)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, wrapDBError("count audit logs", err)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs` + where +
		` ORDER BY timestamp DESC, seq DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, wrapDBError("list audit logs", err)
	}
	defer rows.Close()

	entries := []*types.AuditLog{}
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, wrapDBError("scan audit log", err)
		}
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list audit logs", err)
	}

	return &types.AuditPage{Data: entries, Total: total, Page: page, PageSize: pageSize}, nil
}
