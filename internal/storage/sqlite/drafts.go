package sqlite

import (
	"context"
	"strings"

	"github.com/draftboard/draftboard/internal/storage"
	"github.com/draftboard/draftboard/internal/types"
)

// GetDraft fetches a single draft by id.
func (s *Store) GetDraft(ctx context.Context, id string) (*types.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if err != nil {
		return nil, wrapDBError("get draft", err)
	}
	return d, nil
}

// ListDrafts returns drafts matching the filter, newest first.
func (s *Store) ListDrafts(ctx context.Context, filter storage.DraftFilter) ([]*types.Draft, error) {
	var conds []string
	var args []any
	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT ` + draftColumns + ` FROM drafts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list drafts", err)
	}
	defer rows.Close()

	drafts := []*types.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, wrapDBError("scan draft", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list drafts", err)
	}
	return drafts, nil
}
