package sqlite

import (
	"context"

	"github.com/draftboard/draftboard/internal/types"
)

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, wrapDBError("get project", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, wrapDBError("list projects", err)
	}
	defer rows.Close()

	projects := []*types.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, wrapDBError("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("list projects", err)
	}
	return projects, nil
}
