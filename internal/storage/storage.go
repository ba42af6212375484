// Package storage provides shared types for draftboard persistence.
//
// The concrete storage implementation lives in the sqlite sub-package.
// This package holds the interface and error values referenced by both the
// sqlite implementation and its consumers (draft engine, apply engine, HTTP
// facade).
package storage

import (
	"context"
	"errors"

	"github.com/draftboard/draftboard/internal/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned on constraint violations and illegal state
// transitions (applying a non-pending draft, re-inserting an existing id).
var ErrConflict = errors.New("conflict")

// ErrValidation is returned for structurally malformed input.
var ErrValidation = errors.New("validation failed")

// DraftFilter narrows ListDrafts queries.
type DraftFilter struct {
	ProjectID string
	Status    *types.DraftStatus
}

// Store is the interface satisfied by *sqlite.Store.
// Consumers depend on this interface rather than on the concrete type so that
// alternative implementations (mocks, proxies) can be substituted.
type Store interface {
	// Projects
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)

	// Tasks
	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListTasks(ctx context.Context, filter types.TaskFilter) (*types.TaskPage, error)

	// Drafts
	GetDraft(ctx context.Context, id string) (*types.Draft, error)
	ListDrafts(ctx context.Context, filter DraftFilter) ([]*types.Draft, error)

	// Audit log (append-only; no update or delete exists anywhere)
	GetAuditLog(ctx context.Context, id string) (*types.AuditLog, error)
	ListAuditLogs(ctx context.Context, filter types.AuditFilter) (*types.AuditPage, error)

	// Transactions. All write paths go through this.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error

	// Seed inserts demo rows if absent, keyed by id. Safe to run repeatedly.
	Seed(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Tx exposes the write operations that execute within a single database
// transaction, plus the reads needed for read-your-writes semantics.
//
//   - All operations share the same database connection
//   - If the callback returns an error or panics, the transaction is rolled back
//   - On successful return, the transaction is committed
type Tx interface {
	// Projects
	GetProject(ctx context.Context, id string) (*types.Project, error)
	InsertProject(ctx context.Context, p *types.Project) error
	UpdateProject(ctx context.Context, p *types.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Tasks
	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListProjectTasks(ctx context.Context, projectID string) ([]*types.Task, error)
	InsertTask(ctx context.Context, t *types.Task) error
	UpdateTask(ctx context.Context, t *types.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Drafts
	GetDraft(ctx context.Context, id string) (*types.Draft, error)
	InsertDraft(ctx context.Context, d *types.Draft) error
	SetDraftStatus(ctx context.Context, id string, status types.DraftStatus, appliedAt *int64) error

	// Audit
	AppendAuditLog(ctx context.Context, entry *types.AuditLog) error
}
