// Package taskstore defines the persistent TaskId -> Task mapping (C2) and
// its error taxonomy. Concrete backends (memory, redis, mongo) live in
// sub-packages and all satisfy the Store interface.
package taskstore

import (
	"context"
	"errors"

	"github.com/agentfleet/orchestrator/task"
)

// ErrNotFound is returned by Load when no task exists for the given ID.
var ErrNotFound = errors.New("taskstore: task not found")

// Filter narrows List to a subset of tasks. A zero-value Filter matches all
// tasks.
type Filter struct {
	ContextID task.ContextID
	Status    task.Status
	// HasStatus reports whether Status should be applied; needed because
	// task.Status("") is not a valid "match everything" sentinel.
	HasStatus bool
	PageSize  int
	PageToken string
}

// Page is one page of a List result.
type Page struct {
	Tasks         []*task.Task
	NextPageToken string
}

// Store abstracts task state management so the Request Handler (C5) and
// Result Manager (C3) never depend on a concrete backend. All operations
// are atomic per task; implementations must provide linearizable
// per-task ordering, but cross-task ordering is not required.
//
// Storage failures propagate as typed errors; callers must treat the task
// as unchanged when an error is returned.
type Store interface {
	// Save persists the given task, replacing any prior state for its ID.
	Save(ctx context.Context, t *task.Task) error
	// Load returns the task for id, or ErrNotFound if absent.
	Load(ctx context.Context, id task.ID) (*task.Task, error)
	// List returns a page of tasks matching filter.
	List(ctx context.Context, filter Filter) (Page, error)
	// Delete removes the task for id. Delete on a missing id is a no-op.
	Delete(ctx context.Context, id task.ID) error
}
