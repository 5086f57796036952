// Package memory implements an in-process taskstore.Store backed by a map
// with interior mutability, grounded on the teacher's
// runtime/a2a/server.go inMemoryTaskStore shape, generalized from a bare
// TaskState cache to the full Task Store contract (Save/Load/List/Delete).
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore"
)

// Store is a concurrency-safe in-memory Store. Writers are serialized per
// task ID via the package mutex; readers may proceed concurrently.
type Store struct {
	mu    sync.RWMutex
	tasks map[task.ID]*task.Task
	// order records insertion order so List has a stable, deterministic
	// iteration order across calls (map iteration order is not stable).
	order []task.ID
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{tasks: make(map[task.ID]*task.Task)}
}

func cloneTask(t *task.Task) *task.Task {
	cp := *t
	cp.Artifacts = append([]*task.Artifact(nil), t.Artifacts...)
	cp.History = append([]task.Message(nil), t.History...)
	return &cp
}

// Save persists t, replacing any prior state for its ID.
func (s *Store) Save(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

// Load returns the task for id, or taskstore.ErrNotFound if absent.
func (s *Store) Load(_ context.Context, id task.ID) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return cloneTask(t), nil
}

// Delete removes the task for id. A missing id is a no-op.
func (s *Store) Delete(_ context.Context, id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns a page of tasks matching filter, ordered by task ID.
// Pagination uses a simple numeric offset encoded as the page token.
func (s *Store) List(_ context.Context, filter taskstore.Filter) (taskstore.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*task.Task
	for _, id := range s.order {
		t := s.tasks[id]
		if filter.ContextID != "" && t.ContextID != filter.ContextID {
			continue
		}
		if filter.HasStatus && t.Status.State != filter.Status {
			continue
		}
		matched = append(matched, cloneTask(t))
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	offset := 0
	if filter.PageToken != "" {
		if v, err := strconv.Atoi(filter.PageToken); err == nil && v > 0 {
			offset = v
		}
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]

	size := filter.PageSize
	if size <= 0 || size > len(matched) {
		size = len(matched)
	}
	page := taskstore.Page{Tasks: matched[:size]}
	if size < len(matched) {
		page.NextPageToken = strconv.Itoa(offset + size)
	}
	return page, nil
}
