package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/orchestrator/model"
	"github.com/agentfleet/orchestrator/task"
	"github.com/agentfleet/orchestrator/taskstore"
	"github.com/agentfleet/orchestrator/taskstore/memory"
)

func TestStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	id := task.NewID()
	tk := task.NewTask(id, task.NewContextID())
	tk.History = append(tk.History, task.Message{
		Role:  model.RoleUser,
		Parts: []model.Part{model.TextPart{Text: "hi"}},
	})

	require.NoError(t, s.Save(ctx, tk))

	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, loaded.ID)
	require.Len(t, loaded.History, 1)

	// Mutating the returned task must not affect the stored copy.
	loaded.History[0].Parts = nil
	reloaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, reloaded.History[0].Parts, 1)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Load(ctx, id)
	require.ErrorIs(t, err, taskstore.ErrNotFound)
}

func TestStore_LoadMissing(t *testing.T) {
	s := memory.New()
	_, err := s.Load(context.Background(), task.NewID())
	require.ErrorIs(t, err, taskstore.ErrNotFound)
}

func TestStore_ListFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	ctxA := task.ContextID("ctx-a")
	ctxB := task.ContextID("ctx-b")

	for i := 0; i < 5; i++ {
		tk := task.NewTask(task.NewID(), ctxA)
		require.NoError(t, s.Save(ctx, tk))
	}
	other := task.NewTask(task.NewID(), ctxB)
	require.NoError(t, s.Save(ctx, other))

	page, err := s.List(ctx, taskstore.Filter{ContextID: ctxA, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 2)
	require.NotEmpty(t, page.NextPageToken)

	page2, err := s.List(ctx, taskstore.Filter{ContextID: ctxA, PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, page2.Tasks, 2)

	full, err := s.List(ctx, taskstore.Filter{ContextID: ctxB})
	require.NoError(t, err)
	require.Len(t, full.Tasks, 1)
}

func TestStore_ListByStatus(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	working := task.NewTask(task.NewID(), task.NewContextID())
	working.Status.State = task.StatusWorking
	require.NoError(t, s.Save(ctx, working))

	done := task.NewTask(task.NewID(), task.NewContextID())
	done.Status.State = task.StatusCompleted
	require.NoError(t, s.Save(ctx, done))

	page, err := s.List(ctx, taskstore.Filter{Status: task.StatusCompleted, HasStatus: true})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	require.Equal(t, done.ID, page.Tasks[0].ID)
}
