package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTasks(t *testing.T, s *Store, userID, providerName, listType string, n int) []Task {
	t.Helper()
	ctx := context.Background()

	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		task := Task{
			UserID:         userID,
			Provider:       providerName,
			ProviderTaskID: fmt.Sprintf("%s-%d", providerName, i),
			Title:          fmt.Sprintf("task %d", i),
			Status:         "active",
			ContentHash:    fmt.Sprintf("hash-%d", i),
		}
		require.NoError(t, s.Tasks.Create(context.Background(), &task))
		if listType != ListUnprioritized {
			require.NoError(t, s.Tasks.MoveTask(ctx, task.ID, listType, nil))
		}
		got, err := s.Tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		tasks[i] = *got
	}
	return tasks
}

// assertDense checks that a partition's positions are exactly {0..N-1}.
func assertDense(t *testing.T, s *Store, userID, listType string) {
	t.Helper()

	tasks, err := s.Tasks.ListByList(context.Background(), userID, listType)
	require.NoError(t, err)
	for i, task := range tasks {
		assert.Equalf(t, i, task.Position, "position gap in %s list at index %d", listType, i)
	}
}

func TestCreateAppendsToEnd(t *testing.T) {
	s := newTestStore(t)
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 3)

	for i, task := range tasks {
		assert.Equal(t, i, task.Position)
		assert.Equal(t, ListUnprioritized, task.ListType)
	}
}

func TestMoveEarlierWithinList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 5)

	// Move the task at position 3 to position 1
	pos := 1
	require.NoError(t, s.Tasks.MoveTask(ctx, tasks[3].ID, ListUnprioritized, &pos))

	moved, err := s.Tasks.GetByID(ctx, tasks[3].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Position)
	assertDense(t, s, "u1", ListUnprioritized)

	// Expect order 0,3,1,2,4
	got, err := s.Tasks.ListByList(ctx, "u1", ListUnprioritized)
	require.NoError(t, err)
	var order []string
	for _, task := range got {
		order = append(order, task.Title)
	}
	assert.Equal(t, []string{"task 0", "task 3", "task 1", "task 2", "task 4"}, order)
}

func TestMoveLaterWithinList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 5)

	// Move the task at position 1 to position 3
	pos := 3
	require.NoError(t, s.Tasks.MoveTask(ctx, tasks[1].ID, ListUnprioritized, &pos))

	moved, err := s.Tasks.GetByID(ctx, tasks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, moved.Position)
	assertDense(t, s, "u1", ListUnprioritized)

	got, err := s.Tasks.ListByList(ctx, "u1", ListUnprioritized)
	require.NoError(t, err)
	var order []string
	for _, task := range got {
		order = append(order, task.Title)
	}
	assert.Equal(t, []string{"task 0", "task 2", "task 3", "task 1", "task 4"}, order)
}

func TestMoveAcrossLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 4)

	// Promote the task at position 1; the source list closes its gap
	pos := 0
	require.NoError(t, s.Tasks.MoveTask(ctx, tasks[1].ID, ListPrioritized, &pos))

	moved, err := s.Tasks.GetByID(ctx, tasks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, ListPrioritized, moved.ListType)
	assert.Equal(t, 0, moved.Position)

	assertDense(t, s, "u1", ListPrioritized)
	assertDense(t, s, "u1", ListUnprioritized)

	remaining, err := s.Tasks.ListByList(ctx, "u1", ListUnprioritized)
	require.NoError(t, err)
	require.Len(t, remaining, 3)
}

func TestMoveAppendsWithoutPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 3)

	require.NoError(t, s.Tasks.MoveTask(ctx, tasks[0].ID, ListPrioritized, nil))
	require.NoError(t, s.Tasks.MoveTask(ctx, tasks[1].ID, ListPrioritized, nil))

	prioritized, err := s.Tasks.ListByList(ctx, "u1", ListPrioritized)
	require.NoError(t, err)
	require.Len(t, prioritized, 2)
	assert.Equal(t, "task 0", prioritized[0].Title)
	assert.Equal(t, "task 1", prioritized[1].Title)
	assertDense(t, s, "u1", ListPrioritized)
	assertDense(t, s, "u1", ListUnprioritized)
}

func TestMovePositionClamped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 3)

	pos := 99
	require.NoError(t, s.Tasks.MoveTask(ctx, tasks[0].ID, ListUnprioritized, &pos))
	moved, err := s.Tasks.GetByID(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Position)
	assertDense(t, s, "u1", ListUnprioritized)

	neg := -5
	require.NoError(t, s.Tasks.MoveTask(ctx, tasks[0].ID, ListUnprioritized, &neg))
	moved, err = s.Tasks.GetByID(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, moved.Position)
	assertDense(t, s, "u1", ListUnprioritized)
}

func TestMoveSequenceStaysDense(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 6)

	moves := []struct {
		idx  int
		list string
		pos  int
	}{
		{0, ListPrioritized, 0},
		{3, ListPrioritized, 0},
		{5, ListPrioritized, 1},
		{1, ListUnprioritized, 2},
		{3, ListUnprioritized, 0},
		{0, ListUnprioritized, 1},
	}

	for _, m := range moves {
		pos := m.pos
		require.NoError(t, s.Tasks.MoveTask(ctx, tasks[m.idx].ID, m.list, &pos))
		assertDense(t, s, "u1", ListPrioritized)
		assertDense(t, s, "u1", ListUnprioritized)
	}
}

func TestReorderList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 4)

	require.NoError(t, s.Tasks.ReorderList(ctx, "u1", ListUnprioritized,
		[]string{tasks[2].ID, tasks[0].ID, tasks[3].ID, tasks[1].ID}))

	got, err := s.Tasks.ListByList(ctx, "u1", ListUnprioritized)
	require.NoError(t, err)
	var order []string
	for _, task := range got {
		order = append(order, task.Title)
	}
	assert.Equal(t, []string{"task 2", "task 0", "task 3", "task 1"}, order)
	assertDense(t, s, "u1", ListUnprioritized)
}

func TestReorderListRejectsPartialSet(t *testing.T) {
	s := newTestStore(t)
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 3)

	err := s.Tasks.ReorderList(context.Background(), "u1", ListUnprioritized,
		[]string{tasks[0].ID})
	require.Error(t, err)

	// Nothing moved
	assertDense(t, s, "u1", ListUnprioritized)
}

func TestReorderListRejectsDuplicateIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 3)

	// The duplicate matches the partition size, so the length guard alone
	// would let it through and leave one task without a position.
	err := s.Tasks.ReorderList(ctx, "u1", ListUnprioritized,
		[]string{tasks[0].ID, tasks[0].ID, tasks[1].ID})
	require.Error(t, err)

	got, err := s.Tasks.ListByList(ctx, "u1", ListUnprioritized)
	require.NoError(t, err)
	var order []string
	for _, task := range got {
		order = append(order, task.Title)
	}
	assert.Equal(t, []string{"task 0", "task 1", "task 2"}, order)
	assertDense(t, s, "u1", ListUnprioritized)
}

func TestDeleteMissingScopedToProvider(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	todoist := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 3)
	google := seedTasks(t, s, "u1", "google_tasks", ListUnprioritized, 2)

	// The fetch saw only todoist-0; todoist-1 and todoist-2 are gone remotely
	deleted, err := s.Tasks.DeleteMissing(ctx, "u1", "todoist", []string{todoist[0].ProviderTaskID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	// Google tasks for the same user are untouched
	remaining, err := s.Tasks.ListByUserProvider(ctx, "u1", "google_tasks")
	require.NoError(t, err)
	assert.Len(t, remaining, len(google))

	// Positions compacted after the deletions
	assertDense(t, s, "u1", ListUnprioritized)
}

func TestDeleteMissingEmptyFetchDeletesAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s, "u1", "todoist", ListUnprioritized, 2)

	deleted, err := s.Tasks.DeleteMissing(ctx, "u1", "todoist", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	remaining, err := s.Tasks.ListByUserProvider(ctx, "u1", "todoist")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestUpdateStatusKeepsHashConsistent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := seedTasks(t, s, "u1", "todoist", ListUnprioritized, 1)

	task, err := s.Tasks.GetByID(ctx, tasks[0].ID)
	require.NoError(t, err)

	require.NoError(t, s.Tasks.UpdateStatus(ctx, task, "completed", "new-hash"))

	got, err := s.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "new-hash", got.ContentHash, "status and hash must change together")
	assert.False(t, got.LastSynced.IsZero())
	// Position untouched by a status change
	assert.Equal(t, tasks[0].Position, got.Position)
}
