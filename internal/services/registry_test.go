package services

import (
	"context"
	"testing"

	"taskhub/internal/models"
	"taskhub/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskOpenWithNoAssignments(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	assert.Equal(t, models.TaskStatusOpen, task.Status)
	assert.Empty(t, task.Assignments)
	assert.Equal(t, int64(1), task.Seq)

	events, err := e.registry.GetTaskEvents(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTaskCreated, events[0].Type)
}

func TestCreateTaskRejectsUnknownType(t *testing.T) {
	e := newEngine()
	_, err := e.registry.CreateTask(context.Background(), models.CreateTaskRequest{
		Type:  "mystery",
		Title: "???",
	}, "creator-1")
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestListAvailableTasksRoleGating(t *testing.T) {
	e := newEngine()
	delivery := e.createTask(t, restockRequest(), "creator-1")
	anyRole := e.createTask(t, saleRequest(), "creator-1")
	claimed := e.createTask(t, saleRequest(), "creator-1")

	_, err := e.claims.Claim(context.Background(), claimed.ID, "user-5", models.RoleStorekeeper)
	require.NoError(t, err)

	available, err := e.registry.ListAvailableTasks(context.Background(), models.RoleDelivery)
	require.NoError(t, err)
	ids := taskIDs(available)
	assert.Contains(t, ids, delivery.ID)
	assert.Contains(t, ids, anyRole.ID)
	assert.NotContains(t, ids, claimed.ID)

	available, err = e.registry.ListAvailableTasks(context.Background(), models.RoleStorekeeper)
	require.NoError(t, err)
	ids = taskIDs(available)
	assert.NotContains(t, ids, delivery.ID, "role-gated task hidden from other roles")
	assert.Contains(t, ids, anyRole.ID)
}

func TestListTasksFilters(t *testing.T) {
	e := newEngine()
	mine := e.createTask(t, restockRequest(), "creator-1")
	other := e.createTask(t, saleRequest(), "creator-2")

	_, err := e.claims.Claim(context.Background(), other.ID, "user-5", models.RoleStorekeeper)
	require.NoError(t, err)

	byCreator, err := e.registry.ListTasks(context.Background(), store.TaskFilter{CreatorID: "creator-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, taskIDs(byCreator))

	byAssignee, err := e.registry.ListTasks(context.Background(), store.TaskFilter{AssigneeID: "user-5"})
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, taskIDs(byAssignee))

	byStatus, err := e.registry.ListTasks(context.Background(), store.TaskFilter{Status: models.TaskStatusClaimed})
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, taskIDs(byStatus))

	byType, err := e.registry.ListTasks(context.Background(), store.TaskFilter{Type: models.TaskTypeRestock})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, taskIDs(byType))
}

func TestCancelRequiresManagerAndIsTerminal(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	_, err := e.registry.Cancel(context.Background(), task.ID, "user-7", models.RoleDelivery, "nope")
	require.ErrorIs(t, err, models.ErrForbidden)

	cancelled, err := e.registry.Cancel(context.Background(), task.ID, "admin-1", models.RoleManager, "duplicate order")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, cancelled.Status)

	// Cancelling again is a harmless retry
	again, err := e.registry.Cancel(context.Background(), task.ID, "admin-1", models.RoleManager, "duplicate order")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, again.Status)
	assert.Len(t, e.published.byType(models.EventTaskCancelled), 1)
}

// Round-trip: replaying the event stream of a directly-mutated task into a
// second registry reproduces the same task state.
func TestApplyEventReplayReproducesState(t *testing.T) {
	source := newEngine()
	task := source.createTask(t, models.CreateTaskRequest{
		Type:  models.TaskTypeRestock,
		Title: "Restock rebar",
	}, "creator-1")

	ctx := context.Background()
	_, err := source.claims.Claim(ctx, task.ID, "foreman-1", models.RoleForeman)
	require.NoError(t, err)
	_, err = source.completion.Complete(ctx, task.ID, "foreman-1", models.RoleForeman, "prepared")
	require.NoError(t, err)
	_, err = source.claims.Reassign(ctx, task.ID, "driver-2", models.RoleDelivery, "admin-1", models.RoleManager)
	require.NoError(t, err)
	_, err = source.completion.Complete(ctx, task.ID, "driver-2", models.RoleDelivery, "delivered")
	require.NoError(t, err)
	_, err = source.completion.Complete(ctx, task.ID, "req-1", models.RoleRequester, "received")
	require.NoError(t, err)

	direct, err := source.registry.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusCompleted, direct.Status)

	events, err := source.registry.GetTaskEvents(ctx, task.ID)
	require.NoError(t, err)

	replica := newEngine()
	for i := range events {
		require.NoError(t, replica.registry.ApplyEvent(ctx, &events[i]))
	}

	replayed, err := replica.registry.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, direct, replayed)
}

func TestApplyEventIdempotentAndGapDetecting(t *testing.T) {
	source := newEngine()
	task := source.createTask(t, restockRequest(), "creator-1")

	ctx := context.Background()
	_, err := source.claims.Claim(ctx, task.ID, "user-7", models.RoleDelivery)
	require.NoError(t, err)

	events, err := source.registry.GetTaskEvents(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	replica := newEngine()
	require.NoError(t, replica.registry.ApplyEvent(ctx, &events[0]))
	require.NoError(t, replica.registry.ApplyEvent(ctx, &events[0]), "duplicate delivery is a no-op")
	require.NoError(t, replica.registry.ApplyEvent(ctx, &events[1]))
	require.NoError(t, replica.registry.ApplyEvent(ctx, &events[1]))

	replayed, err := replica.registry.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusClaimed, replayed.Status)
	assert.Len(t, replayed.Assignments, 1)

	// A sequence gap must surface as Conflict, prompting a refetch
	gap := events[1]
	gap.Seq = 9
	err = replica.registry.ApplyEvent(ctx, &gap)
	require.ErrorIs(t, err, models.ErrConflict)
}

func taskIDs(tasks []*models.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}
