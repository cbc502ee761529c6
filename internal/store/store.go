package store

import (
	"context"

	"taskhub/internal/models"
)

// TaskFilter narrows ListTasks results. Zero-value fields are ignored.
type TaskFilter struct {
	CreatorID  string
	AssigneeID string
	Status     models.TaskStatus
	Type       models.TaskType
}

// Store is the persistence contract for tasks and their event history.
// This allows switching between the MongoDB and in-memory implementations.
//
// Mutations are atomic: the state change and its event append both land or
// neither does. UpdateTask is a conditional write on the task's event
// sequence number; a caller holding a stale snapshot gets ErrConflict and
// must refetch. That conditional write is the engine's one mutual-exclusion
// point - the claim path relies on it to admit exactly one winner.
type Store interface {
	// CreateTask inserts a new task together with its task_created event.
	CreateTask(ctx context.Context, task *models.Task, event *models.TaskEvent) error

	// GetTask returns the task with its assignments, or models.ErrNotFound.
	GetTask(ctx context.Context, id string) (*models.Task, error)

	// ListTasks returns tasks matching the filter, newest first.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error)

	// ListAvailableTasks returns open tasks with no live assignment whose
	// required role matches the given role or is unset.
	ListAvailableTasks(ctx context.Context, role string) ([]*models.Task, error)

	// UpdateTask writes the task and appends its new events, conditional on
	// the stored sequence number still being expectedSeq. Returns
	// models.ErrConflict when another writer got there first.
	UpdateTask(ctx context.Context, task *models.Task, expectedSeq int64, events ...*models.TaskEvent) error

	// GetEvents returns the task's full event history in sequence order.
	GetEvents(ctx context.Context, taskID string) ([]models.TaskEvent, error)
}
