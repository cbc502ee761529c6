package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taskhub/internal/models"
	"taskhub/internal/store"

	"github.com/google/uuid"
)

// Publisher receives a notification for every appended task event. The
// realtime hub satisfies this; tests plug in a recorder.
type Publisher interface {
	Publish(notification models.Notification, topics ...string)
}

// Registry is the authoritative task and assignment store every other
// component reads from and writes through. Each mutating operation pairs
// with exactly one event append (atomically, via the store) and one
// notification publish.
type Registry struct {
	store     store.Store
	publisher Publisher
}

// NewRegistry creates a registry over the given store and publisher
func NewRegistry(st store.Store, publisher Publisher) *Registry {
	return &Registry{
		store:     st,
		publisher: publisher,
	}
}

// Store exposes the underlying store to the sibling coordinators
func (r *Registry) Store() store.Store {
	return r.store
}

// CreateTask admits a new open task. The task_created event carries the
// full task definition, so the task record itself is built by replaying the
// event - creation and remote replay share one code path.
func (r *Registry) CreateTask(ctx context.Context, req models.CreateTaskRequest, creatorID string) (*models.Task, error) {
	if !models.ValidTaskType(req.Type) {
		return nil, fmt.Errorf("unknown task type %q: %w", req.Type, models.ErrInvalidState)
	}

	event := &models.TaskEvent{
		ID:          uuid.New().String(),
		TaskID:      uuid.New().String(),
		Seq:         1,
		ActorUserID: creatorID,
		Type:        models.EventTaskCreated,
		Metadata: map[string]interface{}{
			metaTaskType:     string(req.Type),
			metaTitle:        req.Title,
			metaDescription:  req.Description,
			metaRequiredRole: req.RequiredRole,
		},
		CreatedAt: time.Now().UTC(),
	}
	if req.RelatedRecordID != "" {
		event.Metadata[metaRelatedRecordID] = req.RelatedRecordID
	}
	if req.Metadata != nil {
		event.Metadata[metaTaskMetadata] = req.Metadata
	}

	task, err := NewTaskFromEvent(event)
	if err != nil {
		return nil, err
	}
	if err := r.store.CreateTask(ctx, task, event); err != nil {
		return nil, err
	}

	log.Printf("[REGISTRY] Task created: id=%s type=%s role=%s creator=%s",
		task.ID, task.Type, task.RequiredRole, creatorID)
	r.Announce(task, event)
	return task, nil
}

// GetTask returns a task with its assignments
func (r *Registry) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return r.store.GetTask(ctx, taskID)
}

// ListTasks returns tasks matching the filter
func (r *Registry) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*models.Task, error) {
	return r.store.ListTasks(ctx, filter)
}

// ListAvailableTasks returns open, unassigned tasks claimable by the role
func (r *Registry) ListAvailableTasks(ctx context.Context, role string) ([]*models.Task, error) {
	return r.store.ListAvailableTasks(ctx, role)
}

// GetTaskEvents returns the task's audit history in sequence order
func (r *Registry) GetTaskEvents(ctx context.Context, taskID string) ([]models.TaskEvent, error) {
	return r.store.GetEvents(ctx, taskID)
}

// Cancel is the administrative terminal transition. Cancelling an already
// cancelled task is a no-op success so admin retries are harmless.
func (r *Registry) Cancel(ctx context.Context, taskID, actorID, actorRole, reason string) (*models.Task, error) {
	if actorRole != models.RoleManager {
		return nil, fmt.Errorf("cancel requires role %s: %w", models.RoleManager, models.ErrForbidden)
	}

	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskStatusCancelled {
		return task, nil
	}
	if task.Status == models.TaskStatusCompleted {
		return nil, fmt.Errorf("task %s already completed: %w", taskID, models.ErrInvalidState)
	}

	event := &models.TaskEvent{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		Seq:         task.Seq + 1,
		ActorUserID: actorID,
		Type:        models.EventTaskCancelled,
		Metadata:    map[string]interface{}{metaReason: reason},
		CreatedAt:   time.Now().UTC(),
	}

	updated := task.Clone()
	if err := ReduceEvent(updated, event); err != nil {
		return nil, err
	}
	if err := r.store.UpdateTask(ctx, updated, task.Seq, event); err != nil {
		return nil, err
	}

	log.Printf("[REGISTRY] Task cancelled: id=%s actor=%s", task.ID, actorID)
	r.Announce(updated, event)
	return updated, nil
}

// ApplyEvent replays a remotely observed event into registry state, used
// when reconciling notifications from a peer deployment. Already-applied
// events are ignored; a sequence gap surfaces as Conflict so the caller
// refetches instead of guessing. Replayed events are not re-announced.
func (r *Registry) ApplyEvent(ctx context.Context, event *models.TaskEvent) error {
	if event.Type == models.EventTaskCreated {
		task, err := NewTaskFromEvent(event)
		if err != nil {
			return err
		}
		err = r.store.CreateTask(ctx, task, event)
		if errors.Is(err, models.ErrConflict) {
			return nil // already applied
		}
		return err
	}

	task, err := r.store.GetTask(ctx, event.TaskID)
	if err != nil {
		return err
	}
	if event.Seq <= task.Seq {
		return nil // already applied
	}

	updated := task.Clone()
	if err := ReduceEvent(updated, event); err != nil {
		return err
	}
	return r.store.UpdateTask(ctx, updated, task.Seq, event)
}

// Announce publishes one event to its task channel and to the role
// eligibility channel of the task's required role
func (r *Registry) Announce(task *models.Task, event *models.TaskEvent) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(models.NotificationFromEvent(event),
		models.TaskTopic(task.ID),
		models.RoleTopic(task.RequiredRole),
	)
}
