package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taskhub/internal/models"

	"github.com/google/uuid"
)

// ClaimCoordinator enforces single-ownership acquisition of open tasks.
// The store's conditional write is the only mutual-exclusion point: of N
// concurrent claimants working from the same snapshot, exactly one write
// matches and the rest surface AlreadyClaimed.
type ClaimCoordinator struct {
	registry *Registry
}

// NewClaimCoordinator creates a claim coordinator over the registry
func NewClaimCoordinator(registry *Registry) *ClaimCoordinator {
	return &ClaimCoordinator{registry: registry}
}

// Claim attempts to acquire ownership of an open task for the given user.
// Preconditions: the task is open and the user's role matches the required
// role (or none is set). On success the task is claimed, a pending
// assignment for the user exists and a task_claimed event is appended.
func (c *ClaimCoordinator) Claim(ctx context.Context, taskID, userID, role string) (*models.Task, error) {
	task, err := c.registry.Store().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	switch task.Status {
	case models.TaskStatusOpen:
		// claimable
	case models.TaskStatusClaimed, models.TaskStatusInProgress:
		return nil, fmt.Errorf("task %s: %w", taskID, models.ErrAlreadyClaimed)
	default:
		return nil, fmt.Errorf("task %s is %s: %w", taskID, task.Status, models.ErrInvalidState)
	}
	if task.RequiredRole != "" && task.RequiredRole != role {
		return nil, fmt.Errorf("task %s requires role %s, caller has %s: %w",
			taskID, task.RequiredRole, role, models.ErrForbidden)
	}

	event := &models.TaskEvent{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		Seq:         task.Seq + 1,
		ActorUserID: userID,
		Type:        models.EventTaskClaimed,
		Metadata: map[string]interface{}{
			metaAssignmentID: uuid.New().String(),
			metaRoleHint:     role,
		},
		CreatedAt: time.Now().UTC(),
	}
	if stepKey := claimStepKey(task, role); stepKey != "" {
		event.Metadata[metaStepKey] = stepKey
	}

	updated := task.Clone()
	if err := ReduceEvent(updated, event); err != nil {
		return nil, err
	}

	err = c.registry.Store().UpdateTask(ctx, updated, task.Seq, event)
	if errors.Is(err, models.ErrConflict) {
		// Lost the race. If the task left open state, someone else claimed it.
		current, getErr := c.registry.Store().GetTask(ctx, taskID)
		if getErr == nil && current.Status != models.TaskStatusOpen {
			return nil, fmt.Errorf("task %s: %w", taskID, models.ErrAlreadyClaimed)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[CLAIM] Task claimed: id=%s user=%s role=%s", taskID, userID, role)
	c.registry.Announce(updated, event)
	return updated, nil
}

// claimStepKey picks the workflow step the claimant's assignment is tagged
// with: the first not-done step matching their role, else the first not-done
// step. Tasks without a workflow get no step key.
func claimStepKey(task *models.Task, role string) string {
	defs := StepDefsFor(task)
	first := ""
	for _, def := range defs {
		if task.StepDone(def.Key) {
			continue
		}
		if first == "" {
			first = def.Key
		}
		if def.Role == role {
			return def.Key
		}
	}
	return first
}

// Reassign is the administrative override replacing the current owner. It
// does not require open status, is restricted to managers, and appends one
// compound task_reassigned event (the old assignment is skipped and the new
// one created in a single transition). Reassigning to the current owner is
// a no-op success, making retries with the same target idempotent.
func (c *ClaimCoordinator) Reassign(ctx context.Context, taskID, newUserID, roleHint, actorID, actorRole string) (*models.Task, error) {
	if actorRole != models.RoleManager {
		return nil, fmt.Errorf("reassign requires role %s: %w", models.RoleManager, models.ErrForbidden)
	}

	task, err := c.registry.Store().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return nil, fmt.Errorf("task %s is %s: %w", taskID, task.Status, models.ErrInvalidState)
	}

	live := task.LiveAssignment()
	if live != nil && live.UserID == newUserID {
		return task, nil
	}

	metadata := map[string]interface{}{
		metaAssignmentID: uuid.New().String(),
		metaNewUserID:    newUserID,
	}
	if roleHint != "" {
		metadata[metaRoleHint] = roleHint
	}
	if live != nil {
		metadata[metaOldAssignmentID] = live.ID
	}

	event := &models.TaskEvent{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		Seq:         task.Seq + 1,
		ActorUserID: actorID,
		Type:        models.EventTaskReassigned,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}

	updated := task.Clone()
	if err := ReduceEvent(updated, event); err != nil {
		return nil, err
	}
	if err := c.registry.Store().UpdateTask(ctx, updated, task.Seq, event); err != nil {
		return nil, err
	}

	log.Printf("[CLAIM] Task reassigned: id=%s newUser=%s actor=%s", taskID, newUserID, actorID)
	c.registry.Announce(updated, event)
	return updated, nil
}
