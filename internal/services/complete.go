package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskhub/internal/models"

	"github.com/google/uuid"
)

// CompletionHandler records assignment and workflow-step completions and
// auto-closes tasks whose last outstanding step just finished.
type CompletionHandler struct {
	registry *Registry
}

// NewCompletionHandler creates a completion handler over the registry
func NewCompletionHandler(registry *Registry) *CompletionHandler {
	return &CompletionHandler{registry: registry}
}

// Complete marks the acting user's assignment done. For workflow tasks the
// assignment's step must be the currently active one; a user whose role
// matches the active step but who holds no assignment yet gets one bound at
// completion time (later steps of a claimed task are acted on directly, not
// claimed). Completing an already-done assignment is a no-op success so a
// client retrying after a dropped acknowledgment stays safe.
func (h *CompletionHandler) Complete(ctx context.Context, taskID, userID, role, notes string) (*models.Task, error) {
	task, err := h.registry.Store().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	assignment := task.AssignmentFor(userID)
	if assignment != nil && assignment.Status == models.AssignmentStatusDone {
		return task, nil // retry after dropped ack
	}
	if task.Status.IsTerminal() {
		return nil, fmt.Errorf("task %s is %s: %w", taskID, task.Status, models.ErrInvalidState)
	}
	if task.Status == models.TaskStatusOpen {
		return nil, fmt.Errorf("task %s not claimed: %w", taskID, models.ErrInvalidState)
	}

	active := ActiveStep(task)
	hasWorkflow := len(StepDefsFor(task)) > 0

	var assignmentID, stepKey string
	switch {
	case assignment != nil:
		assignmentID = assignment.ID
		stepKey = assignment.StepKey
		if hasWorkflow {
			if active == nil {
				return nil, fmt.Errorf("task %s has no active step: %w", taskID, models.ErrInvalidState)
			}
			if stepKey == "" {
				stepKey = active.Key
			}
			if stepKey != active.Key {
				return nil, fmt.Errorf("step %s is not active on task %s: %w", stepKey, taskID, models.ErrInvalidState)
			}
		}
	case hasWorkflow && active != nil && active.Role == role:
		// No assignment yet: bind one to the acting user for the active step,
		// unless the step is already owned by someone else's live assignment
		if holder := liveStepHolder(task, active.Key); holder != nil {
			return nil, fmt.Errorf("step %s on task %s is held by user %s: %w",
				active.Key, taskID, holder.UserID, models.ErrForbidden)
		}
		assignmentID = uuid.New().String()
		stepKey = active.Key
	default:
		return nil, fmt.Errorf("user %s holds no assignment on task %s: %w", userID, taskID, models.ErrForbidden)
	}

	now := time.Now().UTC()
	metadata := map[string]interface{}{metaAssignmentID: assignmentID}
	if stepKey != "" {
		metadata[metaStepKey] = stepKey
	}
	if notes != "" {
		metadata[metaNotes] = notes
	}

	events := []*models.TaskEvent{{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		Seq:         task.Seq + 1,
		ActorUserID: userID,
		Type:        models.EventAssignmentCompleted,
		Metadata:    metadata,
		CreatedAt:   now,
	}}

	updated := task.Clone()
	if err := ReduceEvent(updated, events[0]); err != nil {
		return nil, err
	}

	if h.shouldAutoClose(updated, hasWorkflow) {
		events = append(events, &models.TaskEvent{
			ID:          uuid.New().String(),
			TaskID:      task.ID,
			Seq:         task.Seq + 2,
			ActorUserID: userID,
			Type:        models.EventTaskCompleted,
			CreatedAt:   now,
		})
		if err := ReduceEvent(updated, events[1]); err != nil {
			return nil, err
		}
	}

	if err := h.registry.Store().UpdateTask(ctx, updated, task.Seq, events...); err != nil {
		return nil, err
	}

	log.Printf("[COMPLETE] Assignment completed: task=%s user=%s step=%s closed=%t",
		taskID, userID, stepKey, updated.Status == models.TaskStatusCompleted)
	for _, event := range events {
		h.registry.Announce(updated, event)
	}
	return updated, nil
}

// liveStepHolder returns the live assignment already bound to stepKey, or nil
func liveStepHolder(task *models.Task, stepKey string) *models.Assignment {
	for i := range task.Assignments {
		if task.Assignments[i].Live() && task.Assignments[i].StepKey == stepKey {
			return &task.Assignments[i]
		}
	}
	return nil
}

// shouldAutoClose decides whether the completion that just landed was the
// last outstanding step or assignment. Workflow tasks close when every
// declared step is done; plain tasks close when at least one assignment
// exists and none is live.
func (h *CompletionHandler) shouldAutoClose(task *models.Task, hasWorkflow bool) bool {
	if task.Status.IsTerminal() {
		return false
	}
	if hasWorkflow {
		return AllStepsDone(task)
	}
	if len(task.Assignments) == 0 {
		return false
	}
	return task.LiveAssignment() == nil
}
