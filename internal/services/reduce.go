package services

import (
	"fmt"

	"taskhub/internal/models"
)

// Event metadata keys. Every mutation is described entirely by its event so
// that replaying the event through the reducer reproduces the state reached
// by the direct command path.
const (
	metaAssignmentID    = "assignmentId"
	metaOldAssignmentID = "oldAssignmentId"
	metaUserID          = "userId"
	metaNewUserID       = "newUserId"
	metaStepKey         = "stepKey"
	metaRoleHint        = "roleHint"
	metaNotes           = "notes"
	metaReason          = "reason"
	metaTaskType        = "type"
	metaTitle           = "title"
	metaDescription     = "description"
	metaRequiredRole    = "requiredRole"
	metaRelatedRecordID = "relatedRecordId"
	metaTaskMetadata    = "taskMetadata"
)

// NewTaskFromEvent reconstructs a task from its task_created event
func NewTaskFromEvent(event *models.TaskEvent) (*models.Task, error) {
	if event.Type != models.EventTaskCreated {
		return nil, fmt.Errorf("cannot build task from %s event: %w", event.Type, models.ErrInvalidState)
	}
	taskMeta, _ := event.Metadata[metaTaskMetadata].(map[string]interface{})
	task := &models.Task{
		ID:              event.TaskID,
		Type:            models.TaskType(event.MetaString(metaTaskType)),
		Status:          models.TaskStatusOpen,
		Title:           event.MetaString(metaTitle),
		Description:     event.MetaString(metaDescription),
		CreatorID:       event.ActorUserID,
		RelatedRecordID: event.MetaString(metaRelatedRecordID),
		RequiredRole:    event.MetaString(metaRequiredRole),
		Metadata:        taskMeta,
		Seq:             event.Seq,
		CreatedAt:       event.CreatedAt,
		UpdatedAt:       event.CreatedAt,
	}
	return task, nil
}

// ReduceEvent applies one event to a task snapshot in place. It is the
// single transition function shared by the command path and remote replay,
// so both roads arrive at the same state.
//
// Replays of already-applied events (seq at or below the task's) are
// silently ignored; a sequence gap is a Conflict the caller resolves by
// refetching the authoritative task.
func ReduceEvent(task *models.Task, event *models.TaskEvent) error {
	if event.TaskID != task.ID {
		return fmt.Errorf("event for task %s applied to task %s: %w", event.TaskID, task.ID, models.ErrConflict)
	}
	if event.Seq <= task.Seq {
		return nil // already applied
	}
	if event.Seq != task.Seq+1 {
		return fmt.Errorf("event seq %d after task seq %d: %w", event.Seq, task.Seq, models.ErrConflict)
	}

	switch event.Type {
	case models.EventTaskClaimed:
		task.Status = models.TaskStatusClaimed
		task.Assignments = append(task.Assignments, models.Assignment{
			ID:         event.MetaString(metaAssignmentID),
			TaskID:     task.ID,
			UserID:     event.ActorUserID,
			Status:     models.AssignmentStatusPending,
			StepKey:    event.MetaString(metaStepKey),
			RoleHint:   event.MetaString(metaRoleHint),
			AssignedAt: event.CreatedAt,
		})

	case models.EventAssignmentCompleted:
		completedAt := event.CreatedAt
		assignment := task.AssignmentByID(event.MetaString(metaAssignmentID))
		if assignment == nil {
			// Later workflow steps bind their assignment at completion time
			task.Assignments = append(task.Assignments, models.Assignment{
				ID:         event.MetaString(metaAssignmentID),
				TaskID:     task.ID,
				UserID:     event.ActorUserID,
				StepKey:    event.MetaString(metaStepKey),
				AssignedAt: event.CreatedAt,
			})
			assignment = &task.Assignments[len(task.Assignments)-1]
		}
		assignment.Status = models.AssignmentStatusDone
		assignment.Notes = event.MetaString(metaNotes)
		assignment.CompletedAt = &completedAt
		if stepKey := event.MetaString(metaStepKey); stepKey != "" {
			// The completion is what ties the assignment to its step
			assignment.StepKey = stepKey
		}
		if task.Status == models.TaskStatusClaimed || task.Status == models.TaskStatusOpen {
			task.Status = models.TaskStatusInProgress
		}

	case models.EventTaskCompleted:
		task.Status = models.TaskStatusCompleted

	case models.EventTaskReassigned:
		if task.Status == models.TaskStatusOpen {
			// Reassigning an unclaimed task is a claim on the target's behalf
			task.Status = models.TaskStatusClaimed
		}
		stepKey := event.MetaString(metaStepKey)
		if old := task.AssignmentByID(event.MetaString(metaOldAssignmentID)); old != nil {
			old.Status = models.AssignmentStatusSkipped
			if stepKey == "" {
				stepKey = old.StepKey
			}
		}
		task.Assignments = append(task.Assignments, models.Assignment{
			ID:         event.MetaString(metaAssignmentID),
			TaskID:     task.ID,
			UserID:     event.MetaString(metaNewUserID),
			Status:     models.AssignmentStatusPending,
			StepKey:    stepKey,
			RoleHint:   event.MetaString(metaRoleHint),
			AssignedAt: event.CreatedAt,
		})

	case models.EventTaskCancelled:
		task.Status = models.TaskStatusCancelled
		for i := range task.Assignments {
			if task.Assignments[i].Live() {
				task.Assignments[i].Status = models.AssignmentStatusSkipped
			}
		}

	case models.EventTaskCreated:
		return fmt.Errorf("task_created replayed onto existing task %s: %w", task.ID, models.ErrConflict)

	default:
		return fmt.Errorf("unknown event type %q: %w", event.Type, models.ErrInvalidState)
	}

	task.Seq = event.Seq
	task.UpdatedAt = event.CreatedAt
	return nil
}
