package models

import "time"

// EventType represents the type of a task event
type EventType string

const (
	EventTaskCreated         EventType = "task_created"
	EventTaskClaimed         EventType = "task_claimed"
	EventAssignmentCompleted EventType = "assignment_completed"
	EventTaskCompleted       EventType = "task_completed"
	EventTaskReassigned      EventType = "task_reassigned"
	EventTaskCancelled       EventType = "task_cancelled"
)

// TaskEvent is an immutable audit record of one task state transition.
// Events are append-only; Seq is assigned by the store at append time and
// increases by one per event within a task.
type TaskEvent struct {
	ID          string                 `bson:"id" json:"id"`
	TaskID      string                 `bson:"taskId" json:"taskId"`
	Seq         int64                  `bson:"seq" json:"seq"`
	ActorUserID string                 `bson:"actorUserId,omitempty" json:"actorUserId,omitempty"`
	Type        EventType              `bson:"type" json:"type"`
	Metadata    map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time              `bson:"createdAt" json:"createdAt"`
}

// MetaString returns the named metadata entry as a string, or "" if absent
func (e *TaskEvent) MetaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// TaskTopic is the notification channel carrying every event of one task
func TaskTopic(taskID string) string {
	return "task:" + taskID
}

// RoleTopic is the eligibility channel for one role, so peers' available
// task views refresh when a task newly opens or gets claimed. Tasks with no
// required role publish to the catch-all "role:any".
func RoleTopic(role string) string {
	if role == "" {
		role = "any"
	}
	return "role:" + role
}

// Notification is the payload pushed to realtime subscribers for one event
type Notification struct {
	TaskID      string                 `json:"taskId"`
	Seq         int64                  `json:"seq"`
	EventType   EventType              `json:"eventType"`
	ActorUserID string                 `json:"actorUserId,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// NotificationFromEvent builds the push payload for one appended event
func NotificationFromEvent(event *TaskEvent) Notification {
	return Notification{
		TaskID:      event.TaskID,
		Seq:         event.Seq,
		EventType:   event.Type,
		ActorUserID: event.ActorUserID,
		Payload:     event.Metadata,
		CreatedAt:   event.CreatedAt,
	}
}

// Event reconstructs the task event a notification describes, letting
// remote observers replay it through the same reducer the server used
func (n Notification) Event() *TaskEvent {
	return &TaskEvent{
		TaskID:      n.TaskID,
		Seq:         n.Seq,
		ActorUserID: n.ActorUserID,
		Type:        n.EventType,
		Metadata:    n.Payload,
		CreatedAt:   n.CreatedAt,
	}
}
