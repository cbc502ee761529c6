package models

import "time"

// TaskType identifies the business process a task belongs to
type TaskType string

const (
	TaskTypeRestock   TaskType = "restock"
	TaskTypeRetail    TaskType = "retail"
	TaskTypeWholesale TaskType = "wholesale"
	TaskTypeSale      TaskType = "sale"
	TaskTypeCustom    TaskType = "custom"
)

// ValidTaskType reports whether t is one of the known task types
func ValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeRestock, TaskTypeRetail, TaskTypeWholesale, TaskTypeSale, TaskTypeCustom:
		return true
	}
	return false
}

// TaskStatus represents the lifecycle status of a task
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusClaimed    TaskStatus = "claimed"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether the status allows no further transitions
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// AssignmentStatus represents the status of a single assignment
type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusDone       AssignmentStatus = "done"
	AssignmentStatusSkipped    AssignmentStatus = "skipped"
)

// Assignment binds one user to one task-ownership slot
type Assignment struct {
	ID          string           `bson:"id" json:"id"`
	TaskID      string           `bson:"taskId" json:"taskId"`
	UserID      string           `bson:"userId" json:"userId"`
	Status      AssignmentStatus `bson:"status" json:"status"`
	StepKey     string           `bson:"stepKey,omitempty" json:"stepKey,omitempty"`
	RoleHint    string           `bson:"roleHint,omitempty" json:"roleHint,omitempty"`
	Notes       string           `bson:"notes,omitempty" json:"notes,omitempty"`
	AssignedAt  time.Time        `bson:"assignedAt" json:"assignedAt"`
	CompletedAt *time.Time       `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Live reports whether the assignment still occupies its ownership slot
func (a *Assignment) Live() bool {
	return a.Status == AssignmentStatusPending || a.Status == AssignmentStatusInProgress
}

// Task represents a unit of work coordinated by the engine
type Task struct {
	ID              string                 `bson:"_id" json:"id"`
	Type            TaskType               `bson:"type" json:"type"`
	Status          TaskStatus             `bson:"status" json:"status"`
	Title           string                 `bson:"title" json:"title"`
	Description     string                 `bson:"description,omitempty" json:"description,omitempty"`
	CreatorID       string                 `bson:"creatorId" json:"creatorId"`
	RelatedRecordID string                 `bson:"relatedRecordId,omitempty" json:"relatedRecordId,omitempty"`
	RequiredRole    string                 `bson:"requiredRole,omitempty" json:"requiredRole,omitempty"`
	Metadata        map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Assignments     []Assignment           `bson:"assignments" json:"assignments"`
	// Seq is the sequence number of the latest event applied to this task.
	// Every mutation bumps it by the number of events it appends.
	Seq       int64     `bson:"seq" json:"seq"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// LiveAssignment returns the task's current live assignment, or nil
func (t *Task) LiveAssignment() *Assignment {
	for i := range t.Assignments {
		if t.Assignments[i].Live() {
			return &t.Assignments[i]
		}
	}
	return nil
}

// AssignmentFor returns the most recent assignment held by userID, or nil
func (t *Task) AssignmentFor(userID string) *Assignment {
	for i := len(t.Assignments) - 1; i >= 0; i-- {
		if t.Assignments[i].UserID == userID && t.Assignments[i].Status != AssignmentStatusSkipped {
			return &t.Assignments[i]
		}
	}
	return nil
}

// AssignmentByID returns the assignment with the given id, or nil
func (t *Task) AssignmentByID(id string) *Assignment {
	for i := range t.Assignments {
		if t.Assignments[i].ID == id {
			return &t.Assignments[i]
		}
	}
	return nil
}

// StepDone reports whether a completion has been recorded for the given step key
func (t *Task) StepDone(stepKey string) bool {
	for i := range t.Assignments {
		if t.Assignments[i].StepKey == stepKey && t.Assignments[i].Status == AssignmentStatusDone {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task safe to mutate independently
func (t *Task) Clone() *Task {
	cp := *t
	cp.Assignments = make([]Assignment, len(t.Assignments))
	copy(cp.Assignments, t.Assignments)
	if t.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// WorkflowStep is a derived view of one ordered sub-unit of a multi-role task.
// It is never persisted; the sequencer recomputes it on every read.
type WorkflowStep struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	ActionLabel string `json:"actionLabel"`
	Role        string `json:"role"`
	IsActive    bool   `json:"isActive"`
	IsDone      bool   `json:"isDone"`
	IsLocked    bool   `json:"isLocked"`
}
