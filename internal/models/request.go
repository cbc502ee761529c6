package models

// CreateTaskRequest is the inbound command to create a task. Upstream
// collaborators send required_role, an optional related record id and opaque
// metadata the engine never interprets (it is schema-validated at the edge
// and stored as-is).
type CreateTaskRequest struct {
	Type            TaskType               `json:"type" binding:"required"`
	Title           string                 `json:"title" binding:"required"`
	Description     string                 `json:"description,omitempty"`
	RequiredRole    string                 `json:"requiredRole,omitempty"`
	RelatedRecordID string                 `json:"relatedRecordId,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// CompleteRequest carries optional notes for an assignment/step completion
type CompleteRequest struct {
	Notes string `json:"notes"`
}

// ReassignRequest is the administrative command to replace a task's owner
type ReassignRequest struct {
	NewUserID string `json:"newUserId" binding:"required"`
	RoleHint  string `json:"roleHint"`
}

// CancelRequest carries the reason for an administrative cancellation
type CancelRequest struct {
	Reason string `json:"reason"`
}

// TaskResponse is the detail view returned for a single task: the
// authoritative record plus its derived workflow steps
type TaskResponse struct {
	Task  *Task          `json:"task"`
	Steps []WorkflowStep `json:"steps,omitempty"`
}

// AuthTokenRequest is the development token mint request
type AuthTokenRequest struct {
	UserID   string `json:"userId" binding:"required"`
	UserName string `json:"userName"`
	Role     string `json:"role" binding:"required"`
}

// SuggestRequest asks the advisor stub for advisory task suggestions
type SuggestRequest struct {
	Situation string `json:"situation" binding:"required"`
}

// SuggestResponse returns the advisory create-task requests the advisor
// produced. Nothing is created until the caller submits them.
type SuggestResponse struct {
	Suggestions []CreateTaskRequest `json:"suggestions"`
}
