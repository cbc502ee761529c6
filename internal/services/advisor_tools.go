package services

import (
	"context"
	"encoding/json"
	"fmt"

	"taskhub/internal/models"
	"taskhub/internal/store"
)

// BoardTool is one read-only board query the advisor model may call before
// producing suggestions
type BoardTool struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema for OpenAI function calling
	Execute     func(ctx context.Context, params map[string]interface{}) (string, error)
}

// BoardTools exposes the live task board to the advisor so suggestions are
// grounded on what is actually open rather than the situation text alone
type BoardTools struct {
	registry *Registry
}

// NewBoardTools creates board tools backed by the registry
func NewBoardTools(registry *Registry) *BoardTools {
	return &BoardTools{registry: registry}
}

// All returns every tool available to the advisor
func (bt *BoardTools) All() []BoardTool {
	return []BoardTool{
		bt.buildListOpenTasksTool(),
		bt.buildGetTaskTool(),
	}
}

// Execute runs the named tool with JSON-encoded arguments
func (bt *BoardTools) Execute(ctx context.Context, name, arguments string) (string, error) {
	params := make(map[string]interface{})
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &params); err != nil {
			return "", fmt.Errorf("invalid arguments for tool %s: %w", name, err)
		}
	}
	for _, tool := range bt.All() {
		if tool.Name == name {
			return tool.Execute(ctx, params)
		}
	}
	return "", fmt.Errorf("unknown tool %q", name)
}

// taskSummary is the compact shape returned to the model
type taskSummary struct {
	ID           string            `json:"id"`
	Type         models.TaskType   `json:"type"`
	Status       models.TaskStatus `json:"status"`
	Title        string            `json:"title"`
	RequiredRole string            `json:"requiredRole,omitempty"`
}

func summarize(tasks []*models.Task) []taskSummary {
	out := make([]taskSummary, len(tasks))
	for i, task := range tasks {
		out[i] = taskSummary{
			ID:           task.ID,
			Type:         task.Type,
			Status:       task.Status,
			Title:        task.Title,
			RequiredRole: task.RequiredRole,
		}
	}
	return out
}

func (bt *BoardTools) buildListOpenTasksTool() BoardTool {
	return BoardTool{
		Name:        "list_open_tasks",
		Description: "List tasks that are still open on the board, optionally filtered to one required role. Use this to avoid suggesting duplicates of tasks that already exist.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"requiredRole": map[string]interface{}{
					"type":        "string",
					"description": "Only return tasks claimable by this role (foreman, delivery, requester, storekeeper, manager)",
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (string, error) {
			var tasks []*models.Task
			var err error
			if role := stringParam(params, "requiredRole"); role != "" {
				tasks, err = bt.registry.ListAvailableTasks(ctx, role)
			} else {
				tasks, err = bt.registry.ListTasks(ctx, store.TaskFilter{Status: models.TaskStatusOpen})
			}
			if err != nil {
				return "", fmt.Errorf("failed to list open tasks: %w", err)
			}
			payload, err := json.Marshal(map[string]interface{}{"tasks": summarize(tasks)})
			if err != nil {
				return "", fmt.Errorf("failed to encode task list: %w", err)
			}
			return string(payload), nil
		},
	}
}

func (bt *BoardTools) buildGetTaskTool() BoardTool {
	return BoardTool{
		Name:        "get_task",
		Description: "Fetch one task by id, including its workflow steps and assignment history.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"taskId": map[string]interface{}{
					"type":        "string",
					"description": "The task id",
				},
			},
			"required": []string{"taskId"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (string, error) {
			taskID := stringParam(params, "taskId")
			if taskID == "" {
				return "", fmt.Errorf("taskId is required")
			}
			task, err := bt.registry.GetTask(ctx, taskID)
			if err != nil {
				return "", fmt.Errorf("failed to fetch task %s: %w", taskID, err)
			}
			payload, err := json.Marshal(models.TaskResponse{
				Task:  task,
				Steps: ComputeSteps(task),
			})
			if err != nil {
				return "", fmt.Errorf("failed to encode task: %w", err)
			}
			return string(payload), nil
		},
	}
}

func stringParam(params map[string]interface{}, key string) string {
	value, _ := params[key].(string)
	return value
}
