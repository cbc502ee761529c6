package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"taskhub/internal/models"
)

// MemoryStore keeps tasks and events in process memory guarded by a single
// RWMutex. It backs the test suite and serves as the fallback when MongoDB
// is not configured.
type MemoryStore struct {
	mutex  sync.RWMutex
	tasks  map[string]*models.Task
	events map[string][]models.TaskEvent
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:  make(map[string]*models.Task),
		events: make(map[string][]models.TaskEvent),
	}
}

// CreateTask inserts a new task together with its creation event
func (s *MemoryStore) CreateTask(ctx context.Context, task *models.Task, event *models.TaskEvent) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s: %w", task.ID, models.ErrConflict)
	}

	s.tasks[task.ID] = task.Clone()
	s.events[task.ID] = append(s.events[task.ID], *event)
	return nil
}

// GetTask retrieves a task by ID
func (s *MemoryStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return task.Clone(), nil
}

// ListTasks returns tasks matching the filter, newest first
func (s *MemoryStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*models.Task
	for _, task := range s.tasks {
		if matchesFilter(task, filter) {
			out = append(out, task.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListAvailableTasks returns claimable open tasks for the given role
func (s *MemoryStore) ListAvailableTasks(ctx context.Context, role string) ([]*models.Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*models.Task
	for _, task := range s.tasks {
		if task.Status != models.TaskStatusOpen || task.LiveAssignment() != nil {
			continue
		}
		if task.RequiredRole != "" && task.RequiredRole != role {
			continue
		}
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateTask writes the task and appends events, conditional on expectedSeq
func (s *MemoryStore) UpdateTask(ctx context.Context, task *models.Task, expectedSeq int64, events ...*models.TaskEvent) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, exists := s.tasks[task.ID]
	if !exists {
		return fmt.Errorf("task %s: %w", task.ID, models.ErrNotFound)
	}
	if current.Seq != expectedSeq {
		return fmt.Errorf("task %s at seq %d, expected %d: %w",
			task.ID, current.Seq, expectedSeq, models.ErrConflict)
	}

	s.tasks[task.ID] = task.Clone()
	for _, ev := range events {
		s.events[task.ID] = append(s.events[task.ID], *ev)
	}
	return nil
}

// GetEvents returns the task's event history in sequence order
func (s *MemoryStore) GetEvents(ctx context.Context, taskID string) ([]models.TaskEvent, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if _, exists := s.tasks[taskID]; !exists {
		return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
	}
	events := make([]models.TaskEvent, len(s.events[taskID]))
	copy(events, s.events[taskID])
	return events, nil
}

func matchesFilter(task *models.Task, filter TaskFilter) bool {
	if filter.CreatorID != "" && task.CreatorID != filter.CreatorID {
		return false
	}
	if filter.Status != "" && task.Status != filter.Status {
		return false
	}
	if filter.Type != "" && task.Type != filter.Type {
		return false
	}
	if filter.AssigneeID != "" {
		if task.AssignmentFor(filter.AssigneeID) == nil {
			return false
		}
	}
	return true
}
