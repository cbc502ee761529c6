package services

import (
	"context"
	"sync"
	"testing"

	"taskhub/internal/models"
	"taskhub/internal/store"

	"github.com/stretchr/testify/require"
)

// recorder captures published notifications for assertions
type recorder struct {
	mutex         sync.Mutex
	notifications []models.Notification
	topics        [][]string
}

func (r *recorder) Publish(notification models.Notification, topics ...string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifications = append(r.notifications, notification)
	r.topics = append(r.topics, topics)
}

func (r *recorder) byType(eventType models.EventType) []models.Notification {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var out []models.Notification
	for _, n := range r.notifications {
		if n.EventType == eventType {
			out = append(out, n)
		}
	}
	return out
}

type engine struct {
	store      *store.MemoryStore
	registry   *Registry
	claims     *ClaimCoordinator
	completion *CompletionHandler
	published  *recorder
}

func newEngine() *engine {
	st := store.NewMemoryStore()
	rec := &recorder{}
	registry := NewRegistry(st, rec)
	return &engine{
		store:      st,
		registry:   registry,
		claims:     NewClaimCoordinator(registry),
		completion: NewCompletionHandler(registry),
		published:  rec,
	}
}

func (e *engine) createTask(t *testing.T, req models.CreateTaskRequest, creatorID string) *models.Task {
	t.Helper()
	task, err := e.registry.CreateTask(context.Background(), req, creatorID)
	require.NoError(t, err)
	return task
}

func restockRequest() models.CreateTaskRequest {
	return models.CreateTaskRequest{
		Type:         models.TaskTypeRestock,
		Title:        "Restock rebar pallets",
		RequiredRole: models.RoleDelivery,
	}
}

func saleRequest() models.CreateTaskRequest {
	return models.CreateTaskRequest{
		Type:  models.TaskTypeSale,
		Title: "Record bulk cement sale",
	}
}
