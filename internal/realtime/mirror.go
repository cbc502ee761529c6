package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"taskhub/internal/models"
	"taskhub/internal/services"
)

// Fetcher retrieves the authoritative task record when the mirror cannot
// trust its local copy (sequence gap, failed reduce, unknown task).
type Fetcher interface {
	FetchTask(ctx context.Context, taskID string) (*models.Task, error)
}

// OverlayState tags a task's pending-operations overlay entry
type OverlayState string

const (
	// OverlayConfirmed means no local operation is outstanding.
	OverlayConfirmed OverlayState = "confirmed"
	// OverlayPending means an optimistic local operation awaits server confirmation.
	OverlayPending OverlayState = "pending"
	// OverlayRolledBack means the last optimistic operation failed and the
	// view reverted to the authoritative snapshot.
	OverlayRolledBack OverlayState = "rolled_back"
)

// PendingOp describes the optimistic operation recorded in the overlay
type PendingOp struct {
	Kind   string // "claim" or "complete"
	TaskID string
	UserID string
}

type overlayEntry struct {
	state OverlayState
	op    PendingOp
}

// Mirror is the client-local cache of server truth: an authoritative
// snapshot layer plus a pending-operations overlay. Optimistic updates only
// ever touch the overlay, so rolling back is discarding the entry; incoming
// authoritative data always supersedes whatever the overlay claims.
type Mirror struct {
	mutex   sync.RWMutex
	fetcher Fetcher
	tasks   map[string]*models.Task
	overlay map[string]*overlayEntry
}

// NewMirror creates an empty mirror backed by the given fetcher
func NewMirror(fetcher Fetcher) *Mirror {
	return &Mirror{
		fetcher: fetcher,
		tasks:   make(map[string]*models.Task),
		overlay: make(map[string]*overlayEntry),
	}
}

// Put installs an authoritative task snapshot, superseding any overlay entry
func (m *Mirror) Put(task *models.Task) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tasks[task.ID] = task.Clone()
	delete(m.overlay, task.ID)
}

// Task returns the mirrored task, or nil when unknown
func (m *Mirror) Task(taskID string) *models.Task {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil
	}
	return task.Clone()
}

// State returns the overlay state for a task
func (m *Mirror) State(taskID string) OverlayState {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if entry, ok := m.overlay[taskID]; ok {
		return entry.state
	}
	return OverlayConfirmed
}

// AvailableTasks returns the local view of claimable tasks for a role.
// Tasks with a pending optimistic claim are excluded before the server
// confirms, which is the whole point of the optimistic update.
func (m *Mirror) AvailableTasks(role string) []*models.Task {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []*models.Task
	for id, task := range m.tasks {
		if task.Status != models.TaskStatusOpen {
			continue
		}
		if task.RequiredRole != "" && task.RequiredRole != role {
			continue
		}
		if entry, ok := m.overlay[id]; ok && entry.state == OverlayPending {
			continue
		}
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// BeginClaim records an optimistic claim. The snapshot layer is untouched;
// only the overlay changes, so the pre-optimistic state stays recoverable.
func (m *Mirror) BeginClaim(taskID, userID string) error {
	return m.beginOp(PendingOp{Kind: "claim", TaskID: taskID, UserID: userID})
}

// BeginComplete records an optimistic completion
func (m *Mirror) BeginComplete(taskID, userID string) error {
	return m.beginOp(PendingOp{Kind: "complete", TaskID: taskID, UserID: userID})
}

func (m *Mirror) beginOp(op PendingOp) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.tasks[op.TaskID]; !ok {
		return fmt.Errorf("task %s not mirrored: %w", op.TaskID, models.ErrNotFound)
	}
	if entry, ok := m.overlay[op.TaskID]; ok && entry.state == OverlayPending {
		return fmt.Errorf("task %s already has a pending %s: %w", op.TaskID, entry.op.Kind, models.ErrConflict)
	}
	m.overlay[op.TaskID] = &overlayEntry{state: OverlayPending, op: op}
	return nil
}

// Confirm installs the server-confirmed task and discards the overlay entry
func (m *Mirror) Confirm(task *models.Task) {
	m.Put(task)
}

// Rollback reverts a failed optimistic operation. The view falls back to
// the untouched authoritative snapshot; the RolledBack tag survives until
// the next authoritative update discards it.
func (m *Mirror) Rollback(taskID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if entry, ok := m.overlay[taskID]; ok {
		entry.state = OverlayRolledBack
	}
}

// ApplyNotification reconciles one pushed event into the mirror. Replayed
// notifications are no-ops; the next expected event is reduced locally with
// the same transition function the server used; anything else (gap, unknown
// task, reduce failure) refetches the authoritative record, which always
// wins over local state.
func (m *Mirror) ApplyNotification(ctx context.Context, n models.Notification) error {
	m.mutex.Lock()
	task, known := m.tasks[n.TaskID]
	if known && n.Seq <= task.Seq {
		m.mutex.Unlock()
		return nil // duplicate delivery
	}
	if known && n.Seq == task.Seq+1 {
		updated := task.Clone()
		if err := services.ReduceEvent(updated, n.Event()); err == nil {
			m.tasks[n.TaskID] = updated
			delete(m.overlay, n.TaskID)
			m.mutex.Unlock()
			return nil
		}
		log.Printf("[MIRROR] Reduce failed for task=%s seq=%d, refetching", n.TaskID, n.Seq)
	}
	m.mutex.Unlock()

	return m.refetch(ctx, n.TaskID)
}

func (m *Mirror) refetch(ctx context.Context, taskID string) error {
	task, err := m.fetcher.FetchTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			m.mutex.Lock()
			delete(m.tasks, taskID)
			delete(m.overlay, taskID)
			m.mutex.Unlock()
			return nil
		}
		return fmt.Errorf("failed to refetch task %s: %w", taskID, err)
	}
	m.Put(task)
	return nil
}
