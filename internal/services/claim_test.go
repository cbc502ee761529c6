package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"taskhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimSuccess(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	claimed, err := e.claims.Claim(context.Background(), task.ID, "user-7", models.RoleDelivery)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusClaimed, claimed.Status)
	require.Len(t, claimed.Assignments, 1)
	assert.Equal(t, "user-7", claimed.Assignments[0].UserID)
	assert.Equal(t, models.AssignmentStatusPending, claimed.Assignments[0].Status)

	events := e.published.byType(models.EventTaskClaimed)
	require.Len(t, events, 1)
	assert.Equal(t, task.ID, events[0].TaskID)
}

// Many delivery users race for the same open task; exactly one
// wins, the other gets AlreadyClaimed and the task holds one live assignment.
func TestClaimConcurrentExactlyOneWinner(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	const claimants = 20
	var wg sync.WaitGroup
	results := make([]error, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			_, results[i] = e.claims.Claim(context.Background(), task.ID, userID, models.RoleDelivery)
		}(i)
	}
	wg.Wait()

	successes, alreadyClaimed := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, models.ErrAlreadyClaimed):
			alreadyClaimed++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent claim must succeed")
	assert.Equal(t, claimants-1, alreadyClaimed)

	final, err := e.registry.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusClaimed, final.Status)

	live := 0
	for _, a := range final.Assignments {
		if a.Live() {
			live++
		}
	}
	assert.Equal(t, 1, live, "task must end with exactly one live assignment")
	assert.Len(t, e.published.byType(models.EventTaskClaimed), 1)
}

// A role mismatch is Forbidden, with no state change and no event
func TestClaimRoleMismatchForbidden(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	_, err := e.claims.Claim(context.Background(), task.ID, "user-9", models.RoleStorekeeper)
	require.ErrorIs(t, err, models.ErrForbidden)

	current, err := e.registry.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusOpen, current.Status)
	assert.Empty(t, current.Assignments)
	assert.Empty(t, e.published.byType(models.EventTaskClaimed))
}

func TestClaimUnsetRoleOpenToAll(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, saleRequest(), "creator-1")

	_, err := e.claims.Claim(context.Background(), task.ID, "user-3", models.RoleStorekeeper)
	require.NoError(t, err)
}

func TestClaimNotFound(t *testing.T) {
	e := newEngine()
	_, err := e.claims.Claim(context.Background(), "no-such-task", "user-7", models.RoleDelivery)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestClaimAlreadyClaimedSequential(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	_, err := e.claims.Claim(context.Background(), task.ID, "user-7", models.RoleDelivery)
	require.NoError(t, err)

	_, err = e.claims.Claim(context.Background(), task.ID, "user-8", models.RoleDelivery)
	require.ErrorIs(t, err, models.ErrAlreadyClaimed)
}

func TestClaimTerminalTaskInvalidState(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	_, err := e.registry.Cancel(context.Background(), task.ID, "admin-1", models.RoleManager, "duplicate")
	require.NoError(t, err)

	_, err = e.claims.Claim(context.Background(), task.ID, "user-7", models.RoleDelivery)
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestReassignReplacesOwner(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	_, err := e.claims.Claim(context.Background(), task.ID, "user-7", models.RoleDelivery)
	require.NoError(t, err)

	updated, err := e.claims.Reassign(context.Background(), task.ID, "user-8", models.RoleDelivery, "admin-1", models.RoleManager)
	require.NoError(t, err)

	live := updated.LiveAssignment()
	require.NotNil(t, live)
	assert.Equal(t, "user-8", live.UserID)

	// The old assignment is skipped, not deleted: the slot never holds two
	// live assignments and the history stays auditable.
	skipped := 0
	for _, a := range updated.Assignments {
		if a.Status == models.AssignmentStatusSkipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)
	assert.Len(t, e.published.byType(models.EventTaskReassigned), 1)
}

func TestReassignIdempotentForSameTarget(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	_, err := e.claims.Reassign(context.Background(), task.ID, "user-8", "", "admin-1", models.RoleManager)
	require.NoError(t, err)

	again, err := e.claims.Reassign(context.Background(), task.ID, "user-8", "", "admin-1", models.RoleManager)
	require.NoError(t, err)

	live := 0
	for _, a := range again.Assignments {
		if a.Live() {
			live++
		}
	}
	assert.Equal(t, 1, live)
	assert.Len(t, e.published.byType(models.EventTaskReassigned), 1, "retry with same target appends no second event")
}

func TestReassignRequiresManager(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	_, err := e.claims.Reassign(context.Background(), task.ID, "user-8", "", "user-7", models.RoleDelivery)
	require.ErrorIs(t, err, models.ErrForbidden)
}

func TestReassignUnclaimedTaskClaimsForTarget(t *testing.T) {
	e := newEngine()
	task := e.createTask(t, restockRequest(), "creator-1")

	updated, err := e.claims.Reassign(context.Background(), task.ID, "user-8", models.RoleDelivery, "admin-1", models.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusClaimed, updated.Status)
	require.NotNil(t, updated.LiveAssignment())
	assert.Equal(t, "user-8", updated.LiveAssignment().UserID)
}
