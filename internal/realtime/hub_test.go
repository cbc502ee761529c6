package realtime

import (
	"testing"
	"time"

	"taskhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(taskID string, seq int64, eventType models.EventType) models.Notification {
	return models.Notification{TaskID: taskID, Seq: seq, EventType: eventType, CreatedAt: time.Now()}
}

func receive(t *testing.T, sub *Subscription) models.Notification {
	t.Helper()
	select {
	case n := <-sub.C:
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return models.Notification{}
	}
}

func TestHubDeliversToTaskSubscribers(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(models.TaskTopic("task-1"))
	defer sub.Close()

	hub.Publish(notification("task-1", 2, models.EventTaskClaimed), models.TaskTopic("task-1"))

	got := receive(t, sub)
	assert.Equal(t, "task-1", got.TaskID)
	assert.Equal(t, models.EventTaskClaimed, got.EventType)
}

func TestHubRoleChannelFanout(t *testing.T) {
	hub := NewHub()
	delivery := hub.Subscribe(models.RoleTopic("delivery"))
	foreman := hub.Subscribe(models.RoleTopic("foreman"))
	defer delivery.Close()
	defer foreman.Close()

	hub.Publish(notification("task-1", 1, models.EventTaskCreated),
		models.TaskTopic("task-1"), models.RoleTopic("delivery"))

	got := receive(t, delivery)
	assert.Equal(t, models.EventTaskCreated, got.EventType)

	select {
	case n := <-foreman.C:
		t.Fatalf("foreman channel should stay silent, got %v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSubscribeUnsubscribeTopics(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(models.RoleTopic("delivery"))
	defer sub.Close()

	hub.Add(sub, models.TaskTopic("task-9"))
	hub.Publish(notification("task-9", 3, models.EventAssignmentCompleted), models.TaskTopic("task-9"))
	assert.Equal(t, int64(3), receive(t, sub).Seq)

	hub.Remove(sub, models.TaskTopic("task-9"))
	hub.Publish(notification("task-9", 4, models.EventTaskCompleted), models.TaskTopic("task-9"))
	select {
	case n := <-sub.C:
		t.Fatalf("unsubscribed topic should stay silent, got %v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubCloseStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(models.TaskTopic("task-1"))
	sub.Close()

	// Publishing after close must not panic or deliver
	hub.Publish(notification("task-1", 2, models.EventTaskClaimed), models.TaskTopic("task-1"))

	_, open := <-sub.C
	assert.False(t, open, "channel closed after Close")
}

// A slow subscriber loses notifications instead of blocking the publisher
func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(models.TaskTopic("task-1"))
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(notification("task-1", int64(i), models.EventTaskClaimed), models.TaskTopic("task-1"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
	require.LessOrEqual(t, len(sub.C), subscriberBuffer)
}
