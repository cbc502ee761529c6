package realtime

import (
	"log"
	"sync"

	"taskhub/internal/models"
)

// subscriberBuffer is the per-subscription channel depth. A subscriber that
// falls further behind than this loses notifications and must refetch - the
// delivery contract is at-least-once prompting, not a reliable log.
const subscriberBuffer = 16

// Subscription is one observer's handle on the hub. Notifications arrive on
// C; Close detaches it from every topic.
type Subscription struct {
	C      chan models.Notification
	hub    *Hub
	topics map[string]struct{}
}

// Hub fans task event notifications out to subscribers. Publish never
// blocks: a full subscriber channel drops the notification, and the client
// mirror's sequence-gap detection turns the drop into a refetch.
type Hub struct {
	mutex         sync.RWMutex
	subscriptions map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscription on the given topics
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		C:      make(chan models.Notification, subscriberBuffer),
		hub:    h,
		topics: make(map[string]struct{}, len(topics)),
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, topic := range topics {
		sub.topics[topic] = struct{}{}
		if h.subscriptions[topic] == nil {
			h.subscriptions[topic] = make(map[*Subscription]struct{})
		}
		h.subscriptions[topic][sub] = struct{}{}
	}
	return sub
}

// Add attaches the subscription to an additional topic
func (h *Hub) Add(sub *Subscription, topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	sub.topics[topic] = struct{}{}
	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Subscription]struct{})
	}
	h.subscriptions[topic][sub] = struct{}{}
}

// Remove detaches the subscription from one topic
func (h *Hub) Remove(sub *Subscription, topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(sub.topics, topic)
	if subs := h.subscriptions[topic]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscriptions, topic)
		}
	}
}

// Close detaches the subscription from every topic and closes its channel
func (s *Subscription) Close() {
	h := s.hub
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for topic := range s.topics {
		if subs := h.subscriptions[topic]; subs != nil {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}
	s.topics = nil
	close(s.C)
}

// Publish delivers the notification to every subscriber of the given
// topics. A subscription listening on more than one matching topic receives
// the notification once per topic; client reconciliation is idempotent
// under such replay.
func (h *Hub) Publish(notification models.Notification, topics ...string) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, topic := range topics {
		for sub := range h.subscriptions[topic] {
			select {
			case sub.C <- notification:
			default:
				log.Printf("[HUB] Dropping notification task=%s seq=%d on %s: subscriber full",
					notification.TaskID, notification.Seq, topic)
			}
		}
	}
}
