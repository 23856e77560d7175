// Package eventbus is a small in-process pub/sub channel for assignment
// events. Delivery is best-effort: a subscriber whose buffer is full misses
// the event, and nothing is retried. External sync adapters that need
// stronger guarantees must reconcile from the store.
package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies what happened to an assignment.
type EventType string

const (
	// EventAssignmentCommitted fires after a direct-assign or approve
	// transition commits a worker to a task.
	EventAssignmentCommitted EventType = "assignment.committed"

	// EventAssignmentProposed fires when a pending assignment is attached.
	EventAssignmentProposed EventType = "assignment.proposed"

	// EventAssignmentRejected fires when an operator rejects a proposal.
	EventAssignmentRejected EventType = "assignment.rejected"
)

// Event describes one assignment transition.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	TenantID string    `json:"tenant_id"`
	TaskID   string    `json:"task_id"`
	WorkerID string    `json:"worker_id"`
	At       time.Time `json:"at"`
}

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan Event),
	}
}

// Subscribe registers a new subscriber with the given channel buffer size and
// returns its id together with the receive channel.
func (b *Bus) Subscribe(bufSize int) (string, <-chan Event) {
	id := ulid.Make().String()
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber that has buffer room.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

// PublishNew builds an event with a fresh id and timestamp and publishes it.
func (b *Bus) PublishNew(eventType EventType, tenantID, taskID, workerID string) {
	b.Publish(Event{
		ID:       ulid.Make().String(),
		Type:     eventType,
		TenantID: tenantID,
		TaskID:   taskID,
		WorkerID: workerID,
		At:       time.Now().UTC(),
	})
}
