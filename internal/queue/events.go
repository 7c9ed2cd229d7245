package queue

import "time"

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventSent         EventKind = "sent"
	EventDeduplicated EventKind = "deduplicated"
	EventReceived     EventKind = "received"
	EventAcknowledged EventKind = "acknowledged"
	EventVisible      EventKind = "visible"
	EventLeaseExpired EventKind = "lease_expired"
	EventDeadLettered EventKind = "dead_lettered"
	EventDelayChanged EventKind = "delay_changed"
)

// Event describes one message lifecycle transition.
type Event struct {
	Kind      EventKind
	Queue     string
	MessageID string
	// GroupID is set for FIFO queues.
	GroupID string
	At      time.Time
}

// publish delivers an event to the buffered channel, dropping the oldest
// pending event when the buffer is full. Caller holds q.mu.
func (q *Queue) publish(kind EventKind, msg *Message, nowMs int64) {
	if q.closed {
		return
	}
	ev := Event{
		Kind:      kind,
		Queue:     q.name,
		MessageID: msg.ID,
		GroupID:   msg.Attributes.MessageGroupID,
		At:        time.UnixMilli(nowMs).UTC(),
	}
	for {
		select {
		case q.events <- ev:
			return
		default:
		}
		select {
		case <-q.events:
		default:
		}
	}
}
