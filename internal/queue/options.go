package queue

import "time"

// Deduplication scopes for FIFO queues.
const (
	DedupScopeQueue        = "queue"
	DedupScopeMessageGroup = "messageGroup"
)

const (
	defaultVisibilityTimeout = 30 * time.Second
	defaultSweepInterval     = time.Second
	defaultEventBuffer       = 256
	defaultMaxDelay          = 900 * time.Second
	defaultGroupID           = "default"

	// maxReceiveBatch caps a single ReceiveMessages call.
	maxReceiveBatch = 100
)

// Options configures a queue. Zero values fall back to defaults.
type Options struct {
	// VisibilityTimeout is how long a lease lasts before the message becomes
	// deliverable again. Default 30s.
	VisibilityTimeout time.Duration

	// SweepInterval is the cadence of the background sweep that reclaims
	// expired leases and promotes due delayed messages. Default 1s.
	SweepInterval time.Duration

	// MaxReceiveCount, when > 0, dead-letters a message whose lease expires
	// after it has been received this many times.
	MaxReceiveCount int

	// EventBuffer is the capacity of the Events channel. When full, the
	// oldest event is dropped. Default 256.
	EventBuffer int

	// DeduplicationScope is DedupScopeQueue or DedupScopeMessageGroup
	// (FIFO only). Default DedupScopeQueue.
	DeduplicationScope string

	// ContentBasedDeduplication derives a deduplication id from a SHA-256
	// of the body when the sender supplies none (FIFO only).
	ContentBasedDeduplication bool

	// PriorityLevels declares the allowed levels (priority only). Required
	// for priority queues.
	PriorityLevels []int

	// DefaultPriority is used when a send names no priority. Must be one of
	// PriorityLevels.
	DefaultPriority int

	// DefaultDelay is applied when a send names no delay (delayed only).
	DefaultDelay time.Duration

	// MaxDelay bounds per-message delays (delayed only). Default 15m.
	MaxDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = defaultVisibilityTimeout
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = defaultSweepInterval
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaultEventBuffer
	}
	if o.DeduplicationScope == "" {
		o.DeduplicationScope = DedupScopeQueue
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	return o
}

// SendOptions carries per-message send parameters. Nil pointer fields mean
// "not provided" so the queue's defaults apply.
type SendOptions struct {
	MessageGroupID         string
	MessageDeduplicationID string
	Priority               *int
	DelaySeconds           *int
}

// Int is a convenience for building *int option fields.
func Int(v int) *int { return &v }

// ReceiveOptions narrows what a receive may return.
type ReceiveOptions struct {
	// MaxMessages caps the batch size. Zero means 1.
	MaxMessages int

	// MessageGroupID restricts a FIFO receive to one group.
	MessageGroupID string

	// MinPriority and MaxPriority bound a priority receive inclusively.
	// Zero means unbounded on that side.
	MinPriority int
	MaxPriority int

	// Filter is an optional CEL expression evaluated per candidate.
	Filter string

	// VisibilityTimeout overrides the queue default for this receive.
	VisibilityTimeout time.Duration
}
