package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzbill/quill/internal/metrics"
	"github.com/rzbill/quill/internal/storage"
	"github.com/rzbill/quill/pkg/id"
	"github.com/rzbill/quill/pkg/log"
)

// QueueAttributes is a point-in-time snapshot of queue state. Policy-specific
// fields (Groups, Levels, NextVisibleAtMs) are only set for the matching
// policy.
type QueueAttributes struct {
	Name   string
	Policy Kind

	// Ready counts messages deliverable right now.
	Ready int
	// Delayed counts messages waiting on a future visibleAt.
	Delayed int
	// InFlight counts currently leased messages.
	InFlight int
	// DeadLettered counts parked messages.
	DeadLettered int

	TotalSent     uint64
	TotalReceived uint64

	// Groups maps group id to ready depth (FIFO).
	Groups map[string]int
	// Levels maps priority level to ready depth (priority).
	Levels map[int]int
	// NextVisibleAtMs is the earliest pending visibility (delayed), zero
	// when nothing is pending.
	NextVisibleAtMs int64
}

// Queue is a single named queue. All operations are serialized by one mutex;
// the policy and its indexes are only touched under it.
type Queue struct {
	name   string
	opts   Options
	policy Policy
	store  storage.Adapter
	logger log.Logger
	gen    *id.Generator

	mu            sync.Mutex
	sweepStop     chan struct{}
	sweepDone     chan struct{}
	events        chan Event
	ready         map[string]*Message
	inflight      map[string]*Message
	dead          map[string]*Message
	totalSent     uint64
	totalReceived uint64
	closed        bool
}

// New builds a queue, restores any persisted messages from the store, and
// starts the background sweep. The caller owns the store's lifetime.
func New(name string, policy Policy, store storage.Adapter, opts Options, logger log.Logger) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("queue: name is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("queue: policy is required")
	}
	if store == nil {
		return nil, fmt.Errorf("queue: storage adapter is required")
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	opts = opts.withDefaults()

	q := &Queue{
		name:      name,
		opts:      opts,
		policy:    policy,
		store:     store,
		logger:    logger.WithComponent("queue").With(log.F("queue", name), log.F("policy", string(policy.Kind()))),
		gen:       id.NewGenerator(),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
		events:    make(chan Event, opts.EventBuffer),
		ready:     make(map[string]*Message),
		inflight:  make(map[string]*Message),
		dead:      make(map[string]*Message),
	}
	if err := q.restore(context.Background()); err != nil {
		return nil, err
	}
	go q.sweepLoop()
	return q, nil
}

// restore reloads persisted envelopes and rebuilds the in-memory sets and
// policy indexes. Corrupt records are logged and skipped.
func (q *Queue) restore(ctx context.Context) error {
	records, err := q.store.LoadMessages(ctx, q.name)
	if err != nil {
		return fmt.Errorf("queue: restore %s: %w", q.name, err)
	}
	msgs := make([]*Message, 0, len(records))
	for msgID, data := range records {
		msg, err := decodeEnvelope(data)
		if err != nil {
			q.logger.Warn("skipping corrupt record", log.F("id", msgID), log.Err(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Metadata.SentAtMs != msgs[j].Metadata.SentAtMs {
			return msgs[i].Metadata.SentAtMs < msgs[j].Metadata.SentAtMs
		}
		return msgs[i].ID < msgs[j].ID
	})
	nowMs := time.Now().UnixMilli()
	for _, msg := range msgs {
		switch {
		case msg.Metadata.DeadLetteredAtMs != 0:
			q.dead[msg.ID] = msg
		case msg.Metadata.ProcessingExpiresAtMs != 0:
			// Expired leases are reclaimed by the first sweep so they go
			// through the usual redelivery accounting.
			q.inflight[msg.ID] = msg
		default:
			q.ready[msg.ID] = msg
		}
		q.policy.OnEnqueued(msg, nowMs)
	}
	if len(msgs) > 0 {
		q.logger.Info("restored messages",
			log.F("total", len(msgs)),
			log.F("ready", len(q.ready)),
			log.F("in_flight", len(q.inflight)),
			log.F("dead_lettered", len(q.dead)))
	}
	return nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// PolicyKind returns the delivery policy kind.
func (q *Queue) PolicyKind() Kind { return q.policy.Kind() }

// Events returns the lifecycle event channel. It is closed by Close. When
// the buffer fills, the oldest event is dropped.
func (q *Queue) Events() <-chan Event { return q.events }

func (q *Queue) persist(ctx context.Context, msg *Message) error {
	data, err := encodeEnvelope(msg)
	if err != nil {
		return err
	}
	if err := q.store.SaveMessage(ctx, q.name, msg.ID, data); err != nil {
		return fmt.Errorf("queue: persist %s: %w", msg.ID, err)
	}
	return nil
}

func (q *Queue) updateGauges() {
	labels := []string{q.name, string(q.policy.Kind())}
	metrics.ReadyDepth.WithLabelValues(labels...).Set(float64(len(q.ready)))
	metrics.InFlightDepth.WithLabelValues(labels...).Set(float64(len(q.inflight)))
}

// SendMessage validates, persists, and enqueues a message, returning its id.
// A nowMs <= 0 uses the wall clock. For FIFO queues a suppressed duplicate
// returns the id of the original message and stores nothing.
func (q *Queue) SendMessage(ctx context.Context, body []byte, opts SendOptions, nowMs int64) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	msg := &Message{
		ID:   q.gen.Next().String(),
		Body: append([]byte(nil), body...),
		Metadata: Metadata{
			SentAtMs:    nowMs,
			VisibleAtMs: nowMs,
		},
	}
	msg.Attributes.MessageGroupID = opts.MessageGroupID
	msg.Attributes.MessageDeduplicationID = opts.MessageDeduplicationID
	if opts.Priority != nil {
		msg.Attributes.Priority = *opts.Priority
	}
	if opts.DelaySeconds != nil {
		msg.Attributes.DelaySeconds = *opts.DelaySeconds
	}

	dupID, err := q.policy.OnEnqueue(msg, opts, nowMs)
	if err != nil {
		return "", err
	}
	if dupID != "" {
		// the event names the surviving original, not the suppressed send
		msg.ID = dupID
		q.publish(EventDeduplicated, msg, nowMs)
		metrics.MessagesDeduplicatedTotal.WithLabelValues(q.name).Inc()
		q.logger.Debug("duplicate send suppressed",
			log.F("original", dupID),
			log.F("dedup_id", msg.Attributes.MessageDeduplicationID))
		return dupID, nil
	}

	if err := q.persist(ctx, msg); err != nil {
		return "", err
	}
	q.ready[msg.ID] = msg
	q.policy.OnEnqueued(msg, nowMs)
	q.totalSent++
	q.publish(EventSent, msg, nowMs)
	metrics.MessagesSentTotal.WithLabelValues(q.name, string(q.policy.Kind())).Inc()
	q.updateGauges()
	return msg.ID, nil
}

// ReceiveMessages leases up to MaxMessages visible messages in policy order
// and returns copies. The lease lasts the visibility timeout; the message id
// is the receipt handle for AcknowledgeMessage. An empty queue returns an
// empty batch, not an error. On a persistence failure mid-batch the messages
// already leased are returned alongside the error.
func (q *Queue) ReceiveMessages(ctx context.Context, opts ReceiveOptions, nowMs int64) ([]Message, error) {
	filter, err := newReceiveFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	max := opts.MaxMessages
	if max <= 0 {
		max = 1
	}
	if max > maxReceiveBatch {
		max = maxReceiveBatch
	}
	visibility := opts.VisibilityTimeout
	if visibility <= 0 {
		visibility = q.opts.VisibilityTimeout
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	// Reclaim ahead of selection so expired leases are deliverable in the
	// same call even between sweep ticks.
	if _, err := q.reclaimExpiredLocked(ctx, nowMs); err != nil {
		q.logger.Warn("reclaim before receive failed", log.Err(err))
	}
	q.promoteDueLocked(nowMs)

	candidates := q.policy.SelectCandidates(q.ready, opts, nowMs, 0)
	out := make([]Message, 0, max)
	for _, msg := range candidates {
		if len(out) >= max {
			break
		}
		if !filter.matches(msg, nowMs) {
			continue
		}
		prev := msg.Metadata
		msg.Metadata.ReceivedCount++
		msg.Metadata.LastReceivedAtMs = nowMs
		msg.Metadata.ProcessingStartedAtMs = nowMs
		msg.Metadata.ProcessingExpiresAtMs = nowMs + visibility.Milliseconds()
		msg.Metadata.VisibleAtMs = msg.Metadata.ProcessingExpiresAtMs
		if err := q.persist(ctx, msg); err != nil {
			msg.Metadata = prev
			q.updateGauges()
			return out, err
		}
		delete(q.ready, msg.ID)
		q.inflight[msg.ID] = msg
		q.totalReceived++
		q.publish(EventReceived, msg, nowMs)
		metrics.MessagesReceivedTotal.WithLabelValues(q.name, string(q.policy.Kind())).Inc()
		out = append(out, msg.clone())
	}
	q.updateGauges()
	return out, nil
}

// AcknowledgeMessage deletes a message permanently, in any lifecycle state.
// It returns false for unknown ids; acknowledging twice is not an error.
func (q *Queue) AcknowledgeMessage(ctx context.Context, msgID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, ErrQueueClosed
	}

	msg, ok := q.inflight[msgID]
	if !ok {
		if msg, ok = q.ready[msgID]; !ok {
			if msg, ok = q.dead[msgID]; !ok {
				return false, nil
			}
		}
	}
	if err := q.store.DeleteMessage(ctx, q.name, msgID); err != nil {
		return false, fmt.Errorf("queue: acknowledge %s: %w", msgID, err)
	}
	delete(q.inflight, msgID)
	delete(q.ready, msgID)
	delete(q.dead, msgID)
	q.policy.OnAcknowledge(msg)
	nowMs := time.Now().UnixMilli()
	q.publish(EventAcknowledged, msg, nowMs)
	metrics.MessagesAcknowledgedTotal.WithLabelValues(q.name, string(q.policy.Kind())).Inc()
	q.updateGauges()
	return true, nil
}

// ChangeMessageDelay reschedules a not-yet-leased message on a delayed
// queue. The new delay is measured from nowMs.
func (q *Queue) ChangeMessageDelay(ctx context.Context, msgID string, delaySeconds int, nowMs int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	dp, ok := q.policy.(*DelayedPolicy)
	if !ok {
		return ErrNotDelayed
	}
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	msg, ok := q.ready[msgID]
	if !ok {
		if _, leased := q.inflight[msgID]; leased {
			return fmt.Errorf("%w: %s", ErrMessageLeased, msgID)
		}
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msgID)
	}
	if err := dp.validateDelay(delaySeconds); err != nil {
		return err
	}

	prevDelay := msg.Attributes.DelaySeconds
	prevVisible := msg.Metadata.VisibleAtMs
	msg.Attributes.DelaySeconds = delaySeconds
	msg.Metadata.VisibleAtMs = nowMs + int64(delaySeconds)*1000
	if err := q.persist(ctx, msg); err != nil {
		msg.Attributes.DelaySeconds = prevDelay
		msg.Metadata.VisibleAtMs = prevVisible
		return err
	}
	dp.reschedule(msg, nowMs)
	q.publish(EventDelayChanged, msg, nowMs)
	return nil
}

// Attributes snapshots the queue's state. A nowMs <= 0 uses the wall clock.
func (q *Queue) Attributes(nowMs int64) QueueAttributes {
	q.mu.Lock()
	defer q.mu.Unlock()
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	attrs := QueueAttributes{
		Name:          q.name,
		Policy:        q.policy.Kind(),
		InFlight:      len(q.inflight),
		DeadLettered:  len(q.dead),
		TotalSent:     q.totalSent,
		TotalReceived: q.totalReceived,
	}
	for _, msg := range q.ready {
		if msg.Metadata.VisibleAtMs > nowMs {
			attrs.Delayed++
		} else {
			attrs.Ready++
		}
	}
	q.policy.Stats(q.ready, nowMs, &attrs)
	return attrs
}

// DeadLetters returns copies of the parked messages, oldest first.
func (q *Queue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, 0, len(q.dead))
	for _, msg := range q.dead {
		out = append(out, msg.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metadata.SentAtMs != out[j].Metadata.SentAtMs {
			return out[i].Metadata.SentAtMs < out[j].Metadata.SentAtMs
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ReclaimExpired returns expired leases to the ready set, dead-lettering
// messages past MaxReceiveCount, and reports how many leases were handled.
// The background sweep calls this automatically; it is exported for callers
// driving time explicitly.
func (q *Queue) ReclaimExpired(ctx context.Context, nowMs int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, ErrQueueClosed
	}
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	n, err := q.reclaimExpiredLocked(ctx, nowMs)
	q.promoteDueLocked(nowMs)
	return n, err
}

func (q *Queue) reclaimExpiredLocked(ctx context.Context, nowMs int64) (int, error) {
	var expired []*Message
	for _, msg := range q.inflight {
		if !msg.Metadata.Leased(nowMs) {
			expired = append(expired, msg)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].Metadata.ProcessingExpiresAtMs != expired[j].Metadata.ProcessingExpiresAtMs {
			return expired[i].Metadata.ProcessingExpiresAtMs < expired[j].Metadata.ProcessingExpiresAtMs
		}
		return expired[i].ID < expired[j].ID
	})

	handled := 0
	for _, msg := range expired {
		if q.opts.MaxReceiveCount > 0 && msg.Metadata.ReceivedCount >= q.opts.MaxReceiveCount {
			prev := msg.Metadata
			msg.Metadata.DeadLetteredAtMs = nowMs
			if err := q.persist(ctx, msg); err != nil {
				msg.Metadata = prev
				q.updateGauges()
				return handled, err
			}
			delete(q.inflight, msg.ID)
			q.dead[msg.ID] = msg
			q.publish(EventDeadLettered, msg, nowMs)
			metrics.MessagesDeadLetteredTotal.WithLabelValues(q.name, string(q.policy.Kind())).Inc()
			q.logger.Warn("message dead-lettered",
				log.F("id", msg.ID),
				log.F("received_count", msg.Metadata.ReceivedCount))
		} else {
			prev := msg.Metadata
			msg.Metadata.ProcessingStartedAtMs = 0
			msg.Metadata.ProcessingExpiresAtMs = 0
			msg.Metadata.VisibleAtMs = nowMs
			if err := q.persist(ctx, msg); err != nil {
				msg.Metadata = prev
				q.updateGauges()
				return handled, err
			}
			delete(q.inflight, msg.ID)
			q.ready[msg.ID] = msg
			q.publish(EventLeaseExpired, msg, nowMs)
			metrics.LeasesExpiredTotal.WithLabelValues(q.name, string(q.policy.Kind())).Inc()
		}
		handled++
	}
	q.updateGauges()
	return handled, nil
}

// promoteDueLocked surfaces delayed messages whose visibleAt has passed.
// Visibility is computed from timestamps, so this only drops index entries
// and announces the transition.
func (q *Queue) promoteDueLocked(nowMs int64) {
	dp, ok := q.policy.(duePromoter)
	if !ok {
		return
	}
	for _, msgID := range dp.SweepDue(nowMs) {
		if msg, ok := q.ready[msgID]; ok {
			q.publish(EventVisible, msg, nowMs)
		}
	}
}

func (q *Queue) sweepLoop() {
	defer close(q.sweepDone)
	ticker := time.NewTicker(q.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.sweepStop:
			return
		case <-ticker.C:
			q.mu.Lock()
			if q.closed {
				q.mu.Unlock()
				return
			}
			nowMs := time.Now().UnixMilli()
			if _, err := q.reclaimExpiredLocked(context.Background(), nowMs); err != nil {
				q.logger.Error("lease sweep failed", log.Err(err))
			}
			q.promoteDueLocked(nowMs)
			q.mu.Unlock()
		}
	}
}

// Close stops the background sweep and closes the event channel. Persisted
// state is untouched; the queue can be reopened from the same store. Close
// is idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.sweepStop)
	<-q.sweepDone
	close(q.events)
	return nil
}
