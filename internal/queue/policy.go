package queue

// Kind names a delivery policy.
type Kind string

const (
	KindFIFO     Kind = "fifo"
	KindPriority Kind = "priority"
	KindDelayed  Kind = "delayed"
)

// Policy decides delivery order. Implementations keep their own scheduling
// indexes (group lists, level lists, delay heaps) over messages the queue
// owns; the queue serializes all calls under its mutex, so implementations
// need no locking of their own.
//
// Enqueue is split in two so a persistence failure leaves no trace: the
// queue calls OnEnqueue to validate and stamp the message, persists the
// envelope, then calls OnEnqueued to commit the policy's bookkeeping.
type Policy interface {
	Kind() Kind

	// OnEnqueue validates send options against the policy's configuration
	// and stamps the message's attributes and initial visibility. A
	// non-empty dupID reports a suppressed duplicate: the message must not
	// be stored and dupID is the id of the original.
	OnEnqueue(msg *Message, opts SendOptions, nowMs int64) (dupID string, err error)

	// OnEnqueued registers a persisted message in the policy's indexes.
	// Also called during restore, in (sentAt, id) order.
	OnEnqueued(msg *Message, nowMs int64)

	// SelectCandidates returns ready, visible messages in delivery order,
	// up to max (max <= 0 means unbounded). Ids in the policy's indexes
	// that are absent from ready are currently leased or dead-lettered and
	// are skipped.
	SelectCandidates(ready map[string]*Message, opts ReceiveOptions, nowMs int64, max int) []*Message

	// OnAcknowledge removes a permanently deleted message from the
	// policy's indexes.
	OnAcknowledge(msg *Message)

	// Stats fills the policy-specific fields of attrs.
	Stats(ready map[string]*Message, nowMs int64, attrs *QueueAttributes)
}

// duePromoter is implemented by policies that hold messages invisible until
// a future instant. The queue's sweep calls it to learn which messages have
// just become visible.
type duePromoter interface {
	// SweepDue drops index entries that have come due at nowMs and returns
	// their ids.
	SweepDue(nowMs int64) []string
}

// removeID deletes the first occurrence of id from ids, preserving order.
func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
