package queue

import (
	"fmt"
	"sort"
	"time"
)

// DelayedPolicy defers visibility by a per-message delay and delivers
// visible messages oldest-first. Messages with a future visibleAt are held
// in a sorted pending index consumed by the queue's sweep.
type DelayedPolicy struct {
	defaultDelaySeconds int
	maxDelaySeconds     int

	// arrival holds every live id in send order.
	arrival []string
	// pending holds not-yet-visible entries sorted by (visibleAt, id).
	pending []delayEntry
}

type delayEntry struct {
	atMs int64
	id   string
}

// NewDelayedPolicy builds a delayed policy from the queue options.
func NewDelayedPolicy(opts Options) *DelayedPolicy {
	opts = opts.withDefaults()
	return &DelayedPolicy{
		defaultDelaySeconds: int(opts.DefaultDelay / time.Second),
		maxDelaySeconds:     int(opts.MaxDelay / time.Second),
	}
}

func (p *DelayedPolicy) Kind() Kind { return KindDelayed }

func (p *DelayedPolicy) validateDelay(seconds int) error {
	if seconds < 0 || seconds > p.maxDelaySeconds {
		return fmt.Errorf("%w: %ds (max %ds)", ErrDelayOutOfRange, seconds, p.maxDelaySeconds)
	}
	return nil
}

func (p *DelayedPolicy) OnEnqueue(msg *Message, opts SendOptions, nowMs int64) (string, error) {
	delay := p.defaultDelaySeconds
	if opts.DelaySeconds != nil {
		delay = *opts.DelaySeconds
	}
	if err := p.validateDelay(delay); err != nil {
		return "", err
	}
	msg.Attributes.DelaySeconds = delay
	msg.Metadata.VisibleAtMs = nowMs + int64(delay)*1000
	return "", nil
}

func (p *DelayedPolicy) OnEnqueued(msg *Message, nowMs int64) {
	p.arrival = append(p.arrival, msg.ID)
	if msg.Metadata.VisibleAtMs > nowMs {
		p.insertPending(delayEntry{atMs: msg.Metadata.VisibleAtMs, id: msg.ID})
	}
}

func (p *DelayedPolicy) insertPending(e delayEntry) {
	i := sort.Search(len(p.pending), func(i int) bool {
		if p.pending[i].atMs != e.atMs {
			return p.pending[i].atMs > e.atMs
		}
		return p.pending[i].id > e.id
	})
	p.pending = append(p.pending, delayEntry{})
	copy(p.pending[i+1:], p.pending[i:])
	p.pending[i] = e
}

func (p *DelayedPolicy) removePending(id string) {
	for i, e := range p.pending {
		if e.id == id {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return
		}
	}
}

func (p *DelayedPolicy) SelectCandidates(ready map[string]*Message, opts ReceiveOptions, nowMs int64, max int) []*Message {
	var out []*Message
	for _, id := range p.arrival {
		msg, ok := ready[id]
		if !ok || msg.Metadata.VisibleAtMs > nowMs {
			continue
		}
		out = append(out, msg)
		if max > 0 && len(out) >= max {
			return out
		}
	}
	return out
}

func (p *DelayedPolicy) OnAcknowledge(msg *Message) {
	p.arrival = removeID(p.arrival, msg.ID)
	p.removePending(msg.ID)
}

// SweepDue pops pending entries that have come due and returns their ids.
func (p *DelayedPolicy) SweepDue(nowMs int64) []string {
	n := 0
	for n < len(p.pending) && p.pending[n].atMs <= nowMs {
		n++
	}
	if n == 0 {
		return nil
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = p.pending[i].id
	}
	p.pending = append(p.pending[:0], p.pending[n:]...)
	return ids
}

// reschedule moves a ready message's visibility, keeping the pending index
// consistent. The caller has already validated the delay and persisted the
// new visibleAt.
func (p *DelayedPolicy) reschedule(msg *Message, nowMs int64) {
	p.removePending(msg.ID)
	if msg.Metadata.VisibleAtMs > nowMs {
		p.insertPending(delayEntry{atMs: msg.Metadata.VisibleAtMs, id: msg.ID})
	}
}

func (p *DelayedPolicy) Stats(ready map[string]*Message, nowMs int64, attrs *QueueAttributes) {
	if len(p.pending) > 0 {
		attrs.NextVisibleAtMs = p.pending[0].atMs
	}
}

var _ duePromoter = (*DelayedPolicy)(nil)
