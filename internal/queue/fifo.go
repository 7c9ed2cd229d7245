package queue

import (
	"crypto/sha256"
	"encoding/hex"
)

// FIFOPolicy delivers per-group arrival order, round-robining across groups
// and draining each group before moving to the next. Duplicate sends are
// suppressed while the original message is still held by the queue.
type FIFOPolicy struct {
	scope        string
	contentDedup bool

	// groups holds message ids in arrival order, per group.
	groups map[string][]string
	// order lists group ids by first arrival; next rotates the round-robin
	// start position between receives.
	order []string
	next  int

	// dedup maps a scope-qualified deduplication id to the id of the live
	// original.
	dedup map[string]string
}

// NewFIFOPolicy builds a FIFO policy from the queue options.
func NewFIFOPolicy(opts Options) *FIFOPolicy {
	opts = opts.withDefaults()
	return &FIFOPolicy{
		scope:        opts.DeduplicationScope,
		contentDedup: opts.ContentBasedDeduplication,
		groups:       make(map[string][]string),
		dedup:        make(map[string]string),
	}
}

func (p *FIFOPolicy) Kind() Kind { return KindFIFO }

func (p *FIFOPolicy) dedupKey(m *Message) string {
	if m.Attributes.MessageDeduplicationID == "" {
		return ""
	}
	if p.scope == DedupScopeMessageGroup {
		return m.Attributes.MessageGroupID + "\x00" + m.Attributes.MessageDeduplicationID
	}
	return m.Attributes.MessageDeduplicationID
}

func (p *FIFOPolicy) OnEnqueue(msg *Message, opts SendOptions, nowMs int64) (string, error) {
	if msg.Attributes.MessageGroupID == "" {
		msg.Attributes.MessageGroupID = defaultGroupID
	}
	if msg.Attributes.MessageDeduplicationID == "" && p.contentDedup {
		sum := sha256.Sum256(msg.Body)
		msg.Attributes.MessageDeduplicationID = hex.EncodeToString(sum[:])
	}
	if key := p.dedupKey(msg); key != "" {
		if orig, ok := p.dedup[key]; ok {
			return orig, nil
		}
	}
	return "", nil
}

func (p *FIFOPolicy) OnEnqueued(msg *Message, nowMs int64) {
	g := msg.Attributes.MessageGroupID
	if _, ok := p.groups[g]; !ok {
		p.order = append(p.order, g)
	}
	p.groups[g] = append(p.groups[g], msg.ID)
	if key := p.dedupKey(msg); key != "" {
		p.dedup[key] = msg.ID
	}
}

func (p *FIFOPolicy) SelectCandidates(ready map[string]*Message, opts ReceiveOptions, nowMs int64, max int) []*Message {
	var out []*Message
	if opts.MessageGroupID != "" {
		return p.drain(ready, opts.MessageGroupID, nowMs, max, out)
	}
	n := len(p.order)
	if n == 0 {
		return nil
	}
	start := p.next % n
	for i := 0; i < n; i++ {
		out = p.drain(ready, p.order[(start+i)%n], nowMs, max, out)
		if max > 0 && len(out) >= max {
			break
		}
	}
	p.next = (start + 1) % n
	return out
}

// drain appends the group's visible ready messages in arrival order until
// max is hit.
func (p *FIFOPolicy) drain(ready map[string]*Message, group string, nowMs int64, max int, out []*Message) []*Message {
	for _, id := range p.groups[group] {
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

func (p *FIFOPolicy) OnAcknowledge(msg *Message) {
	g := msg.Attributes.MessageGroupID
	p.groups[g] = removeID(p.groups[g], msg.ID)
	if len(p.groups[g]) == 0 {
		delete(p.groups, g)
		p.order = removeID(p.order, g)
		if len(p.order) > 0 {
			p.next %= len(p.order)
		} else {
			p.next = 0
		}
	}
	if key := p.dedupKey(msg); key != "" && p.dedup[key] == msg.ID {
		delete(p.dedup, key)
	}
}

func (p *FIFOPolicy) Stats(ready map[string]*Message, nowMs int64, attrs *QueueAttributes) {
	attrs.Groups = make(map[string]int, len(p.groups))
	for g, ids := range p.groups {
		n := 0
		for _, id := range ids {
			if _, ok := ready[id]; ok {
				n++
			}
		}
		attrs.Groups[g] = n
	}
}
