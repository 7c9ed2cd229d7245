package queue

import (
	"fmt"
	"sort"
)

// PriorityPolicy delivers strictly highest-level-first across a declared set
// of discrete levels, oldest-first within a level.
type PriorityPolicy struct {
	levels       map[int]struct{}
	levelsDesc   []int
	defaultLevel int

	// perLevel holds message ids in arrival order, per level.
	perLevel map[int][]string
}

// NewPriorityPolicy builds a priority policy from the queue options. Absent
// a declared level set, levels 1 through 10 with default 5 apply. A declared
// default must be one of the levels.
func NewPriorityPolicy(opts Options) (*PriorityPolicy, error) {
	declared := opts.PriorityLevels
	if len(declared) == 0 {
		declared = make([]int, 10)
		for i := range declared {
			declared[i] = i + 1
		}
		if opts.DefaultPriority == 0 {
			opts.DefaultPriority = 5
		}
	}
	levels := make(map[int]struct{}, len(declared))
	desc := make([]int, 0, len(declared))
	for _, l := range declared {
		if _, dup := levels[l]; dup {
			continue
		}
		levels[l] = struct{}{}
		desc = append(desc, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(desc)))
	if opts.DefaultPriority == 0 {
		// lowest declared level
		opts.DefaultPriority = desc[len(desc)-1]
	}
	if _, ok := levels[opts.DefaultPriority]; !ok {
		return nil, fmt.Errorf("queue: default priority %d is not a declared level", opts.DefaultPriority)
	}
	return &PriorityPolicy{
		levels:       levels,
		levelsDesc:   desc,
		defaultLevel: opts.DefaultPriority,
		perLevel:     make(map[int][]string),
	}, nil
}

func (p *PriorityPolicy) Kind() Kind { return KindPriority }

func (p *PriorityPolicy) OnEnqueue(msg *Message, opts SendOptions, nowMs int64) (string, error) {
	if opts.Priority == nil {
		msg.Attributes.Priority = p.defaultLevel
		return "", nil
	}
	if _, ok := p.levels[*opts.Priority]; !ok {
		return "", fmt.Errorf("%w: %d", ErrInvalidPriority, *opts.Priority)
	}
	msg.Attributes.Priority = *opts.Priority
	return "", nil
}

func (p *PriorityPolicy) OnEnqueued(msg *Message, nowMs int64) {
	lvl := msg.Attributes.Priority
	p.perLevel[lvl] = append(p.perLevel[lvl], msg.ID)
}

func (p *PriorityPolicy) SelectCandidates(ready map[string]*Message, opts ReceiveOptions, nowMs int64, max int) []*Message {
	var out []*Message
	for _, lvl := range p.levelsDesc {
		if opts.MinPriority != 0 && lvl < opts.MinPriority {
			continue
		}
		if opts.MaxPriority != 0 && lvl > opts.MaxPriority {
			continue
		}
		for _, id := range p.perLevel[lvl] {
			msg, ok := ready[id]
			if !ok || msg.Metadata.VisibleAtMs > nowMs {
				continue
			}
			out = append(out, msg)
			if max > 0 && len(out) >= max {
				return out
			}
		}
	}
	return out
}

func (p *PriorityPolicy) OnAcknowledge(msg *Message) {
	lvl := msg.Attributes.Priority
	p.perLevel[lvl] = removeID(p.perLevel[lvl], msg.ID)
	if len(p.perLevel[lvl]) == 0 {
		delete(p.perLevel, lvl)
	}
}

func (p *PriorityPolicy) Stats(ready map[string]*Message, nowMs int64, attrs *QueueAttributes) {
	attrs.Levels = make(map[int]int, len(p.perLevel))
	for lvl, ids := range p.perLevel {
		n := 0
		for _, id := range ids {
			if _, ok := ready[id]; ok {
				n++
			}
		}
		attrs.Levels[lvl] = n
	}
}
