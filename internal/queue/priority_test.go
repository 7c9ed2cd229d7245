package queue

import (
	"context"
	"errors"
	"testing"
)

func newPriorityQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	policy, err := NewPriorityPolicy(opts)
	if err != nil {
		t.Fatalf("new priority policy: %v", err)
	}
	q, _ := newTestQueue(t, policy, opts)
	return q
}

func TestPriorityHighestFirst(t *testing.T) {
	opts := Options{PriorityLevels: []int{1, 5, 10}, DefaultPriority: 1}
	q := newPriorityQueue(t, opts)

	low := mustSend(t, q, "low", SendOptions{Priority: Int(1)}, t0)
	high := mustSend(t, q, "high", SendOptions{Priority: Int(10)}, t0+1)
	mid := mustSend(t, q, "mid", SendOptions{Priority: Int(5)}, t0+2)

	msgs := mustReceive(t, q, ReceiveOptions{MaxMessages: 3}, t0+10)
	got := receivedIDs(msgs)
	want := []string{high, mid, low}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestPriorityOldestFirstWithinLevel(t *testing.T) {
	opts := Options{PriorityLevels: []int{5}, DefaultPriority: 5}
	q := newPriorityQueue(t, opts)

	first := mustSend(t, q, "first", SendOptions{}, t0)
	second := mustSend(t, q, "second", SendOptions{}, t0+1)

	msgs := mustReceive(t, q, ReceiveOptions{MaxMessages: 2}, t0+10)
	got := receivedIDs(msgs)
	if got[0] != first || got[1] != second {
		t.Fatalf("want [%s %s], got %v", first, second, got)
	}
}

func TestPriorityDefaultLevel(t *testing.T) {
	opts := Options{PriorityLevels: []int{1, 5}, DefaultPriority: 5}
	q := newPriorityQueue(t, opts)

	mustSend(t, q, "x", SendOptions{}, t0)
	msgs := mustReceive(t, q, ReceiveOptions{}, t0+1)
	if len(msgs) != 1 || msgs[0].Attributes.Priority != 5 {
		t.Fatalf("want default priority 5, got %+v", msgs)
	}
}

func TestPriorityRejectsUndeclaredLevel(t *testing.T) {
	opts := Options{PriorityLevels: []int{1, 5}, DefaultPriority: 1}
	q := newPriorityQueue(t, opts)

	_, err := q.SendMessage(context.Background(), []byte("x"), SendOptions{Priority: Int(3)}, t0)
	if !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("want ErrInvalidPriority, got %v", err)
	}
	if attrs := q.Attributes(t0); attrs.TotalSent != 0 {
		t.Fatalf("rejected send counted: %+v", attrs)
	}
}

func TestPriorityRangeReceive(t *testing.T) {
	opts := Options{PriorityLevels: []int{1, 5, 10}, DefaultPriority: 1}
	q := newPriorityQueue(t, opts)

	mustSend(t, q, "low", SendOptions{Priority: Int(1)}, t0)
	mid := mustSend(t, q, "mid", SendOptions{Priority: Int(5)}, t0+1)
	mustSend(t, q, "high", SendOptions{Priority: Int(10)}, t0+2)

	msgs := mustReceive(t, q, ReceiveOptions{MinPriority: 2, MaxPriority: 9, MaxMessages: 5}, t0+10)
	if len(msgs) != 1 || msgs[0].ID != mid {
		t.Fatalf("want only %s in range, got %v", mid, receivedIDs(msgs))
	}
}

func TestPriorityLevelStats(t *testing.T) {
	opts := Options{PriorityLevels: []int{1, 10}, DefaultPriority: 1}
	q := newPriorityQueue(t, opts)

	mustSend(t, q, "a", SendOptions{Priority: Int(10)}, t0)
	mustSend(t, q, "b", SendOptions{Priority: Int(10)}, t0+1)
	mustSend(t, q, "c", SendOptions{Priority: Int(1)}, t0+2)
	mustReceive(t, q, ReceiveOptions{}, t0+3) // leases one of the 10s

	attrs := q.Attributes(t0 + 4)
	if attrs.Levels[10] != 1 || attrs.Levels[1] != 1 {
		t.Fatalf("unexpected level depths: %v", attrs.Levels)
	}
}

func TestPriorityPolicyConfigValidation(t *testing.T) {
	if _, err := NewPriorityPolicy(Options{PriorityLevels: []int{1, 2}, DefaultPriority: 9}); err == nil {
		t.Fatalf("want error for default outside levels")
	}
}

func TestPriorityDefaultLevelSet(t *testing.T) {
	// no declared levels means 1 through 10 with default 5
	q, _ := newTestQueue(t, mustPolicy(t, Options{}), Options{})

	mustSend(t, q, "x", SendOptions{}, t0)
	msgs := mustReceive(t, q, ReceiveOptions{}, t0+1)
	if len(msgs) != 1 || msgs[0].Attributes.Priority != 5 {
		t.Fatalf("want implicit default 5, got %+v", msgs)
	}
	if _, err := q.SendMessage(context.Background(), []byte("x"), SendOptions{Priority: Int(11)}, t0); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("level 11 accepted with implicit 1-10 set: %v", err)
	}
}

func mustPolicy(t *testing.T, opts Options) *PriorityPolicy {
	t.Helper()
	p, err := NewPriorityPolicy(opts)
	if err != nil {
		t.Fatalf("new priority policy: %v", err)
	}
	return p
}
