package id

import "testing"

func TestNextMonotonic(t *testing.T) {
	g := NewGenerator()
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		cur := g.Next()
		if cur.String() <= prev.String() {
			t.Fatalf("ids not increasing: %s then %s", prev, cur)
		}
		prev = cur
	}
}

func TestClockBackwards(t *testing.T) {
	g := NewGenerator()
	orig := NowMs
	defer func() { NowMs = orig }()

	NowMs = func() int64 { return 2000 }
	a := g.Next()
	NowMs = func() int64 { return 1000 }
	b := g.Next()
	if b.String() <= a.String() {
		t.Fatalf("id regressed after clock went back: %s then %s", a, b)
	}
}

func TestTimePart(t *testing.T) {
	g := NewGenerator()
	orig := NowMs
	defer func() { NowMs = orig }()

	NowMs = func() int64 { return 123456 }
	got := g.Next().Time().UnixMilli()
	if got != 123456 {
		t.Fatalf("embedded time = %d, want 123456", got)
	}
}
