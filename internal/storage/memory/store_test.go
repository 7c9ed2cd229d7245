package memory

import (
	"context"
	"testing"
)

func TestSaveLoadDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.SaveMessage(ctx, "q", "m1", []byte(`{"id":"m1"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveMessage(ctx, "q", "m2", []byte(`{"id":"m2"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadMessages(ctx, "q")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 records, got %d", len(got))
	}

	if err := s.DeleteMessage(ctx, "q", "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// unknown id is a no-op
	if err := s.DeleteMessage(ctx, "q", "nope"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	if s.Len("q") != 1 {
		t.Fatalf("want 1 record after delete, got %d", s.Len("q"))
	}
}

func TestLoadReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SaveMessage(ctx, "q", "m", []byte("abc"))

	got, _ := s.LoadMessages(ctx, "q")
	got["m"][0] = 'x'

	again, _ := s.LoadMessages(ctx, "q")
	if string(again["m"]) != "abc" {
		t.Fatalf("stored envelope mutated through returned copy")
	}
}

func TestClosed(t *testing.T) {
	s := NewStore()
	_ = s.Close()
	if err := s.SaveMessage(context.Background(), "q", "m", nil); err != ErrClosed {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}
