package pebblestore

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{DataDir: t.TempDir(), Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveMessage(ctx, "orders", "a", []byte(`{"id":"a"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveMessage(ctx, "orders", "b", []byte(`{"id":"b"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	// a record for a different queue must not leak into the scan
	if err := s.SaveMessage(ctx, "other", "c", []byte(`{"id":"c"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadMessages(ctx, "orders")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 records, got %d", len(got))
	}
	if string(got["a"]) != `{"id":"a"}` {
		t.Fatalf("unexpected envelope for a: %s", got["a"])
	}

	if err := s.DeleteMessage(ctx, "orders", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.LoadMessages(ctx, "orders")
	if len(got) != 1 {
		t.Fatalf("want 1 record after delete, got %d", len(got))
	}
}

func TestOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_ = s.SaveMessage(ctx, "q", "m", []byte("v1"))
	_ = s.SaveMessage(ctx, "q", "m", []byte("v2"))

	got, _ := s.LoadMessages(ctx, "q")
	if string(got["m"]) != "v2" {
		t.Fatalf("want latest record, got %s", got["m"])
	}
}

func TestRequiresDataDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatalf("want error for missing DataDir")
	}
}
