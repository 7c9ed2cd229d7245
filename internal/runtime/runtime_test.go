package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/rzbill/quill/internal/config"
	"github.com/rzbill/quill/internal/queue"
	"github.com/rzbill/quill/pkg/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Defaults.SweepInterval = config.Duration(time.Hour)
	cfg.Queues = []config.QueueConfig{
		{Name: "orders", Policy: "fifo"},
		{Name: "jobs", Policy: "priority", PriorityLevels: []int{1, 5}, DefaultPriority: 1},
		{Name: "reminders", Policy: "delayed"},
	}
	return cfg
}

func newTestRuntime(t *testing.T, cfg *config.Config) *Runtime {
	t.Helper()
	r, err := New(Options{Config: cfg, Logger: log.NewTestLogger()})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestOpensDeclaredQueues(t *testing.T) {
	r := newTestRuntime(t, testConfig(t))

	names := r.Queues()
	want := []string{"jobs", "orders", "reminders"}
	if len(names) != len(want) {
		t.Fatalf("want %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("want %v, got %v", want, names)
		}
	}
	if _, err := r.Queue("nope"); err == nil {
		t.Fatalf("unknown queue resolved")
	}
}

func TestQueueDefaultsMerge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Defaults.MaxReceiveCount = 3
	cfg.Queues[0].MaxReceiveCount = 7
	r := newTestRuntime(t, cfg)

	opts := r.queueOptions(cfg.Queue("orders"))
	if opts.MaxReceiveCount != 7 {
		t.Fatalf("per-queue value not honored: %d", opts.MaxReceiveCount)
	}
	opts = r.queueOptions(cfg.Queue("jobs"))
	if opts.MaxReceiveCount != 3 {
		t.Fatalf("default not merged: %d", opts.MaxReceiveCount)
	}
	if opts.SweepInterval != time.Hour {
		t.Fatalf("default sweep interval not merged: %v", opts.SweepInterval)
	}
}

func TestOpenQueueAtRuntime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queues = nil
	r := newTestRuntime(t, cfg)

	q, err := r.OpenQueue(config.QueueConfig{Name: "adhoc", Policy: "fifo"})
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	if q.PolicyKind() != queue.KindFIFO {
		t.Fatalf("unexpected policy %s", q.PolicyKind())
	}

	// reopening the same name returns the same queue
	again, err := r.OpenQueue(config.QueueConfig{Name: "adhoc", Policy: "fifo"})
	if err != nil || again != q {
		t.Fatalf("reopen: %v", err)
	}
	// but not under a different policy
	if _, err := r.OpenQueue(config.QueueConfig{Name: "adhoc", Policy: "delayed"}); err == nil {
		t.Fatalf("policy mismatch accepted")
	}
}

func TestMessagesSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	r1 := newTestRuntime(t, cfg)
	orders, err := r1.Queue("orders")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	msgID, err := orders.SendMessage(ctx, []byte("o1"), queue.SendOptions{}, 0)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := r1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r2 := newTestRuntime(t, cfg)
	orders, err = r2.Queue("orders")
	if err != nil {
		t.Fatalf("queue after restart: %v", err)
	}
	msgs, err := orders.ReceiveMessages(ctx, queue.ReceiveOptions{}, 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != msgID {
		t.Fatalf("message lost across restart: %v", msgs)
	}
	if string(msgs[0].Body) != "o1" {
		t.Fatalf("body corrupted: %q", msgs[0].Body)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newTestRuntime(t, testConfig(t))
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := r.OpenQueue(config.QueueConfig{Name: "late", Policy: "fifo"}); err == nil {
		t.Fatalf("open after close accepted")
	}
}

func TestMemoryBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "memory"
	r := newTestRuntime(t, cfg)

	orders, err := r.Queue("orders")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if _, err := orders.SendMessage(context.Background(), []byte("x"), queue.SendOptions{}, 0); err != nil {
		t.Fatalf("send on memory backend: %v", err)
	}
}
