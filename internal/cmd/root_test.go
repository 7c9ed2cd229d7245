package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `
dataDir: ` + filepath.Join(dir, "data") + `
log:
  level: error
queues:
  - name: orders
    policy: fifo
  - name: reminders
    policy: delayed
`
	path := filepath.Join(dir, "quill.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRoot()
	root.SetArgs(args)
	return root.Execute()
}

func TestCommandWiring(t *testing.T) {
	root := NewRoot()
	want := map[string]bool{"send": false, "receive": false, "ack": false, "delay": false, "stats": false, "queues": false}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing subcommand %s", name)
		}
	}
}

func TestSendReceiveAckRoundTrip(t *testing.T) {
	cfgPath := writeConfig(t)

	if err := run(t, "--config", cfgPath, "send", "orders", "-m", `{"order":1}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := run(t, "--config", cfgPath, "receive", "orders", "-n", "1", "--ack"); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := run(t, "--config", cfgPath, "stats", "orders"); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if err := run(t, "--config", cfgPath, "queues"); err != nil {
		t.Fatalf("queues: %v", err)
	}
}

func TestUnknownQueueFails(t *testing.T) {
	cfgPath := writeConfig(t)
	if err := run(t, "--config", cfgPath, "send", "missing", "-m", "x"); err == nil {
		t.Fatalf("send to undeclared queue accepted")
	}
}
