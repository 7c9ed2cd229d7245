// Package runtime assembles the engine from configuration: one storage
// backend plus the declared queues, with a single Close tearing everything
// down.
package runtime

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/rzbill/quill/internal/config"
	"github.com/rzbill/quill/internal/metrics"
	"github.com/rzbill/quill/internal/queue"
	"github.com/rzbill/quill/internal/storage"
	"github.com/rzbill/quill/internal/storage/memory"
	pebblestore "github.com/rzbill/quill/internal/storage/pebble"
	"github.com/rzbill/quill/pkg/log"
)

// Options configures a Runtime. Config takes precedence over ConfigPath.
type Options struct {
	ConfigPath string
	Config     *config.Config
	Logger     log.Logger
}

// Runtime owns the storage backend and the open queues.
type Runtime struct {
	cfg    *config.Config
	logger log.Logger
	store  storage.Adapter

	mu     sync.Mutex
	queues map[string]*queue.Queue
	closed bool
}

// New opens the storage backend and every queue the config declares.
func New(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := opts.Logger
	if logger == nil {
		logger = buildLogger(cfg.Log)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		queues: make(map[string]*queue.Queue, len(cfg.Queues)),
	}
	for i := range cfg.Queues {
		if _, err := r.OpenQueue(cfg.Queues[i]); err != nil {
			return nil, multierr.Append(err, r.Close())
		}
	}
	r.logger.Info("runtime started",
		log.F("backend", backendName(cfg)),
		log.F("queues", len(r.queues)))
	return r, nil
}

func backendName(cfg *config.Config) string {
	if cfg.Storage.Backend == "" {
		return "pebble"
	}
	return cfg.Storage.Backend
}

func buildLogger(lc config.LogConfig) log.Logger {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		level = log.InfoLevel
	}
	options := []log.LoggerOption{log.WithLevel(level)}
	if lc.Format == "text" {
		options = append(options, log.WithFormatter(&log.TextFormatter{}))
	}
	return log.NewLogger(options...)
}

func openStore(cfg *config.Config) (storage.Adapter, error) {
	if backendName(cfg) == "memory" {
		return memory.NewStore(), nil
	}
	mode := pebblestore.FsyncModeInterval
	switch cfg.Storage.Fsync {
	case "always":
		mode = pebblestore.FsyncModeAlways
	case "never":
		mode = pebblestore.FsyncModeNever
	}
	return pebblestore.Open(pebblestore.Options{
		DataDir:       filepath.Join(cfg.DataDir, "pebble"),
		Fsync:         mode,
		FsyncInterval: cfg.Storage.FsyncInterval.Std(),
		Metrics:       metrics.StoreHook{},
	})
}

func (r *Runtime) queueOptions(qc *config.QueueConfig) queue.Options {
	d := r.cfg.Defaults
	opts := queue.Options{
		VisibilityTimeout:         qc.VisibilityTimeout.Std(),
		SweepInterval:             qc.SweepInterval.Std(),
		MaxReceiveCount:           qc.MaxReceiveCount,
		EventBuffer:               qc.EventBuffer,
		DeduplicationScope:        qc.DeduplicationScope,
		ContentBasedDeduplication: qc.ContentBasedDeduplication,
		PriorityLevels:            qc.PriorityLevels,
		DefaultPriority:           qc.DefaultPriority,
		DefaultDelay:              qc.DefaultDelay.Std(),
		MaxDelay:                  qc.MaxDelay.Std(),
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = d.VisibilityTimeout.Std()
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = d.SweepInterval.Std()
	}
	if opts.MaxReceiveCount == 0 {
		opts.MaxReceiveCount = d.MaxReceiveCount
	}
	if opts.EventBuffer == 0 {
		opts.EventBuffer = d.EventBuffer
	}
	return opts
}

func buildPolicy(qc *config.QueueConfig, opts queue.Options) (queue.Policy, error) {
	switch qc.Policy {
	case "fifo":
		return queue.NewFIFOPolicy(opts), nil
	case "priority":
		return queue.NewPriorityPolicy(opts)
	case "delayed":
		return queue.NewDelayedPolicy(opts), nil
	default:
		return nil, fmt.Errorf("runtime: queue %q: unknown policy %q", qc.Name, qc.Policy)
	}
}

// OpenQueue declares and opens a queue at runtime. Opening an already-open
// name returns the existing queue when the policy matches.
func (r *Runtime) OpenQueue(qc config.QueueConfig) (*queue.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, queue.ErrQueueClosed
	}
	if existing, ok := r.queues[qc.Name]; ok {
		if string(existing.PolicyKind()) != qc.Policy {
			return nil, fmt.Errorf("runtime: queue %q already open with policy %s", qc.Name, existing.PolicyKind())
		}
		return existing, nil
	}

	opts := r.queueOptions(&qc)
	policy, err := buildPolicy(&qc, opts)
	if err != nil {
		return nil, err
	}
	q, err := queue.New(qc.Name, policy, r.store, opts, r.logger)
	if err != nil {
		return nil, err
	}
	r.queues[qc.Name] = q
	return q, nil
}

// Queue returns an open queue by name.
func (r *Runtime) Queue(name string) (*queue.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[name]
	if !ok {
		return nil, fmt.Errorf("runtime: unknown queue %q", name)
	}
	return q, nil
}

// Queues lists open queue names, sorted.
func (r *Runtime) Queues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() log.Logger { return r.logger }

// Close stops every queue and then the storage backend. Errors are collected
// so one failing queue does not keep the store open.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	queues := r.queues
	r.queues = map[string]*queue.Queue{}
	r.mu.Unlock()

	var err error
	for _, q := range queues {
		err = multierr.Append(err, q.Close())
	}
	err = multierr.Append(err, r.store.Close())
	return err
}
