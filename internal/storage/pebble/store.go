package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/quill/internal/storage"
)

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each committed batch/write.
	FsyncModeAlways
	// FsyncModeInterval enables group-commit by allowing Pebble to coalesce
	// WAL syncs for operations within the configured interval.
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application. Pebble may
	// still sync based on its own policies. Trades durability latency for
	// throughput; use with care.
	FsyncModeNever
)

// Options configures the Pebble store.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning. If nil, sensible defaults are used.
	PebbleOptions *pebble.Options
	// Metrics allows observing read/write latencies and sizes. Optional.
	Metrics MetricsHook
}

// MetricsHook is a minimal hook surface for storage observations.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveWrite(time.Duration, int) {}
func (NoopMetrics) ObserveRead(time.Duration, int)  {}

// Store wraps a Pebble database and implements storage.Adapter.
type Store struct {
	inner     *pebble.DB
	writeSync bool
	metrics   MetricsHook
}

var _ storage.Adapter = (*Store)(nil)

// Open creates or opens a Pebble-backed store with the provided options.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}

	switch opts.Fsync {
	case FsyncModeAlways:
		// Sync on each commit; WALMinSyncInterval left at default.
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return opts.FsyncInterval }
	case FsyncModeNever:
		// Neither WALMinSyncInterval nor Sync on writes.
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	return &Store{
		inner:     inner,
		writeSync: opts.Fsync == FsyncModeAlways,
		metrics:   metrics,
	}, nil
}

// msgKey returns the record key for (queue, id).
// Format: q/{queue}/msg/{id}
func msgKey(queue, id string) []byte {
	return []byte("q/" + queue + "/msg/" + id)
}

// msgPrefix returns the scan prefix for a queue's records.
func msgPrefix(queue string) []byte {
	return []byte("q/" + queue + "/msg/")
}

func (s *Store) writeOpts() *pebble.WriteOptions {
	if s.writeSync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// SaveMessage writes the envelope for (queue, id), overwriting any prior
// record.
func (s *Store) SaveMessage(_ context.Context, queue, id string, envelope []byte) error {
	start := time.Now()
	if err := s.inner.Set(msgKey(queue, id), envelope, s.writeOpts()); err != nil {
		return fmt.Errorf("pebblestore: save %s/%s: %w", queue, id, err)
	}
	s.metrics.ObserveWrite(time.Since(start), len(envelope))
	return nil
}

// DeleteMessage removes the record for (queue, id). Unknown ids are a no-op.
func (s *Store) DeleteMessage(_ context.Context, queue, id string) error {
	if err := s.inner.Delete(msgKey(queue, id), s.writeOpts()); err != nil {
		return fmt.Errorf("pebblestore: delete %s/%s: %w", queue, id, err)
	}
	return nil
}

// LoadMessages scans every record for a queue and returns envelopes keyed by
// message id.
func (s *Store) LoadMessages(_ context.Context, queue string) (map[string][]byte, error) {
	start := time.Now()
	prefix := msgPrefix(queue)
	hi := append(append([]byte{}, prefix...), 0xFF)
	iter, err := s.inner.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: hi})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: iterator: %w", err)
	}
	defer iter.Close()

	out := make(map[string][]byte)
	total := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		id := string(iter.Key()[len(prefix):])
		val := append([]byte(nil), iter.Value()...)
		out[id] = val
		total += len(val)
	}
	s.metrics.ObserveRead(time.Since(start), total)
	return out, nil
}

// Close closes the underlying Pebble database.
func (s *Store) Close() error {
	if s == nil || s.inner == nil {
		return nil
	}
	return s.inner.Close()
}
