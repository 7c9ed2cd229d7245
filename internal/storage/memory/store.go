// Package memory provides an in-memory storage adapter. It is useful for
// tests and development without touching disk. Safe for concurrent use.
package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("memory: store closed")

// Store keeps envelopes in nested maps keyed by queue then message id.
type Store struct {
	mu     sync.RWMutex
	queues map[string]map[string][]byte
	closed bool

	// FailSaves forces SaveMessage to fail when set; used to exercise the
	// engine's no-partial-state guarantee in tests.
	FailSaves bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{queues: make(map[string]map[string][]byte)}
}

// SaveMessage stores a copy of envelope under (queue, id).
func (s *Store) SaveMessage(_ context.Context, queue, id string, envelope []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.FailSaves {
		return errors.New("memory: save failed")
	}
	q, ok := s.queues[queue]
	if !ok {
		q = make(map[string][]byte)
		s.queues[queue] = q
	}
	q[id] = append([]byte(nil), envelope...)
	return nil
}

// DeleteMessage removes the record for (queue, id). Unknown ids are a no-op.
func (s *Store) DeleteMessage(_ context.Context, queue, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if q, ok := s.queues[queue]; ok {
		delete(q, id)
	}
	return nil
}

// LoadMessages returns copies of all stored envelopes for a queue.
func (s *Store) LoadMessages(_ context.Context, queue string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make(map[string][]byte, len(s.queues[queue]))
	for id, env := range s.queues[queue] {
		out[id] = append([]byte(nil), env...)
	}
	return out, nil
}

// Len returns the number of records for a queue. Useful in tests.
func (s *Store) Len(queue string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queues[queue])
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
