// Package storage defines the persistence contract consumed by the queue
// engine. The engine writes the full message envelope after every lifecycle
// transition; adapters own their read path and are otherwise opaque.
package storage

import "context"

// Adapter persists one message record per (queue, message id).
//
// SaveMessage overwrites any prior record for the same id; envelope is the
// serialized message envelope. DeleteMessage removes a record permanently and
// is a no-op for unknown ids. LoadMessages returns every stored envelope for a
// queue, keyed by message id; it is the load-on-start read path.
type Adapter interface {
	SaveMessage(ctx context.Context, queue, id string, envelope []byte) error
	DeleteMessage(ctx context.Context, queue, id string) error
	LoadMessages(ctx context.Context, queue string) (map[string][]byte, error)
	Close() error
}
