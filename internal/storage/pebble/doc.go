// Package pebblestore implements the storage adapter on cockroachdb/pebble.
//
// One key per message record:
//
//	q/{queue}/msg/{id} -> envelope (JSON)
//
// Durability is controlled by the FsyncMode: always (WAL sync per commit),
// interval (group-commit window), or never. The default is a small
// group-commit window for a reasonable latency/throughput tradeoff.
package pebblestore
