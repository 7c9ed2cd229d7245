// Package queue implements an in-process message queue with lease-based
// delivery and pluggable scheduling policies.
//
// A Queue owns three message sets:
//
//   - ready: not leased; visible once metadata.visibleAt has passed
//   - in-flight: leased to a receiver until processingExpiresAt
//   - dead-letter: parked after exceeding MaxReceiveCount (optional)
//
// Delivery order is decided by a Policy:
//
//   - FIFO: per-group arrival order, round-robin across groups, optional
//     deduplication (explicit id or content hash, queue or group scope)
//   - Priority: strict highest-level-first over a declared set of levels
//   - Delayed: visibility deferred by delaySeconds, promoted by a background
//     sweep
//
// # Message Lifecycle
//
//  1. SendMessage: envelope persisted, message registered with the policy
//  2. ReceiveMessages: policy selects visible candidates, each is leased
//     (visibleAt = now + visibilityTimeout, receivedCount++), persisted,
//     and returned with receipt handle == message id
//  3. AcknowledgeMessage: record deleted permanently; unknown ids return
//     false without error
//  4. Lease expiry: a background sweep returns expired leases to ready
//     (or dead-letters them past MaxReceiveCount)
//
// # At-Least-Once Semantics
//
// Messages are delivered at-least-once: a lease that expires before
// acknowledgement makes the message deliverable again. Receivers should be
// idempotent. All operations on a queue instance are serialized by a single
// mutex, so two concurrent receives can never lease the same message.
//
// Every state transition writes the full message envelope through the
// storage adapter; persistence failures propagate to the caller and leave
// the in-memory state unchanged.
package queue
