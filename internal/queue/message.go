package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is a single queued record. The ID doubles as the receipt handle
// used to acknowledge the message after a receive.
type Message struct {
	ID         string
	Body       []byte
	Attributes Attributes
	Metadata   Metadata
}

// Attributes carries the sender-supplied routing properties. They round-trip
// unchanged through receive.
type Attributes struct {
	// MessageGroupID scopes FIFO ordering. Empty means the default group.
	MessageGroupID string
	// MessageDeduplicationID identifies duplicate sends within the
	// deduplication scope.
	MessageDeduplicationID string
	// Priority is the discrete level for priority queues.
	Priority int
	// DelaySeconds defers initial visibility for delayed queues.
	DelaySeconds int
}

// Metadata is queue-maintained lifecycle state. Timestamps are Unix
// milliseconds; zero means unset.
type Metadata struct {
	SentAtMs              int64
	VisibleAtMs           int64
	ReceivedCount         int
	LastReceivedAtMs      int64
	ProcessingStartedAtMs int64
	ProcessingExpiresAtMs int64
	// DeadLetteredAtMs marks the message as parked; it survives restarts.
	DeadLetteredAtMs int64
}

// Leased reports whether the message holds an unexpired lease at nowMs.
func (m *Metadata) Leased(nowMs int64) bool {
	return m.ProcessingExpiresAtMs > nowMs
}

// clone returns a deep copy safe to hand to callers.
func (m *Message) clone() Message {
	out := *m
	out.Body = append([]byte(nil), m.Body...)
	return out
}

// envelope is the persisted JSON form. Timestamps are RFC 3339 strings so
// records stay inspectable with standard tooling.
type envelope struct {
	ID         string             `json:"id"`
	Body       []byte             `json:"body"`
	Attributes envelopeAttributes `json:"attributes"`
	Metadata   envelopeMetadata   `json:"metadata"`
}

type envelopeAttributes struct {
	MessageGroupID         string `json:"messageGroupId,omitempty"`
	MessageDeduplicationID string `json:"messageDeduplicationId,omitempty"`
	Priority               int    `json:"priority,omitempty"`
	DelaySeconds           int    `json:"delaySeconds,omitempty"`
}

type envelopeMetadata struct {
	SentAt              string `json:"sentAt"`
	VisibleAt           string `json:"visibleAt"`
	ReceivedCount       int    `json:"receivedCount"`
	LastReceivedAt      string `json:"lastReceivedAt,omitempty"`
	ProcessingStartedAt string `json:"processingStartedAt,omitempty"`
	ProcessingExpiresAt string `json:"processingExpiresAt,omitempty"`
	DeadLetteredAt      string `json:"deadLetteredAt,omitempty"`
}

func formatMs(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

func parseMs(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// encodeEnvelope marshals a message into its persisted form.
func encodeEnvelope(m *Message) ([]byte, error) {
	env := envelope{
		ID:   m.ID,
		Body: m.Body,
		Attributes: envelopeAttributes{
			MessageGroupID:         m.Attributes.MessageGroupID,
			MessageDeduplicationID: m.Attributes.MessageDeduplicationID,
			Priority:               m.Attributes.Priority,
			DelaySeconds:           m.Attributes.DelaySeconds,
		},
		Metadata: envelopeMetadata{
			SentAt:              formatMs(m.Metadata.SentAtMs),
			VisibleAt:           formatMs(m.Metadata.VisibleAtMs),
			ReceivedCount:       m.Metadata.ReceivedCount,
			LastReceivedAt:      formatMs(m.Metadata.LastReceivedAtMs),
			ProcessingStartedAt: formatMs(m.Metadata.ProcessingStartedAtMs),
			ProcessingExpiresAt: formatMs(m.Metadata.ProcessingExpiresAtMs),
			DeadLetteredAt:      formatMs(m.Metadata.DeadLetteredAtMs),
		},
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("queue: encode envelope %s: %w", m.ID, err)
	}
	return data, nil
}

// decodeEnvelope unmarshals a persisted record back into a message.
func decodeEnvelope(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("queue: decode envelope: %w", err)
	}
	m := &Message{
		ID:   env.ID,
		Body: env.Body,
		Attributes: Attributes{
			MessageGroupID:         env.Attributes.MessageGroupID,
			MessageDeduplicationID: env.Attributes.MessageDeduplicationID,
			Priority:               env.Attributes.Priority,
			DelaySeconds:           env.Attributes.DelaySeconds,
		},
	}
	var err error
	if m.Metadata.SentAtMs, err = parseMs(env.Metadata.SentAt); err != nil {
		return nil, fmt.Errorf("queue: decode envelope %s: sentAt: %w", env.ID, err)
	}
	if m.Metadata.VisibleAtMs, err = parseMs(env.Metadata.VisibleAt); err != nil {
		return nil, fmt.Errorf("queue: decode envelope %s: visibleAt: %w", env.ID, err)
	}
	if m.Metadata.LastReceivedAtMs, err = parseMs(env.Metadata.LastReceivedAt); err != nil {
		return nil, fmt.Errorf("queue: decode envelope %s: lastReceivedAt: %w", env.ID, err)
	}
	if m.Metadata.ProcessingStartedAtMs, err = parseMs(env.Metadata.ProcessingStartedAt); err != nil {
		return nil, fmt.Errorf("queue: decode envelope %s: processingStartedAt: %w", env.ID, err)
	}
	if m.Metadata.ProcessingExpiresAtMs, err = parseMs(env.Metadata.ProcessingExpiresAt); err != nil {
		return nil, fmt.Errorf("queue: decode envelope %s: processingExpiresAt: %w", env.ID, err)
	}
	if m.Metadata.DeadLetteredAtMs, err = parseMs(env.Metadata.DeadLetteredAt); err != nil {
		return nil, fmt.Errorf("queue: decode envelope %s: deadLetteredAt: %w", env.ID, err)
	}
	m.Metadata.ReceivedCount = env.Metadata.ReceivedCount
	return m, nil
}
