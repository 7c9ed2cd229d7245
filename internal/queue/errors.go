package queue

import "errors"

var (
	// ErrQueueClosed is returned by operations on a closed queue.
	ErrQueueClosed = errors.New("queue: closed")

	// ErrUnknownMessage is returned when an operation names a message id
	// the queue does not hold.
	ErrUnknownMessage = errors.New("queue: unknown message")

	// ErrMessageLeased is returned when an operation requires a ready
	// message but the id is currently leased.
	ErrMessageLeased = errors.New("queue: message is leased")

	// ErrInvalidPriority is returned when a send names a priority outside
	// the queue's declared levels.
	ErrInvalidPriority = errors.New("queue: priority outside declared levels")

	// ErrDelayOutOfRange is returned when a delay is negative or exceeds
	// the queue's maximum.
	ErrDelayOutOfRange = errors.New("queue: delay outside allowed range")

	// ErrNotDelayed is returned when ChangeMessageDelay is called on a
	// queue whose policy does not schedule by delay.
	ErrNotDelayed = errors.New("queue: policy does not support delays")
)
