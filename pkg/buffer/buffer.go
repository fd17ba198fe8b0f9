// Package buffer provides a generic, thread-safe bounded buffer with
// configurable overflow policies.
//
// The buffer keeps items in insertion order and never grows past its
// capacity. When full, DropOldest evicts the oldest item to make room and
// DropNewest discards the incoming one. Statistics are always collected;
// Prometheus metrics can be enabled with WithMetrics.
package buffer

// Buffer represents a bounded, ordered buffer of items of type T.
type Buffer[T any] interface {
	// Write adds an item to the buffer. When full, the overflow policy decides
	// which item is lost. Returns an error only after Close.
	Write(item T) error

	// Read retrieves and removes the oldest item.
	Read() (T, bool)

	// Last returns the most recently written item without removing it.
	Last() (T, bool)

	// Snapshot returns a copy of the buffered items, oldest first.
	Snapshot() []T

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// Clear removes all items from the buffer.
	Clear()

	// Stats returns buffer statistics.
	Stats() *Statistics

	// Close rejects further writes.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called with each item lost to the overflow policy.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a new circular buffer with the specified capacity and options.
// Returns an error if metrics registration fails when metrics are requested.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}
