// # Usage
//
// The receiver keeps its line history in a DropOldest buffer:
//
//	lines, err := buffer.NewCircularBuffer[string](1024,
//	    buffer.WithOverflowPolicy[string](buffer.DropOldest),
//	    buffer.WithMetrics[string](registry, "adcp-1_lines"),
//	)
//	lines.Write("CS")
//	history := lines.Snapshot() // oldest first
//
// # Thread Safety
//
// Writes take an exclusive lock; Snapshot, Last and Size take a shared one,
// so readers on other goroutines observe a consistent, possibly stale, copy.
// Drop callbacks run after the lock is released.
package buffer
