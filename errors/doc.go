// Package errors provides standardized error handling patterns for adcpstream.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing). For the instrument receiver the
// classes map directly onto the read loop's behaviour:
//
//   - Transient: read deadline expiry. Expected, used only to recheck liveness.
//   - Invalid: a malformed ensemble frame or timestamp marker. Recovered in place
//     by the decoding stage, never surfaced to the loop.
//   - Fatal: EOF, closed or reset connection. The loop ends and the receiver
//     transitions to Ended. There is no reconnect at this layer.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() function preserves the original error's classification:
//
//	errors.Wrap(err, "Component", "Method", "action")
//
// # Timeouts
//
// IsTimeout recognises an expired read deadline, both as os.ErrDeadlineExceeded
// and as a net.Error reporting Timeout(). It is the check the receiver uses on
// every read:
//
//	n, err := conn.Read(buf)
//	if errors.IsTimeout(err) {
//	    continue // recheck the active flag
//	}
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection:
//
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    logger.Warn("frame rejected", "component", ce.Component, "class", ce.Class)
//	}
//
// Classification is preserved through error chains created with Wrap.
package errors
