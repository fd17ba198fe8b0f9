// Package receiver reads a live ADCP instrument stream from a socket and
// decodes it.
//
// # Overview
//
// A Receiver owns one connection and runs a single read loop. Every read is
// bounded by a short deadline (400ms by default) so a stop request is
// noticed promptly even when the instrument is silent. Each chunk read is
//
//  1. mirrored to the optional transcript, annotated with the current state
//  2. pushed through the filter pipeline (timestamp markers, then PD0
//     ensembles)
//  3. dispatched by the pipeline sink to the state tracker and the ensemble
//     listener
//
// All decoding runs synchronously on the loop's execution context.
// Accessors may be called from any goroutine.
//
// # Lifecycle
//
//	Created --Start--> Running --End / socket error--> Ended
//
// End is idempotent and does not block. A socket error other than a read
// timeout ends the receiver; there is no reconnect at this layer. When the
// loop exits the pipeline is closed, which flushes held bytes as text and
// appends the end marker to the transcript. Done is closed afterwards.
//
// # Execution Strategy
//
// The loop runs on an Executor chosen at construction:
//
//	b := receiver.NewBuilder(receiver.ModeGoroutine)
//	r, err := b.Build(conn, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := r.Start(); err != nil {
//	    return err
//	}
//	defer r.End()
//
// ModeCooperative queues the loop on a CooperativeExecutor instead, and the
// owner drives it with RunPending on its own goroutine. Tests use this for
// deterministic stepping.
//
// # Metrics
//
// With a MetricsRegistry the receiver exports counters for bytes, reads,
// timeouts, socket errors, ensembles, rejected frames, timestamps, lines
// and state transitions, plus state and last-activity gauges, all labelled
// with the receiver name. A nil registry disables metrics.
package receiver
